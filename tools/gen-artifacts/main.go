// gen-artifacts writes synthetic ADRU source files and decoded text
// artifacts for load testing the ingest and enrich commands.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/V4T54L/adru-export/internal/adapter/vocabulary"
	"github.com/V4T54L/adru-export/internal/domain"
)

func main() {
	outDir := flag.String("out", "loadtest", "Output directory; sources go to <out>/input, artifacts to <out>/text")
	files := flag.Int("files", 4, "Number of source files")
	messages := flag.Int("messages", 10000, "Messages per artifact")
	attrs := flag.Int("attrs", 8, "Attributes per namespace section")
	concurrency := flag.Int("c", 4, "Number of concurrent writers")
	compress := flag.Bool("zstd", false, "Write artifacts as .txt.zst")
	csvRows := flag.Int("csv-rows", 0, "Also write a CSV with this many rows keyed by message number")
	flag.Parse()

	vocab, err := vocabulary.Default()
	if err != nil {
		log.Fatalf("load vocabulary: %v", err)
	}
	for _, sub := range []string{"input", "text", "csv"} {
		if err := os.MkdirAll(filepath.Join(*outDir, sub), 0o755); err != nil {
			log.Fatalf("create output directory: %v", err)
		}
	}

	log.Printf("Generating %d files of %d messages in %s", *files, *messages, *outDir)
	start := time.Now()

	var wg sync.WaitGroup
	var written, failed atomic.Int64
	jobs := make(chan int)
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := generate(*outDir, i, vocab, *messages, *attrs, *compress); err != nil {
					log.Printf("file %d: %v", i, err)
					failed.Add(1)
					continue
				}
				written.Add(1)
			}
		}()
	}
	for i := 0; i < *files; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if *csvRows > 0 {
		if err := writeCSV(filepath.Join(*outDir, "csv", "events.csv"), *csvRows, *messages); err != nil {
			log.Fatalf("write csv: %v", err)
		}
	}

	log.Println("Generation finished.")
	log.Printf("Files written: %d", written.Load())
	log.Printf("Errors: %d", failed.Load())
	log.Printf("Elapsed: %s", time.Since(start).Round(time.Millisecond))
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func generate(outDir string, index int, vocab domain.Vocabulary, messages, attrs int, compress bool) error {
	name := fmt.Sprintf("load_%04d", index)

	// Unique bytes so every source file gets its own content hash.
	source := []byte(uuid.NewString())
	if err := os.WriteFile(filepath.Join(outDir, "input", name+".adru"), source, 0o644); err != nil {
		return err
	}

	ext := ".txt"
	if compress {
		ext = ".txt.zst"
	}
	f, err := os.Create(filepath.Join(outDir, "text", name+ext))
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if compress {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		defer enc.Close()
		w = enc
	}

	// Only the last field of a prefixed name survives extraction, so
	// multi-word names of such namespaces are never emitted.
	names := make(map[string][]string, len(vocab.Namespaces))
	for _, ns := range vocab.Namespaces {
		for _, attr := range ns.Attributes {
			if !ns.StripPrefix || len(strings.Fields(attr)) == 1 {
				names[ns.Key] = append(names[ns.Key], attr)
			}
		}
	}

	rng := rand.New(rand.NewPCG(uint64(index), uint64(messages)))
	for m := 1; m <= messages; m++ {
		if _, err := fmt.Fprintf(w, "Msg %d:\n", m); err != nil {
			return err
		}
		for _, ns := range vocab.Namespaces {
			candidates := names[ns.Key]
			if len(candidates) == 0 || rng.IntN(3) == 0 {
				continue
			}
			fmt.Fprintln(w, ns.Marker)
			for a := 0; a < attrs; a++ {
				attr := candidates[rng.IntN(len(candidates))]
				if ns.StripPrefix {
					fmt.Fprintf(w, "%d %s: %d\n", rng.IntN(100), attr, rng.IntN(1000))
				} else {
					fmt.Fprintf(w, "%s = %d\n", attr, rng.IntN(1000))
				}
			}
			fmt.Fprintln(w, ")")
		}
	}
	return nil
}

func writeCSV(path string, rows, messages int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintln(f, ";N°;Event")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(f, "%d;%d;event %d\n", i, i%messages+1, i)
	}
	return nil
}
