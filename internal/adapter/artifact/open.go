package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Text artifact extensions, plain first.
var textExtensions = []string{".txt", ".txt.gz", ".txt.zst"}

// IsTextArtifact reports whether name looks like a decoded text artifact.
func IsTextArtifact(name string) bool {
	return textExtension(name) != ""
}

func textExtension(name string) string {
	lower := strings.ToLower(name)
	// Longest suffix first so ".txt.gz" is not taken for ".gz".
	for i := len(textExtensions) - 1; i >= 0; i-- {
		if strings.HasSuffix(lower, textExtensions[i]) {
			return textExtensions[i]
		}
	}
	return ""
}

// Stem returns name without its directory and artifact extension.
func Stem(name string) string {
	base := filepath.Base(name)
	if ext := textExtension(base); ext != "" {
		return base[:len(base)-len(ext)]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open opens a text artifact, transparently decompressing .gz and .zst files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}

	switch textExtension(path) {
	case ".txt.gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip artifact %s: %w", path, err)
		}
		return &layeredReader{Reader: zr, close: func() error {
			zerr := zr.Close()
			if err := f.Close(); err != nil {
				return err
			}
			return zerr
		}}, nil
	case ".txt.zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd artifact %s: %w", path, err)
		}
		return &layeredReader{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	default:
		return f, nil
	}
}

type layeredReader struct {
	io.Reader
	close func() error
}

func (r *layeredReader) Close() error {
	return r.close()
}
