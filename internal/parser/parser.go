package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/V4T54L/adru-export/internal/domain"
)

const (
	initialBufferSize = 64 * 1024
	maxLineSize       = 64 * 1024 * 1024
	// cancelCheckEvery is how many lines are read between context checks.
	cancelCheckEvery = 4096
)

// Stats counts what a parse pass saw.
type Stats struct {
	Lines      int
	Messages   int
	Attributes int
	Malformed  int
}

// Summary is what Parse returns once the stream is exhausted.
type Summary struct {
	// Observed holds the distinct attribute names seen per namespace. Every
	// vocabulary namespace is present, possibly empty.
	Observed domain.AttributeSet
	Stats    Stats
}

// Result is a fully collected parse, see ParseAll.
type Result struct {
	Records  []domain.MessageRecord
	Observed domain.AttributeSet
	Stats    Stats
}

// Parser walks decoded ADRU text. It is safe for concurrent use: all state
// of a pass lives in the Parse call.
type Parser struct {
	namespaces []string
	classifier *Classifier
	extractor  *Extractor
	logger     *slog.Logger
}

// New creates a parser recognizing the namespaces of vocab.
func New(vocab domain.Vocabulary, logger *slog.Logger) *Parser {
	return &Parser{
		namespaces: vocab.Keys(),
		classifier: NewClassifier(vocab.Namespaces),
		extractor:  NewExtractor(vocab.Namespaces),
		logger:     logger.With("component", "parser"),
	}
}

// Parse reads r line by line and hands every finished message record to
// emit, in stream order. A nil emit only gathers the summary. An error
// returned by emit aborts the pass.
func (p *Parser) Parse(ctx context.Context, r io.Reader, emit func(domain.MessageRecord) error) (Summary, error) {
	observed := domain.NewAttributeSet()
	for _, ns := range p.namespaces {
		observed.Ensure(ns)
	}

	var (
		stats     Stats
		tracker   Tracker
		assembler = NewAssembler(emit)
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)

	for scanner.Scan() {
		stats.Lines++
		if stats.Lines%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Summary{}, err
			}
		}

		line := p.classifier.Classify(strings.ToValidUTF8(scanner.Text(), ""))

		switch line.Kind {
		case KindMalformed:
			stats.Malformed++
			p.logger.Debug("Skipping malformed message line", "line_no", stats.Lines, "line", line.Text)
			continue
		case KindMessageStart:
			stats.Messages++
			if err := assembler.Begin(line.LocalID); err != nil {
				return Summary{}, fmt.Errorf("emit message record: %w", err)
			}
		case KindAttribute:
			ns, open := tracker.Current()
			if !open || !assembler.InProgress() {
				continue
			}
			name, value, ok := p.extractor.Extract(ns, line.Text)
			if !ok {
				continue
			}
			stats.Attributes++
			observed.Add(ns, name)
			assembler.Add(ns, name, value)
		}

		tracker.Apply(line)
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, fmt.Errorf("read text stream: %w", err)
	}

	if err := assembler.Flush(); err != nil {
		return Summary{}, fmt.Errorf("emit message record: %w", err)
	}

	return Summary{Observed: observed, Stats: stats}, nil
}

// ParseAll collects every record of r in memory.
func (p *Parser) ParseAll(ctx context.Context, r io.Reader) (Result, error) {
	var records []domain.MessageRecord
	summary, err := p.Parse(ctx, r, func(rec domain.MessageRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Records: records, Observed: summary.Observed, Stats: summary.Stats}, nil
}
