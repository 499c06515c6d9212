// Package vocabulary loads the master attribute vocabulary from YAML.
package vocabulary

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/V4T54L/adru-export/internal/domain"
)

//go:embed default.yaml
var defaultVocabulary []byte

// Default returns the vocabulary shipped with the binary.
func Default() (domain.Vocabulary, error) {
	v, err := Parse(bytes.NewReader(defaultVocabulary))
	if err != nil {
		return domain.Vocabulary{}, fmt.Errorf("embedded vocabulary: %w", err)
	}
	return v, nil
}

// Load reads a vocabulary file, or returns Default when path is empty.
func Load(path string) (domain.Vocabulary, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.Vocabulary{}, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	v, err := Parse(f)
	if err != nil {
		return domain.Vocabulary{}, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// Parse decodes and validates a YAML vocabulary. Unknown keys are rejected.
func Parse(r io.Reader) (domain.Vocabulary, error) {
	var v domain.Vocabulary
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Vocabulary{}, errors.New("vocabulary is empty")
		}
		return domain.Vocabulary{}, fmt.Errorf("decode: %w", err)
	}
	if errs := v.Validate(); len(errs) > 0 {
		return domain.Vocabulary{}, fmt.Errorf("invalid vocabulary: %w", errors.Join(errs...))
	}
	return v, nil
}
