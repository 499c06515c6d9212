// Package csvio reads and writes the semicolon-delimited CSV exports that
// are enriched with stored message attributes.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Delimiter separates fields in input and output files.
const Delimiter = ';'

// Table is a CSV file held in memory. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read parses a CSV stream. A byte order mark is honored and stripped. Short
// rows are padded and long rows truncated to the header width.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv has no header row")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, fit(rec, len(header)))
	}
	return t, nil
}

func fit(rec []string, width int) []string {
	if len(rec) == width {
		return rec
	}
	row := make([]string, width)
	copy(row, rec)
	return row
}

// ReadFile reads the CSV file at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Write encodes the table.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// WriteFile writes the table to path, creating parent directories.
func (t *Table) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ColumnIndex returns the position of the first column named name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// DropColumn removes the column at index i.
func (t *Table) DropColumn(i int) {
	if i < 0 || i >= len(t.Header) {
		return
	}
	t.Header = append(t.Header[:i:i], t.Header[i+1:]...)
	for r, row := range t.Rows {
		t.Rows[r] = append(row[:i:i], row[i+1:]...)
	}
}

// DropIndexColumn removes a leading unnamed index column, as left behind by
// exporters that write their row index. It reports whether one was removed.
func (t *Table) DropIndexColumn() bool {
	if len(t.Header) == 0 {
		return false
	}
	first := strings.TrimSpace(t.Header[0])
	if first != "" && !strings.HasPrefix(first, "Unnamed") {
		return false
	}
	t.DropColumn(0)
	return true
}

// DropEmptyColumns removes columns whose cells are all blank and returns
// their names. A table without rows is left untouched.
func (t *Table) DropEmptyColumns() []string {
	if len(t.Rows) == 0 {
		return nil
	}
	var dropped []string
	for i := len(t.Header) - 1; i >= 0; i-- {
		empty := true
		for _, row := range t.Rows {
			if strings.TrimSpace(row[i]) != "" {
				empty = false
				break
			}
		}
		if empty {
			dropped = append(dropped, t.Header[i])
			t.DropColumn(i)
		}
	}
	// Collected back to front.
	for l, r := 0, len(dropped)-1; l < r; l, r = l+1, r-1 {
		dropped[l], dropped[r] = dropped[r], dropped[l]
	}
	return dropped
}

// List returns the .csv files of dir sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read csv directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
