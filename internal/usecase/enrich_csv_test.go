package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/adru-export/internal/adapter/csvio"
	"github.com/V4T54L/adru-export/internal/adapter/metrics"
	"github.com/V4T54L/adru-export/internal/adapter/pii"
	"github.com/V4T54L/adru-export/internal/domain"
	"github.com/V4T54L/adru-export/internal/domain/mocks"
)

// seedStore stores one source with a message file holding messages 1 and 2.
func seedStore(t *testing.T) (*mocks.MockRecordStore, int64) {
	t.Helper()
	ctx := context.Background()
	store := mocks.NewMockRecordStore(domain.SchemaFromVocabulary(testVocabulary()))

	sfID, err := store.InsertSourceFile(ctx, "run_01.adru", "src", time.Now())
	require.NoError(t, err)
	mfID, err := store.InsertMessageFile(ctx, domain.MessageFile{SourceFileID: sfID, Name: "run_01.txt", Hash: "txt", MessageCount: 2})
	require.NoError(t, err)

	m1, err := store.InsertMessage(ctx, 1, mfID)
	require.NoError(t, err)
	require.NoError(t, store.InsertNamespaceRecord(ctx, domain.NamespaceJRU, m1, domain.AttributesOf("NID_C", "42", "FOO", "9")))
	require.NoError(t, store.InsertNamespaceRecord(ctx, domain.NamespaceDRU, m1, domain.AttributesOf("GPS_VALIDITY", "1")))

	m2, err := store.InsertMessage(ctx, 2, mfID)
	require.NoError(t, err)
	require.NoError(t, store.InsertNamespaceRecord(ctx, domain.NamespaceJRU, m2, domain.AttributesOf("NID_C", "43")))
	return store, sfID
}

func newEnrichUseCase(store domain.RecordStore, redactor *pii.Redactor, m *metrics.IngestMetrics) *EnrichCSVUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := NewEnrichCSVUseCase(store, redactor, m, "", 2, logger)
	uc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 15, 0, time.UTC) }
	return uc
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEnrichCSVUseCase_Enrich(t *testing.T) {
	ctx := context.Background()
	store, sfID := seedStore(t)
	m := metrics.NewIngestMetrics(nil)
	uc := newEnrichUseCase(store, nil, m)

	in := writeCSV(t, t.TempDir(), "events.csv",
		";N°;Event;FOO;Blank\n"+
			"0;2;brake;old;\n"+
			"1;1;start;old;\n"+
			"2;x;note;keep;\n"+
			"3;7.0;late;keep;\n")
	outDir := t.TempDir()

	res, err := uc.Enrich(ctx, in, sfID, outDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "2024-05-01_08-30-15 (U) Merged, events.csv"), res.OutputPath)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 1, res.Unmatched)
	assert.Equal(t, 1, res.InvalidKeys)
	assert.Equal(t, []string{"GPS_VALIDITY", "NID_C"}, res.AddedColumns)
	assert.Equal(t, []string{"Blank"}, res.DroppedColumns)

	out, err := csvio.ReadFile(res.OutputPath)
	require.NoError(t, err)
	want := &csvio.Table{
		Header: []string{"N°", "Event", "FOO", "GPS_VALIDITY", "NID_C"},
		Rows: [][]string{
			{"2", "brake", "old", "", "43"},
			{"1", "start", "9", "1", "42"},
			{"x", "note", "keep", "", ""},
			{"7.0", "late", "keep", "", ""},
		},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("enriched table mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EnrichRows.WithLabelValues(rowMatched)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EnrichRows.WithLabelValues(rowInvalidKey)))
}

func TestEnrichCSVUseCase_Redaction(t *testing.T) {
	store, sfID := seedStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := newEnrichUseCase(store, pii.NewRedactor([]string{"NID_C", "Driver"}, logger), nil)

	in := writeCSV(t, t.TempDir(), "events.csv", "N°;Driver\n1;J. Doe\n2;\n")
	res, err := uc.Enrich(context.Background(), in, sfID, t.TempDir())
	require.NoError(t, err)

	out, err := csvio.ReadFile(res.OutputPath)
	require.NoError(t, err)
	nid := out.ColumnIndex("NID_C")
	driver := out.ColumnIndex("Driver")
	require.GreaterOrEqual(t, nid, 0)
	require.GreaterOrEqual(t, driver, 0)
	for _, row := range out.Rows {
		assert.Equal(t, pii.RedactedPlaceholder, row[nid])
	}
	assert.Equal(t, pii.RedactedPlaceholder, out.Rows[0][driver])
	assert.Equal(t, "", out.Rows[1][driver], "blank cells stay blank")
}

func TestEnrichCSVUseCase_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("source without stored messages", func(t *testing.T) {
		store := mocks.NewMockRecordStore(domain.SchemaFromVocabulary(testVocabulary()))
		sfID, err := store.InsertSourceFile(ctx, "a.adru", "a", time.Now())
		require.NoError(t, err)
		_, err = store.InsertMessageFile(ctx, domain.MessageFile{SourceFileID: sfID, Name: "a.txt", Hash: "t"})
		require.NoError(t, err)

		in := writeCSV(t, t.TempDir(), "e.csv", "N°\n1\n")
		_, err = newEnrichUseCase(store, nil, nil).Enrich(ctx, in, sfID, t.TempDir())
		assert.ErrorIs(t, err, domain.ErrNotIngested)
	})

	t.Run("missing key column", func(t *testing.T) {
		store, sfID := seedStore(t)
		in := writeCSV(t, t.TempDir(), "e.csv", "Id;Event\n1;a\n")
		_, err := newEnrichUseCase(store, nil, nil).Enrich(ctx, in, sfID, t.TempDir())
		assert.ErrorContains(t, err, "key column")
	})

	t.Run("lookup failure aborts", func(t *testing.T) {
		store, sfID := seedStore(t)
		store.FetchErr = errors.New("connection reset")
		in := writeCSV(t, t.TempDir(), "e.csv", "N°\n1\n2\n")
		outDir := t.TempDir()
		_, err := newEnrichUseCase(store, nil, nil).Enrich(ctx, in, sfID, outDir)
		require.Error(t, err)

		entries, err := os.ReadDir(outDir)
		require.NoError(t, err)
		assert.Empty(t, entries, "no output is written on failure")
	})
}

func TestEnrichCSVUseCase_EnrichDir(t *testing.T) {
	store, sfID := seedStore(t)
	dir := t.TempDir()
	writeCSV(t, dir, "b.csv", "N°\n2\n")
	writeCSV(t, dir, "a.csv", "N°\n1\n")
	writeCSV(t, dir, "readme.txt", "ignored")

	results, err := newEnrichUseCase(store, nil, nil).EnrichDir(context.Background(), dir, sfID, t.TempDir())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.csv", filepath.Base(results[0].InputPath))
	assert.Equal(t, 1, results[1].Matched)
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		cell string
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{" 7 ", 7, true},
		{"12.0", 12, true},
		{"-3", -3, true},
		{"12.5", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"1e30", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseKey(tt.cell)
		assert.Equal(t, tt.ok, ok, "cell %q", tt.cell)
		assert.Equal(t, tt.want, got, "cell %q", tt.cell)
	}
}
