package wal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/adru-export/internal/domain"
)

func setupTestWAL(t *testing.T, maxSegmentSize, maxTotalSize int64) *WALRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wal, err := NewWALRepository(t.TempDir(), maxSegmentSize, maxTotalSize, logger)
	if err != nil {
		t.Fatalf("failed to create WALRepository: %v", err)
	}
	t.Cleanup(func() { wal.Close() })
	return wal
}

func testReport(source string) domain.IngestReport {
	return domain.IngestReport{
		ID:         uuid.NewString(),
		RunID:      "run-1",
		SourceName: source,
		Messages:   12,
		Inserted:   12,
		Drift:      map[string][]string{domain.NamespaceJRU: {"NEW_ATTR"}},
		Status:     domain.StatusIngested,
		StartedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC),
	}
}

func TestWAL_WriteAndReplay(t *testing.T) {
	wal := setupTestWAL(t, 4096, 64*1024)

	reports := []domain.IngestReport{testReport("a.adru"), testReport("b.adru"), testReport("c.adru")}
	for _, r := range reports {
		if err := wal.Write(context.Background(), r); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}
	}
	wal.Close()

	// Re-open to simulate a restart.
	reopened, err := NewWALRepository(wal.dir, 4096, 64*1024, wal.logger)
	if err != nil {
		t.Fatalf("failed to re-open WAL: %v", err)
	}
	defer reopened.Close()

	var replayed []domain.IngestReport
	err = reopened.Replay(context.Background(), func(r domain.IngestReport) error {
		replayed = append(replayed, r)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to replay reports: %v", err)
	}

	if len(replayed) != len(reports) {
		t.Fatalf("expected %d replayed reports, got %d", len(reports), len(replayed))
	}
	for i, r := range reports {
		got := replayed[i]
		if got.ID != r.ID || got.SourceName != r.SourceName || got.Status != r.Status {
			t.Errorf("replayed report mismatch at index %d: got %+v, want %+v", i, got, r)
		}
		if !got.StartedAt.Equal(r.StartedAt) {
			t.Errorf("started_at mismatch at index %d", i)
		}
		if len(got.Drift[domain.NamespaceJRU]) != 1 {
			t.Errorf("drift lost at index %d: %v", i, got.Drift)
		}
	}
}

func TestWAL_ReplayStopsOnHandlerError(t *testing.T) {
	wal := setupTestWAL(t, 4096, 64*1024)
	for _, name := range []string{"a", "b"} {
		if err := wal.Write(context.Background(), testReport(name)); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}
	}

	calls := 0
	boom := errors.New("stream down")
	err := wal.Replay(context.Background(), func(domain.IngestReport) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected replay to stop after first failure, got %d calls", calls)
	}
}

func TestWAL_SegmentRotation(t *testing.T) {
	report := testReport("rotation.adru")
	encoded, _ := json.Marshal(report)

	// Each segment holds at most one report.
	wal := setupTestWAL(t, int64(len(encoded)), 64*1024)
	for i := 0; i < 3; i++ {
		if err := wal.Write(context.Background(), report); err != nil {
			t.Fatalf("failed to write report: %v", err)
		}
	}

	segments, err := wal.segments()
	if err != nil {
		t.Fatalf("failed to list segments: %v", err)
	}
	if len(segments) < 3 {
		t.Errorf("expected at least 3 segments, got %d", len(segments))
	}
}

func TestWAL_Truncate(t *testing.T) {
	wal := setupTestWAL(t, 4096, 64*1024)
	if err := wal.Write(context.Background(), testReport("a.adru")); err != nil {
		t.Fatalf("failed to write report: %v", err)
	}

	if err := wal.Truncate(context.Background()); err != nil {
		t.Fatalf("failed to truncate WAL: %v", err)
	}

	segments, _ := wal.segments()
	if len(segments) != 1 {
		t.Fatalf("expected 1 fresh segment after truncate, got %d", len(segments))
	}
	info, err := os.Stat(segments[0].path)
	if err != nil {
		t.Fatalf("stat segment: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected new segment to be empty, size is %d", info.Size())
	}
}

func TestWAL_MaxTotalSize(t *testing.T) {
	wal := setupTestWAL(t, 4096, 300)

	var err error
	for i := 0; i < 5; i++ {
		if err = wal.Write(context.Background(), testReport("filler.adru")); err != nil {
			break
		}
	}
	if err == nil {
		t.Fatal("expected an error when writing beyond max total size, but got nil")
	}
}
