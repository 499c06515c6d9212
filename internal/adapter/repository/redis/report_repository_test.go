package redis

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/adru-export/internal/domain"
)

type memWAL struct {
	mu      sync.Mutex
	reports []domain.IngestReport
}

func (w *memWAL) Write(ctx context.Context, r domain.IngestReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, r)
	return nil
}

func (w *memWAL) Replay(ctx context.Context, handler func(domain.IngestReport) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.reports {
		if err := handler(r); err != nil {
			return err
		}
	}
	return nil
}

func (w *memWAL) Truncate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = nil
	return nil
}

type gauge struct{ v float64 }

func (g *gauge) Set(v float64) { g.v = v }

// unreachableClient points at a port nothing listens on.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestReportRepository_PublishFallsBackToWAL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wal := &memWAL{}
	g := &gauge{}

	repo := NewReportRepository(context.Background(), unreachableClient(t), "", 0, wal, g, logger)
	require.False(t, repo.Available())
	assert.Equal(t, float64(1), g.v, "WAL gauge should be raised while Redis is down")

	report := domain.IngestReport{ID: "r-1", SourceName: "a.adru", Status: domain.StatusIngested}
	require.NoError(t, repo.Publish(context.Background(), report))

	require.Len(t, wal.reports, 1)
	assert.Equal(t, "r-1", wal.reports[0].ID)
}

func TestReportRepository_PublishWithoutWAL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewReportRepository(context.Background(), unreachableClient(t), "reports", 0, nil, nil, logger)

	err := repo.Publish(context.Background(), domain.IngestReport{ID: "r-2"})
	require.Error(t, err)
}

func TestReportRepository_ReplayKeepsWALOnFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wal := &memWAL{reports: []domain.IngestReport{{ID: "queued"}}}
	repo := NewReportRepository(context.Background(), unreachableClient(t), "", 0, wal, nil, logger)

	require.Error(t, repo.ReplayWAL(context.Background()))
	assert.Len(t, wal.reports, 1, "reports must stay journaled until Redis accepts them")
}
