package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/adru-export/internal/domain"
)

// DefaultReportStream is the stream key reports are appended to.
const DefaultReportStream = "adru_ingest_reports"

// walGauge is the part of the metrics the repository reports WAL state to.
type walGauge interface {
	Set(float64)
}

// ReportRepository implements domain.ReportRepository on a Redis stream.
// While Redis is unreachable reports go to the WAL, and they are replayed
// once a health check sees Redis again.
type ReportRepository struct {
	client      *redis.Client
	stream      string
	maxLen      int64
	logger      *slog.Logger
	wal         domain.WALRepository
	walActive   walGauge
	isAvailable atomic.Bool
}

// NewReportRepository creates a Redis-backed ReportRepository. The WAL and
// the gauge are optional.
func NewReportRepository(ctx context.Context, client *redis.Client, stream string, maxLen int64, wal domain.WALRepository, walActive walGauge, logger *slog.Logger) *ReportRepository {
	if stream == "" {
		stream = DefaultReportStream
	}
	repo := &ReportRepository{
		client:    client,
		stream:    stream,
		maxLen:    maxLen,
		logger:    logger.With("component", "redis_report_repository"),
		wal:       wal,
		walActive: walActive,
	}

	if err := client.Ping(ctx).Err(); err != nil {
		repo.logger.Warn("Redis unavailable on startup, reports will be journaled", "error", err)
		repo.setAvailable(false)
	} else {
		repo.setAvailable(true)
	}
	return repo
}

func (r *ReportRepository) setAvailable(ok bool) {
	r.isAvailable.Store(ok)
	if r.walActive == nil {
		return
	}
	if ok {
		r.walActive.Set(0)
	} else {
		r.walActive.Set(1)
	}
}

// Available reports whether the last interaction with Redis succeeded.
func (r *ReportRepository) Available() bool {
	return r.isAvailable.Load()
}

// StartHealthCheck pings Redis every interval until ctx is done, replaying
// the WAL whenever the connection comes back.
func (r *ReportRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	if r.wal == nil {
		r.logger.Debug("WAL is not configured, skipping health check")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.client.Ping(ctx).Err(); err != nil {
				if r.isAvailable.Load() {
					r.logger.Error("Redis connection lost", "error", err)
					r.setAvailable(false)
				}
				continue
			}
			if !r.isAvailable.Load() {
				r.logger.Info("Redis connection recovered")
				if err := r.ReplayWAL(ctx); err != nil {
					r.logger.Error("Failed to replay WAL after Redis recovery", "error", err)
					continue
				}
				r.setAvailable(true)
			}
		}
	}
}

// ReplayWAL publishes journaled reports and truncates the WAL on success.
func (r *ReportRepository) ReplayWAL(ctx context.Context) error {
	if r.wal == nil {
		return nil
	}
	if err := r.wal.Replay(ctx, func(report domain.IngestReport) error {
		return r.xadd(ctx, report)
	}); err != nil {
		return fmt.Errorf("WAL replay failed: %w", err)
	}
	if err := r.wal.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to truncate WAL after successful replay: %w", err)
	}
	return nil
}

// Publish appends the report to the stream, falling back to the WAL when
// Redis is unreachable.
func (r *ReportRepository) Publish(ctx context.Context, report domain.IngestReport) error {
	if !r.isAvailable.Load() {
		return r.journal(ctx, report, nil)
	}

	err := r.xadd(ctx, report)
	if err == nil {
		return nil
	}
	if !isNetworkError(err) {
		return err
	}
	if r.isAvailable.Load() {
		r.logger.Error("Redis connection lost during publish", "error", err)
		r.setAvailable(false)
	}
	return r.journal(ctx, report, err)
}

func (r *ReportRepository) journal(ctx context.Context, report domain.IngestReport, cause error) error {
	if r.wal == nil {
		if cause != nil {
			return fmt.Errorf("redis became unavailable and WAL is not configured: %w", cause)
		}
		return errors.New("redis is unavailable and WAL is not configured")
	}
	r.logger.Warn("Redis is unavailable, writing report to WAL", "report_id", report.ID, "source", report.SourceName)
	return r.wal.Write(ctx, report)
}

func (r *ReportRepository) xadd(ctx context.Context, report domain.IngestReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest report: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"payload": payload,
			"status":  string(report.Status),
			"source":  report.SourceName,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}

// Recent returns up to count reports from the stream, newest first. Entries
// that do not decode are skipped.
func (r *ReportRepository) Recent(ctx context.Context, count int64) ([]domain.IngestReport, error) {
	messages, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read reports from stream %s: %w", r.stream, err)
	}

	reports := make([]domain.IngestReport, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			r.logger.Warn("Invalid message format in stream, skipping", "message_id", msg.ID)
			continue
		}
		var report domain.IngestReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			r.logger.Warn("Failed to unmarshal report from stream, skipping", "message_id", msg.ID, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Trim caps the stream at maxLen entries and returns how many were removed.
func (r *ReportRepository) Trim(ctx context.Context, maxLen int64) (int64, error) {
	n, err := r.client.XTrimMaxLen(ctx, r.stream, maxLen).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to trim stream %s: %w", r.stream, err)
	}
	return n, nil
}
