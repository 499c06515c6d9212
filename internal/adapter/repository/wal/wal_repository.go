// Package wal journals ingest reports on local disk while the report stream
// is unreachable, so they can be published once it comes back.
package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/adru-export/internal/domain"
)

const (
	segmentPrefix = "reports-"
	segmentSuffix = ".jsonl"
	filePerm      = 0644
)

// segment is one journal file on disk.
type segment struct {
	path string
	size int64
}

// WALRepository is a segmented, append-only journal of ingest reports.
// Each line of a segment is one JSON encoded domain.IngestReport.
type WALRepository struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu      sync.Mutex
	current *os.File
	size    int64
}

// NewWALRepository opens the journal in dir, creating it if needed and
// appending to its newest segment.
func NewWALRepository(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*WALRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory %s: %w", dir, err)
	}

	w := &WALRepository{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "report_wal"),
	}
	if err := w.resume(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends a report to the current segment.
func (w *WALRepository) Write(ctx context.Context, report domain.IngestReport) error {
	line, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest report for WAL: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	segments, err := w.segments()
	if err != nil {
		return fmt.Errorf("could not verify WAL disk space: %w", err)
	}
	var used int64
	for _, s := range segments {
		used += s.size
	}
	if used+int64(len(line)) > w.maxTotalSize {
		return fmt.Errorf("WAL max total size exceeded (%d > %d)", used+int64(len(line)), w.maxTotalSize)
	}

	n, err := w.current.Write(line)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to WAL segment: %w", err)
	}

	if w.size >= w.maxSegmentSize {
		if err := w.rotate(); err != nil {
			w.logger.Error("Failed to rotate WAL segment", "error", err)
		}
	}
	return nil
}

// Replay hands every journaled report to handler, oldest first. Lines that
// cannot be decoded are skipped. Replay stops at the first handler error.
func (w *WALRepository) Replay(ctx context.Context, handler func(report domain.IngestReport) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closeCurrent()

	segments, err := w.segments()
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		w.logger.Debug("WAL is empty, nothing to replay")
		return nil
	}
	w.logger.Info("Starting WAL replay", "segment_count", len(segments))

	replayed := 0
	for _, s := range segments {
		n, err := replaySegment(ctx, s.path, handler, w.logger)
		replayed += n
		if err != nil {
			return err
		}
	}

	w.logger.Info("WAL replay completed", "reports", replayed)
	return nil
}

func replaySegment(ctx context.Context, path string, handler func(domain.IngestReport) error, logger *slog.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer f.Close()

	replayed := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		var report domain.IngestReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			logger.Warn("Failed to unmarshal report from WAL, skipping", "error", err, "segment", filepath.Base(path))
			continue
		}
		if err := handler(report); err != nil {
			logger.Error("WAL replay handler failed, stopping replay", "error", err, "report_id", report.ID)
			return replayed, fmt.Errorf("replay handler failed: %w", err)
		}
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return replayed, fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return replayed, nil
}

// Truncate deletes every segment and starts a fresh one.
func (w *WALRepository) Truncate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closeCurrent()

	segments, err := w.segments()
	if err != nil {
		return err
	}
	for _, s := range segments {
		if err := os.Remove(s.path); err != nil {
			w.logger.Error("Failed to remove WAL segment", "path", s.path, "error", err)
		}
	}

	w.logger.Info("WAL truncated", "segments", len(segments))
	return w.resume()
}

// Close closes the current segment.
func (w *WALRepository) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}

// resume reopens the newest segment for appending, or starts a new one.
func (w *WALRepository) resume() error {
	segments, err := w.segments()
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return w.rotate()
	}

	latest := segments[len(segments)-1]
	if latest.size >= w.maxSegmentSize {
		return w.rotate()
	}

	f, err := os.OpenFile(latest.path, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latest.path, err)
	}
	w.current = f
	w.size = latest.size
	w.logger.Debug("Opened existing WAL segment", "path", latest.path, "size", w.size)
	return nil
}

func (w *WALRepository) rotate() error {
	if w.current != nil {
		if err := w.current.Sync(); err != nil {
			w.logger.Error("Failed to sync WAL segment before rotating", "error", err)
		}
		w.closeCurrent()
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s%020d%s", segmentPrefix, time.Now().UnixNano(), segmentSuffix))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new WAL segment %s: %w", path, err)
	}

	w.current = f
	w.size = 0
	w.logger.Debug("Rotated to new WAL segment", "path", path)
	return nil
}

func (w *WALRepository) closeCurrent() {
	if w.current == nil {
		return
	}
	if err := w.current.Close(); err != nil {
		w.logger.Error("Failed to close WAL segment", "error", err)
	}
	w.current = nil
}

// segments lists the journal files sorted oldest first.
func (w *WALRepository) segments() ([]segment, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL directory: %w", err)
	}

	var out []segment
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat WAL segment %s: %w", name, err)
		}
		out = append(out, segment{path: filepath.Join(w.dir, name), size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}
