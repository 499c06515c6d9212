package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/V4T54L/adru-export/internal/adapter/artifact"
	"github.com/V4T54L/adru-export/internal/adapter/metrics"
	"github.com/V4T54L/adru-export/internal/domain"
	"github.com/V4T54L/adru-export/internal/parser"
)

const defaultProgressInterval = 2 * time.Second

// IngestFileUseCase registers ADRU source files, reconciles their decoded
// text artifacts against the fixed schema and stores their messages.
type IngestFileUseCase struct {
	store    domain.RecordStore
	parser   *parser.Parser
	resolver *artifact.Resolver
	hashes   *artifact.HashCache
	reports  domain.ReportRepository
	metrics  *metrics.IngestMetrics
	logger   *slog.Logger

	runID            string
	progressInterval time.Duration
	now              func() time.Time
}

// NewIngestFileUseCase creates the use case. reports and m may be nil.
func NewIngestFileUseCase(store domain.RecordStore, p *parser.Parser, resolver *artifact.Resolver, hashes *artifact.HashCache,
	reports domain.ReportRepository, m *metrics.IngestMetrics, progressInterval time.Duration, logger *slog.Logger) *IngestFileUseCase {
	if progressInterval <= 0 {
		progressInterval = defaultProgressInterval
	}
	return &IngestFileUseCase{
		store:            store,
		parser:           p,
		resolver:         resolver,
		hashes:           hashes,
		reports:          reports,
		metrics:          m,
		logger:           logger.With("component", "ingest_usecase"),
		runID:            uuid.NewString(),
		progressInterval: progressInterval,
		now:              time.Now,
	}
}

// RunID identifies the reports of this use case instance.
func (uc *IngestFileUseCase) RunID() string {
	return uc.runID
}

// ScanResult is the outcome of a read-only pass over an artifact.
type ScanResult struct {
	Artifact artifact.Artifact
	Summary  parser.Summary
	Drift    domain.Drift
}

// Scan parses an artifact without writing anything and reports the
// attributes it carries and their drift against the store's schema.
func (uc *IngestFileUseCase) Scan(ctx context.Context, textPath string) (ScanResult, error) {
	a, err := uc.resolver.FromPath(textPath)
	if err != nil {
		return ScanResult{}, err
	}
	summary, err := uc.scan(ctx, a)
	if err != nil {
		return ScanResult{}, err
	}
	return ScanResult{
		Artifact: a,
		Summary:  summary,
		Drift:    Reconcile(summary.Observed, uc.master()),
	}, nil
}

// IngestDir ingests every ADRU source file of dir in name order. The run
// stops at the first file that fails; the reports gathered so far are
// returned with the error.
func (uc *IngestFileUseCase) IngestDir(ctx context.Context, dir string) ([]domain.IngestReport, error) {
	sources, err := artifact.FindSources(dir)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		uc.logger.Warn("No ADRU files found", "dir", dir)
		return nil, nil
	}
	uc.logger.Info("Found ADRU files", "dir", dir, "count", len(sources))

	reports := make([]domain.IngestReport, 0, len(sources))
	for _, src := range sources {
		report, err := uc.IngestSource(ctx, src, "")
		reports = append(reports, report)
		if err != nil {
			return reports, fmt.Errorf("ingest %s: %w", filepath.Base(src), err)
		}
	}
	return reports, nil
}

// IngestSource ingests one source file. textPath selects the artifact
// explicitly; when empty it is resolved from the text directory. Schema
// drift and a missing artifact are returned as errors after the report has
// been published.
func (uc *IngestFileUseCase) IngestSource(ctx context.Context, sourcePath, textPath string) (domain.IngestReport, error) {
	ctx, span := otel.Tracer("ingest-usecase").Start(ctx, "IngestSource")
	defer span.End()

	report := domain.IngestReport{
		ID:         uuid.NewString(),
		RunID:      uc.runID,
		SourceName: filepath.Base(sourcePath),
		StartedAt:  uc.now().UTC(),
	}
	span.SetAttributes(attribute.String("adru.source", report.SourceName))

	err := uc.ingest(ctx, sourcePath, textPath, &report)
	report.FinishedAt = uc.now().UTC()

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSchemaDrift):
		report.Status = domain.StatusDrift
		report.Error = err.Error()
	default:
		report.Status = domain.StatusFailed
		report.Error = err.Error()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(report.Status))
	}
	span.SetAttributes(
		attribute.String("adru.status", string(report.Status)),
		attribute.Int("adru.messages", report.Messages),
		attribute.Int("adru.inserted", report.Inserted),
	)

	uc.observe(report)
	uc.publish(ctx, report)
	return report, err
}

func (uc *IngestFileUseCase) ingest(ctx context.Context, sourcePath, textPath string, report *domain.IngestReport) error {
	logger := uc.logger.With("source", report.SourceName)

	sourceHash, err := uc.hashes.Hash(sourcePath)
	if err != nil {
		return err
	}
	report.SourceHash = sourceHash

	sourceID, found, err := uc.store.FindSourceFileByHash(ctx, sourceHash)
	if err != nil {
		return err
	}
	if !found {
		if sourceID, err = uc.store.InsertSourceFile(ctx, report.SourceName, sourceHash, uc.now()); err != nil {
			return err
		}
		logger.Info("Registered source file", "source_file_id", sourceID)
	} else {
		logger.Info("Source file already known", "source_file_id", sourceID)
	}
	report.SourceFileID = sourceID

	known, err := uc.store.MessageFilesForSource(ctx, sourceID)
	if err != nil {
		return err
	}

	var a artifact.Artifact
	if textPath != "" {
		a, err = uc.resolver.FromPath(textPath)
	} else {
		a, err = uc.resolver.Resolve(sourcePath, known)
	}
	if err != nil {
		return err
	}
	report.ArtifactName = a.Name
	report.ArtifactHash = a.Hash
	logger = logger.With("artifact", a.Name)

	summary, err := uc.scan(ctx, a)
	if err != nil {
		return err
	}
	report.Messages = summary.Stats.Messages
	report.MalformedLines = summary.Stats.Malformed
	if summary.Stats.Malformed > 0 {
		logger.Warn("Skipped malformed message lines", "count", summary.Stats.Malformed)
	}

	if drift := Reconcile(summary.Observed, uc.master()); !drift.Empty() {
		report.Drift = drift.Map()
		for _, nd := range drift {
			logger.Error("Attributes missing from the database schema", "namespace", nd.Namespace, "attributes", nd.Attributes)
		}
		return drift.Err()
	}
	logger.Info("All attributes are covered by the database schema")

	mf, err := uc.messageFile(ctx, a, sourceID, summary.Stats.Messages)
	if err != nil {
		return err
	}
	report.MessageFileID = mf.ID

	has, err := uc.store.HasAnyMessages(ctx, mf.ID)
	if err != nil {
		return err
	}
	if has {
		logger.Info("Messages already stored, skipping", "message_file_id", mf.ID)
		report.Status = domain.StatusSkipped
		return nil
	}

	inserted, err := uc.insert(ctx, a, mf, logger)
	if err != nil {
		return err
	}
	report.Inserted = inserted
	report.Status = domain.StatusIngested
	logger.Info("Stored messages", "message_file_id", mf.ID, "messages", inserted)
	return nil
}

// messageFile returns the stored identity of the artifact, registering it
// with its message count on first sight.
func (uc *IngestFileUseCase) messageFile(ctx context.Context, a artifact.Artifact, sourceID int64, messages int) (domain.MessageFile, error) {
	if a.Known != nil {
		return *a.Known, nil
	}
	mf, found, err := uc.store.FindMessageFileByHash(ctx, a.Hash)
	if err != nil {
		return domain.MessageFile{}, err
	}
	if found {
		if mf.SourceFileID != sourceID {
			uc.logger.Warn("Artifact already registered for another source file",
				"artifact", a.Name, "source_file_id", mf.SourceFileID)
		}
		return mf, nil
	}

	mf = domain.MessageFile{
		SourceFileID: sourceID,
		Name:         a.Name,
		Hash:         a.Hash,
		MessageCount: messages,
		CreatedAt:    uc.now(),
	}
	if mf.ID, err = uc.store.InsertMessageFile(ctx, mf); err != nil {
		return domain.MessageFile{}, err
	}
	uc.logger.Info("Registered message file", "artifact", a.Name, "message_file_id", mf.ID, "messages", messages)
	return mf, nil
}

// scan is the read-only pass gathering counts and observed attributes.
func (uc *IngestFileUseCase) scan(ctx context.Context, a artifact.Artifact) (parser.Summary, error) {
	rc, err := artifact.Open(a.Path)
	if err != nil {
		return parser.Summary{}, err
	}
	defer rc.Close()

	progress := rate.Sometimes{Interval: uc.progressInterval}
	seen := 0
	summary, err := uc.parser.Parse(ctx, rc, func(domain.MessageRecord) error {
		seen++
		progress.Do(func() {
			uc.logger.Info("Scanning messages", "artifact", a.Name, "messages", seen)
		})
		return nil
	})
	if err != nil {
		return parser.Summary{}, fmt.Errorf("scan %s: %w", a.Name, err)
	}
	return summary, nil
}

// insert stores every message of the artifact in one transaction.
func (uc *IngestFileUseCase) insert(ctx context.Context, a artifact.Artifact, mf domain.MessageFile, logger *slog.Logger) (int, error) {
	rc, err := artifact.Open(a.Path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	namespaces := uc.store.Schema().Namespaces()
	progress := rate.Sometimes{Interval: uc.progressInterval}
	inserted := 0

	err = uc.store.InTx(ctx, func(w domain.RecordWriter) error {
		_, err := uc.parser.Parse(ctx, rc, func(rec domain.MessageRecord) error {
			msgID, err := w.InsertMessage(ctx, rec.LocalID, mf.ID)
			if err != nil {
				return err
			}
			for _, ns := range namespaces {
				if err := w.InsertNamespaceRecord(ctx, ns, msgID, rec.Section(ns)); err != nil {
					return fmt.Errorf("message %d: %w", rec.LocalID, err)
				}
			}
			inserted++
			progress.Do(func() {
				logger.Info("Inserting messages", "done", inserted, "total", mf.MessageCount)
			})
			return nil
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert messages of %s: %w", a.Name, err)
	}
	return inserted, nil
}

func (uc *IngestFileUseCase) master() domain.AttributeSet {
	if s := uc.store.Schema(); s != nil {
		return s.Attributes()
	}
	return domain.NewAttributeSet()
}

func (uc *IngestFileUseCase) observe(report domain.IngestReport) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.FilesTotal.WithLabelValues(string(report.Status)).Inc()
	uc.metrics.MessagesInserted.Add(float64(report.Inserted))
	uc.metrics.MalformedLines.Add(float64(report.MalformedLines))
	for ns, attrs := range report.Drift {
		uc.metrics.DriftAttributes.WithLabelValues(ns).Add(float64(len(attrs)))
	}
	uc.metrics.IngestDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
}

func (uc *IngestFileUseCase) publish(ctx context.Context, report domain.IngestReport) {
	if uc.reports == nil {
		return
	}
	if err := uc.reports.Publish(ctx, report); err != nil {
		uc.logger.Warn("Failed to publish ingest report", "error", err, "report_id", report.ID)
	}
}
