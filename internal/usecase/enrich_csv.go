package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/adru-export/internal/adapter/csvio"
	"github.com/V4T54L/adru-export/internal/adapter/metrics"
	"github.com/V4T54L/adru-export/internal/adapter/pii"
	"github.com/V4T54L/adru-export/internal/domain"
)

const (
	DefaultKeyColumn = "N°"
	defaultWorkers   = 8

	outputTimeLayout = "2006-01-02_15-04-05"
	outputInfix      = " (U) Merged, "
)

// Row outcomes, also used as metric labels.
const (
	rowMatched    = "matched"
	rowUnmatched  = "unmatched"
	rowInvalidKey = "invalid_key"
)

// EnrichResult describes one enriched CSV file.
type EnrichResult struct {
	InputPath      string
	OutputPath     string
	MessageFileID  int64
	Rows           int
	Matched        int
	Unmatched      int
	InvalidKeys    int
	AddedColumns   []string
	DroppedColumns []string
}

// EnrichCSVUseCase joins the stored namespace records of an ingested source
// onto the rows of a semicolon-delimited CSV.
type EnrichCSVUseCase struct {
	store     domain.RecordStore
	redactor  *pii.Redactor
	metrics   *metrics.IngestMetrics
	logger    *slog.Logger
	keyColumn string
	workers   int
	now       func() time.Time
}

// NewEnrichCSVUseCase creates the use case. redactor and m may be nil.
func NewEnrichCSVUseCase(store domain.RecordStore, redactor *pii.Redactor, m *metrics.IngestMetrics,
	keyColumn string, workers int, logger *slog.Logger) *EnrichCSVUseCase {
	if keyColumn == "" {
		keyColumn = DefaultKeyColumn
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &EnrichCSVUseCase{
		store:     store,
		redactor:  redactor,
		metrics:   m,
		logger:    logger.With("component", "enrich_usecase"),
		keyColumn: keyColumn,
		workers:   workers,
		now:       time.Now,
	}
}

// Sources lists the source files that can be used for enrichment.
func (uc *EnrichCSVUseCase) Sources(ctx context.Context) ([]domain.SourceFile, error) {
	return uc.store.ListSourcesWithMessageFiles(ctx)
}

// EnrichDir enriches every CSV file of dir. It stops at the first failure.
func (uc *EnrichCSVUseCase) EnrichDir(ctx context.Context, dir string, sourceFileID int64, outputDir string) ([]EnrichResult, error) {
	files, err := csvio.List(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		uc.logger.Warn("No CSV files found", "dir", dir)
		return nil, nil
	}
	results := make([]EnrichResult, 0, len(files))
	for _, f := range files {
		res, err := uc.Enrich(ctx, f, sourceFileID, outputDir)
		if err != nil {
			return results, fmt.Errorf("enrich %s: %w", filepath.Base(f), err)
		}
		results = append(results, res)
	}
	return results, nil
}

// rowResult is the merged record of one CSV row.
type rowResult struct {
	outcome string
	attrs   *domain.Attributes
}

// Enrich writes a copy of csvPath to outputDir with the attributes of the
// newest populated message file of the source appended to every row whose
// key matches a stored message.
func (uc *EnrichCSVUseCase) Enrich(ctx context.Context, csvPath string, sourceFileID int64, outputDir string) (EnrichResult, error) {
	ctx, span := otel.Tracer("enrich-usecase").Start(ctx, "Enrich")
	defer span.End()
	span.SetAttributes(attribute.String("adru.csv", filepath.Base(csvPath)), attribute.Int64("adru.source_file_id", sourceFileID))

	res, err := uc.enrich(ctx, csvPath, sourceFileID, outputDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrich failed")
		return EnrichResult{}, err
	}
	span.SetAttributes(attribute.Int("adru.rows", res.Rows), attribute.Int("adru.matched", res.Matched))
	return res, nil
}

func (uc *EnrichCSVUseCase) enrich(ctx context.Context, csvPath string, sourceFileID int64, outputDir string) (EnrichResult, error) {
	logger := uc.logger.With("csv", filepath.Base(csvPath))
	res := EnrichResult{InputPath: csvPath}

	schema := uc.store.Schema()
	if schema == nil {
		return res, fmt.Errorf("enrich: store schema not loaded")
	}

	mf, err := uc.messageFile(ctx, sourceFileID)
	if err != nil {
		return res, err
	}
	res.MessageFileID = mf.ID
	logger.Info("Using message file", "message_file", mf.Name, "message_file_id", mf.ID)

	table, err := csvio.ReadFile(csvPath)
	if err != nil {
		return res, err
	}
	if table.DropIndexColumn() {
		logger.Debug("Dropped index column")
	}
	keyIdx := table.ColumnIndex(uc.keyColumn)
	if keyIdx < 0 {
		return res, fmt.Errorf("key column %q not found in %s", uc.keyColumn, filepath.Base(csvPath))
	}

	rows, err := uc.lookup(ctx, table, keyIdx, mf.ID, schema.Namespaces())
	if err != nil {
		return res, err
	}

	res.Rows = len(rows)
	for _, r := range rows {
		switch r.outcome {
		case rowMatched:
			res.Matched++
		case rowUnmatched:
			res.Unmatched++
		case rowInvalidKey:
			res.InvalidKeys++
		}
	}
	if res.InvalidKeys > 0 {
		logger.Warn("Rows with a non-integer key were left unchanged", "count", res.InvalidKeys)
	}

	res.AddedColumns = uc.merge(table, rows)
	res.DroppedColumns = table.DropEmptyColumns()

	name := uc.now().Format(outputTimeLayout) + outputInfix + filepath.Base(csvPath)
	res.OutputPath = filepath.Join(outputDir, name)
	if err := table.WriteFile(res.OutputPath); err != nil {
		return res, err
	}

	uc.observe(res)
	logger.Info("Wrote enriched CSV", "output", res.OutputPath, "rows", res.Rows,
		"matched", res.Matched, "unmatched", res.Unmatched, "added_columns", len(res.AddedColumns))
	return res, nil
}

// messageFile returns the newest message file of the source that has
// stored messages.
func (uc *EnrichCSVUseCase) messageFile(ctx context.Context, sourceFileID int64) (domain.MessageFile, error) {
	files, err := uc.store.MessageFilesForSource(ctx, sourceFileID)
	if err != nil {
		return domain.MessageFile{}, err
	}
	for _, mf := range files {
		has, err := uc.store.HasAnyMessages(ctx, mf.ID)
		if err != nil {
			return domain.MessageFile{}, err
		}
		if has {
			return mf, nil
		}
	}
	return domain.MessageFile{}, fmt.Errorf("%w: source file %d", domain.ErrNotIngested, sourceFileID)
}

// lookup fetches the merged record of every row in parallel. Results keep
// the row order.
func (uc *EnrichCSVUseCase) lookup(ctx context.Context, table *csvio.Table, keyIdx int, messageFileID int64, namespaces []string) ([]rowResult, error) {
	rows := make([]rowResult, len(table.Rows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)
	for i, row := range table.Rows {
		g.Go(func() error {
			localID, ok := parseKey(row[keyIdx])
			if !ok {
				rows[i] = rowResult{outcome: rowInvalidKey}
				return nil
			}
			msgID, found, err := uc.store.LookupMessageByLocalID(ctx, localID, messageFileID)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			if !found {
				rows[i] = rowResult{outcome: rowUnmatched}
				return nil
			}

			merged := domain.NewAttributes()
			for _, ns := range namespaces {
				attrs, _, err := uc.store.FetchNamespaceRecord(ctx, ns, msgID)
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				attrs.Each(merged.Set)
			}
			if uc.redactor != nil {
				uc.redactor.Redact(merged)
			}
			rows[i] = rowResult{outcome: rowMatched, attrs: merged}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// merge writes the fetched attributes into the table. Attributes without a
// column are appended as new columns in alphabetical order; existing cells
// are replaced only by stored values. It returns the added column names.
func (uc *EnrichCSVUseCase) merge(table *csvio.Table, rows []rowResult) []string {
	seen := make(map[string]struct{})
	var added []string
	for _, r := range rows {
		for _, name := range r.attrs.Keys() {
			if table.ColumnIndex(name) >= 0 {
				continue
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				added = append(added, name)
			}
		}
	}
	sort.Strings(added)

	table.Header = append(table.Header, added...)
	index := make(map[string]int, len(table.Header))
	for i := len(table.Header) - 1; i >= 0; i-- {
		index[table.Header[i]] = i
	}

	for i, row := range table.Rows {
		row = append(row, make([]string, len(added))...)
		rows[i].attrs.Each(func(name, value string) {
			row[index[name]] = value
		})
		if uc.redactor != nil && uc.redactor.Enabled() {
			for c, name := range table.Header {
				if uc.redactor.Covers(name) && strings.TrimSpace(row[c]) != "" {
					row[c] = pii.RedactedPlaceholder
				}
			}
		}
		table.Rows[i] = row
	}
	return added
}

func (uc *EnrichCSVUseCase) observe(res EnrichResult) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.EnrichRows.WithLabelValues(rowMatched).Add(float64(res.Matched))
	uc.metrics.EnrichRows.WithLabelValues(rowUnmatched).Add(float64(res.Unmatched))
	uc.metrics.EnrichRows.WithLabelValues(rowInvalidKey).Add(float64(res.InvalidKeys))
}

// parseKey reads a local message id. Spreadsheet exports may write integers
// as "12.0", which is accepted; other fractions are not.
func parseKey(cell string) (int64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
