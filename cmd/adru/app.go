package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/V4T54L/adru-export/internal/adapter/api"
	"github.com/V4T54L/adru-export/internal/adapter/api/handler"
	"github.com/V4T54L/adru-export/internal/adapter/artifact"
	"github.com/V4T54L/adru-export/internal/adapter/metrics"
	"github.com/V4T54L/adru-export/internal/adapter/pii"
	redisrepo "github.com/V4T54L/adru-export/internal/adapter/repository/redis"
	"github.com/V4T54L/adru-export/internal/adapter/repository/sqlstore"
	"github.com/V4T54L/adru-export/internal/adapter/repository/wal"
	"github.com/V4T54L/adru-export/internal/adapter/vocabulary"
	"github.com/V4T54L/adru-export/internal/domain"
	"github.com/V4T54L/adru-export/internal/parser"
	"github.com/V4T54L/adru-export/internal/pkg/config"
	"github.com/V4T54L/adru-export/internal/pkg/logger"
	"github.com/V4T54L/adru-export/internal/usecase"
)

// app holds the wired dependencies of one command run.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	vocab    domain.Vocabulary
	store    *sqlstore.Store
	registry *prometheus.Registry
	metrics  *metrics.IngestMetrics
	hashes   *artifact.HashCache

	// Set only when REDIS_ADDR is configured.
	redisClient *redis.Client
	wal         *wal.WALRepository
	reports     *redisrepo.ReportRepository

	stopHealth context.CancelFunc
	background sync.WaitGroup
	server     *http.Server
}

// appOptions selects the optional parts a command needs.
type appOptions struct {
	reports bool
}

// runWithApp wires the application for cmd, runs fn and releases everything.
func runWithApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if vocabularyFile != "" {
		cfg.VocabularyFile = vocabularyFile
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	vocab, err := vocabulary.Load(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}

	hashes, err := artifact.NewHashCache(cfg.HashAlgorithm, cfg.HashChunkSize)
	if err != nil {
		return nil, err
	}

	store, err := sqlstore.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx, vocab); err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		cfg:      cfg,
		logger:   log,
		vocab:    vocab,
		store:    store,
		registry: registry,
		metrics:  metrics.NewIngestMetrics(registry),
		hashes:   hashes,
	}

	if opts.reports && cfg.RedisAddr != "" {
		if err := a.connectReports(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// connectReports wires the Redis report stream with its WAL failover and
// starts the health check that replays the WAL on recovery.
func (a *app) connectReports(ctx context.Context) error {
	redisOpts, err := redisOptions(a.cfg.RedisAddr)
	if err != nil {
		return err
	}
	a.redisClient = redis.NewClient(redisOpts)

	a.wal, err = wal.NewWALRepository(a.cfg.WALPath, a.cfg.WALSegmentSize, a.cfg.WALMaxDiskSize, a.logger)
	if err != nil {
		return fmt.Errorf("initialize WAL repository: %w", err)
	}

	a.reports = redisrepo.NewReportRepository(ctx, a.redisClient, a.cfg.ReportStream, a.cfg.ReportMaxLen, a.wal, a.metrics.WALActive, a.logger)
	if a.reports.Available() {
		if err := a.reports.ReplayWAL(ctx); err != nil {
			a.logger.Warn("Could not replay journaled reports", "error", err)
		}
	}

	healthCtx, cancel := context.WithCancel(ctx)
	a.stopHealth = cancel
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.reports.StartHealthCheck(healthCtx, a.cfg.RedisHealthInterval)
	}()
	return nil
}

// redisOptions accepts a redis:// URL or a bare host:port.
func redisOptions(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: addr}, nil
}

// reportPublisher returns the report sink, or nil when none is configured.
func (a *app) reportPublisher() domain.ReportRepository {
	if a.reports == nil {
		return nil
	}
	return a.reports
}

// reportStream returns the readable report stream, or nil.
func (a *app) reportStream() handler.ReportStream {
	if a.reports == nil {
		return nil
	}
	return a.reports
}

func (a *app) ingestUseCase() *usecase.IngestFileUseCase {
	return usecase.NewIngestFileUseCase(
		a.store,
		parser.New(a.vocab, a.logger),
		artifact.NewResolver(a.cfg.TextDir, a.hashes, a.logger),
		a.hashes,
		a.reportPublisher(),
		a.metrics,
		a.cfg.ProgressInterval,
		a.logger,
	)
}

func (a *app) enrichUseCase() *usecase.EnrichCSVUseCase {
	var redactor *pii.Redactor
	if len(a.cfg.RedactAttributes) > 0 {
		redactor = pii.NewRedactor(a.cfg.RedactAttributes, a.logger)
	}
	return usecase.NewEnrichCSVUseCase(a.store, redactor, a.metrics, a.cfg.EnrichKeyColumn, a.cfg.EnrichWorkers, a.logger)
}

// startStatusServer serves health, metrics and status views on addr in the
// background. It is stopped by close.
func (a *app) startStatusServer(addr string) <-chan error {
	errc := make(chan error, 1)
	a.server = &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(a.logger, a.registry, a.enrichUseCase(), a.reportStream()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.logger.Info("starting status server", "addr", addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("status server failed", "error", err)
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// startMetricsIfConfigured exposes metrics while a long command runs.
func (a *app) startMetricsIfConfigured() {
	if a.cfg.MetricsAddr != "" {
		a.startStatusServer(a.cfg.MetricsAddr)
	}
}

func (a *app) close() {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("status server shutdown failed", "error", err)
		}
		cancel()
	}
	if a.stopHealth != nil {
		a.stopHealth()
	}
	a.background.Wait()

	if a.wal != nil {
		if err := a.wal.Close(); err != nil {
			a.logger.Error("failed to close WAL", "error", err)
		}
	}
	if a.redisClient != nil {
		a.redisClient.Close()
	}
	if a.cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsTextfile, a.registry); err != nil {
			a.logger.Error("failed to write metrics textfile", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close store", "error", err)
	}
}
