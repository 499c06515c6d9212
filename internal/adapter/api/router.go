package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/adru-export/internal/adapter/api/handler"
	"github.com/V4T54L/adru-export/internal/adapter/api/middleware"
)

// NewRouter creates the HTTP router of the status server: health, metrics
// and read-only views of ingested sources and published reports. reports may
// be nil.
func NewRouter(
	logger *slog.Logger,
	gatherer prometheus.Gatherer,
	sources handler.SourceLister,
	reports handler.ReportStream,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))

	statusHandler := handler.NewStatusHandler(sources, reports, logger)

	r.Get("/health", statusHandler.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/sources", statusHandler.ListSources)
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", statusHandler.RecentReports)
		r.Post("/trim", statusHandler.TrimReports)
	})

	return r
}
