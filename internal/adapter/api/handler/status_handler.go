package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/V4T54L/adru-export/internal/domain"
)

const defaultReportCount = 20

// SourceLister lists the source files available for enrichment.
type SourceLister interface {
	Sources(ctx context.Context) ([]domain.SourceFile, error)
}

// ReportStream reads and trims the published ingest reports.
type ReportStream interface {
	Recent(ctx context.Context, count int64) ([]domain.IngestReport, error)
	Trim(ctx context.Context, maxLen int64) (int64, error)
}

// StatusHandler serves read-only views of the store and the report stream.
type StatusHandler struct {
	sources SourceLister
	reports ReportStream
	logger  *slog.Logger
}

// NewStatusHandler creates a new StatusHandler. reports may be nil when no
// report stream is configured.
func NewStatusHandler(sources SourceLister, reports ReportStream, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{sources: sources, reports: reports, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListSources handles requests for the ingested source files.
// GET /sources
func (h *StatusHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.Sources(r.Context())
	if err != nil {
		h.logger.Error("failed to list sources", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if sources == nil {
		sources = []domain.SourceFile{}
	}
	h.respondWithJSON(w, http.StatusOK, sources)
}

// RecentReports handles requests for the newest ingest reports.
// GET /reports?count=N
func (h *StatusHandler) RecentReports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		http.Error(w, "report stream not configured", http.StatusNotFound)
		return
	}

	count := int64(defaultReportCount)
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "count must be a positive integer", http.StatusBadRequest)
			return
		}
		count = n
	}

	reports, err := h.reports.Recent(r.Context(), count)
	if err != nil {
		h.logger.Error("failed to read reports", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []domain.IngestReport{}
	}
	h.respondWithJSON(w, http.StatusOK, reports)
}

// TrimReports handles requests to cap the report stream length.
// POST /reports/trim
func (h *StatusHandler) TrimReports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		http.Error(w, "report stream not configured", http.StatusNotFound)
		return
	}

	var payload struct {
		MaxLen int64 `json:"maxlen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.MaxLen < 0 {
		http.Error(w, "maxlen must not be negative", http.StatusBadRequest)
		return
	}

	trimmed, err := h.reports.Trim(r.Context(), payload.MaxLen)
	if err != nil {
		h.logger.Error("failed to trim reports", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]int64{"trimmed": trimmed})
}

func (h *StatusHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
