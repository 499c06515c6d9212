package pii

import (
	"log/slog"

	"github.com/V4T54L/adru-export/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks the values of configured attributes before they leave the
// store, e.g. driver identifiers in an enriched CSV.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given attribute names. Blank names
// are ignored.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field == "" {
			continue
		}
		fieldSet[field] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger.With("component", "redactor"),
	}
}

// Enabled reports whether any attribute is configured for redaction.
func (r *Redactor) Enabled() bool {
	return len(r.fieldsToRedact) > 0
}

// Covers reports whether the attribute name is redacted.
func (r *Redactor) Covers(name string) bool {
	_, ok := r.fieldsToRedact[name]
	return ok
}

// Redact replaces, in place, the non-empty values of configured attributes.
// It reports whether anything was replaced.
func (r *Redactor) Redact(attrs *domain.Attributes) bool {
	if !r.Enabled() || attrs.Len() == 0 {
		return false
	}

	redacted := false
	for _, name := range attrs.Keys() {
		if !r.Covers(name) {
			continue
		}
		if v, _ := attrs.Get(name); v == "" || v == RedactedPlaceholder {
			continue
		}
		attrs.Set(name, RedactedPlaceholder)
		redacted = true
	}
	return redacted
}
