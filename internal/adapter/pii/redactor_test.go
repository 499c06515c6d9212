package pii

import (
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/adru-export/internal/domain"
)

func TestRedactor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := NewRedactor([]string{"NID_DRIVER", "NID_ENGINE", ""}, logger)

	tests := []struct {
		name           string
		input          *domain.Attributes
		expected       *domain.Attributes
		expectRedacted bool
	}{
		{
			name:           "Redact single attribute",
			input:          domain.AttributesOf("NID_DRIVER", "4711", "V_TRAIN", "80"),
			expected:       domain.AttributesOf("NID_DRIVER", RedactedPlaceholder, "V_TRAIN", "80"),
			expectRedacted: true,
		},
		{
			name:           "Redact multiple attributes",
			input:          domain.AttributesOf("NID_ENGINE", "12", "NID_DRIVER", "4711"),
			expected:       domain.AttributesOf("NID_ENGINE", RedactedPlaceholder, "NID_DRIVER", RedactedPlaceholder),
			expectRedacted: true,
		},
		{
			name:           "Nothing to redact",
			input:          domain.AttributesOf("V_TRAIN", "80"),
			expected:       domain.AttributesOf("V_TRAIN", "80"),
			expectRedacted: false,
		},
		{
			name:           "Empty value stays empty",
			input:          domain.AttributesOf("NID_DRIVER", ""),
			expected:       domain.AttributesOf("NID_DRIVER", ""),
			expectRedacted: false,
		},
		{
			name:           "Nil attributes",
			input:          nil,
			expected:       nil,
			expectRedacted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactor.Redact(tt.input)
			if got != tt.expectRedacted {
				t.Errorf("Redact() = %v, want %v", got, tt.expectRedacted)
			}
			if !tt.input.Equal(tt.expected) {
				t.Errorf("attributes mismatch: got %v, want %v", tt.input.Keys(), tt.expected.Keys())
			}
		})
	}

	if redactor.Covers("") {
		t.Error("blank names must not be configured")
	}
	if NewRedactor(nil, logger).Enabled() {
		t.Error("redactor without fields should be disabled")
	}
}
