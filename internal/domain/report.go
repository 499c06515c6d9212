package domain

import "time"

// IngestStatus is the outcome of ingesting one source file.
type IngestStatus string

const (
	StatusIngested IngestStatus = "ingested"
	StatusSkipped  IngestStatus = "skipped"
	StatusDrift    IngestStatus = "drift"
	StatusFailed   IngestStatus = "failed"
)

// IngestReport summarizes the ingestion of one source file. Reports are
// published for downstream consumers once a file has been handled.
type IngestReport struct {
	ID             string              `json:"report_id"`
	RunID          string              `json:"run_id"`
	SourceName     string              `json:"source_name"`
	SourceHash     string              `json:"source_hash,omitempty"`
	SourceFileID   int64               `json:"source_file_id,omitempty"`
	ArtifactName   string              `json:"artifact_name,omitempty"`
	ArtifactHash   string              `json:"artifact_hash,omitempty"`
	MessageFileID  int64               `json:"message_file_id,omitempty"`
	Messages       int                 `json:"messages"`
	Inserted       int                 `json:"inserted"`
	MalformedLines int                 `json:"malformed_lines,omitempty"`
	Drift          map[string][]string `json:"drift,omitempty"`
	Status         IngestStatus        `json:"status"`
	Error          string              `json:"error,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
}
