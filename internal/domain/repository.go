package domain

import (
	"context"
	"time"
)

// RecordWriter persists decoded messages. It is implemented by the store
// itself and by the transaction handed out by RecordStore.InTx.
type RecordWriter interface {
	// InsertMessage stores a message row and returns its id.
	InsertMessage(ctx context.Context, localID, messageFileID int64) (int64, error)

	// InsertNamespaceRecord stores one namespace record of a message. The
	// attribute names must be columns of the namespace table.
	InsertNamespaceRecord(ctx context.Context, namespace string, messageID int64, attrs *Attributes) error
}

// RecordStore is the persistence contract of the ingestion and enrichment
// workflows. Implementations own identity and uniqueness.
type RecordStore interface {
	RecordWriter

	// Schema returns the fixed column set of every namespace table.
	Schema() *Schema

	FindSourceFileByHash(ctx context.Context, hash string) (int64, bool, error)
	InsertSourceFile(ctx context.Context, name, hash string, createdAt time.Time) (int64, error)

	FindMessageFileByHash(ctx context.Context, hash string) (MessageFile, bool, error)
	InsertMessageFile(ctx context.Context, mf MessageFile) (int64, error)

	// MessageFilesForSource returns the message files of a source, newest first.
	MessageFilesForSource(ctx context.Context, sourceFileID int64) ([]MessageFile, error)

	// ListSourcesWithMessageFiles returns source files that have at least one message file.
	ListSourcesWithMessageFiles(ctx context.Context) ([]SourceFile, error)

	// HasAnyMessages guards bulk inserts against re-ingesting a message file.
	HasAnyMessages(ctx context.Context, messageFileID int64) (bool, error)

	LookupMessageByLocalID(ctx context.Context, localID, messageFileID int64) (int64, bool, error)
	FetchNamespaceRecord(ctx context.Context, namespace string, messageID int64) (*Attributes, bool, error)

	// InTx runs fn inside one transaction, committing only if fn succeeds.
	InTx(ctx context.Context, fn func(w RecordWriter) error) error
}

// ReportRepository publishes ingest reports to downstream consumers.
type ReportRepository interface {
	Publish(ctx context.Context, report IngestReport) error
}

// WALRepository defines the interface for the Write-Ahead Log failover mechanism.
type WALRepository interface {
	// Write appends a report to the local WAL file.
	Write(ctx context.Context, report IngestReport) error

	// Replay reads reports from the WAL and sends them to a handler function.
	// The handler is responsible for re-publishing the report (e.g., to Redis).
	Replay(ctx context.Context, handler func(report IngestReport) error) error

	// Truncate removes WAL segments that have been successfully replayed.
	Truncate(ctx context.Context) error
}
