package domain

import "time"

// SourceFile is a binary ADRU export, identified by the hash of its bytes.
type SourceFile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageFile is a decoded text artifact derived from a SourceFile.
type MessageFile struct {
	ID           int64     `json:"id"`
	SourceFileID int64     `json:"source_file_id"`
	Name         string    `json:"name"`
	Hash         string    `json:"hash"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}
