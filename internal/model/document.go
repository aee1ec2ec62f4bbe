package model

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusParsing   DocumentStatus = "parsing"
	DocumentStatusChunking  DocumentStatus = "chunking"
	DocumentStatusEmbedding DocumentStatus = "embedding"
	DocumentStatusCompleted DocumentStatus = "completed"
	DocumentStatusFailed    DocumentStatus = "failed"
	DocumentStatusCancelled DocumentStatus = "cancelled"
)

// Terminal reports whether the pipeline will not touch the document again.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed || s == DocumentStatusCancelled
}

// Document is an ingested upload. Its ID is derived from
// (owner_id, content_hash), so re-submitting identical content by the
// same owner resolves to the same row.
type Document struct {
	ID            uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	OwnerID       uint           `gorm:"not null;index;uniqueIndex:idx_owner_content" json:"owner_id"`
	Filename      string         `gorm:"size:256;not null" json:"filename"`
	ContentHash   string         `gorm:"size:64;not null;uniqueIndex:idx_owner_content" json:"content_hash"`
	ByteSize      int64          `gorm:"not null" json:"byte_size"`
	RawContent    []byte         `gorm:"type:longblob" json:"-"`
	ExtractedText string         `gorm:"type:longtext" json:"-"`
	Status        DocumentStatus `gorm:"size:16;not null;index" json:"status"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
