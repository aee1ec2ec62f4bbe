package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chunk stores one span of a document's extracted text together with
// its embedding. The ID is derived from (document_id, chunker_name,
// chunker_version, ordinal), so re-chunking with an unchanged chunker
// is idempotent and a version bump produces a disjoint chunk set.
// Embedding is stored as a JSON array of float32 for portability and
// stays empty until the embed stage completes.
type Chunk struct {
	ID             uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	DocumentID     uuid.UUID `gorm:"type:char(36);not null;index" json:"document_id"`
	ChunkerName    string    `gorm:"size:64;not null" json:"chunker_name"`
	ChunkerVersion int       `gorm:"not null" json:"chunker_version"`
	Ordinal        int       `gorm:"not null" json:"ordinal"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	TokenCount     int       `gorm:"not null" json:"token_count"`
	Embedding      string    `gorm:"type:text" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Embedded reports whether the embed stage has filled the vector.
func (c *Chunk) Embedded() bool {
	return c.Embedding != "" && c.Embedding != "[]"
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
