// Package ai talks to the external OpenAI-compatible embedding
// service. Response generation is out of scope; only embeddings are
// consumed here.
package ai

import (
	"context"
	"fmt"
)

// Embedder produces fixed-dimension embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// StatusError is a non-2xx embedding API response. Rate limits and
// server errors are transient; other client errors are not.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding response status %d: %s", e.Code, e.Body)
}

// Transient reports whether retrying can help.
func (e *StatusError) Transient() bool {
	return e.Code == 429 || e.Code >= 500
}

// DimensionError is returned when the service yields a vector of an
// unexpected dimension; retrying cannot fix a misconfigured model.
type DimensionError struct {
	Want, Got int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}
