// Package retrieval ranks a user's embedded chunks against a query
// embedding and assembles a token-budget-bounded context window.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"docpipe/internal/model"
	"docpipe/internal/store"
)

var (
	ErrInvalidQuery = errors.New("invalid retrieval query")
)

// Query is one retrieval request. Threshold, MaxChunks, and
// TokenBudget come validated from configuration (or caller
// overrides); the engine refuses zero thresholds rather than
// defaulting them.
type Query struct {
	OwnerID     uint
	Embedding   []float32
	Threshold   float32
	MaxChunks   int
	TokenBudget int
}

// ScoredChunk pairs a chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk model.Chunk `json:"chunk"`
	Score float32     `json:"score"`
}

type Engine struct {
	chunks    store.ChunkStore
	dimension int
}

// NewEngine builds a retrieval engine over the chunk store. dimension
// is the configured embedding dimension; queries and stored vectors
// of any other dimension are rejected.
func NewEngine(chunks store.ChunkStore, dimension int) (*Engine, error) {
	if chunks == nil {
		return nil, errors.New("chunk store is required")
	}
	if dimension <= 0 {
		return nil, errors.New("embedding dimension must be positive")
	}
	return &Engine{chunks: chunks, dimension: dimension}, nil
}

// Search returns the owner's chunks ranked by cosine similarity,
// filtered by the threshold, capped by MaxChunks and the token
// budget. Zero candidates above the threshold is an empty result, not
// an error; the caller handles the no-context case.
func (e *Engine) Search(ctx context.Context, q Query) ([]ScoredChunk, error) {
	if q.OwnerID == 0 {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidQuery)
	}
	if len(q.Embedding) != e.dimension {
		return nil, fmt.Errorf("%w: query embedding has dimension %d, want %d", ErrInvalidQuery, len(q.Embedding), e.dimension)
	}
	if q.Threshold <= 0 || q.Threshold > 1 {
		return nil, fmt.Errorf("%w: similarity threshold %v out of (0,1]", ErrInvalidQuery, q.Threshold)
	}
	if q.MaxChunks <= 0 {
		return nil, fmt.Errorf("%w: max chunks must be positive", ErrInvalidQuery)
	}

	candidates, err := e.chunks.ListEmbeddedByOwner(ctx, q.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load retrieval candidates failed: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		vec := c.EmbeddingVector()
		if len(vec) != e.dimension {
			// Stale vector from an older embedding model; never a
			// candidate.
			continue
		}
		score := cosineSimilarity(q.Embedding, vec)
		if score < q.Threshold {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: c, Score: score})
	}

	// Descending by score; ties break on (document_id, ordinal)
	// ascending so identical scores rank deterministically.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		di := scored[i].Chunk.DocumentID.String()
		dj := scored[j].Chunk.DocumentID.String()
		if di != dj {
			return strings.Compare(di, dj) < 0
		}
		return scored[i].Chunk.Ordinal < scored[j].Chunk.Ordinal
	})

	var result []ScoredChunk
	budgetUsed := 0
	for _, sc := range scored {
		if len(result) >= q.MaxChunks {
			break
		}
		if q.TokenBudget > 0 && budgetUsed+sc.Chunk.TokenCount > q.TokenBudget {
			break
		}
		budgetUsed += sc.Chunk.TokenCount
		result = append(result, sc)
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
