package app

import (
	"context"
	"fmt"
	"strings"

	"docpipe/internal/ai"
	"docpipe/internal/retrieval"
)

// RetrievalDefaults are the configured fallbacks applied when a
// request leaves a knob unset.
type RetrievalDefaults struct {
	Threshold   float32
	MaxChunks   int
	TokenBudget int
}

type RetrievalService struct {
	engine   *retrieval.Engine
	embedder ai.Embedder
	defaults RetrievalDefaults
}

type RetrieveInput struct {
	Query string
	// Optional overrides; zero values fall back to the configured
	// defaults.
	Threshold   float32
	MaxChunks   int
	TokenBudget int
}

type RetrieveResult struct {
	Chunks     []retrieval.ScoredChunk `json:"chunks"`
	TokensUsed int                     `json:"tokens_used"`
}

func NewRetrievalService(engine *retrieval.Engine, embedder ai.Embedder, defaults RetrievalDefaults) *RetrievalService {
	return &RetrievalService{
		engine:   engine,
		embedder: embedder,
		defaults: defaults,
	}
}

// Retrieve embeds the query text and returns the owner's most similar
// chunks within the threshold, count, and token-budget limits. An
// empty result means nothing relevant is indexed yet.
func (s *RetrievalService) Retrieve(ctx context.Context, ownerID uint, in RetrieveInput) (*RetrieveResult, error) {
	if ownerID == 0 || strings.TrimSpace(in.Query) == "" {
		return nil, ErrInvalidInput
	}

	q := retrieval.Query{
		OwnerID:     ownerID,
		Threshold:   in.Threshold,
		MaxChunks:   in.MaxChunks,
		TokenBudget: in.TokenBudget,
	}
	if q.Threshold == 0 {
		q.Threshold = s.defaults.Threshold
	}
	if q.MaxChunks == 0 {
		q.MaxChunks = s.defaults.MaxChunks
	}
	if q.TokenBudget == 0 {
		q.TokenBudget = s.defaults.TokenBudget
	}

	embedding, err := s.embedder.Embed(ctx, in.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	q.Embedding = embedding

	chunks, err := s.engine.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	used := 0
	for _, sc := range chunks {
		used += sc.Chunk.TokenCount
	}
	return &RetrieveResult{Chunks: chunks, TokensUsed: used}, nil
}
