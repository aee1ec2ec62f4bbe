package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/identity"
	"docpipe/internal/model"
	"docpipe/internal/retrieval"
	"docpipe/internal/store/memory"
)

type staticEmbedder struct {
	vector []float32
}

func (e *staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vector, nil
}

func (e *staticEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}

func seedEmbeddedChunk(t *testing.T, docs *memory.DocumentStore, chunks *memory.ChunkStore, ownerID uint, content string, tokenCount int, vec []float32) {
	t.Helper()
	ctx := context.Background()

	hash := identity.HashContent([]byte(content))
	docID, err := identity.DocumentID(ownerID, hash)
	require.NoError(t, err)
	_, _, err = docs.CreateIfAbsent(ctx, &model.Document{
		ID: docID, OwnerID: ownerID, Filename: "seed.txt", ContentHash: hash,
		Status: model.DocumentStatusCompleted,
	})
	require.NoError(t, err)

	chunkID, err := identity.ChunkID(docID, "rune-window", 1, 0)
	require.NoError(t, err)
	require.NoError(t, chunks.ReplaceForDocument(ctx, docID, "rune-window", 1, []model.Chunk{{
		ID: chunkID, DocumentID: docID, Ordinal: 0, Text: content, TokenCount: tokenCount,
	}}))
	require.NoError(t, chunks.UpdateEmbedding(ctx, chunkID, vec))
}

func TestRetrieve_AppliesConfiguredDefaults(t *testing.T) {
	docs := memory.NewDocumentStore()
	chunks := memory.NewChunkStore(docs.Owner)
	engine, err := retrieval.NewEngine(chunks, 2)
	require.NoError(t, err)

	seedEmbeddedChunk(t, docs, chunks, 1, "relevant text", 10, []float32{1, 0})
	seedEmbeddedChunk(t, docs, chunks, 1, "orthogonal text", 10, []float32{0, 1})

	svc := NewRetrievalService(engine, &staticEmbedder{vector: []float32{1, 0}}, RetrievalDefaults{
		Threshold: 0.4, MaxChunks: 8, TokenBudget: 2048,
	})

	res, err := svc.Retrieve(context.Background(), 1, RetrieveInput{Query: "what is relevant"})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "relevant text", res.Chunks[0].Chunk.Text)
	assert.Equal(t, 10, res.TokensUsed)
}

func TestRetrieve_OverridesBeatDefaults(t *testing.T) {
	docs := memory.NewDocumentStore()
	chunks := memory.NewChunkStore(docs.Owner)
	engine, err := retrieval.NewEngine(chunks, 2)
	require.NoError(t, err)

	for i, content := range []string{"one", "two", "three"} {
		seedEmbeddedChunk(t, docs, chunks, 1, content, 10+i, []float32{1, 0})
	}

	svc := NewRetrievalService(engine, &staticEmbedder{vector: []float32{1, 0}}, RetrievalDefaults{
		Threshold: 0.4, MaxChunks: 8, TokenBudget: 2048,
	})

	res, err := svc.Retrieve(context.Background(), 1, RetrieveInput{Query: "q", MaxChunks: 1})
	require.NoError(t, err)
	assert.Len(t, res.Chunks, 1)
}

func TestRetrieve_EmptyIndexIsEmptyResult(t *testing.T) {
	docs := memory.NewDocumentStore()
	chunks := memory.NewChunkStore(docs.Owner)
	engine, err := retrieval.NewEngine(chunks, 2)
	require.NoError(t, err)

	svc := NewRetrievalService(engine, &staticEmbedder{vector: []float32{1, 0}}, RetrievalDefaults{
		Threshold: 0.4, MaxChunks: 8, TokenBudget: 2048,
	})

	res, err := svc.Retrieve(context.Background(), 1, RetrieveInput{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, res.Chunks)
	assert.Zero(t, res.TokensUsed)
}

func TestRetrieve_RejectsBlankQuery(t *testing.T) {
	docs := memory.NewDocumentStore()
	chunks := memory.NewChunkStore(docs.Owner)
	engine, err := retrieval.NewEngine(chunks, 2)
	require.NoError(t, err)

	svc := NewRetrievalService(engine, &staticEmbedder{vector: []float32{1, 0}}, RetrievalDefaults{
		Threshold: 0.4, MaxChunks: 8, TokenBudget: 2048,
	})

	_, err = svc.Retrieve(context.Background(), 1, RetrieveInput{Query: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
