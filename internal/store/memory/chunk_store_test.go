package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/identity"
	"docpipe/internal/model"
	"docpipe/internal/store"
)

func seedDocument(t *testing.T, docs *DocumentStore, ownerID uint, content string) *model.Document {
	t.Helper()
	hash := identity.HashContent([]byte(content))
	id, err := identity.DocumentID(ownerID, hash)
	require.NoError(t, err)
	doc, existed, err := docs.CreateIfAbsent(context.Background(), &model.Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    "doc.txt",
		ContentHash: hash,
		ByteSize:    int64(len(content)),
		Status:      model.DocumentStatusPending,
	})
	require.NoError(t, err)
	require.False(t, existed)
	return doc
}

func makeChunk(t *testing.T, docID uuid.UUID, ordinal int, text string) model.Chunk {
	t.Helper()
	id, err := identity.ChunkID(docID, "rune-window", 1, ordinal)
	require.NoError(t, err)
	return model.Chunk{
		ID:         id,
		DocumentID: docID,
		Ordinal:    ordinal,
		Text:       text,
		TokenCount: len(text) / 4,
	}
}

func TestChunkStore_ReplaceIsAtomicSwap(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentStore()
	chunks := NewChunkStore(docs.Owner)
	doc := seedDocument(t, docs, 1, "hello")

	old := []model.Chunk{makeChunk(t, doc.ID, 0, "old a"), makeChunk(t, doc.ID, 1, "old b")}
	require.NoError(t, chunks.ReplaceForDocument(ctx, doc.ID, "rune-window", 1, old))

	replacement := []model.Chunk{makeChunk(t, doc.ID, 0, "new a")}
	require.NoError(t, chunks.ReplaceForDocument(ctx, doc.ID, "rune-window", 1, replacement))

	got, err := chunks.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new a", got[0].Text)
}

func TestChunkStore_ReplaceRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentStore()
	chunks := NewChunkStore(docs.Owner)
	doc := seedDocument(t, docs, 1, "hello")

	dup := makeChunk(t, doc.ID, 0, "same ordinal twice")
	err := chunks.ReplaceForDocument(ctx, doc.ID, "rune-window", 1, []model.Chunk{dup, dup})
	assert.ErrorIs(t, err, store.ErrDuplicateChunk)
}

func TestChunkStore_ListEmbeddedByOwnerScopesToOwner(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentStore()
	chunks := NewChunkStore(docs.Owner)

	docA := seedDocument(t, docs, 1, "owned by user one")
	docB := seedDocument(t, docs, 2, "owned by user two")

	chunkA := makeChunk(t, docA.ID, 0, "alpha")
	chunkB := makeChunk(t, docB.ID, 0, "beta")
	require.NoError(t, chunks.ReplaceForDocument(ctx, docA.ID, "rune-window", 1, []model.Chunk{chunkA}))
	require.NoError(t, chunks.ReplaceForDocument(ctx, docB.ID, "rune-window", 1, []model.Chunk{chunkB}))

	require.NoError(t, chunks.UpdateEmbedding(ctx, chunkA.ID, []float32{1, 0}))
	require.NoError(t, chunks.UpdateEmbedding(ctx, chunkB.ID, []float32{0, 1}))

	got, err := chunks.ListEmbeddedByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, chunkA.ID, got[0].ID)
}

func TestChunkStore_UnembeddedChunksExcluded(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentStore()
	chunks := NewChunkStore(docs.Owner)
	doc := seedDocument(t, docs, 1, "hello")

	embedded := makeChunk(t, doc.ID, 0, "embedded")
	pending := makeChunk(t, doc.ID, 1, "not yet embedded")
	require.NoError(t, chunks.ReplaceForDocument(ctx, doc.ID, "rune-window", 1, []model.Chunk{embedded, pending}))
	require.NoError(t, chunks.UpdateEmbedding(ctx, embedded.ID, []float32{0.5, 0.5}))

	got, err := chunks.ListEmbeddedByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, embedded.ID, got[0].ID)
}

func TestDocumentStore_CreateIfAbsentIdempotent(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentStore()

	hash := identity.HashContent([]byte("same bytes"))
	id, err := identity.DocumentID(9, hash)
	require.NoError(t, err)

	first, existed, err := docs.CreateIfAbsent(ctx, &model.Document{
		ID: id, OwnerID: 9, Filename: "a.txt", ContentHash: hash, Status: model.DocumentStatusPending,
	})
	require.NoError(t, err)
	assert.False(t, existed)

	second, existed, err := docs.CreateIfAbsent(ctx, &model.Document{
		ID: id, OwnerID: 9, Filename: "a.txt", ContentHash: hash, Status: model.DocumentStatusPending,
	})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, second.ID)

	all, err := docs.ListByOwner(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, all, 1, "no duplicate document row")
}

func TestDocumentStore_CancelOnlyNonTerminal(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentStore()
	doc := seedDocument(t, docs, 4, "cancel me")

	require.NoError(t, docs.Cancel(ctx, doc.ID, 4))
	got, err := docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCancelled, got.Status)

	// cancelling again fails: already terminal
	assert.ErrorIs(t, docs.Cancel(ctx, doc.ID, 4), store.ErrNotFound)

	// wrong owner cannot cancel
	other := seedDocument(t, docs, 5, "other doc")
	assert.ErrorIs(t, docs.Cancel(ctx, other.ID, 4), store.ErrNotFound)
}
