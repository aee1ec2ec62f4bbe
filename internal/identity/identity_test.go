package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentID_Deterministic(t *testing.T) {
	hash := HashContent([]byte("policy document body"))

	a, err := DocumentID(42, hash)
	require.NoError(t, err)
	b, err := DocumentID(42, hash)
	require.NoError(t, err)

	assert.Equal(t, a, b, "same owner and hash must derive the same id")
	assert.Equal(t, uuid.Version(5), a.Version(), "ids are name-based uuids")
}

func TestDocumentID_DistinctOwners(t *testing.T) {
	hash := HashContent([]byte("shared content"))

	a, err := DocumentID(1, hash)
	require.NoError(t, err)
	b, err := DocumentID(2, hash)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "identical content from different owners must not collide")
}

func TestDocumentID_HashCaseInsensitive(t *testing.T) {
	hash := HashContent([]byte("x"))

	a, err := DocumentID(7, hash)
	require.NoError(t, err)
	b, err := DocumentID(7, "  "+hash+"  ")
	require.NoError(t, err)

	assert.Equal(t, a, b, "whitespace around the hash must not change the id")
}

func TestDocumentID_RejectsInvalidInput(t *testing.T) {
	hash := HashContent([]byte("x"))

	_, err := DocumentID(0, hash)
	assert.ErrorIs(t, err, ErrEmptyOwner)

	_, err = DocumentID(1, "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = DocumentID(1, hash[:40])
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestChunkID_StableAcrossRechunk(t *testing.T) {
	docID, err := DocumentID(3, HashContent([]byte("doc")))
	require.NoError(t, err)

	first, err := ChunkID(docID, "rune-window", 1, 4)
	require.NoError(t, err)
	second, err := ChunkID(docID, "rune-window", 1, 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunkID_VersionBumpIsDisjoint(t *testing.T) {
	docID, err := DocumentID(3, HashContent([]byte("doc")))
	require.NoError(t, err)

	seen := map[uuid.UUID]bool{}
	for ordinal := 0; ordinal < 10; ordinal++ {
		v1, err := ChunkID(docID, "rune-window", 1, ordinal)
		require.NoError(t, err)
		v2, err := ChunkID(docID, "rune-window", 2, ordinal)
		require.NoError(t, err)
		assert.NotEqual(t, v1, v2)
		seen[v1] = true
		seen[v2] = true
	}
	assert.Len(t, seen, 20, "no collisions between versions or ordinals")
}

func TestChunkID_RejectsInvalidInput(t *testing.T) {
	docID, err := DocumentID(3, HashContent([]byte("doc")))
	require.NoError(t, err)

	_, err = ChunkID(uuid.Nil, "rune-window", 1, 0)
	assert.Error(t, err)

	_, err = ChunkID(docID, "", 1, 0)
	assert.ErrorIs(t, err, ErrEmptyChunkerName)

	_, err = ChunkID(docID, "bad|name", 1, 0)
	assert.ErrorIs(t, err, ErrEmptyChunkerName)

	_, err = ChunkID(docID, "rune-window", 1, -1)
	assert.ErrorIs(t, err, ErrInvalidOrdinal)
}
