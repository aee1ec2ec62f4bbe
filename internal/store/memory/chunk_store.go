package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/model"
	"docpipe/internal/store"
)

type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[uuid.UUID]*model.Chunk
	// ownerOf resolves chunk ownership for retrieval scoping without a
	// relational join.
	ownerOf func(documentID uuid.UUID) (uint, bool)
}

// NewChunkStore builds a chunk store. ownerOf maps a document ID to
// its owner; pass the document store's Owner lookup.
func NewChunkStore(ownerOf func(documentID uuid.UUID) (uint, bool)) *ChunkStore {
	return &ChunkStore{
		chunks:  make(map[uuid.UUID]*model.Chunk),
		ownerOf: ownerOf,
	}
}

// Owner exposes the document-to-owner lookup for wiring a ChunkStore
// against a memory DocumentStore.
func (s *DocumentStore) Owner(documentID uuid.UUID) (uint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return 0, false
	}
	return doc.OwnerID, true
}

func (s *ChunkStore) ReplaceForDocument(_ context.Context, documentID uuid.UUID, chunkerName string, chunkerVersion int, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			return store.ErrDuplicateChunk
		}
		seen[c.ID] = true
	}

	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
		}
	}
	now := time.Now()
	for i := range chunks {
		c := chunks[i]
		c.DocumentID = documentID
		c.ChunkerName = chunkerName
		c.ChunkerVersion = chunkerVersion
		c.CreatedAt = now
		c.UpdatedAt = now
		s.chunks[c.ID] = &c
	}
	return nil
}

func (s *ChunkStore) UpdateEmbedding(_ context.Context, chunkID uuid.UUID, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[chunkID]
	if !ok {
		return store.ErrNotFound
	}
	c.SetEmbedding(embedding)
	c.UpdatedAt = time.Now()
	return nil
}

func (s *ChunkStore) ListByDocument(_ context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

func (s *ChunkStore) ListEmbeddedByOwner(_ context.Context, ownerID uint) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Chunk
	for _, c := range s.chunks {
		if !c.Embedded() {
			continue
		}
		owner, ok := s.ownerOf(c.DocumentID)
		if !ok || owner != ownerID {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}
