// Package memory provides in-process store implementations honoring
// the same contracts as store/mysql. They back tests and
// single-process development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/model"
	"docpipe/internal/store"
)

type DocumentStore struct {
	mu        sync.RWMutex
	docs      map[uuid.UUID]*model.Document
	byContent map[contentKey]uuid.UUID
}

type contentKey struct {
	ownerID     uint
	contentHash string
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:      make(map[uuid.UUID]*model.Document),
		byContent: make(map[contentKey]uuid.UUID),
	}
}

func (s *DocumentStore) CreateIfAbsent(_ context.Context, doc *model.Document) (*model.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := contentKey{ownerID: doc.OwnerID, contentHash: doc.ContentHash}
	if id, ok := s.byContent[key]; ok {
		existing := *s.docs[id]
		return &existing, true, nil
	}

	now := time.Now()
	stored := *doc
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.docs[stored.ID] = &stored
	s.byContent[key] = stored.ID

	out := stored
	return &out, false, nil
}

func (s *DocumentStore) GetByID(_ context.Context, id uuid.UUID) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *doc
	return &out, nil
}

func (s *DocumentStore) GetByIDAndOwner(_ context.Context, id uuid.UUID, ownerID uint) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	out := *doc
	return &out, nil
}

func (s *DocumentStore) ListByOwner(_ context.Context, ownerID uint) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Document
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *DocumentStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.DocumentStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Status = status
	doc.LastError = lastError
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *DocumentStore) SaveExtractedText(_ context.Context, id uuid.UUID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.ExtractedText = text
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *DocumentStore) Cancel(_ context.Context, id uuid.UUID, ownerID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.OwnerID != ownerID || doc.Status.Terminal() {
		return store.ErrNotFound
	}
	doc.Status = model.DocumentStatusCancelled
	doc.UpdatedAt = time.Now()
	return nil
}
