package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"docpipe/internal/cache"
	"docpipe/internal/model"
	"docpipe/internal/store"
)

// StatusService answers document status polls, cache-first. The store
// stays authoritative; the cache only absorbs repeated polling.
type StatusService struct {
	docs        store.DocumentStore
	jobs        store.JobStore
	statusCache *cache.StatusCache
}

func NewStatusService(docs store.DocumentStore, jobs store.JobStore, statusCache *cache.StatusCache) *StatusService {
	return &StatusService{docs: docs, jobs: jobs, statusCache: statusCache}
}

func (s *StatusService) GetStatus(ctx context.Context, ownerID uint, docID uuid.UUID) (*cache.StatusSnapshot, error) {
	if ownerID == 0 {
		return nil, ErrInvalidInput
	}

	if s.statusCache != nil {
		snap, hit, err := s.statusCache.Get(ctx, docID)
		if err == nil && hit {
			if snap.OwnerID != ownerID {
				return nil, ErrDocumentNotFound
			}
			return snap, nil
		}
	}

	doc, err := s.docs.GetByIDAndOwner(ctx, docID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("load document failed: %w", err)
	}

	snap := &cache.StatusSnapshot{
		DocumentID: doc.ID,
		OwnerID:    doc.OwnerID,
		Status:     doc.Status,
		LastError:  doc.LastError,
		UpdatedAt:  doc.UpdatedAt,
	}
	if s.statusCache != nil {
		_ = s.statusCache.Set(ctx, *snap)
	}
	return snap, nil
}

// GetDocument returns the full owner-scoped document row.
func (s *StatusService) GetDocument(ctx context.Context, ownerID uint, docID uuid.UUID) (*model.Document, error) {
	if ownerID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByIDAndOwner(ctx, docID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("load document failed: %w", err)
	}
	return doc, nil
}

func (s *StatusService) List(ctx context.Context, ownerID uint) ([]model.Document, error) {
	if ownerID == 0 {
		return nil, ErrInvalidInput
	}
	docs, err := s.docs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// ListJobs exposes the pipeline history of one document.
func (s *StatusService) ListJobs(ctx context.Context, ownerID uint, docID uuid.UUID) ([]model.ProcessingJob, error) {
	if _, err := s.GetDocument(ctx, ownerID, docID); err != nil {
		return nil, err
	}
	jobs, err := s.jobs.ListByDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("list jobs failed: %w", err)
	}
	return jobs, nil
}
