package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"docpipe/internal/cache"
	"docpipe/internal/identity"
	"docpipe/internal/model"
	"docpipe/internal/parse"
	"docpipe/internal/store"
)

const maxUploadBytes = 20 << 20

var (
	ErrEmptyDocument     = errors.New("document content is empty")
	ErrDocumentTooLarge  = errors.New("document exceeds the upload size limit")
	ErrUnsupportedUpload = errors.New("unsupported document format")
	ErrDocumentNotFound  = errors.New("document not found")
)

// IngestService accepts uploads and seeds the processing pipeline.
// Submitting identical content twice for the same owner resolves to
// the existing document; no duplicate work is enqueued.
type IngestService struct {
	docs        store.DocumentStore
	jobs        store.JobStore
	parsers     *parse.Registry
	statusCache *cache.StatusCache
}

func NewIngestService(docs store.DocumentStore, jobs store.JobStore, parsers *parse.Registry, statusCache *cache.StatusCache) *IngestService {
	return &IngestService{
		docs:        docs,
		jobs:        jobs,
		parsers:     parsers,
		statusCache: statusCache,
	}
}

// Submit registers the upload and enqueues the first pipeline stage.
// The returned flag reports whether the document already existed.
func (s *IngestService) Submit(ctx context.Context, ownerID uint, filename string, content []byte) (*model.Document, bool, error) {
	if ownerID == 0 || filename == "" {
		return nil, false, ErrInvalidInput
	}
	if len(content) == 0 {
		return nil, false, ErrEmptyDocument
	}
	if len(content) > maxUploadBytes {
		return nil, false, ErrDocumentTooLarge
	}
	if !s.parsers.Supports(filename) {
		return nil, false, ErrUnsupportedUpload
	}

	hash := identity.HashContent(content)
	docID, err := identity.DocumentID(ownerID, hash)
	if err != nil {
		return nil, false, fmt.Errorf("derive document id failed: %w", err)
	}

	doc, existed, err := s.docs.CreateIfAbsent(ctx, &model.Document{
		ID:          docID,
		OwnerID:     ownerID,
		Filename:    filename,
		ContentHash: hash,
		ByteSize:    int64(len(content)),
		RawContent:  content,
		Status:      model.DocumentStatusPending,
	})
	if err != nil {
		return nil, false, fmt.Errorf("store document failed: %w", err)
	}
	if existed {
		return doc, true, nil
	}

	if _, err := s.jobs.Enqueue(ctx, doc.ID, model.JobTypeParse, model.JobPayload{}); err != nil {
		return nil, false, fmt.Errorf("enqueue parse job failed: %w", err)
	}
	return doc, false, nil
}

// Cancel stops further pipeline work on a non-terminal document.
func (s *IngestService) Cancel(ctx context.Context, ownerID uint, docID uuid.UUID) error {
	if ownerID == 0 {
		return ErrInvalidInput
	}
	if err := s.docs.Cancel(ctx, docID, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("cancel document failed: %w", err)
	}
	if s.statusCache != nil {
		// Best effort; the snapshot expires on its own TTL anyway.
		_ = s.statusCache.Invalidate(ctx, docID)
	}
	return nil
}
