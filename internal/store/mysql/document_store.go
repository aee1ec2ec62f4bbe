package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docpipe/internal/model"
	"docpipe/internal/store"
)

type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) CreateIfAbsent(ctx context.Context, doc *model.Document) (*model.Document, bool, error) {
	var existing model.Document
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND content_hash = ?", doc.OwnerID, doc.ContentHash).
		First(&existing).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("query document by content failed: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		// Lost a race against a concurrent identical submission; the
		// unique index on (owner_id, content_hash) makes the winner
		// authoritative.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if ferr := s.db.WithContext(ctx).
				Where("owner_id = ? AND content_hash = ?", doc.OwnerID, doc.ContentHash).
				First(&existing).Error; ferr == nil {
				return &existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("create document failed: %w", err)
	}
	return doc, false, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) GetByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID uint) (*model.Document, error) {
	var doc model.Document
	if err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get document by owner failed: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) ListByOwner(ctx context.Context, ownerID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus, lastError string) error {
	res := s.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "last_error": lastError})
	if res.Error != nil {
		return fmt.Errorf("update document status failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DocumentStore) SaveExtractedText(ctx context.Context, id uuid.UUID, text string) error {
	res := s.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Update("extracted_text", text)
	if res.Error != nil {
		return fmt.Errorf("save extracted text failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DocumentStore) Cancel(ctx context.Context, id uuid.UUID, ownerID uint) error {
	res := s.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND owner_id = ? AND status NOT IN ?", id, ownerID, []model.DocumentStatus{
			model.DocumentStatusCompleted,
			model.DocumentStatusFailed,
			model.DocumentStatusCancelled,
		}).
		Update("status", model.DocumentStatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("cancel document failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
