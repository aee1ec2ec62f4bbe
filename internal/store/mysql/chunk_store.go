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

type ChunkStore struct {
	db *gorm.DB
}

func NewChunkStore(db *gorm.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

func (s *ChunkStore) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, chunkerName string, chunkerVersion int, chunks []model.Chunk) error {
	for i := range chunks {
		chunks[i].DocumentID = documentID
		chunks[i].ChunkerName = chunkerName
		chunks[i].ChunkerVersion = chunkerVersion
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Old chunker versions go with the swap; stale sets must never
		// be retrieval candidates.
		if err := tx.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete old chunks failed: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		if err := tx.Create(&chunks).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", store.ErrDuplicateChunk, err)
			}
			return fmt.Errorf("insert chunks failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (s *ChunkStore) UpdateEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error {
	var chunk model.Chunk
	chunk.SetEmbedding(embedding)
	res := s.db.WithContext(ctx).Model(&model.Chunk{}).
		Where("id = ?", chunkID).
		Update("embedding", chunk.Embedding)
	if res.Error != nil {
		return fmt.Errorf("update chunk embedding failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ChunkStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("ordinal ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

func (s *ChunkStore) ListEmbeddedByOwner(ctx context.Context, ownerID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := s.db.WithContext(ctx).
		Joins("JOIN documents ON documents.id = chunks.document_id").
		Where("documents.owner_id = ? AND chunks.embedding <> '' AND chunks.embedding <> '[]'", ownerID).
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list embedded chunks by owner failed: %w", err)
	}
	return chunks, nil
}
