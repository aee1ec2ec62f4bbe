package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"

	"docpipe/internal/model"
)

// StatusSnapshot is the cached view of a document's pipeline state.
// Status polling is the hottest read path, so it is served from Redis
// with a short TTL; the store stays authoritative.
type StatusSnapshot struct {
	DocumentID uuid.UUID            `json:"document_id"`
	OwnerID    uint                 `json:"owner_id"`
	Status     model.DocumentStatus `json:"status"`
	LastError  string               `json:"last_error,omitempty"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

type StatusCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewStatusCache(client *redisv9.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatusCache{client: client, ttl: ttl}
}

func (c *StatusCache) Get(ctx context.Context, documentID uuid.UUID) (*StatusSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.key(documentID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get status failed: %w", err)
	}

	var snap StatusSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached status failed: %w", err)
	}
	return &snap, true, nil
}

func (c *StatusCache) Set(ctx context.Context, snap StatusSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal status cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(snap.DocumentID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set status failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot after a status transition so
// the next poll reads the fresh state.
func (c *StatusCache) Invalidate(ctx context.Context, documentID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(documentID)).Err(); err != nil {
		return fmt.Errorf("redis delete status failed: %w", err)
	}
	return nil
}

func (c *StatusCache) key(documentID uuid.UUID) string {
	return fmt.Sprintf("document:status:%s", documentID)
}
