package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/model"
)

// DocumentEvent is published on every document status transition so
// downstream consumers (polling UIs, audit) can follow the pipeline
// without querying the store.
type DocumentEvent struct {
	DocumentID uuid.UUID            `json:"document_id"`
	OwnerID    uint                 `json:"owner_id"`
	Status     model.DocumentStatus `json:"status"`
	Error      string               `json:"error,omitempty"`
	At         time.Time            `json:"at"`
}

// EventPublisher delivers document lifecycle events. Implementations
// must tolerate a nil receiver being skipped by callers; publishing is
// best-effort and never fails the pipeline.
type EventPublisher interface {
	PublishDocumentEvent(ctx context.Context, ev DocumentEvent) error
}
