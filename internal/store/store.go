// Package store defines the persistence contracts for documents,
// chunks, and processing jobs. Implementations live in
// store/mysql (production) and store/memory (tests, single-process).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/model"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateChunk = errors.New("duplicate chunk id within document")
)

// DocumentStore persists documents and their pipeline state.
type DocumentStore interface {
	// CreateIfAbsent inserts the document unless a row with the same
	// (owner_id, content_hash) already exists. It returns the stored
	// document and whether it was already present.
	CreateIfAbsent(ctx context.Context, doc *model.Document) (*model.Document, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	GetByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID uint) (*model.Document, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]model.Document, error)
	// UpdateStatus advances the pipeline state; terminal states keep
	// LastError for operator inspection.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus, lastError string) error
	SaveExtractedText(ctx context.Context, id uuid.UUID, text string) error
	// Cancel marks a non-terminal document cancelled; workers skip
	// cancelled documents at claim time.
	Cancel(ctx context.Context, id uuid.UUID, ownerID uint) error
}

// JobStore is the durable processing queue. Claiming must be atomic:
// no two workers may win the same job.
type JobStore interface {
	// Enqueue creates a pending job unless an active (pending, claimed
	// or running) job for the same (document_id, job_type) exists, in
	// which case it returns that job.
	Enqueue(ctx context.Context, documentID uuid.UUID, jobType model.JobType, payload model.JobPayload) (*model.ProcessingJob, error)
	// ClaimNext atomically transitions the oldest eligible job of the
	// given type to claimed and records the worker. Eligible means
	// pending with scheduled_at due, or claimed/running past the
	// visibility timeout. Returns (nil, nil) when nothing is eligible.
	ClaimNext(ctx context.Context, jobType model.JobType, workerID string) (*model.ProcessingJob, error)
	MarkRunning(ctx context.Context, jobID uint) error
	Complete(ctx context.Context, jobID uint) error
	// Fail records the error. Retryable failures under the retry limit
	// return to pending with exponential backoff; otherwise the job is
	// terminally failed.
	Fail(ctx context.Context, jobID uint, errMsg string, retryable bool) (*model.ProcessingJob, error)
	GetByID(ctx context.Context, jobID uint) (*model.ProcessingJob, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.ProcessingJob, error)
	CountByStatus(ctx context.Context, status model.JobStatus) (int64, error)
}

// ChunkStore persists embedded chunks and serves retrieval reads.
type ChunkStore interface {
	// ReplaceForDocument atomically swaps the document's chunk set for
	// the given chunker name+version, removing chunks left over from
	// older chunker versions. Retrieval never observes a partial set.
	ReplaceForDocument(ctx context.Context, documentID uuid.UUID, chunkerName string, chunkerVersion int, chunks []model.Chunk) error
	UpdateEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error)
	// ListEmbeddedByOwner returns the owner's chunks with a non-empty
	// embedding, the retrieval candidate set.
	ListEmbeddedByOwner(ctx context.Context, ownerID uint) ([]model.Chunk, error)
}

// BackoffPolicy computes retry scheduling for failed jobs.
type BackoffPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NextDelay returns baseDelay * 2^retryCount, capped at MaxDelay.
func (p BackoffPolicy) NextDelay(retryCount int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
