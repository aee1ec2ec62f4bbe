package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/ai"
	"docpipe/internal/chunk"
	"docpipe/internal/identity"
	"docpipe/internal/model"
	"docpipe/internal/parse"
	"docpipe/internal/store"
)

const defaultEmbedBatchSize = 10 // embedding APIs often limit batch size

// Stages executes the pipeline stages. Every stage is idempotent:
// parse overwrites the extracted text, chunk swaps the whole chunk
// set, embed overwrites embedding slots, so retries are safe.
type Stages struct {
	docs     store.DocumentStore
	jobs     store.JobStore
	chunks   store.ChunkStore
	parser   *parse.Registry
	chunker  *chunk.Chunker
	embedder ai.Embedder
	events   EventPublisher

	embedBatchSize int
	logger         *slog.Logger
}

func NewStages(
	docs store.DocumentStore,
	jobs store.JobStore,
	chunks store.ChunkStore,
	parser *parse.Registry,
	chunker *chunk.Chunker,
	embedder ai.Embedder,
	events EventPublisher,
	logger *slog.Logger,
) *Stages {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stages{
		docs:           docs,
		jobs:           jobs,
		chunks:         chunks,
		parser:         parser,
		chunker:        chunker,
		embedder:       embedder,
		events:         events,
		embedBatchSize: defaultEmbedBatchSize,
		logger:         logger,
	}
}

// Run executes the job's stage against its document.
func (s *Stages) Run(ctx context.Context, job *model.ProcessingJob) error {
	switch job.JobType {
	case model.JobTypeParse:
		return s.runParse(ctx, job)
	case model.JobTypeChunk:
		return s.runChunk(ctx, job)
	case model.JobTypeEmbed:
		return s.runEmbed(ctx, job)
	default:
		return Permanent(fmt.Errorf("unknown job type %q", job.JobType))
	}
}

func (s *Stages) runParse(ctx context.Context, job *model.ProcessingJob) error {
	doc, err := s.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("load document failed: %w", err)
	}

	if err := s.setStatus(ctx, doc, model.DocumentStatusParsing, ""); err != nil {
		return err
	}

	text, err := s.parser.Parse(ctx, doc.Filename, doc.RawContent)
	if err != nil {
		return fmt.Errorf("parse %q failed: %w", doc.Filename, err)
	}

	if err := s.docs.SaveExtractedText(ctx, doc.ID, text); err != nil {
		return err
	}

	payload := model.JobPayload{ChunkerName: chunk.Name, ChunkerVersion: chunk.Version}
	if _, err := s.jobs.Enqueue(ctx, doc.ID, model.JobTypeChunk, payload); err != nil {
		return fmt.Errorf("enqueue chunk job failed: %w", err)
	}
	return s.setStatus(ctx, doc, model.DocumentStatusChunking, "")
}

func (s *Stages) runChunk(ctx context.Context, job *model.ProcessingJob) error {
	doc, err := s.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("load document failed: %w", err)
	}
	if doc.ExtractedText == "" {
		return Permanent(fmt.Errorf("document %s has no extracted text", doc.ID))
	}

	payload, err := job.DecodePayload()
	if err != nil {
		return Permanent(fmt.Errorf("decode chunk payload failed: %w", err))
	}
	chunkerName := payload.ChunkerName
	chunkerVersion := payload.ChunkerVersion
	if chunkerName == "" {
		chunkerName = chunk.Name
		chunkerVersion = chunk.Version
	}

	pieces := s.chunker.Split(doc.ExtractedText)
	rows := make([]model.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunkID, err := identity.ChunkID(doc.ID, chunkerName, chunkerVersion, p.Ordinal)
		if err != nil {
			return Permanent(fmt.Errorf("derive chunk id failed: %w", err))
		}
		rows = append(rows, model.Chunk{
			ID:         chunkID,
			DocumentID: doc.ID,
			Ordinal:    p.Ordinal,
			Text:       p.Text,
			TokenCount: p.TokenCount,
		})
	}

	if err := s.chunks.ReplaceForDocument(ctx, doc.ID, chunkerName, chunkerVersion, rows); err != nil {
		return fmt.Errorf("replace chunks failed: %w", err)
	}

	if _, err := s.jobs.Enqueue(ctx, doc.ID, model.JobTypeEmbed, payload); err != nil {
		return fmt.Errorf("enqueue embed job failed: %w", err)
	}
	return s.setStatus(ctx, doc, model.DocumentStatusEmbedding, "")
}

func (s *Stages) runEmbed(ctx context.Context, job *model.ProcessingJob) error {
	doc, err := s.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("load document failed: %w", err)
	}

	chunks, err := s.chunks.ListByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("list chunks failed: %w", err)
	}

	for start := 0; start < len(chunks); start += s.embedBatchSize {
		end := start + s.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch failed: %w", err)
		}
		if len(vectors) != len(batch) {
			return Transient(fmt.Errorf("embedding count mismatch: sent %d, got %d", len(batch), len(vectors)))
		}
		for i, c := range batch {
			if err := s.chunks.UpdateEmbedding(ctx, c.ID, vectors[i]); err != nil {
				return fmt.Errorf("store embedding failed: %w", err)
			}
		}
	}

	return s.setStatus(ctx, doc, model.DocumentStatusCompleted, "")
}

// setStatus advances the document and publishes the transition.
func (s *Stages) setStatus(ctx context.Context, doc *model.Document, status model.DocumentStatus, errMsg string) error {
	if err := s.docs.UpdateStatus(ctx, doc.ID, status, errMsg); err != nil {
		return err
	}
	s.publish(ctx, doc.ID, doc.OwnerID, status, errMsg)
	return nil
}

func (s *Stages) publish(ctx context.Context, docID uuid.UUID, ownerID uint, status model.DocumentStatus, errMsg string) {
	if s.events == nil {
		return
	}
	ev := DocumentEvent{
		DocumentID: docID,
		OwnerID:    ownerID,
		Status:     status,
		Error:      errMsg,
		At:         time.Now(),
	}
	if err := s.events.PublishDocumentEvent(ctx, ev); err != nil {
		s.logger.Warn("publish document event failed", "document_id", docID, "status", status, "err", err)
	}
}
