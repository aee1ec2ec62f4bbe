package ingest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/ai"
	"docpipe/internal/chunk"
	"docpipe/internal/identity"
	"docpipe/internal/model"
	"docpipe/internal/parse"
	"docpipe/internal/store"
	"docpipe/internal/store/memory"
)

// fakeEmbedder returns fixed-dimension vectors, optionally failing the
// first failUntil batch calls.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	failUntil int
	failWith  error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failUntil {
		return nil, f.failWith
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []DocumentEvent
}

func (p *recordingPublisher) PublishDocumentEvent(_ context.Context, ev DocumentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) statuses() []model.DocumentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.DocumentStatus, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Status
	}
	return out
}

type pipelineFixture struct {
	docs     *memory.DocumentStore
	jobs     *memory.JobStore
	chunks   *memory.ChunkStore
	embedder *fakeEmbedder
	events   *recordingPublisher
	pool     *Pool
}

func newPipelineFixture(t *testing.T, embedder *fakeEmbedder, maxRetries int) *pipelineFixture {
	t.Helper()

	docs := memory.NewDocumentStore()
	jobs := memory.NewJobStore(store.BackoffPolicy{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}, time.Minute, maxRetries)
	chunks := memory.NewChunkStore(docs.Owner)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := &recordingPublisher{}
	stages := NewStages(docs, jobs, chunks, parse.NewRegistry(), chunk.NewChunker(64, 8, nil), embedder, events, logger)

	pool, err := NewPool(PoolConfig{
		Size:         2,
		PollInterval: 2 * time.Millisecond,
		StageTimeout: 5 * time.Second,
	}, stages, jobs, docs, logger)
	require.NoError(t, err)

	return &pipelineFixture{docs: docs, jobs: jobs, chunks: chunks, embedder: embedder, events: events, pool: pool}
}

func (f *pipelineFixture) submit(t *testing.T, ownerID uint, filename, content string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	raw := []byte(content)
	hash := identity.HashContent(raw)
	id, err := identity.DocumentID(ownerID, hash)
	require.NoError(t, err)

	_, existed, err := f.docs.CreateIfAbsent(ctx, &model.Document{
		ID: id, OwnerID: ownerID, Filename: filename,
		ContentHash: hash, ByteSize: int64(len(raw)), RawContent: raw,
		Status: model.DocumentStatusPending,
	})
	require.NoError(t, err)
	require.False(t, existed)

	_, err = f.jobs.Enqueue(ctx, id, model.JobTypeParse, model.JobPayload{})
	require.NoError(t, err)
	return id
}

func (f *pipelineFixture) waitForStatus(t *testing.T, docID uuid.UUID, want model.DocumentStatus) *model.Document {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := f.docs.GetByID(context.Background(), docID)
		require.NoError(t, err)
		if doc.Status == want {
			return doc
		}
		if doc.Status.Terminal() && doc.Status != want {
			t.Fatalf("document reached terminal status %q, wanted %q (last error: %s)", doc.Status, want, doc.LastError)
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("document never reached status %q", want)
	return nil
}

func TestPipeline_EndToEnd(t *testing.T) {
	f := newPipelineFixture(t, &fakeEmbedder{}, 3)
	require.NoError(t, f.pool.Start(context.Background()))
	defer f.pool.Close()

	text := "Go is a statically typed language designed for building simple, reliable software. " +
		"Its toolchain compiles quickly and its runtime schedules goroutines across threads."
	docID := f.submit(t, 1, "notes.txt", text)

	doc := f.waitForStatus(t, docID, model.DocumentStatusCompleted)
	assert.NotEmpty(t, doc.ExtractedText)
	assert.Empty(t, doc.LastError)

	ctx := context.Background()
	chunks, err := f.chunks.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal, "ordinals are contiguous from zero")
		assert.True(t, c.Embedded(), "every chunk ends up embedded")
		assert.Positive(t, c.TokenCount)
	}

	jobs, err := f.jobs.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for _, j := range jobs {
		assert.Equal(t, model.JobStatusComplete, j.Status, "stage %s", j.JobType)
	}

	statuses := f.events.statuses()
	assert.Equal(t, []model.DocumentStatus{
		model.DocumentStatusParsing,
		model.DocumentStatusChunking,
		model.DocumentStatusEmbedding,
		model.DocumentStatusCompleted,
	}, statuses)
}

func TestPipeline_TransientEmbedFailureRetries(t *testing.T) {
	embedder := &fakeEmbedder{failUntil: 2, failWith: &ai.StatusError{Code: 500, Body: "upstream unavailable"}}
	f := newPipelineFixture(t, embedder, 3)
	require.NoError(t, f.pool.Start(context.Background()))
	defer f.pool.Close()

	docID := f.submit(t, 1, "flaky.txt", "short text that embeds on the third attempt")
	f.waitForStatus(t, docID, model.DocumentStatusCompleted)

	jobs, err := f.jobs.ListByDocument(context.Background(), docID)
	require.NoError(t, err)
	var embedJob *model.ProcessingJob
	for i := range jobs {
		if jobs[i].JobType == model.JobTypeEmbed {
			embedJob = &jobs[i]
		}
	}
	require.NotNil(t, embedJob)
	assert.Equal(t, model.JobStatusComplete, embedJob.Status)
	assert.Equal(t, 2, embedJob.RetryCount, "two transient failures before success")

	chunks, err := f.chunks.ListByDocument(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "retries never duplicate chunks")
	assert.True(t, chunks[0].Embedded())
}

func TestPipeline_PermanentFailureFailsDocument(t *testing.T) {
	f := newPipelineFixture(t, &fakeEmbedder{}, 3)
	require.NoError(t, f.pool.Start(context.Background()))
	defer f.pool.Close()

	ctx := context.Background()
	raw := []byte{0x00, 0x01, 0x02}
	hash := identity.HashContent(raw)
	docID, err := identity.DocumentID(1, hash)
	require.NoError(t, err)
	_, _, err = f.docs.CreateIfAbsent(ctx, &model.Document{
		ID: docID, OwnerID: 1, Filename: "image.bin",
		ContentHash: hash, ByteSize: int64(len(raw)), RawContent: raw,
		Status: model.DocumentStatusPending,
	})
	require.NoError(t, err)
	_, err = f.jobs.Enqueue(ctx, docID, model.JobTypeParse, model.JobPayload{})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	var doc *model.Document
	for time.Now().Before(deadline) {
		doc, err = f.docs.GetByID(ctx, docID)
		require.NoError(t, err)
		if doc.Status == model.DocumentStatusFailed {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, model.DocumentStatusFailed, doc.Status)
	assert.Contains(t, doc.LastError, "unsupported")

	jobs, err := f.jobs.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobStatusFailed, jobs[0].Status)
	assert.Zero(t, jobs[0].RetryCount, "unsupported formats are not retried")
}

func TestPipeline_CancelledDocumentIsSkipped(t *testing.T) {
	f := newPipelineFixture(t, &fakeEmbedder{}, 3)

	ctx := context.Background()
	docID := f.submit(t, 1, "cancelled.txt", "never processed")
	require.NoError(t, f.docs.Cancel(ctx, docID, 1))

	require.NoError(t, f.pool.Start(ctx))
	defer f.pool.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		jobs, err := f.jobs.ListByDocument(ctx, docID)
		require.NoError(t, err)
		if len(jobs) == 1 && jobs[0].Status == model.JobStatusComplete {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	jobs, err := f.jobs.ListByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, jobs, 1, "no follow-up stages for a cancelled document")
	assert.Equal(t, model.JobStatusComplete, jobs[0].Status)

	doc, err := f.docs.GetByID(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCancelled, doc.Status)
	assert.Empty(t, doc.ExtractedText)
}

func TestStages_UnknownJobTypeIsPermanent(t *testing.T) {
	f := newPipelineFixture(t, &fakeEmbedder{}, 3)
	err := f.pool.stages.Run(context.Background(), &model.ProcessingJob{JobType: "reticulate"})
	require.Error(t, err)
	assert.False(t, retryable(err))
}
