// Package ingest runs the asynchronous document pipeline: a pool of
// workers claims parse/chunk/embed jobs from the job store and drives
// each document through its stages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"docpipe/internal/model"
	"docpipe/internal/store"
)

// PoolConfig tunes the worker pool.
type PoolConfig struct {
	// Size is the number of concurrently executing stage workers.
	Size int
	// PollInterval is the idle sleep between claim sweeps when no job
	// is eligible.
	PollInterval time.Duration
	// StageTimeout bounds one stage execution, distinct from the job
	// store's visibility timeout.
	StageTimeout time.Duration
}

func (c *PoolConfig) applyDefaults() {
	if c.Size <= 0 {
		c.Size = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 2 * time.Minute
	}
}

// Pool claims jobs and executes stages on an ants worker pool. A
// single dispatcher goroutine sweeps the job types; executions run
// concurrently, blocking the dispatcher only when all workers are
// busy.
type Pool struct {
	cfg      PoolConfig
	stages   *Stages
	jobs     store.JobStore
	docs     store.DocumentStore
	workerID string
	logger   *slog.Logger

	execPool *ants.Pool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight sync.WaitGroup
}

func NewPool(cfg PoolConfig, stages *Stages, jobs store.JobStore, docs store.DocumentStore, logger *slog.Logger) (*Pool, error) {
	cfg.applyDefaults()
	if stages == nil {
		return nil, fmt.Errorf("stages are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	execPool, err := ants.NewPool(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool failed: %w", err)
	}

	hostname, _ := os.Hostname()
	return &Pool{
		cfg:      cfg,
		stages:   stages,
		jobs:     jobs,
		docs:     docs,
		workerID: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		logger:   logger,
		execPool: execPool,
	}, nil
}

func (p *Pool) Start(ctx context.Context) error {
	if p.cancel != nil {
		return nil
	}
	poolCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.dispatch(poolCtx)
	}()
	return nil
}

// Close stops claiming, waits for in-flight stages, and releases the
// pool.
func (p *Pool) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.inflight.Wait()
	p.execPool.Release()
}

// Healthy reports worker-pool liveness for readiness checks.
func (p *Pool) Healthy() bool {
	return p.cancel != nil && !p.execPool.IsClosed()
}

func (p *Pool) dispatch(ctx context.Context) {
	for {
		claimed := 0
		for _, jobType := range model.JobTypes {
			select {
			case <-ctx.Done():
				return
			default:
			}

			job, err := p.jobs.ClaimNext(ctx, jobType, p.workerID)
			if err != nil {
				p.logger.Error("claim job failed", "job_type", jobType, "err", err)
				continue
			}
			if job == nil {
				continue
			}
			claimed++

			j := job
			p.inflight.Add(1)
			if err := p.execPool.Submit(func() {
				defer p.inflight.Done()
				p.execute(ctx, j)
			}); err != nil {
				p.inflight.Done()
				p.logger.Error("submit job failed", "job_id", j.ID, "err", err)
			}
		}

		if claimed == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.PollInterval):
			}
		}
	}
}

func (p *Pool) execute(ctx context.Context, job *model.ProcessingJob) {
	stageCtx, cancelStage := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancelStage()

	// A cancelled document is skipped before any stage work; its jobs
	// complete as no-ops so the queue drains.
	doc, err := p.docs.GetByID(stageCtx, job.DocumentID)
	if err != nil {
		p.fail(stageCtx, job, fmt.Errorf("load document failed: %w", err))
		return
	}
	if doc.Status == model.DocumentStatusCancelled {
		if err := p.jobs.Complete(stageCtx, job.ID); err != nil {
			p.logger.Warn("complete cancelled job failed", "job_id", job.ID, "err", err)
		}
		p.logger.Info("skipped cancelled document", "document_id", doc.ID, "job_type", job.JobType)
		return
	}

	if err := p.jobs.MarkRunning(stageCtx, job.ID); err != nil {
		// Claim was lost to the visibility timeout; another worker owns
		// the job now.
		p.logger.Warn("mark running failed", "job_id", job.ID, "err", err)
		return
	}

	p.logger.Info("stage started", "job_id", job.ID, "job_type", job.JobType, "document_id", job.DocumentID, "retry", job.RetryCount)

	if err := p.stages.Run(stageCtx, job); err != nil {
		p.fail(stageCtx, job, err)
		return
	}

	if err := p.jobs.Complete(stageCtx, job.ID); err != nil {
		p.logger.Error("complete job failed", "job_id", job.ID, "err", err)
		return
	}
	p.logger.Info("stage complete", "job_id", job.ID, "job_type", job.JobType, "document_id", job.DocumentID)
}

func (p *Pool) fail(ctx context.Context, job *model.ProcessingJob, stageErr error) {
	retry := retryable(stageErr)
	p.logger.Warn("stage failed", "job_id", job.ID, "job_type", job.JobType, "document_id", job.DocumentID, "retryable", retry, "err", stageErr)

	// Completing the bookkeeping must survive the stage timeout that
	// may have caused the failure.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	failed, err := p.jobs.Fail(ctx, job.ID, stageErr.Error(), retry)
	if err != nil {
		p.logger.Error("record job failure failed", "job_id", job.ID, "err", err)
		return
	}
	if failed.Status != model.JobStatusFailed {
		return
	}

	// Retries exhausted (or permanent): the document fails with the
	// last error preserved for operators.
	doc, err := p.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		p.logger.Error("load document for failure failed", "document_id", job.DocumentID, "err", err)
		return
	}
	if doc.Status.Terminal() {
		return
	}
	if err := p.stages.setStatus(ctx, doc, model.DocumentStatusFailed, stageErr.Error()); err != nil {
		p.logger.Error("mark document failed failed", "document_id", doc.ID, "err", err)
	}
}
