package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/model"
	"docpipe/internal/store"
)

type JobStore struct {
	mu                sync.Mutex
	jobs              map[uint]*model.ProcessingJob
	nextID            uint
	backoff           store.BackoffPolicy
	visibilityTimeout time.Duration
	maxRetries        int
}

func NewJobStore(backoff store.BackoffPolicy, visibilityTimeout time.Duration, maxRetries int) *JobStore {
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &JobStore{
		jobs:              make(map[uint]*model.ProcessingJob),
		nextID:            1,
		backoff:           backoff,
		visibilityTimeout: visibilityTimeout,
		maxRetries:        maxRetries,
	}
}

func (s *JobStore) Enqueue(_ context.Context, documentID uuid.UUID, jobType model.JobType, payload model.JobPayload) (*model.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.DocumentID == documentID && job.JobType == jobType && jobActive(job.Status) {
			out := *job
			return &out, nil
		}
	}

	now := time.Now()
	job := &model.ProcessingJob{
		ID:          s.nextID,
		DocumentID:  documentID,
		JobType:     jobType,
		Status:      model.JobStatusPending,
		MaxRetries:  s.maxRetries,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := job.SetPayload(payload); err != nil {
		return nil, err
	}
	s.nextID++
	s.jobs[job.ID] = job

	out := *job
	return &out, nil
}

func jobActive(status model.JobStatus) bool {
	return status == model.JobStatusPending || status == model.JobStatusClaimed || status == model.JobStatusRunning
}

func (s *JobStore) ClaimNext(_ context.Context, jobType model.JobType, workerID string) (*model.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-s.visibilityTimeout)

	var candidates []*model.ProcessingJob
	for _, job := range s.jobs {
		if job.JobType != jobType {
			continue
		}
		switch job.Status {
		case model.JobStatusPending:
			if !job.ScheduledAt.After(now) {
				candidates = append(candidates, job)
			}
		case model.JobStatusClaimed, model.JobStatusRunning:
			if job.ClaimedAt != nil && !job.ClaimedAt.After(cutoff) {
				candidates = append(candidates, job)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ScheduledAt.Equal(candidates[j].ScheduledAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].ScheduledAt.Before(candidates[j].ScheduledAt)
	})

	job := candidates[0]
	job.Status = model.JobStatusClaimed
	job.WorkerID = workerID
	claimedAt := now
	job.ClaimedAt = &claimedAt
	job.UpdatedAt = now

	out := *job
	return &out, nil
}

func (s *JobStore) MarkRunning(_ context.Context, jobID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != model.JobStatusClaimed {
		return store.ErrNotFound
	}
	job.Status = model.JobStatusRunning
	job.UpdatedAt = time.Now()
	return nil
}

func (s *JobStore) Complete(_ context.Context, jobID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || (job.Status != model.JobStatusClaimed && job.Status != model.JobStatusRunning) {
		return store.ErrNotFound
	}
	job.Status = model.JobStatusComplete
	job.LastError = ""
	job.UpdatedAt = time.Now()
	return nil
}

func (s *JobStore) Fail(_ context.Context, jobID uint, errMsg string, retryable bool) (*model.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || (job.Status != model.JobStatusClaimed && job.Status != model.JobStatusRunning) {
		return nil, store.ErrNotFound
	}

	job.LastError = errMsg
	if retryable && job.RetryCount < job.MaxRetries {
		delay := s.backoff.NextDelay(job.RetryCount)
		job.Status = model.JobStatusPending
		job.RetryCount++
		job.ScheduledAt = time.Now().Add(delay)
		job.ClaimedAt = nil
		job.WorkerID = ""
	} else {
		job.Status = model.JobStatusFailed
	}
	job.UpdatedAt = time.Now()

	out := *job
	return &out, nil
}

func (s *JobStore) GetByID(_ context.Context, jobID uint) (*model.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *job
	return &out, nil
}

func (s *JobStore) ListByDocument(_ context.Context, documentID uuid.UUID) ([]model.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProcessingJob
	for _, job := range s.jobs {
		if job.DocumentID == documentID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *JobStore) CountByStatus(_ context.Context, status model.JobStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, job := range s.jobs {
		if job.Status == status {
			n++
		}
	}
	return n, nil
}
