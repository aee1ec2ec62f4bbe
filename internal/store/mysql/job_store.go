package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docpipe/internal/model"
	"docpipe/internal/store"
)

// claimAttempts bounds the candidate-select/conditional-update loop so
// a burst of racing workers does not spin forever.
const claimAttempts = 3

type JobStore struct {
	db                *gorm.DB
	backoff           store.BackoffPolicy
	visibilityTimeout time.Duration
	maxRetries        int
}

func NewJobStore(db *gorm.DB, backoff store.BackoffPolicy, visibilityTimeout time.Duration, maxRetries int) *JobStore {
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &JobStore{
		db:                db,
		backoff:           backoff,
		visibilityTimeout: visibilityTimeout,
		maxRetries:        maxRetries,
	}
}

func (s *JobStore) Enqueue(ctx context.Context, documentID uuid.UUID, jobType model.JobType, payload model.JobPayload) (*model.ProcessingJob, error) {
	var active model.ProcessingJob
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND job_type = ? AND status IN ?", documentID, jobType, []model.JobStatus{
			model.JobStatusPending, model.JobStatusClaimed, model.JobStatusRunning,
		}).
		First(&active).Error
	if err == nil {
		return &active, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("query active job failed: %w", err)
	}

	job := &model.ProcessingJob{
		DocumentID:  documentID,
		JobType:     jobType,
		Status:      model.JobStatusPending,
		MaxRetries:  s.maxRetries,
		ScheduledAt: time.Now(),
	}
	if err := job.SetPayload(payload); err != nil {
		return nil, fmt.Errorf("encode job payload failed: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("enqueue job failed: %w", err)
	}
	return job, nil
}

// ClaimNext picks the oldest eligible job and wins it with a
// conditional update keyed on the row's previous state. RowsAffected
// decides the race: exactly one concurrent claimer sees 1.
func (s *JobStore) ClaimNext(ctx context.Context, jobType model.JobType, workerID string) (*model.ProcessingJob, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		now := time.Now()
		cutoff := now.Add(-s.visibilityTimeout)

		var candidate model.ProcessingJob
		err := s.db.WithContext(ctx).
			Where("job_type = ?", jobType).
			Where(
				s.db.Where("status = ? AND scheduled_at <= ?", model.JobStatusPending, now).
					Or("status IN ? AND claimed_at <= ?", []model.JobStatus{model.JobStatusClaimed, model.JobStatusRunning}, cutoff),
			).
			Order("scheduled_at ASC").
			First(&candidate).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("select claim candidate failed: %w", err)
		}

		res := s.db.WithContext(ctx).Model(&model.ProcessingJob{}).
			Where("id = ? AND status = ? AND updated_at = ?", candidate.ID, candidate.Status, candidate.UpdatedAt).
			Updates(map[string]interface{}{
				"status":     model.JobStatusClaimed,
				"worker_id":  workerID,
				"claimed_at": now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("claim job failed: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			candidate.Status = model.JobStatusClaimed
			candidate.WorkerID = workerID
			candidate.ClaimedAt = &now
			return &candidate, nil
		}
		// Another worker won this candidate; try the next one.
	}
	return nil, nil
}

func (s *JobStore) MarkRunning(ctx context.Context, jobID uint) error {
	res := s.db.WithContext(ctx).Model(&model.ProcessingJob{}).
		Where("id = ? AND status = ?", jobID, model.JobStatusClaimed).
		Update("status", model.JobStatusRunning)
	if res.Error != nil {
		return fmt.Errorf("mark job running failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *JobStore) Complete(ctx context.Context, jobID uint) error {
	res := s.db.WithContext(ctx).Model(&model.ProcessingJob{}).
		Where("id = ? AND status IN ?", jobID, []model.JobStatus{model.JobStatusClaimed, model.JobStatusRunning}).
		Updates(map[string]interface{}{"status": model.JobStatusComplete, "last_error": ""})
	if res.Error != nil {
		return fmt.Errorf("complete job failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *JobStore) Fail(ctx context.Context, jobID uint, errMsg string, retryable bool) (*model.ProcessingJob, error) {
	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"last_error": errMsg}
	if retryable && job.RetryCount < job.MaxRetries {
		delay := s.backoff.NextDelay(job.RetryCount)
		updates["status"] = model.JobStatusPending
		updates["retry_count"] = job.RetryCount + 1
		updates["scheduled_at"] = time.Now().Add(delay)
		updates["claimed_at"] = nil
		updates["worker_id"] = ""
	} else {
		updates["status"] = model.JobStatusFailed
	}

	res := s.db.WithContext(ctx).Model(&model.ProcessingJob{}).
		Where("id = ? AND status IN ?", jobID, []model.JobStatus{model.JobStatusClaimed, model.JobStatusRunning}).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("fail job failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetByID(ctx, jobID)
}

func (s *JobStore) GetByID(ctx context.Context, jobID uint) (*model.ProcessingJob, error) {
	var job model.ProcessingJob
	if err := s.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &job, nil
}

func (s *JobStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.ProcessingJob, error) {
	var jobs []model.ProcessingJob
	if err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs by document failed: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) CountByStatus(ctx context.Context, status model.JobStatus) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.ProcessingJob{}).
		Where("status = ?", status).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count jobs failed: %w", err)
	}
	return n, nil
}
