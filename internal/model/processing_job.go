package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies a pipeline stage.
type JobType string

const (
	JobTypeParse JobType = "parse"
	JobTypeChunk JobType = "chunk"
	JobTypeEmbed JobType = "embed"
)

// JobTypes lists the stages in pipeline order.
var JobTypes = []JobType{JobTypeParse, JobTypeChunk, JobTypeEmbed}

// JobStatus is the state of a processing job.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusClaimed  JobStatus = "claimed"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// ProcessingJob is one durable unit of pipeline work for a document.
// At most one job per (document_id, job_type) is claimed or running at
// a time; a claimed job whose claim has outlived the visibility
// timeout is reclaimable by another worker.
type ProcessingJob struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DocumentID  uuid.UUID `gorm:"type:char(36);not null;index" json:"document_id"`
	JobType     JobType   `gorm:"size:16;not null;index:idx_claim" json:"job_type"`
	Status      JobStatus `gorm:"size:16;not null;index:idx_claim" json:"status"`
	RetryCount  int       `gorm:"not null" json:"retry_count"`
	MaxRetries  int       `gorm:"not null" json:"max_retries"`
	ScheduledAt time.Time `gorm:"not null;index:idx_claim" json:"scheduled_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	WorkerID    string    `gorm:"size:64" json:"worker_id,omitempty"`
	LastError   string    `gorm:"type:text" json:"last_error,omitempty"`
	Payload     string    `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobPayload carries stage parameters. The chunker identity rides on
// the job so a version bump is an explicit new job, not implicit
// global state.
type JobPayload struct {
	ChunkerName    string `json:"chunker_name,omitempty"`
	ChunkerVersion int    `json:"chunker_version,omitempty"`
}

// DecodePayload parses the payload column; a missing payload yields
// the zero value.
func (j *ProcessingJob) DecodePayload() (JobPayload, error) {
	var p JobPayload
	if j.Payload == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(j.Payload), &p)
	return p, err
}

// SetPayload stores stage parameters as JSON.
func (j *ProcessingJob) SetPayload(p JobPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	j.Payload = string(b)
	return nil
}
