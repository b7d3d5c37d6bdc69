package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeConsolidateDuplicates JobType = "consolidate_duplicates"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

const DefaultMaxAttempts = 3

// Job is a durable unit of asynchronous work. The only legal transitions are
// pending -> running (via the atomic claim) and running -> completed/failed.
// Terminal states are final; nothing in this codebase requeues a failed job.
type Job struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Type         JobType         `json:"type" db:"type"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	ProjectID    uuid.UUID       `json:"project_id" db:"project_id"`
	Status       JobStatus       `json:"status" db:"status"`
	Attempts     int             `json:"attempts" db:"attempts"`
	MaxAttempts  int             `json:"max_attempts" db:"max_attempts"`
	Result       json.RawMessage `json:"result" db:"result"`
	ErrorMessage string          `json:"error_message" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	StartedAt    *time.Time      `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at" db:"finished_at"`
}

// ValidateJobType rejects anything outside the closed type set. Callers must
// validate at insert time; the worker still re-checks before dispatch.
func ValidateJobType(t JobType) error {
	switch t {
	case JobTypeConsolidateDuplicates:
		return nil
	}
	return fmt.Errorf("unknown job type: %q", t)
}

// ConsolidatePayload is the payload for consolidate_duplicates jobs.
type ConsolidatePayload struct {
	ProjectID uuid.UUID `json:"project_id"`
}

// ConsolidateResult is stored on the job row when consolidation succeeds.
type ConsolidateResult struct {
	DeletedCount int `json:"deleted_count"`
}
