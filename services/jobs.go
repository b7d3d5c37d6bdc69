package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"propwatch/models"
	"propwatch/storage"
)

// JobService owns the durable job queue: submitting jobs, claiming them and
// running them to a terminal state. A failed job stays failed; fresh work is
// always submitted as a new row.
type JobService struct {
	store        *storage.PostgresStore
	consolidator *Consolidator
}

func NewJobService(store *storage.PostgresStore, consolidator *Consolidator) *JobService {
	return &JobService{store: store, consolidator: consolidator}
}

// Enqueue validates and submits a job, returning the persisted row.
func (s *JobService) Enqueue(ctx context.Context, jobType models.JobType, projectID uuid.UUID, payload any) (*models.Job, error) {
	if err := models.ValidateJobType(jobType); err != nil {
		return nil, err
	}
	if projectID == uuid.Nil {
		return nil, &ValidationError{Field: "project_id", Reason: "is required"}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	job := &models.Job{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     raw,
		ProjectID:   projectID,
		Status:      models.JobStatusPending,
		MaxAttempts: models.DefaultMaxAttempts,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	log.Printf("[jobs] enqueued %s %s for project %s", job.Type, job.ID, projectID)
	return job, nil
}

// EnqueueConsolidation is the common case: a consolidate_duplicates job for
// one project.
func (s *JobService) EnqueueConsolidation(ctx context.Context, projectID uuid.UUID) (*models.Job, error) {
	return s.Enqueue(ctx, models.JobTypeConsolidateDuplicates, projectID, models.ConsolidatePayload{ProjectID: projectID})
}

// RunNext claims at most one pending job and runs it to completion or
// failure. Returns the finished job, or nil when the queue was empty. The
// returned error reports queue infrastructure problems only; a job whose
// handler failed is recorded on the row and returned without error.
func (s *JobService) RunNext(ctx context.Context) (*models.Job, error) {
	job, err := s.store.ClaimNextJob(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	log.Printf("[jobs] running %s %s (attempt %d/%d)", job.Type, job.ID, job.Attempts, job.MaxAttempts)

	result, runErr := s.execute(ctx, job)
	if runErr != nil {
		job.Status = models.JobStatusFailed
		job.ErrorMessage = runErr.Error()
		if err := s.store.FailJob(ctx, job.ID, runErr.Error()); err != nil {
			return nil, fmt.Errorf("record failure of job %s: %w", job.ID, err)
		}
		log.Printf("[jobs] %s %s failed: %v", job.Type, job.ID, runErr)
		return job, nil
	}

	job.Status = models.JobStatusCompleted
	job.Result = result
	if err := s.store.CompleteJob(ctx, job.ID, result); err != nil {
		return nil, fmt.Errorf("record completion of job %s: %w", job.ID, err)
	}
	log.Printf("[jobs] %s %s completed", job.Type, job.ID)
	return job, nil
}

// execute dispatches on the job type. A job with an unknown type fails
// immediately; it burned an attempt by being claimed, which is intended.
func (s *JobService) execute(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	switch job.Type {
	case models.JobTypeConsolidateDuplicates:
		return s.runConsolidation(ctx, job)
	}
	return nil, fmt.Errorf("unknown job type: %q", job.Type)
}

func (s *JobService) runConsolidation(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var payload models.ConsolidatePayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	projectID := payload.ProjectID
	if projectID == uuid.Nil {
		projectID = job.ProjectID
	}

	deleted, err := s.consolidator.ConsolidateDuplicateProperties(ctx, projectID)
	if err != nil {
		// partial progress is real progress; record it in the message
		var cerr *ConsolidationError
		if errors.As(err, &cerr) {
			return nil, fmt.Errorf("deleted %d before failing: %w", cerr.Deleted, err)
		}
		return nil, err
	}

	return json.Marshal(models.ConsolidateResult{DeletedCount: deleted})
}

// Status looks up a job by id. Returns (nil, nil) when the job does not exist.
func (s *JobService) Status(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, id)
}
