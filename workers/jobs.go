package workers

import (
	"context"
	"log"
	"time"

	"propwatch/models"
	"propwatch/services"
)

// JobWorker drains the durable job queue. The daemon runs it on a ticker;
// the standalone worker binary calls RunOnce and exits.
type JobWorker struct {
	jobs *services.JobService
}

func NewJobWorker(jobs *services.JobService) *JobWorker {
	return &JobWorker{jobs: jobs}
}

// Run polls for jobs until ctx is done. After finishing one job it
// immediately tries the next, so a backlog drains without waiting out the
// interval.
func (w *JobWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Job worker stopping")
			return
		case <-ticker.C:
			for {
				job, err := w.jobs.RunNext(ctx)
				if err != nil {
					log.Printf("Job worker: %v", err)
					break
				}
				if job == nil {
					break
				}
			}
		}
	}
}

// RunOnce claims and runs at most one job. Returns the finished job or nil
// when the queue was empty; the error reports infrastructure faults only.
func (w *JobWorker) RunOnce(ctx context.Context) (*models.Job, error) {
	return w.jobs.RunNext(ctx)
}
