package main

import (
	"context"
	"log"
	"time"

	"propwatch/config"
	"propwatch/services"
	"propwatch/storage"
	"propwatch/workers"
)

// One-shot job runner: claims at most one pending job, runs it to a
// terminal state and exits. Meant for cron or a supervisor that fans out
// several of these; the claim query guarantees no two of them get the same
// job. Exit code 0 covers both "job done" and "queue empty"; non-zero means
// the runner itself could not do its work.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()

	consolidator := services.NewConsolidator(pgStore)
	jobService := services.NewJobService(pgStore, consolidator)
	worker := workers.NewJobWorker(jobService)

	job, err := worker.RunOnce(ctx)
	if err != nil {
		log.Fatalf("Worker error: %v", err)
	}
	if job == nil {
		log.Println("No pending jobs")
		return
	}

	log.Printf("Job %s (%s) finished with status %s", job.ID, job.Type, job.Status)
}
