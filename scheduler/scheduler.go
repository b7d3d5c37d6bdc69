package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"propwatch/config"
	"propwatch/scraper"
	"propwatch/services"
	"propwatch/storage"
)

const commandPollInterval = 2 * time.Second

// Scheduler drives the recurring work: scrape runs on a cron or fixed
// interval, periodic consolidation jobs, and the SQLite command queue that
// external tools write into.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	store        *storage.SQLiteStore
	jobs         *services.JobService
	projectID    uuid.UUID
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(
	cfg *config.Config,
	orchestrator *scraper.Orchestrator,
	store *storage.SQLiteStore,
	jobs *services.JobService,
	projectID uuid.UUID,
) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		jobs:         jobs,
		projectID:    projectID,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid scrape cron: %w", err)
		}
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No scrape schedule configured, daemon will only respond to commands")
	}

	if s.cfg.Scheduler.ConsolidateCron != "" {
		log.Printf("Starting consolidation cron: %s", s.cfg.Scheduler.ConsolidateCron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.ConsolidateCron, s.enqueueConsolidation)
		if err != nil {
			return fmt.Errorf("invalid consolidate cron: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// enqueueConsolidation submits a fresh consolidation job each time the cron
// fires. Failed jobs stay failed; resubmitting is how the system retries.
func (s *Scheduler) enqueueConsolidation() {
	if s.projectID == uuid.Nil {
		log.Println("Consolidation cron fired but no project configured")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job, err := s.jobs.EnqueueConsolidation(ctx, s.projectID)
	if err != nil {
		log.Printf("Failed to enqueue consolidation: %v", err)
		return
	}
	log.Printf("Scheduled consolidation job %s", job.ID)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.store.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for i := range cmds {
				cmd := &cmds[i]
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.orchestrator.HandleCommand(ctx, cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunAll(ctx)
}
