package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"propwatch/config"
	"propwatch/httputil"
	"propwatch/models"
	"propwatch/services"
	"propwatch/storage"
)

// Orchestrator runs the configured portals, folds their batches through the
// normalizer and duplicate detector, and hands the merged result to the
// ingestion sink. Operational records (runs, logs, stats) go to SQLite.
type Orchestrator struct {
	cfg       *config.Config
	store     *storage.SQLiteStore
	handlers  map[string]Handler
	projectID uuid.UUID
	paused    bool

	normalizer *services.Normalizer
	detector   *services.DuplicateDetector
	ingest     *services.IngestService
	jobs       *services.JobService
}

func NewOrchestrator(
	cfg *config.Config,
	store *storage.SQLiteStore,
	clients *httputil.Clients,
	projectID uuid.UUID,
	ingest *services.IngestService,
	jobs *services.JobService,
) *Orchestrator {
	handlers := make(map[string]Handler)
	for id, portalCfg := range cfg.Portals {
		handlers[id] = NewHandler(portalCfg, clients, cfg.Scraper)
	}

	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		handlers:   handlers,
		projectID:  projectID,
		normalizer: services.NewNormalizer(cfg.Portals),
		detector:   services.NewDuplicateDetector(),
		ingest:     ingest,
		jobs:       jobs,
	}
}

// portalResult carries one portal's outcome out of its goroutine.
type portalResult struct {
	portalID string
	raws     []models.RawListing
	err      error
	run      *models.ScrapeRun
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused {
		log.Println("Scraper is paused, skipping run")
		return nil
	}
	return o.run(ctx, o.PortalIDs())
}

func (o *Orchestrator) RunPortal(ctx context.Context, portalID string) error {
	if _, ok := o.handlers[portalID]; !ok {
		return fmt.Errorf("unknown portal: %s", portalID)
	}
	return o.run(ctx, []string{portalID})
}

// run scrapes the given portals in parallel, each isolated so one failing
// portal never takes down the rest, then stores the deduplicated union as
// one batch.
func (o *Orchestrator) run(ctx context.Context, portalIDs []string) error {
	startTime := time.Now()
	results := make([]portalResult, len(portalIDs))

	var wg sync.WaitGroup
	for i, portalID := range portalIDs {
		wg.Add(1)
		go func(i int, portalID string) {
			defer wg.Done()
			results[i] = o.scrapePortal(ctx, portalID)
		}(i, portalID)
	}
	wg.Wait()

	endTime := time.Now()

	// normalize per portal so batch boundaries survive into dedup,
	// which prefers the earliest-seen record
	perSource := make(map[string]int)
	batches := make([][]models.Listing, 0, len(results))
	for _, res := range results {
		perSource[res.portalID] = len(res.raws)
		if len(res.raws) > 0 {
			batches = append(batches, o.normalizer.NormalizeBatch(res.raws, o.projectID, startTime))
		}
	}

	merged, duplicates := o.detector.Deduplicate(batches...)

	payload := &models.IngestPayload{
		Timestamp: startTime,
		Date:      startTime.Format("2006-01-02"),
		StartTime: startTime,
		EndTime:   endTime,
		Count:     len(merged),
		ProjectID: o.projectID,
		Summary: models.IngestSummary{
			Total:      len(merged),
			Duplicates: duplicates,
			PerSource:  perSource,
		},
		Properties: merged,
	}

	stored := 0
	var ingestErr error
	if len(merged) > 0 {
		stored, ingestErr = o.ingest.Ingest(ctx, payload)
	}

	o.finishRuns(results, duplicates, stored, ingestErr)

	var failed int
	for _, res := range results {
		if res.err != nil {
			failed++
		}
	}

	log.Printf("Run complete: %d portals (%d failed), %d found, %d merged, %d stored",
		len(portalIDs), failed, payload.Summary.Total+duplicates, duplicates, stored)

	if ingestErr != nil {
		return fmt.Errorf("ingest: %w", ingestErr)
	}
	return nil
}

func (o *Orchestrator) scrapePortal(ctx context.Context, portalID string) portalResult {
	handler := o.handlers[portalID]

	run := &models.ScrapeRun{
		PortalID:  portalID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(run)
	if err != nil {
		log.Printf("Failed to create run record for %s: %v", portalID, err)
	}
	run.ID = runID

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting scrape for %s", portalID), portalID)

	raws, scrapeErr := handler.Scrape(ctx)
	run.ListingsFound = len(raws)

	if scrapeErr != nil {
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Scrape error: %v", scrapeErr), portalID)
		run.ErrorsCount++
		if len(raws) > 0 {
			run.Status = models.RunStatusPartial
		} else {
			run.Status = models.RunStatusFailed
		}
	} else {
		run.Status = models.RunStatusCompleted
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Scraped %d listings", len(raws)), portalID)
	}

	return portalResult{portalID: portalID, raws: raws, err: scrapeErr, run: run}
}

// finishRuns closes the per-portal run records once the shared ingest step
// is done. Merge and store counts are run-wide, so they land on every
// participating record.
func (o *Orchestrator) finishRuns(results []portalResult, duplicates, stored int, ingestErr error) {
	now := time.Now()
	for _, res := range results {
		run := res.run
		run.FinishedAt = &now
		run.DuplicatesMerged = duplicates
		run.ListingsStored = stored
		if ingestErr != nil && run.Status == models.RunStatusCompleted {
			run.Status = models.RunStatusFailed
			run.ErrorsCount++
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Ingest error: %v", ingestErr), res.portalID)
		}
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("Failed to update run %d: %v", run.ID, err)
		}
		if err := o.store.UpdatePortalStats(res.portalID); err != nil {
			log.Printf("Failed to update stats for %s: %v", res.portalID, err)
		}
	}
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapePortal:
		if params.Portal != "" {
			return o.RunPortal(ctx, params.Portal)
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.paused = true
		log.Println("Scraper paused")
	case models.CmdResume:
		o.paused = false
		log.Println("Scraper resumed")
	case models.CmdConsolidateNow:
		projectID := o.projectID
		if params.ProjectID != "" {
			parsed, err := uuid.Parse(params.ProjectID)
			if err != nil {
				return fmt.Errorf("bad project id %q: %w", params.ProjectID, err)
			}
			projectID = parsed
		}
		_, err := o.jobs.EnqueueConsolidation(ctx, projectID)
		return err
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, portalID string) {
	log.Printf("[%s] %s: %s", level, portalID, message)
	o.store.Log(&runID, level, message, portalID)
}

func (o *Orchestrator) PortalIDs() []string {
	ids := make([]string, 0, len(o.handlers))
	for id := range o.handlers {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	return json.Marshal(map[string]any{
		"paused":  o.paused,
		"portals": o.PortalIDs(),
	})
}
