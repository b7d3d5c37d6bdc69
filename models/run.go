package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is the operational record of one orchestrator pass, kept in the
// local SQLite store for the TUI and for resume scheduling.
type ScrapeRun struct {
	ID               int64      `json:"id" db:"id"`
	PortalID         string     `json:"portal_id" db:"portal_id"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time `json:"finished_at" db:"finished_at"`
	Status           RunStatus  `json:"status" db:"status"`
	ListingsFound    int        `json:"listings_found" db:"listings_found"`
	DuplicatesMerged int        `json:"duplicates_merged" db:"duplicates_merged"`
	ListingsStored   int        `json:"listings_stored" db:"listings_stored"`
	ErrorsCount      int        `json:"errors_count" db:"errors_count"`
}

type PortalStats struct {
	PortalID      string     `json:"portal_id" db:"portal_id"`
	LastRunAt     *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus string     `json:"last_run_status" db:"last_run_status"`
	TotalListings int        `json:"total_listings" db:"total_listings"`
	SuccessRate   float64    `json:"success_rate" db:"success_rate"`
}

// IngestSummary counts what a scrape run produced. On the wire the per-source
// counts are flattened to "source_<portal>" keys alongside total/duplicates,
// so the sink schema stays stable even when a portal returned nothing.
type IngestSummary struct {
	Total      int
	Duplicates int
	PerSource  map[string]int
}

func (s IngestSummary) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, len(s.PerSource)+2)
	out["total"] = s.Total
	out["duplicates"] = s.Duplicates
	for source, n := range s.PerSource {
		out["source_"+source] = n
	}
	return json.Marshal(out)
}

func (s *IngestSummary) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Total = raw["total"]
	s.Duplicates = raw["duplicates"]
	s.PerSource = nil
	for key, n := range raw {
		if !strings.HasPrefix(key, "source_") {
			continue
		}
		if s.PerSource == nil {
			s.PerSource = make(map[string]int)
		}
		s.PerSource[strings.TrimPrefix(key, "source_")] = n
	}
	return nil
}

// IngestPayload is the webhook-style body the ingestion sink accepts.
// Every listing field is always present (empty string / 0, never omitted).
type IngestPayload struct {
	Timestamp  time.Time     `json:"timestamp"`
	Date       string        `json:"date"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Count      int           `json:"count"`
	ProjectID  uuid.UUID     `json:"project_id"`
	Summary    IngestSummary `json:"summary"`
	Properties []Listing     `json:"properties"`
}
