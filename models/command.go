package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdScrapeNow      CommandType = "scrape_now"
	CmdScrapePortal   CommandType = "scrape_portal"
	CmdPause          CommandType = "pause"
	CmdResume         CommandType = "resume"
	CmdConsolidateNow CommandType = "consolidate_now"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Portal    string `json:"portal,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}
