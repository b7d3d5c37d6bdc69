package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SharedPropertyMatch records two listings from different agencies that very
// likely describe the same physical unit (same neighborhood, same price).
// Rows are kept for review; nothing is ever merged automatically from them.
type SharedPropertyMatch struct {
	ID           int64           `json:"id" db:"id"`
	ProjectID    uuid.UUID       `json:"project_id" db:"project_id"`
	ListingA     uuid.UUID       `json:"listing_a" db:"listing_a"`
	ListingB     uuid.UUID       `json:"listing_b" db:"listing_b"`
	AgencyA      string          `json:"agency_a" db:"agency_a"`
	AgencyB      string          `json:"agency_b" db:"agency_b"`
	Neighborhood string          `json:"neighborhood" db:"neighborhood"`
	Price        int64           `json:"price" db:"price"`
	MatchReasons json.RawMessage `json:"match_reasons" db:"match_reasons"`
	Status       string          `json:"status" db:"status"` // pending, reviewed, dismissed
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
