package models

import "time"

// AgencyStats is a derived view over the listings sharing an agency name
// (diacritic/case-insensitive). It is computed on read and never stored;
// renames go through the agency consolidator, which rewrites listing rows.
type AgencyStats struct {
	Name                string    `json:"name"`
	Phone               string    `json:"phone"`
	ListingCount        int       `json:"listing_count"`
	Portals             []string  `json:"portals"`
	AvgPrice            *int64    `json:"avg_price,omitempty"`
	MinPrice            *int64    `json:"min_price,omitempty"`
	MaxPrice            *int64    `json:"max_price,omitempty"`
	NeighborhoodCount   int       `json:"neighborhood_count"`
	PublicationsPerWeek float64   `json:"publications_per_week"`
	ActivityScore       float64   `json:"activity_score"`
	FirstSeen           time.Time `json:"first_seen"`
	LastSeen            time.Time `json:"last_seen"`
	IsNew               bool      `json:"is_new"`
}
