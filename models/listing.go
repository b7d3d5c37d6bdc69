package models

import (
	"time"

	"github.com/google/uuid"
)

// RawListing is what a portal adapter hands back: source-shaped fields,
// untrimmed text, prices still carrying currency symbols.
type RawListing struct {
	Portal       string `json:"portal"`
	SourceID     string `json:"id"`
	Title        string `json:"title"`
	RawPrice     string `json:"price"`
	RawCurrency  string `json:"currency"`
	Neighborhood string `json:"neighborhood"`
	AreaM2       int    `json:"m2"`
	Rooms        int    `json:"rooms"`
	Agency       string `json:"agency"`
	Phone        string `json:"phone"`
	Link         string `json:"link"`
	ImageURL     string `json:"img_url"`
}

// Image archive status
const (
	ImageStatusNone     = "none"
	ImageStatusPending  = "pending"
	ImageStatusArchived = "archived"
	ImageStatusFailed   = "failed"
)

// Currencies form a closed set; the normalizer maps everything else to the default.
const (
	CurrencyUSD = "USD"
	CurrencyUYU = "UYU"
)

// PhoneUnknown is stored when a portal exposes no contact number. Kept as a
// sentinel string so phone is never empty-vs-null ambiguous.
const PhoneUnknown = "Consultar"

// Listing is a single advertised property, normalized to the canonical shape.
// After a cross-portal merge, Portal becomes a composite label ("a + b") and
// Link carries both originals joined with " | ".
type Listing struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ProjectID     uuid.UUID `json:"project_id" db:"project_id"`
	Portal        string    `json:"portal" db:"portal"`
	SourceID      string    `json:"source_id" db:"source_id"`
	Title         string    `json:"title" db:"title"`
	Price         int64     `json:"price" db:"price"`
	Currency      string    `json:"currency" db:"currency"`
	Neighborhood  string    `json:"neighborhood" db:"neighborhood"`
	AreaM2        int       `json:"m2" db:"area_m2"`
	Rooms         int       `json:"rooms" db:"rooms"`
	AgencyName    string    `json:"agency" db:"agency_name"`
	AgencyPhone   string    `json:"phone" db:"agency_phone"`
	Link          string    `json:"link" db:"link"`
	ImageURL      string    `json:"img_url" db:"image_url"`
	ImageKey      *string   `json:"image_key,omitempty" db:"image_key"`
	ImageStatus   string    `json:"image_status,omitempty" db:"image_status"`
	ImageAttempts int       `json:"image_attempts,omitempty" db:"image_attempts"`
	IsDuplicate   bool      `json:"is_duplicate" db:"is_duplicate"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// HasPrice reports whether the listing participates in price-based matching.
// A zero price means "unknown" and never matches anything.
func (l *Listing) HasPrice() bool {
	return l.Price > 0
}
