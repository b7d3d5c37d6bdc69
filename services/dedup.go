package services

import (
	"propwatch/identity"
	"propwatch/models"
)

// MatchPredicate decides whether two listings describe the same property.
// It is pluggable so the rule can be tested and tuned apart from the scan.
type MatchPredicate func(a, b *models.Listing) bool

// SameProperty is the default predicate for one scrape run:
//   - neighborhoods match under the substring rule
//   - prices are equal and non-zero
//   - rooms match exactly and are non-zero, or the areas differ by <= 3 m²
func SameProperty(a, b *models.Listing) bool {
	if !a.HasPrice() || a.Price != b.Price {
		return false
	}
	if !identity.NeighborhoodsMatch(a.Neighborhood, b.Neighborhood) {
		return false
	}
	if a.Rooms > 0 && a.Rooms == b.Rooms {
		return true
	}
	return absInt(a.AreaM2-b.AreaM2) <= 3
}

// DuplicateDetector finds cross-portal duplicates inside a single scrape run
// and merges them before anything is stored. It never deletes: the match is
// folded onto the earliest-seen record and the later one is dropped from the
// batch.
type DuplicateDetector struct {
	Match MatchPredicate
}

func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{Match: SameProperty}
}

// Deduplicate merges the adapter batches in order. First match wins: each
// incoming listing is scanned against the accumulated keepers (O(n·m), fine
// at daily volumes; bucket by (neighborhood, price) before scanning if that
// ever stops being true). Returns the surviving listings and the number of
// merges performed.
func (d *DuplicateDetector) Deduplicate(batches ...[]models.Listing) ([]models.Listing, int) {
	var keepers []models.Listing
	merged := 0

	for _, batch := range batches {
		for i := range batch {
			incoming := &batch[i]

			matched := false
			for k := range keepers {
				if d.Match(&keepers[k], incoming) {
					mergeDuplicate(&keepers[k], incoming)
					merged++
					matched = true
					break
				}
			}
			if !matched {
				keepers = append(keepers, *incoming)
			}
		}
	}

	return keepers, merged
}

// mergeDuplicate folds dup onto the keeper. Non-empty keeper fields are
// never overwritten; empty ones are backfilled from the duplicate. When the
// two come from different portals, portal and link become composites so
// neither original is lost.
func mergeDuplicate(keeper, dup *models.Listing) {
	keeper.IsDuplicate = true

	if keeper.ImageURL == "" && dup.ImageURL != "" {
		keeper.ImageURL = dup.ImageURL
		keeper.ImageStatus = models.ImageStatusPending
	}
	if phoneUnknown(keeper.AgencyPhone) && !phoneUnknown(dup.AgencyPhone) {
		keeper.AgencyPhone = dup.AgencyPhone
	}
	if keeper.AgencyName == "" {
		keeper.AgencyName = dup.AgencyName
	}
	if keeper.Title == "" {
		keeper.Title = dup.Title
	}
	if keeper.AreaM2 == 0 {
		keeper.AreaM2 = dup.AreaM2
	}
	if keeper.Rooms == 0 {
		keeper.Rooms = dup.Rooms
	}

	if keeper.Link == "" {
		keeper.Link = dup.Link
	}

	if identity.PortalKey(keeper.Portal) != identity.PortalKey(dup.Portal) {
		keeper.Portal = keeper.Portal + " + " + dup.Portal
		if dup.Link != "" && keeper.Link != dup.Link {
			keeper.Link = keeper.Link + " | " + dup.Link
		}
	}
}

func phoneUnknown(phone string) bool {
	return phone == "" || phone == models.PhoneUnknown
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
