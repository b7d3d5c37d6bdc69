package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"propwatch/identity"
	"propwatch/models"
	"propwatch/storage"
)

// Consolidator cleans up duplicates that accumulated in the database across
// scrape runs. Unlike the intra-batch detector it deletes rows, so it always
// works from a snapshot and keeps the earliest record of each group.
type Consolidator struct {
	store *storage.PostgresStore
}

func NewConsolidator(store *storage.PostgresStore) *Consolidator {
	return &Consolidator{store: store}
}

// samePersistedProperty groups stored rows that are the same ad re-ingested
// over time: same portal, same agency, same non-zero price, neighborhoods
// matching under the substring rule.
func samePersistedProperty(a, b *models.Listing) bool {
	if !a.HasPrice() || a.Price != b.Price {
		return false
	}
	if identity.PortalKey(a.Portal) != identity.PortalKey(b.Portal) {
		return false
	}
	if !identity.AgenciesMatch(a.AgencyName, b.AgencyName) {
		return false
	}
	return identity.NeighborhoodsMatch(a.Neighborhood, b.Neighborhood)
}

// ConsolidateDuplicateProperties removes persisted duplicates for a project
// and returns how many rows were deleted. Groups are processed one at a
// time; a failure mid-pass returns a ConsolidationError carrying the rows
// already deleted. Running it again on a clean table deletes nothing.
func (c *Consolidator) ConsolidateDuplicateProperties(ctx context.Context, projectID uuid.UUID) (int, error) {
	listings, err := c.store.GetListingsByProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("load listings: %w", err)
	}

	groups := groupPersisted(listings)
	deleted := 0

	for gi, group := range groups {
		// listings come back ordered by created_at, so group[0] is the
		// earliest record and becomes the keeper.
		keeper := group[0]
		if backfillKeeper(&keeper, group[1:]) {
			if err := c.store.UpdateListingMerge(ctx, &keeper); err != nil {
				return deleted, &ConsolidationError{Deleted: deleted, Group: gi, Err: err}
			}
		}

		loserIDs := make([]uuid.UUID, 0, len(group)-1)
		for _, l := range group[1:] {
			loserIDs = append(loserIDs, l.ID)
		}

		n, err := c.store.DeleteListings(ctx, loserIDs)
		if err != nil {
			return deleted, &ConsolidationError{Deleted: deleted, Group: gi, Err: err}
		}
		deleted += n
	}

	if deleted > 0 {
		log.Printf("[consolidator] project %s: removed %d duplicate listings in %d groups", projectID, deleted, len(groups))
	}
	return deleted, nil
}

// groupPersisted buckets listings into duplicate groups of size >= 2.
// Membership is decided against the group's first (earliest) member, which
// keeps the substring neighborhood rule deterministic.
func groupPersisted(listings []models.Listing) [][]models.Listing {
	var groups [][]models.Listing
	assigned := make([]bool, len(listings))

	for i := range listings {
		if assigned[i] {
			continue
		}
		group := []models.Listing{listings[i]}
		for j := i + 1; j < len(listings); j++ {
			if assigned[j] {
				continue
			}
			if samePersistedProperty(&listings[i], &listings[j]) {
				group = append(group, listings[j])
				assigned[j] = true
			}
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}

// backfillKeeper copies phone, image and area from the losers into keeper
// fields that are still empty. Populated keeper fields are never touched.
// Reports whether anything changed.
func backfillKeeper(keeper *models.Listing, losers []models.Listing) bool {
	changed := false
	for _, l := range losers {
		if phoneUnknown(keeper.AgencyPhone) && !phoneUnknown(l.AgencyPhone) {
			keeper.AgencyPhone = l.AgencyPhone
			changed = true
		}
		if keeper.ImageURL == "" && l.ImageURL != "" {
			keeper.ImageURL = l.ImageURL
			changed = true
		}
		if keeper.AreaM2 == 0 && l.AreaM2 != 0 {
			keeper.AreaM2 = l.AreaM2
			changed = true
		}
	}
	return changed
}

// ConsolidateAgencies merges two spellings of the same agency by pointing
// every listing of loser at keeper. Both names must already exist in the
// project. Returns the number of listings moved.
func (c *Consolidator) ConsolidateAgencies(ctx context.Context, projectID uuid.UUID, loser, keeper string) (int, error) {
	for _, name := range []string{loser, keeper} {
		count, err := c.store.CountListingsByAgency(ctx, projectID, name)
		if err != nil {
			return 0, fmt.Errorf("check agency %q: %w", name, err)
		}
		if count == 0 {
			return 0, &NotFoundError{Kind: "agency", Name: name}
		}
	}

	moved, err := c.store.RenameAgency(ctx, projectID, loser, keeper)
	if err != nil {
		return 0, fmt.Errorf("rename agency: %w", err)
	}

	log.Printf("[consolidator] project %s: merged agency %q into %q (%d listings)", projectID, loser, keeper, moved)
	return moved, nil
}
