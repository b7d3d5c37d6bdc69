package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"propwatch/identity"
	"propwatch/models"
	"propwatch/storage"
)

// SharedPropertyService finds listings published by different agencies that
// point at the same physical unit. Matches are persisted for review only;
// the listings themselves are never touched.
type SharedPropertyService struct {
	store *storage.PostgresStore
}

func NewSharedPropertyService(store *storage.PostgresStore) *SharedPropertyService {
	return &SharedPropertyService{store: store}
}

// DetectSharedProperties scans a project for cross-agency pairs with equal
// non-zero price and matching neighborhood, and records each as a pending
// match. Re-running is safe: the store ignores pairs already recorded.
// Returns the number of newly scanned pairs.
func (s *SharedPropertyService) DetectSharedProperties(ctx context.Context, projectID uuid.UUID) (int, error) {
	listings, err := s.store.GetListingsByProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("load listings: %w", err)
	}

	found := 0
	now := time.Now()

	for i := range listings {
		for j := i + 1; j < len(listings); j++ {
			a, b := &listings[i], &listings[j]
			reasons := sharedMatchReasons(a, b)
			if reasons == nil {
				continue
			}

			reasonsJSON, err := json.Marshal(reasons)
			if err != nil {
				return found, fmt.Errorf("encode match reasons: %w", err)
			}

			match := &models.SharedPropertyMatch{
				ProjectID:    projectID,
				ListingA:     a.ID,
				ListingB:     b.ID,
				AgencyA:      a.AgencyName,
				AgencyB:      b.AgencyName,
				Neighborhood: a.Neighborhood,
				Price:        a.Price,
				MatchReasons: reasonsJSON,
				Status:       "pending",
				CreatedAt:    now,
			}
			if err := s.store.InsertSharedMatch(ctx, match); err != nil {
				return found, fmt.Errorf("insert match %s/%s: %w", a.ID, b.ID, err)
			}
			found++
		}
	}

	if found > 0 {
		log.Printf("[shared] project %s: %d cross-agency matches", projectID, found)
	}
	return found, nil
}

// Matches returns the recorded shared-property matches for a project.
func (s *SharedPropertyService) Matches(ctx context.Context, projectID uuid.UUID) ([]models.SharedPropertyMatch, error) {
	return s.store.GetSharedMatches(ctx, projectID)
}

// sharedMatchReasons reports why two listings look like the same unit sold
// through different agencies, or nil when they do not qualify.
func sharedMatchReasons(a, b *models.Listing) []string {
	if a.AgencyName == "" || b.AgencyName == "" {
		return nil
	}
	if identity.AgenciesMatch(a.AgencyName, b.AgencyName) {
		return nil
	}
	if !a.HasPrice() || a.Price != b.Price {
		return nil
	}
	if !identity.NeighborhoodsMatch(a.Neighborhood, b.Neighborhood) {
		return nil
	}

	reasons := []string{"same_price", "same_neighborhood"}
	if a.Rooms > 0 && a.Rooms == b.Rooms {
		reasons = append(reasons, "same_rooms")
	}
	if a.AreaM2 > 0 && absInt(a.AreaM2-b.AreaM2) <= 3 {
		reasons = append(reasons, "similar_area")
	}
	return reasons
}
