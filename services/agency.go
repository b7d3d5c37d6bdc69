package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"propwatch/identity"
	"propwatch/models"
	"propwatch/storage"
)

// AgencyService derives per-agency intelligence from the listings table.
// Everything here is computed on read; nothing is stored.
type AgencyService struct {
	store     *storage.PostgresStore
	newCutoff time.Duration
	now       func() time.Time
}

func NewAgencyService(store *storage.PostgresStore, newCutoffDays int) *AgencyService {
	return &AgencyService{
		store:     store,
		newCutoff: time.Duration(newCutoffDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// ProjectAgencyStats aggregates every agency in a project, sorted by listing
// count descending so the most active agencies come first.
func (s *AgencyService) ProjectAgencyStats(ctx context.Context, projectID uuid.UUID) ([]models.AgencyStats, error) {
	listings, err := s.store.GetListingsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	byAgency := make(map[string][]models.Listing)
	order := make([]string, 0)
	for _, l := range listings {
		if l.AgencyName == "" {
			continue
		}
		key := identity.Fold(l.AgencyName)
		if _, seen := byAgency[key]; !seen {
			order = append(order, key)
		}
		byAgency[key] = append(byAgency[key], l)
	}

	stats := make([]models.AgencyStats, 0, len(order))
	for _, key := range order {
		stats = append(stats, ComputeAgencyStats(byAgency[key], s.newCutoff, now))
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].ListingCount > stats[j].ListingCount
	})
	return stats, nil
}

// ComputeAgencyStats aggregates one agency's listings. Price aggregates only
// consider listings with a known price; when an agency has none, the
// aggregates stay nil rather than reporting a misleading zero.
func ComputeAgencyStats(listings []models.Listing, newCutoff time.Duration, now time.Time) models.AgencyStats {
	stats := models.AgencyStats{
		ListingCount: len(listings),
	}
	if len(listings) == 0 {
		return stats
	}

	stats.Name = listings[0].AgencyName
	stats.Phone = models.PhoneUnknown

	portals := make(map[string]string)
	neighborhoods := make(map[string]bool)
	first, last := listings[0].CreatedAt, listings[0].CreatedAt

	var priceSum int64
	priced := 0

	for _, l := range listings {
		// prefer the longest spelling of the name, and any real phone
		if len(l.AgencyName) > len(stats.Name) {
			stats.Name = l.AgencyName
		}
		if stats.Phone == models.PhoneUnknown && !phoneUnknown(l.AgencyPhone) {
			stats.Phone = l.AgencyPhone
		}

		for _, p := range splitPortals(l.Portal) {
			portals[identity.PortalKey(p)] = p
		}
		if l.Neighborhood != "" {
			neighborhoods[identity.Fold(l.Neighborhood)] = true
		}

		if l.HasPrice() {
			priceSum += l.Price
			priced++
			if stats.MinPrice == nil || l.Price < *stats.MinPrice {
				p := l.Price
				stats.MinPrice = &p
			}
			if stats.MaxPrice == nil || l.Price > *stats.MaxPrice {
				p := l.Price
				stats.MaxPrice = &p
			}
		}

		if l.CreatedAt.Before(first) {
			first = l.CreatedAt
		}
		if l.CreatedAt.After(last) {
			last = l.CreatedAt
		}
	}

	if priced > 0 {
		avg := priceSum / int64(priced)
		stats.AvgPrice = &avg
	}

	stats.Portals = make([]string, 0, len(portals))
	for _, p := range portals {
		stats.Portals = append(stats.Portals, p)
	}
	sort.Strings(stats.Portals)

	stats.NeighborhoodCount = len(neighborhoods)
	stats.FirstSeen = first
	stats.LastSeen = last
	stats.IsNew = now.Sub(first) <= newCutoff

	weeks := last.Sub(first).Hours() / (24 * 7)
	if weeks < 1 {
		weeks = 1
	}
	stats.PublicationsPerWeek = float64(len(listings)) / weeks

	stats.ActivityScore = activityScore(len(listings), len(neighborhoods), len(portals), now.Sub(last))
	return stats
}

// activityScore blends volume, geographic spread, portal presence and
// recency into a single comparable number. More listings, more
// neighborhoods, more portals or fresher activity never lowers the score.
func activityScore(listings, neighborhoods, portals int, sinceLast time.Duration) float64 {
	score := float64(listings)*3 + float64(neighborhoods)*2 + float64(portals)*5

	daysSince := sinceLast.Hours() / 24
	switch {
	case daysSince <= 7:
		score += 20
	case daysSince <= 30:
		score += 10
	case daysSince <= 90:
		score += 5
	}
	return score
}

// splitPortals undoes the composite "a + b" label a cross-portal merge
// produces, so each original portal counts once.
func splitPortals(portal string) []string {
	parts := strings.Split(portal, " + ")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
