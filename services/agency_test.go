package services

import (
	"testing"
	"time"

	"propwatch/models"
)

func agencyListing(price int64, neighborhood, portal string, createdAt time.Time) models.Listing {
	return models.Listing{
		AgencyName:   "Inmobiliaria López",
		AgencyPhone:  models.PhoneUnknown,
		Price:        price,
		Neighborhood: neighborhood,
		Portal:       portal,
		CreatedAt:    createdAt,
	}
}

func TestComputeAgencyStats(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	cutoff := 30 * 24 * time.Hour

	listings := []models.Listing{
		agencyListing(100000, "Pocitos", "Gallito", now.AddDate(0, -3, 0)),
		agencyListing(200000, "Centro", "InfoCasas", now.AddDate(0, -1, 0)),
		agencyListing(0, "Cordón", "Gallito", now.AddDate(0, 0, -2)),
	}
	listings[2].AgencyPhone = "099123456"

	stats := ComputeAgencyStats(listings, cutoff, now)

	if stats.ListingCount != 3 {
		t.Errorf("count = %d", stats.ListingCount)
	}
	// zero-price listing is excluded from the price aggregates
	if stats.AvgPrice == nil || *stats.AvgPrice != 150000 {
		t.Errorf("avg = %v", stats.AvgPrice)
	}
	if stats.MinPrice == nil || *stats.MinPrice != 100000 {
		t.Errorf("min = %v", stats.MinPrice)
	}
	if stats.MaxPrice == nil || *stats.MaxPrice != 200000 {
		t.Errorf("max = %v", stats.MaxPrice)
	}
	if stats.NeighborhoodCount != 3 {
		t.Errorf("neighborhoods = %d", stats.NeighborhoodCount)
	}
	if len(stats.Portals) != 2 {
		t.Errorf("portals = %v", stats.Portals)
	}
	if stats.Phone != "099123456" {
		t.Errorf("phone = %q", stats.Phone)
	}
	if stats.IsNew {
		t.Error("agency first seen 3 months ago is not new")
	}
}

func TestComputeAgencyStatsNoPrices(t *testing.T) {
	now := time.Now()
	listings := []models.Listing{
		agencyListing(0, "Pocitos", "Gallito", now),
		agencyListing(0, "Pocitos", "Gallito", now),
	}

	stats := ComputeAgencyStats(listings, 30*24*time.Hour, now)

	// nil, not zero: an agency with no priced listings has no average
	if stats.AvgPrice != nil || stats.MinPrice != nil || stats.MaxPrice != nil {
		t.Errorf("aggregates = %v/%v/%v, want nil", stats.AvgPrice, stats.MinPrice, stats.MaxPrice)
	}
	if !stats.IsNew {
		t.Error("agency first seen today is new")
	}
}

func TestComputeAgencyStatsCompositePortal(t *testing.T) {
	now := time.Now()
	l := agencyListing(120000, "Centro", "Gallito + InfoCasas", now)

	stats := ComputeAgencyStats([]models.Listing{l}, 30*24*time.Hour, now)
	if len(stats.Portals) != 2 {
		t.Errorf("composite portal not split: %v", stats.Portals)
	}
}

func TestActivityScoreMonotonic(t *testing.T) {
	base := activityScore(5, 2, 1, 24*time.Hour)

	if activityScore(6, 2, 1, 24*time.Hour) <= base {
		t.Error("more listings must not lower the score")
	}
	if activityScore(5, 3, 1, 24*time.Hour) <= base {
		t.Error("more neighborhoods must not lower the score")
	}
	if activityScore(5, 2, 2, 24*time.Hour) <= base {
		t.Error("more portals must not lower the score")
	}
	if activityScore(5, 2, 1, 120*24*time.Hour) > base {
		t.Error("staler activity must not raise the score")
	}
}
