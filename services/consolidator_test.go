package services

import (
	"testing"
	"time"

	"propwatch/models"
)

func persisted(portal, agency, neighborhood string, price int64, createdAt time.Time) models.Listing {
	return models.Listing{
		Portal:       portal,
		AgencyName:   agency,
		Neighborhood: neighborhood,
		Price:        price,
		CreatedAt:    createdAt,
	}
}

func TestGroupPersisted(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	listings := []models.Listing{
		persisted("Gallito", "López", "Pocitos", 120000, base),
		persisted("gallito ", "lópez", "Pocitos Nuevo", 120000, base.AddDate(0, 0, 1)),
		persisted("Gallito", "López", "Pocitos", 120000, base.AddDate(0, 0, 2)),
		// different portal, never in the same group
		persisted("InfoCasas", "López", "Pocitos", 120000, base),
		// zero price never groups
		persisted("Gallito", "López", "Pocitos", 0, base),
		persisted("Gallito", "López", "Pocitos", 0, base),
	}

	groups := groupPersisted(listings)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0]) != 3 {
		t.Fatalf("group size = %d, want 3", len(groups[0]))
	}
	if !groups[0][0].CreatedAt.Equal(base) {
		t.Error("group not led by earliest record")
	}
}

func TestGroupPersistedIdempotent(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	listings := []models.Listing{
		persisted("Gallito", "López", "Pocitos", 120000, base),
		persisted("Gallito", "López", "Pocitos", 120000, base.AddDate(0, 0, 1)),
	}

	groups := groupPersisted(listings)
	if len(groups) != 1 {
		t.Fatalf("got %d groups", len(groups))
	}

	// after a pass only keepers remain; a second pass must find nothing
	survivors := []models.Listing{groups[0][0]}
	if again := groupPersisted(survivors); len(again) != 0 {
		t.Fatalf("second pass found %d groups, want 0", len(again))
	}
}

func TestBackfillKeeper(t *testing.T) {
	keeper := models.Listing{
		AgencyPhone: models.PhoneUnknown,
		ImageURL:    "",
		AreaM2:      55,
	}
	losers := []models.Listing{
		{AgencyPhone: "099123456", ImageURL: "https://cdn.example/a.jpg", AreaM2: 60},
	}

	if !backfillKeeper(&keeper, losers) {
		t.Fatal("expected changes")
	}
	if keeper.AgencyPhone != "099123456" {
		t.Errorf("phone = %q", keeper.AgencyPhone)
	}
	if keeper.ImageURL != "https://cdn.example/a.jpg" {
		t.Errorf("image = %q", keeper.ImageURL)
	}
	// populated keeper fields stay put
	if keeper.AreaM2 != 55 {
		t.Errorf("area overwritten: %d", keeper.AreaM2)
	}
}

func TestBackfillKeeperNoChanges(t *testing.T) {
	keeper := models.Listing{AgencyPhone: "091000000", ImageURL: "x", AreaM2: 1}
	losers := []models.Listing{{AgencyPhone: "092000000", ImageURL: "y", AreaM2: 2}}

	if backfillKeeper(&keeper, losers) {
		t.Fatal("fully populated keeper must not change")
	}
}

func TestSamePersistedPropertyAgencyRule(t *testing.T) {
	base := time.Now()
	a := persisted("Gallito", "Inmobiliaria López", "Pocitos", 120000, base)
	b := persisted("Gallito", "inmobiliaria lopez", "Pocitos", 120000, base)
	c := persisted("Gallito", "Otra Inmobiliaria", "Pocitos", 120000, base)

	if !samePersistedProperty(&a, &b) {
		t.Error("folded agency names must group")
	}
	if samePersistedProperty(&a, &c) {
		t.Error("different agencies must not group")
	}
}
