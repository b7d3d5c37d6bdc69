package services

import (
	"testing"

	"propwatch/models"
)

func TestSharedMatchReasons(t *testing.T) {
	a := models.Listing{
		AgencyName: "Inmobiliaria A", Neighborhood: "Pocitos",
		Price: 150000, Rooms: 2, AreaM2: 60,
	}
	b := models.Listing{
		AgencyName: "Inmobiliaria B", Neighborhood: "Pocitos",
		Price: 150000, Rooms: 2, AreaM2: 62,
	}

	reasons := sharedMatchReasons(&a, &b)
	if reasons == nil {
		t.Fatal("cross-agency same-price pair not matched")
	}

	want := map[string]bool{"same_price": true, "same_neighborhood": true, "same_rooms": true, "similar_area": true}
	for _, r := range reasons {
		if !want[r] {
			t.Errorf("unexpected reason %q", r)
		}
		delete(want, r)
	}
	if len(want) != 0 {
		t.Errorf("missing reasons: %v", want)
	}
}

func TestSharedMatchReasonsSameAgency(t *testing.T) {
	a := models.Listing{AgencyName: "Inmobiliaria López", Neighborhood: "Pocitos", Price: 150000}
	b := models.Listing{AgencyName: "inmobiliaria lopez", Neighborhood: "Pocitos", Price: 150000}

	if sharedMatchReasons(&a, &b) != nil {
		t.Fatal("same agency under folding must not produce a match")
	}
}

func TestSharedMatchReasonsZeroPrice(t *testing.T) {
	a := models.Listing{AgencyName: "A", Neighborhood: "Pocitos", Price: 0}
	b := models.Listing{AgencyName: "B", Neighborhood: "Pocitos", Price: 0}

	if sharedMatchReasons(&a, &b) != nil {
		t.Fatal("zero price must never match")
	}
}

func TestSharedMatchReasonsMissingAgency(t *testing.T) {
	a := models.Listing{AgencyName: "", Neighborhood: "Pocitos", Price: 100}
	b := models.Listing{AgencyName: "B", Neighborhood: "Pocitos", Price: 100}

	if sharedMatchReasons(&a, &b) != nil {
		t.Fatal("listings without an agency cannot participate")
	}
}
