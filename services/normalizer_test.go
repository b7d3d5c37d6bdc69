package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"propwatch/config"
	"propwatch/models"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"U$S 120.000", 120000},
		{"$ 35,500", 35500},
		{"185000", 185000},
		{"Consultar", 0},
		{"", 0},
		{"USD120.000 ", 120000},
	}

	for _, tc := range cases {
		if got := ParsePrice(tc.in); got != tc.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMapCurrency(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"USD", models.CurrencyUSD},
		{"U$S", models.CurrencyUSD},
		{"US$", models.CurrencyUSD},
		{"$", models.CurrencyUYU},
		{"$U", models.CurrencyUYU},
		{"pesos", models.CurrencyUYU},
		{"UYU", models.CurrencyUYU},
		{"", models.CurrencyUSD},
		{"EUR", models.CurrencyUSD},
	}

	for _, tc := range cases {
		if got := MapCurrency(tc.in); got != tc.want {
			t.Errorf("MapCurrency(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	portals := map[string]*config.PortalConfig{
		"gallito": {ID: "gallito", Name: "Gallito", BaseURL: "https://www.gallito.com.uy"},
	}
	n := NewNormalizer(portals)
	projectID := uuid.New()
	now := time.Now()

	raw := models.RawListing{
		Portal:       "Gallito",
		SourceID:     "ap-123",
		Title:        "  Apartamento   2 dormitorios  ",
		RawPrice:     "U$S 120.000",
		RawCurrency:  "U$S",
		Neighborhood: "Pocitos",
		AreaM2:       55,
		Rooms:        2,
		Agency:       "Inmobiliaria López",
		Phone:        "",
		Link:         "https://www.gallito.com.uy/ap-123",
		ImageURL:     "/img/ap-123.jpg",
	}

	l := n.Normalize(&raw, projectID, now)

	if l.Price != 120000 {
		t.Errorf("price = %d", l.Price)
	}
	if l.Currency != models.CurrencyUSD {
		t.Errorf("currency = %q", l.Currency)
	}
	if l.Title != "Apartamento 2 dormitorios" {
		t.Errorf("title = %q", l.Title)
	}
	if l.AgencyPhone != models.PhoneUnknown {
		t.Errorf("phone = %q, want sentinel", l.AgencyPhone)
	}
	if l.ImageURL != "https://www.gallito.com.uy/img/ap-123.jpg" {
		t.Errorf("image url = %q", l.ImageURL)
	}
	if l.ImageStatus != models.ImageStatusPending {
		t.Errorf("image status = %q", l.ImageStatus)
	}
	if l.ProjectID != projectID {
		t.Error("project id not set")
	}
	if l.ID == uuid.Nil {
		t.Error("listing id not assigned")
	}
}

func TestNormalizeNoImage(t *testing.T) {
	n := NewNormalizer(nil)

	raw := models.RawListing{Portal: "Gallito", SourceID: "x", RawPrice: "no tiene precio"}
	l := n.Normalize(&raw, uuid.New(), time.Now())

	if l.Price != 0 {
		t.Errorf("price = %d, want 0", l.Price)
	}
	if l.ImageStatus != models.ImageStatusNone {
		t.Errorf("image status = %q, want none", l.ImageStatus)
	}
	if l.HasPrice() {
		t.Error("zero price must not count as priced")
	}
}

func TestNormalizeResolvesImageByPortalName(t *testing.T) {
	// The config map is keyed by portal id while adapters stamp listings
	// with the display name; both must resolve to the same base URL.
	portals := map[string]*config.PortalConfig{
		"gallito": {ID: "gallito", Name: "Gallito", BaseURL: "https://www.gallito.com.uy"},
	}
	n := NewNormalizer(portals)
	want := "https://www.gallito.com.uy/img/ap-123.jpg"

	for _, portal := range []string{"gallito", "Gallito"} {
		raw := models.RawListing{Portal: portal, SourceID: "ap-123", ImageURL: "/img/ap-123.jpg"}
		l := n.Normalize(&raw, uuid.New(), time.Now())
		if l.ImageURL != want {
			t.Errorf("portal %q: image url = %q, want %q", portal, l.ImageURL, want)
		}
	}
}

func TestAbsoluteImageURLProtocolRelative(t *testing.T) {
	n := NewNormalizer(map[string]*config.PortalConfig{
		"infocasas": {ID: "infocasas", Name: "InfoCasas", BaseURL: "https://www.infocasas.com.uy"},
	})

	raw := models.RawListing{Portal: "InfoCasas", SourceID: "1", ImageURL: "//cdn.infocasas.com.uy/x.jpg"}
	l := n.Normalize(&raw, uuid.New(), time.Now())

	if l.ImageURL != "https://cdn.infocasas.com.uy/x.jpg" {
		t.Errorf("image url = %q", l.ImageURL)
	}
}
