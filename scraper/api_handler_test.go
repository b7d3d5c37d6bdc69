package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"propwatch/config"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func TestFindListingArray(t *testing.T) {
	var root any
	if err := json.Unmarshal(loadFixture(t, "infocasas_search.json"), &root); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	items := findListingArray(root, 0)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if asString(items[0]["id"]) != "184220" {
		t.Fatalf("unexpected first item: %v", items[0]["id"])
	}
}

func TestFindListingArrayDepthBound(t *testing.T) {
	// listing array nested past the bound must not be found
	deep := map[string]any{"price": "1", "id": "x"}
	var root any = []any{deep}
	for i := 0; i < maxSearchDepth+2; i++ {
		root = map[string]any{"wrap": root}
	}

	if items := findListingArray(root, 0); items != nil {
		t.Fatal("depth bound not enforced")
	}
}

func TestFindListingArrayNoMatch(t *testing.T) {
	var root any
	if err := json.Unmarshal([]byte(`{"results": [{"name": "no listing keys"}]}`), &root); err != nil {
		t.Fatal(err)
	}
	if items := findListingArray(root, 0); items != nil {
		t.Fatalf("matched non-listing array: %v", items)
	}
}

func TestMapItem(t *testing.T) {
	var root any
	if err := json.Unmarshal(loadFixture(t, "infocasas_search.json"), &root); err != nil {
		t.Fatal(err)
	}
	items := findListingArray(root, 0)

	h := &APIHandler{cfg: &config.PortalConfig{
		ID:       "infocasas",
		Name:     "InfoCasas",
		BaseURL:  "https://www.infocasas.com.uy",
		Currency: "USD",
	}}

	first := h.mapItem(items[0])
	if first.SourceID != "184220" {
		t.Fatalf("source id = %q", first.SourceID)
	}
	if first.Title != "Apartamento 2 dormitorios en Pocitos" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.RawPrice != "U$S 185.000" {
		t.Fatalf("price = %q", first.RawPrice)
	}
	if first.Neighborhood != "Pocitos" {
		t.Fatalf("neighborhood = %q", first.Neighborhood)
	}
	if first.AreaM2 != 72 {
		t.Fatalf("area = %d", first.AreaM2)
	}
	if first.Rooms != 2 {
		t.Fatalf("rooms = %d", first.Rooms)
	}
	if first.Agency != "Inmobiliaria Costa" {
		t.Fatalf("agency = %q (nested object not unwrapped)", first.Agency)
	}
	if first.Link != "https://www.infocasas.com.uy/venta/apartamento-pocitos-184220" {
		t.Fatalf("link = %q", first.Link)
	}

	second := h.mapItem(items[1])
	if second.RawPrice != "98000" {
		t.Fatalf("numeric price = %q", second.RawPrice)
	}
	if second.Link != "https://www.infocasas.com.uy/venta/monoambiente-cordon-190001" {
		t.Fatalf("absolute link mangled: %q", second.Link)
	}
	// no currency key: portal default applies
	if second.RawCurrency != "USD" {
		t.Fatalf("currency = %q", second.RawCurrency)
	}
}
