package scraper

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"propwatch/config"
	"propwatch/httputil"
)

func gallitoConfig() *config.PortalConfig {
	return &config.PortalConfig{
		ID:       "gallito",
		Name:     "Gallito",
		BaseURL:  "https://www.gallito.com.uy",
		Currency: "USD",
		Selectors: map[string]string{
			"card":         "div.aviso-container",
			"title":        "h2.aviso-titulo",
			"price":        "span.precio",
			"neighborhood": "span.barrio",
			"area":         "span.metros",
			"rooms":        "span.dormitorios",
			"link":         "a.aviso-link",
			"image":        "img.aviso-img",
		},
	}
}

func TestExtractCards(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(loadFixture(t, "gallito_page.html")))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	listings := extractCards(doc, gallitoConfig())
	if len(listings) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(listings))
	}

	first := listings[0]
	if first.SourceID != "ap-55201" {
		t.Fatalf("source id = %q", first.SourceID)
	}
	if first.Title != "Apartamento 2 dormitorios con garaje" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.RawPrice != "U$S 120.000" {
		t.Fatalf("price = %q", first.RawPrice)
	}
	if first.Neighborhood != "Pocitos" {
		t.Fatalf("neighborhood = %q", first.Neighborhood)
	}
	if first.AreaM2 != 55 || first.Rooms != 2 {
		t.Fatalf("area/rooms = %d/%d", first.AreaM2, first.Rooms)
	}
	if first.Link != "https://www.gallito.com.uy/inmuebles/apartamento-pocitos-55201" {
		t.Fatalf("link = %q", first.Link)
	}
	// lazy-loaded data-src wins over the placeholder src
	if first.ImageURL != "https://img.gallito.com.uy/55201.jpg" {
		t.Fatalf("image = %q", first.ImageURL)
	}

	second := listings[1]
	if second.RawPrice != "Consultar" {
		t.Fatalf("price = %q", second.RawPrice)
	}
	if second.Rooms != 0 {
		t.Fatalf("rooms = %d", second.Rooms)
	}

	// card without data-id falls back to the link's last path segment
	third := listings[2]
	if third.SourceID != "casa-buceo-55203" {
		t.Fatalf("fallback source id = %q", third.SourceID)
	}
}

func TestHTMLHandlerScrapePagination(t *testing.T) {
	fixture := loadFixture(t, "gallito_page.html")

	var pagesServed int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		// every page returns the same cards; the handler must notice
		// the repeats and stop after page 2
		w.Write(fixture)
	}))
	defer server.Close()

	cfg := gallitoConfig()
	cfg.Endpoints = map[string]string{"list": server.URL + "/pocitos?pag={page}"}

	h := NewHTMLHandler(cfg, &httputil.Clients{Scraping: server.Client()}, config.ScraperConfig{
		MaxPages:        10,
		DetailChunkSize: 3,
	})

	listings, err := h.Scrape(t.Context())
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}

	if len(listings) != 3 {
		t.Fatalf("expected 3 unique listings, got %d", len(listings))
	}
	if pagesServed != 2 {
		t.Fatalf("expected to stop after 2 pages, served %d", pagesServed)
	}
}

func TestHTMLHandlerScrapePartialOnError(t *testing.T) {
	fixture := loadFixture(t, "gallito_page.html")

	var page int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			w.Write(fixture)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := gallitoConfig()
	cfg.Endpoints = map[string]string{"list": server.URL + "/pocitos?pag={page}"}

	h := NewHTMLHandler(cfg, &httputil.Clients{Scraping: server.Client()}, config.ScraperConfig{MaxPages: 10})

	// page 1 has only fresh ids, so the handler goes on to page 2 and
	// hits the error; the first page's listings must survive
	listings, err := h.Scrape(t.Context())
	if err == nil {
		t.Fatal("expected error from failing page")
	}
	if len(listings) != 3 {
		t.Fatalf("expected partial results, got %d", len(listings))
	}
}

func TestIntFromText(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"55 m²", 55},
		{"2 dorm.", 2},
		{"", 0},
		{"sin datos", 0},
		{"120", 120},
	}
	for _, tc := range cases {
		if got := intFromText(tc.in); got != tc.want {
			t.Errorf("intFromText(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDetailChunkDelay(t *testing.T) {
	h := NewHTMLHandler(gallitoConfig(), &httputil.Clients{Scraping: http.DefaultClient}, config.ScraperConfig{
		DetailDelayMS: 1500,
	})
	if h.chunkDelay != 1500*time.Millisecond {
		t.Fatalf("chunk delay = %v", h.chunkDelay)
	}
	if h.chunkSize != 3 {
		t.Fatalf("chunk size = %d", h.chunkSize)
	}
}
