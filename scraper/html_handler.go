package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"propwatch/config"
	"propwatch/httputil"
	"propwatch/models"
)

// HTMLHandler scrapes server-rendered portals with CSS selectors from the
// portal's YAML config. Listing cards come from the search result pages;
// agency and phone usually only appear on the detail page, so those are
// fetched separately in small chunks.
type HTMLHandler struct {
	cfg        *config.PortalConfig
	client     *http.Client
	maxPages   int
	chunkSize  int
	chunkDelay time.Duration
}

func NewHTMLHandler(cfg *config.PortalConfig, clients *httputil.Clients, scrCfg config.ScraperConfig) *HTMLHandler {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = scrCfg.MaxPages
	}
	chunkSize := scrCfg.DetailChunkSize
	if chunkSize <= 0 {
		chunkSize = 3
	}
	return &HTMLHandler{
		cfg:        cfg,
		client:     clients.Scraping,
		maxPages:   maxPages,
		chunkSize:  chunkSize,
		chunkDelay: time.Duration(scrCfg.DetailDelayMS) * time.Millisecond,
	}
}

func (h *HTMLHandler) ID() string {
	return h.cfg.ID
}

func (h *HTMLHandler) Scrape(ctx context.Context) ([]models.RawListing, error) {
	listURL := h.cfg.Endpoints["list"]
	if listURL == "" {
		return nil, fmt.Errorf("portal %s: no list endpoint configured", h.cfg.ID)
	}

	var all []models.RawListing
	seen := make(map[string]bool)

	for page := 1; page <= h.maxPages; page++ {
		url := strings.ReplaceAll(listURL, "{page}", strconv.Itoa(page))

		doc, err := h.fetchDocument(ctx, url)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", page, err)
		}

		listings := extractCards(doc, h.cfg)
		newItems := 0
		for _, l := range listings {
			if l.SourceID == "" || seen[l.SourceID] {
				continue
			}
			seen[l.SourceID] = true
			all = append(all, l)
			newItems++
		}

		log.Printf("[%s] page %d: %d cards (%d new, total %d)", h.cfg.ID, page, len(listings), newItems, len(all))

		if len(listings) == 0 || newItems == 0 {
			break
		}

		if h.cfg.RateLimitMS > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(time.Duration(h.cfg.RateLimitMS) * time.Millisecond):
			}
		}
	}

	if err := h.fetchDetails(ctx, all); err != nil {
		return all, err
	}
	return all, nil
}

func (h *HTMLHandler) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept-Language", "es-UY,es;q=0.9")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

// fetchDetails fills agency and phone from detail pages, in fixed chunks
// with a pause between them so the portal sees a browsing user, not a
// burst. A failed detail fetch leaves the listing as-is.
func (h *HTMLHandler) fetchDetails(ctx context.Context, listings []models.RawListing) error {
	agencySel := h.cfg.Selectors["detail_agency"]
	phoneSel := h.cfg.Selectors["detail_phone"]
	if agencySel == "" && phoneSel == "" {
		return nil
	}

	for start := 0; start < len(listings); start += h.chunkSize {
		end := start + h.chunkSize
		if end > len(listings) {
			end = len(listings)
		}

		for i := start; i < end; i++ {
			l := &listings[i]
			if l.Link == "" {
				continue
			}
			doc, err := h.fetchDocument(ctx, l.Link)
			if err != nil {
				log.Printf("[%s] detail %s: %v", h.cfg.ID, l.SourceID, err)
				continue
			}
			if agencySel != "" && l.Agency == "" {
				l.Agency = cleanText(doc.Find(agencySel).First().Text())
			}
			if phoneSel != "" && l.Phone == "" {
				l.Phone = cleanText(doc.Find(phoneSel).First().Text())
			}
		}

		if end < len(listings) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.chunkDelay):
			}
		}
	}
	return nil
}

// extractCards pulls one RawListing per card selector match. Shared with
// the browser handler, which hands over rendered HTML instead of a fetched
// page.
func extractCards(doc *goquery.Document, cfg *config.PortalConfig) []models.RawListing {
	sel := cfg.Selectors
	var listings []models.RawListing

	doc.Find(sel["card"]).Each(func(_ int, card *goquery.Selection) {
		link := attrOr(card, sel["link"], "href")
		if link != "" && strings.HasPrefix(link, "/") {
			link = strings.TrimRight(cfg.BaseURL, "/") + link
		}

		sourceID, _ := card.Attr("data-id")
		if sourceID == "" {
			sourceID = sourceIDFromLink(link)
		}

		listings = append(listings, models.RawListing{
			Portal:       cfg.Name,
			SourceID:     sourceID,
			Title:        cleanText(card.Find(sel["title"]).First().Text()),
			RawPrice:     cleanText(card.Find(sel["price"]).First().Text()),
			RawCurrency:  cfg.Currency,
			Neighborhood: cleanText(card.Find(sel["neighborhood"]).First().Text()),
			AreaM2:       intFromText(card.Find(sel["area"]).First().Text()),
			Rooms:        intFromText(card.Find(sel["rooms"]).First().Text()),
			Agency:       cleanText(card.Find(sel["agency"]).First().Text()),
			Phone:        cleanText(card.Find(sel["phone"]).First().Text()),
			Link:         link,
			ImageURL:     imageSrc(card, sel["image"]),
		})
	})

	return listings
}

func attrOr(card *goquery.Selection, selector, attr string) string {
	if selector == "" {
		return ""
	}
	val, _ := card.Find(selector).First().Attr(attr)
	return strings.TrimSpace(val)
}

func imageSrc(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	img := card.Find(selector).First()
	// lazy-loaded images keep the real URL in data-src
	if src, ok := img.Attr("data-src"); ok && src != "" {
		return strings.TrimSpace(src)
	}
	src, _ := img.Attr("src")
	return strings.TrimSpace(src)
}

// sourceIDFromLink falls back to the last path segment when a portal does
// not expose an id attribute on its cards.
func sourceIDFromLink(link string) string {
	link = strings.TrimRight(link, "/")
	if idx := strings.LastIndexByte(link, '/'); idx >= 0 {
		return link[idx+1:]
	}
	return ""
}

func intFromText(s string) int {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			continue
		}
		if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, _ := strconv.Atoi(digits.String())
	return n
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
