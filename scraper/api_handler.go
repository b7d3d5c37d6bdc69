package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"propwatch/config"
	"propwatch/httputil"
	"propwatch/models"
)

// maxSearchDepth bounds the recursive walk over a portal's JSON response.
// Listing arrays sit a few levels down at most; anything deeper is noise.
const maxSearchDepth = 6

// APIHandler scrapes portals that expose a JSON search API. Portals bury
// the listing array at different spots in the response, so instead of one
// response struct per portal the handler walks the decoded tree and takes
// the first array that looks like listings.
type APIHandler struct {
	cfg      *config.PortalConfig
	client   *http.Client
	maxPages int
}

func NewAPIHandler(cfg *config.PortalConfig, clients *httputil.Clients, scrCfg config.ScraperConfig) *APIHandler {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = scrCfg.MaxPages
	}
	return &APIHandler{
		cfg:      cfg,
		client:   clients.Scraping,
		maxPages: maxPages,
	}
}

func (h *APIHandler) ID() string {
	return h.cfg.ID
}

func (h *APIHandler) Scrape(ctx context.Context) ([]models.RawListing, error) {
	endpoint := h.cfg.Endpoints["search"]
	if endpoint == "" {
		return nil, fmt.Errorf("portal %s: no search endpoint configured", h.cfg.ID)
	}

	var all []models.RawListing
	seen := make(map[string]bool)

	for page := 1; page <= h.maxPages; page++ {
		items, err := h.fetchPage(ctx, endpoint, page)
		if err != nil {
			// keep what earlier pages produced
			return all, fmt.Errorf("page %d: %w", page, err)
		}

		newItems := 0
		for _, item := range items {
			listing := h.mapItem(item)
			if listing.SourceID == "" || seen[listing.SourceID] {
				continue
			}
			seen[listing.SourceID] = true
			all = append(all, listing)
			newItems++
		}

		log.Printf("[%s] page %d: %d listings (%d new, total %d)", h.cfg.ID, page, len(items), newItems, len(all))

		// portals loop their last page instead of returning empty
		if len(items) == 0 || newItems == 0 {
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

	return all, nil
}

func (h *APIHandler) fetchPage(ctx context.Context, endpoint string, page int) ([]map[string]any, error) {
	url := strings.ReplaceAll(endpoint, "{page}", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var root any
	if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return findListingArray(root, 0), nil
}

// findListingArray walks the decoded JSON looking for the first array of
// objects that carry listing-shaped keys. Depth-first with a hard depth
// bound, so a pathological response cannot send it spinning.
func findListingArray(node any, depth int) []map[string]any {
	if depth > maxSearchDepth {
		return nil
	}

	switch v := node.(type) {
	case []any:
		items := make([]map[string]any, 0, len(v))
		for _, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				items = nil
				break
			}
			items = append(items, obj)
		}
		if len(items) > 0 && looksLikeListing(items[0]) {
			return items
		}
		for _, el := range v {
			if found := findListingArray(el, depth+1); found != nil {
				return found
			}
		}
	case map[string]any:
		for _, el := range v {
			if found := findListingArray(el, depth+1); found != nil {
				return found
			}
		}
	}
	return nil
}

func looksLikeListing(obj map[string]any) bool {
	if firstValue(obj, "price", "precio", "amount") == nil {
		return false
	}
	return firstValue(obj, "id", "codigo", "listing_id", "title", "titulo") != nil
}

// mapItem extracts a RawListing from one decoded object. Portals disagree
// on key names, so every field tries the aliases seen in the wild; missing
// fields stay zero and the normalizer deals with them.
func (h *APIHandler) mapItem(item map[string]any) models.RawListing {
	currency := asString(firstValue(item, "currency", "moneda"))
	if currency == "" {
		currency = h.cfg.Currency
	}

	link := asString(firstValue(item, "link", "url", "permalink"))
	if link != "" && strings.HasPrefix(link, "/") {
		link = strings.TrimRight(h.cfg.BaseURL, "/") + link
	}

	return models.RawListing{
		Portal:       h.cfg.Name,
		SourceID:     asString(firstValue(item, "id", "codigo", "listing_id")),
		Title:        asString(firstValue(item, "title", "titulo", "nombre")),
		RawPrice:     asString(firstValue(item, "price", "precio", "amount")),
		RawCurrency:  currency,
		Neighborhood: asString(firstValue(item, "neighborhood", "barrio", "zona", "zone")),
		AreaM2:       asInt(firstValue(item, "m2", "area", "superficie", "surface")),
		Rooms:        asInt(firstValue(item, "rooms", "dormitorios", "bedrooms", "habitaciones")),
		Agency:       asString(firstValue(item, "agency", "inmobiliaria", "publisher", "owner")),
		Phone:        asString(firstValue(item, "phone", "telefono", "contact_phone")),
		Link:         link,
		ImageURL:     asString(firstValue(item, "img_url", "image", "imagen", "photo", "thumbnail")),
	}
}

func firstValue(obj map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case map[string]any:
		// nested objects like {"name": "..."} or {"url": "..."}
		return asString(firstValue(s, "name", "nombre", "url", "value"))
	}
	return ""
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		digits := strings.TrimFunc(n, func(r rune) bool { return r < '0' || r > '9' })
		if i, err := strconv.Atoi(digits); err == nil {
			return i
		}
	}
	return 0
}
