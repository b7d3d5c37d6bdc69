package scraper

import (
	"context"

	"propwatch/config"
	"propwatch/httputil"
	"propwatch/models"
)

// Handler scrapes one portal and returns its raw listings. Implementations
// return partial results with an error when a page fails mid-run.
type Handler interface {
	ID() string
	Scrape(ctx context.Context) ([]models.RawListing, error)
}

// NewHandler selects the adapter declared in the portal's YAML config.
// Unknown handler values fall back to the HTML adapter, which covers most
// Uruguayan portals.
func NewHandler(cfg *config.PortalConfig, clients *httputil.Clients, scrCfg config.ScraperConfig) Handler {
	switch cfg.Handler {
	case "api":
		return NewAPIHandler(cfg, clients, scrCfg)
	case "browser":
		return NewBrowserHandler(cfg, scrCfg)
	default:
		return NewHTMLHandler(cfg, clients, scrCfg)
	}
}
