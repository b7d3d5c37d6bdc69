package scraper

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"propwatch/config"
	"propwatch/models"
)

// BrowserHandler drives a headless chromium page for portals that render
// their listings with JavaScript. Extraction reuses the HTML handler's
// selector logic over the rendered DOM.
type BrowserHandler struct {
	cfg      *config.PortalConfig
	maxPages int

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserHandler(cfg *config.PortalConfig, scrCfg config.ScraperConfig) *BrowserHandler {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = scrCfg.MaxPages
	}
	return &BrowserHandler{cfg: cfg, maxPages: maxPages}
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

func (h *BrowserHandler) Scrape(ctx context.Context) ([]models.RawListing, error) {
	listURL := h.cfg.Endpoints["list"]
	if listURL == "" {
		return nil, fmt.Errorf("portal %s: no list endpoint configured", h.cfg.ID)
	}

	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}
	defer h.Close()

	page, err := h.browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
	})
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	var all []models.RawListing
	seen := make(map[string]bool)

	for pageNum := 1; pageNum <= h.maxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		url := strings.ReplaceAll(listURL, "{page}", strconv.Itoa(pageNum))
		listings, err := h.renderAndExtract(page, url)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", pageNum, err)
		}

		newItems := 0
		for _, l := range listings {
			if l.SourceID == "" || seen[l.SourceID] {
				continue
			}
			seen[l.SourceID] = true
			all = append(all, l)
			newItems++
		}

		log.Printf("[%s] page %d: %d cards (%d new, total %d)", h.cfg.ID, pageNum, len(listings), newItems, len(all))

		if len(listings) == 0 || newItems == 0 {
			break
		}

		if h.cfg.RateLimitMS > 0 {
			time.Sleep(time.Duration(h.cfg.RateLimitMS) * time.Millisecond)
		}
	}

	return all, nil
}

func (h *BrowserHandler) renderAndExtract(page playwright.Page, url string) ([]models.RawListing, error) {
	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("goto: %w", err)
	}

	if cardSel := h.cfg.Selectors["card"]; cardSel != "" {
		// an empty result page never shows a card; don't treat that as an error
		if err := page.Locator(cardSel).First().WaitFor(playwright.LocatorWaitForOptions{
			Timeout: playwright.Float(15000),
		}); err != nil {
			return nil, nil
		}
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}

	return extractCards(doc, h.cfg), nil
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	h.pw = pw
	h.browser = browser
	h.initialized = true
	return nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}
