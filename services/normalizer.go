package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"propwatch/config"
	"propwatch/models"
)

var digitsRegex = regexp.MustCompile(`[0-9]+`)

// Normalizer turns portal-shaped RawListings into canonical Listings. It
// needs the portal configs to build absolute image URLs from relative paths.
type Normalizer struct {
	portals map[string]*config.PortalConfig
}

// NewNormalizer indexes the configs under both the portal id and its display
// name, since adapters stamp listings with the name while the config map is
// keyed by id.
func NewNormalizer(portals map[string]*config.PortalConfig) *Normalizer {
	index := make(map[string]*config.PortalConfig, len(portals)*2)
	for _, cfg := range portals {
		if cfg.ID != "" {
			index[cfg.ID] = cfg
		}
		if cfg.Name != "" {
			index[cfg.Name] = cfg
		}
	}
	return &Normalizer{portals: index}
}

// Normalize converts one raw listing. It never fails: unparseable prices
// become 0 and unknown currencies fall back to the default, so a single
// malformed item cannot take down a batch.
func (n *Normalizer) Normalize(raw *models.RawListing, projectID uuid.UUID, now time.Time) models.Listing {
	imageURL := n.absoluteImageURL(raw.Portal, raw.ImageURL)

	imageStatus := models.ImageStatusNone
	if imageURL != "" {
		imageStatus = models.ImageStatusPending
	}

	return models.Listing{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Portal:       strings.TrimSpace(raw.Portal),
		SourceID:     strings.TrimSpace(raw.SourceID),
		Title:        collapseSpaces(raw.Title),
		Price:        ParsePrice(raw.RawPrice),
		Currency:     MapCurrency(raw.RawCurrency),
		Neighborhood: collapseSpaces(raw.Neighborhood),
		AreaM2:       raw.AreaM2,
		Rooms:        raw.Rooms,
		AgencyName:   collapseSpaces(raw.Agency),
		AgencyPhone:  normalizePhone(raw.Phone),
		Link:         strings.TrimSpace(raw.Link),
		ImageURL:     imageURL,
		ImageStatus:  imageStatus,
		CreatedAt:    now,
	}
}

// NormalizeBatch converts a whole adapter batch, preserving order.
func (n *Normalizer) NormalizeBatch(raws []models.RawListing, projectID uuid.UUID, now time.Time) []models.Listing {
	listings := make([]models.Listing, 0, len(raws))
	for i := range raws {
		listings = append(listings, n.Normalize(&raws[i], projectID, now))
	}
	return listings
}

// ParsePrice strips everything that is not a digit and concatenates the
// remaining runs, so "U$S 120.000" and "$ 35,500" both parse. Anything
// without digits is 0, which excludes the listing from price matching.
func ParsePrice(raw string) int64 {
	digits := strings.Join(digitsRegex.FindAllString(raw, -1), "")
	if digits == "" {
		return 0
	}
	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return price
}

// MapCurrency maps portal currency markers onto the closed {USD, UYU} set.
func MapCurrency(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "USD", "U$S", "US$", "DOLARES", "DÓLARES":
		return models.CurrencyUSD
	case "UYU", "$", "$U", "PESOS":
		return models.CurrencyUYU
	}
	return models.CurrencyUSD
}

// normalizePhone keeps the original string; an empty or placeholder value
// becomes the "Consultar" sentinel so downstream code never sees "".
func normalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	if phone == "" || strings.EqualFold(phone, "consultar") {
		return models.PhoneUnknown
	}
	return phone
}

// absoluteImageURL resolves a relative image path against the portal's base
// URL. A portal we have no config for keeps whatever URL it sent.
func (n *Normalizer) absoluteImageURL(portal, imageURL string) string {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" || strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return imageURL
	}

	cfg, ok := n.portals[portal]
	if !ok || cfg.BaseURL == "" {
		return imageURL
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if strings.HasPrefix(imageURL, "//") {
		return "https:" + imageURL
	}
	if !strings.HasPrefix(imageURL, "/") {
		imageURL = "/" + imageURL
	}
	return base + imageURL
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
