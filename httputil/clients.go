package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"propwatch/config"
)

type Clients struct {
	Scraping *http.Client // optionally proxied, for portal sites
	API      *http.Client // direct, for image CDNs and internal calls
}

// NewClients builds the two shared HTTP clients. The scraping client does
// not follow redirects: portals answer 301/302 for delisted pages and we
// want to see that status, not the landing page.
func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	scraping := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			scraping.Transport = &http.Transport{
				Proxy:             http.ProxyURL(proxyURL),
				ForceAttemptHTTP2: false,
				TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
			}
		}
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
