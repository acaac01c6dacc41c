// Package letterboxd scrapes public Letterboxd lists and profiles into the
// title/year entries the enrichment pipeline consumes. It only reads pages;
// matching, caching, and rate limiting live with the catalog client.
package letterboxd

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/internal/httpclient"
)

const (
	defaultBaseURL      = "https://letterboxd.com"
	defaultUserAgent    = "matinee (+https://github.com/teranos/matinee)"
	defaultFetchTimeout = 30 * time.Second

	// Politeness delays between page fetches. Profiles paginate deeper than
	// lists, so they get the longer one.
	defaultListDelay    = 500 * time.Millisecond
	defaultProfileDelay = time.Second
)

// Entry is one film scraped from a list or profile page. List entries carry
// title/year only; profile entries add the viewer's rating and flags.
type Entry struct {
	Title  string `json:"title"`
	Year   int    `json:"year,omitempty"` // 0 when the page carries no year
	Slug   string `json:"slug,omitempty"`
	FilmID string `json:"film_id,omitempty"`
	Link   string `json:"link,omitempty"`

	Rating   int  `json:"rating,omitempty"` // half-star units 1..10; 0 = unrated
	Liked    bool `json:"liked,omitempty"`
	Reviewed bool `json:"reviewed,omitempty"`
}

// Rated reports whether the entry carries a rating.
func (e Entry) Rated() bool { return e.Rating > 0 }

// Stars returns the rating in star units (0.5 to 5.0), 0 when unrated.
func (e Entry) Stars() float64 { return float64(e.Rating) / 2 }

// Scraper fetches and parses Letterboxd pages.
type Scraper struct {
	client       *httpclient.SaferClient
	baseURL      string
	userAgent    string
	maxPages     int
	listDelay    time.Duration
	profileDelay time.Duration
}

// Options configures a Scraper. Zero values keep defaults.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration // per-request timeout
	MaxPages  int           // pagination cap; 0 = unlimited

	// PageDelay overrides both politeness delays. Nil keeps the defaults;
	// pointing at zero disables waiting (tests).
	PageDelay *time.Duration

	// Client overrides the outbound client, e.g. httpclient.WrapClient for
	// httptest servers.
	Client *httpclient.SaferClient
}

// New creates a Scraper.
func New(opts Options) *Scraper {
	s := &Scraper{
		baseURL:      defaultBaseURL,
		userAgent:    defaultUserAgent,
		maxPages:     opts.MaxPages,
		listDelay:    defaultListDelay,
		profileDelay: defaultProfileDelay,
	}

	if opts.BaseURL != "" {
		s.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.UserAgent != "" {
		s.userAgent = opts.UserAgent
	}
	if opts.PageDelay != nil {
		s.listDelay = *opts.PageDelay
		s.profileDelay = *opts.PageDelay
	}

	timeout := defaultFetchTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	s.client = opts.Client
	if s.client == nil {
		s.client = httpclient.NewSaferClient(timeout)
	}

	return s
}

// FromConfig builds a Scraper from the letterboxd config section.
func FromConfig(cfg *config.Config) *Scraper {
	return New(Options{
		BaseURL:   cfg.Letterboxd.BaseURL,
		UserAgent: cfg.Letterboxd.UserAgent,
		Timeout:   time.Duration(cfg.Letterboxd.TimeoutSeconds) * time.Second,
		MaxPages:  cfg.Letterboxd.MaxPages,
	})
}

// fetchDocument GETs a page and parses it. The returned URL is the final one
// after redirects, which is what pagination must append to for short links.
func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", errors.Wrapf(err, "building request for %s", pageURL)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", errors.Wrapf(err, "fetching %s", pageURL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", errors.NewNotFoundError("page not found: %s", pageURL)
	case resp.StatusCode == http.StatusForbidden:
		return nil, "", errors.NewAccessDeniedError("access forbidden: %s", pageURL)
	case resp.StatusCode != http.StatusOK:
		return nil, "", errors.Newf("unexpected status %d fetching %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", errors.Wrapf(err, "parsing %s", pageURL)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return doc, finalURL, nil
}

// politeWait sleeps between page fetches, honoring cancellation.
func (s *Scraper) politeWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
