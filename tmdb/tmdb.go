// Package tmdb is the catalog client. It resolves scraped title/year pairs
// to full movie records via staged fuzzy search, enriches them with credits,
// keywords, and certifications, and lists related titles. All consumers share
// one process-wide cache and token-bucket limiter pair, passed in explicitly.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/internal/httpclient"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultLanguage = "en-US"
	defaultTimeout  = 15 * time.Second

	defaultRateOps    = 40
	defaultRateWindow = 10 * time.Second

	// castLimit bounds the billed cast carried on a Movie.
	castLimit = 5

	posterBaseURL = "https://image.tmdb.org/t/p/w500"
)

// Movie is a fully enriched catalog record. Immutable once cached.
type Movie struct {
	ID            int      `json:"tmdb_id"`
	Title         string   `json:"title"`
	Year          int      `json:"year,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Director      string   `json:"director,omitempty"`
	Cast          []string `json:"cast,omitempty"`
	Overview      string   `json:"overview,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	VoteCount     int      `json:"vote_count,omitempty"`
	Popularity    float64  `json:"popularity,omitempty"`
	Runtime       int      `json:"runtime,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Certification string   `json:"certification,omitempty"`
	PosterURL     string   `json:"poster_url,omitempty"`
}

// RelatedMovie is a lightweight entry from the similar/recommendations
// listings, enriched via Find only when actually needed.
type RelatedMovie struct {
	ID    int    `json:"tmdb_id"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

// Client talks to the catalog API. Safe for concurrent use.
type Client struct {
	http     *httpclient.SaferClient
	baseURL  string
	apiKey   string
	language string
	limiter  *rate.Limiter
	retry    RetryPolicy
	cache    *Cache
}

// Options configures a Client. Limiter and Cache are the shared pair built in
// the composition root; nil values get private instances, which is what tests
// and one-shot CLI runs want.
type Options struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration

	Limiter *rate.Limiter
	Cache   *Cache
	Retry   *RetryPolicy

	// Client overrides the outbound client, e.g. httpclient.WrapClient for
	// httptest servers.
	Client *httpclient.SaferClient
}

// New creates a catalog client.
func New(opts Options) *Client {
	c := &Client{
		apiKey:   opts.APIKey,
		baseURL:  defaultBaseURL,
		language: defaultLanguage,
		limiter:  opts.Limiter,
		cache:    opts.Cache,
		retry:    DefaultRetryPolicy(),
	}

	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	if opts.Language != "" {
		c.language = opts.Language
	}
	if opts.Retry != nil {
		c.retry = *opts.Retry
	}
	if c.retry.Retryable == nil {
		c.retry.Retryable = isTransient
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(0, 0)
	}
	if c.cache == nil {
		c.cache = NewCache()
	}

	timeout := defaultTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	c.http = opts.Client
	if c.http == nil {
		c.http = httpclient.NewSaferClient(timeout)
	}

	return c
}

// FromConfig builds a client around the shared cache/limiter pair.
func FromConfig(cfg config.TMDBConfig, cache *Cache, limiter *rate.Limiter) *Client {
	retry := DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryBaseMS > 0 {
		retry.BaseDelay = time.Duration(cfg.RetryBaseMS) * time.Millisecond
	}
	if cfg.RetryMaxMS > 0 {
		retry.MaxDelay = time.Duration(cfg.RetryMaxMS) * time.Millisecond
	}

	return New(Options{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Language: cfg.Language,
		Limiter:  limiter,
		Cache:    cache,
		Retry:    &retry,
	})
}

// NewLimiter builds the catalog token bucket: ops operations per rolling
// window, process-wide. Callers suspend on Wait until a slot frees; the
// ceiling never fails a request.
func NewLimiter(ops, windowSeconds int) *rate.Limiter {
	if ops <= 0 {
		ops = defaultRateOps
	}
	window := defaultRateWindow
	if windowSeconds > 0 {
		window = time.Duration(windowSeconds) * time.Second
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(ops)), ops)
}

// Find resolves a (title, year) pair to an enriched Movie, cache first.
// Concurrent calls for the same normalized key share one upstream fetch.
// A miss that cannot be matched returns ErrNotMatched and caches nothing.
func (c *Client) Find(ctx context.Context, title string, year int) (*Movie, error) {
	return c.cache.Fetch(Key(title, year), func() (*Movie, error) {
		id, err := c.Search(ctx, title, year)
		if err != nil {
			return nil, err
		}
		return c.Details(ctx, id)
	})
}

// CacheSize reports how many movies the shared cache holds.
func (c *Client) CacheSize() int { return c.cache.Len() }

// apiError carries the upstream HTTP status for retry classification.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog responded %d", e.Status)
	}
	return fmt.Sprintf("catalog responded %d: %s", e.Status, e.Message)
}

type errorBody struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// get performs one rate-limited API call and decodes the response into out.
// It runs inside the retry loop, so every attempt waits for a limiter slot.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "waiting for catalog rate limit")
	}

	q := url.Values{}
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("api_key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrapf(err, "building catalog request %s", path)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "catalog request %s", path)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return errors.NewAuthenticationError("catalog rejected the API key")
	case http.StatusNotFound:
		return errors.NewNotFoundError("catalog resource %s not found", path)
	default:
		var body errorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &apiError{Status: resp.StatusCode, Message: body.StatusMessage}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding catalog response for %s", path)
	}
	return nil
}

func (c *Client) getWithRetry(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.retry.Do(ctx, func() error {
		return c.get(ctx, path, query, out)
	})
}

// isTransient is the default retryable predicate: throttling, server errors,
// and network-level failures. Authentication and not-found are final.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var api *apiError
	if errors.As(err, &api) {
		return api.Status == http.StatusTooManyRequests || api.Status >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
