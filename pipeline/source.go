package pipeline

import (
	"context"

	"github.com/teranos/matinee/letterboxd"
)

// Source yields the raw entries a run works on. The orchestrator is
// parameterized by Source, so list runs and profile runs share one state
// machine; only the scrape differs.
type Source interface {
	// Describe names the input for logs and progress messages,
	// e.g. "list https://..." or "profile dave".
	Describe() string

	// Fetch scrapes the raw entries.
	Fetch(ctx context.Context) ([]letterboxd.Entry, error)
}

// ListSource feeds a run from a public list URL.
type ListSource struct {
	Scraper *letterboxd.Scraper
	URL     string
}

func (s ListSource) Describe() string { return "list " + s.URL }

func (s ListSource) Fetch(ctx context.Context) ([]letterboxd.Entry, error) {
	return s.Scraper.FetchList(ctx, s.URL)
}

// ProfileSource feeds a run from a user's rated films. Ratings ride along on
// the entries and end up in the candidate pool, which lets the model weight
// loved films over merely watched ones.
type ProfileSource struct {
	Scraper  *letterboxd.Scraper
	Username string
}

func (s ProfileSource) Describe() string { return "profile " + s.Username }

func (s ProfileSource) Fetch(ctx context.Context) ([]letterboxd.Entry, error) {
	return s.Scraper.FetchProfile(ctx, s.Username)
}
