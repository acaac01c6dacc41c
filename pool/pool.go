// Package pool projects matched catalog records into the compact candidate
// pool the recommendation prompt is built from. The projection is
// deterministic: the same matched movies always produce the same pool, which
// keeps the prompt byte-stable and the LLM's context small.
package pool

import (
	"github.com/teranos/matinee/internal/util"
	"github.com/teranos/matinee/tmdb"
)

const (
	genreLimit    = 3
	castLimit     = 3
	keywordLimit  = 4
	overviewLimit = 150
)

// Entry is one candidate pool line: just enough metadata for the model to
// infer taste without drowning it in detail.
type Entry struct {
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Director   string   `json:"director,omitempty"`
	Cast       []string `json:"cast,omitempty"`
	Rating     float64  `json:"rating,omitempty"`
	UserRating float64  `json:"user_rating,omitempty"` // stars, 0 = unrated
	Overview   string   `json:"overview,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
}

// Item is one matched movie entering the pool, carrying the viewer's star
// rating when the source had one (profile runs; list runs leave it 0).
type Item struct {
	Movie      *tmdb.Movie
	UserRating float64
}

// Build projects items into pool entries, deduplicating by catalog id.
// The first occurrence wins and input order is preserved.
func Build(items []Item) []Entry {
	seen := make(map[int]struct{}, len(items))
	entries := make([]Entry, 0, len(items))

	for _, it := range items {
		if it.Movie == nil {
			continue
		}
		if _, dup := seen[it.Movie.ID]; dup {
			continue
		}
		seen[it.Movie.ID] = struct{}{}
		entries = append(entries, project(it))
	}
	return entries
}

// FromMovies wraps bare catalog records as unrated items.
func FromMovies(movies []*tmdb.Movie) []Item {
	items := make([]Item, 0, len(movies))
	for _, m := range movies {
		items = append(items, Item{Movie: m})
	}
	return items
}

func project(it Item) Entry {
	m := it.Movie
	return Entry{
		Title:      m.Title,
		Year:       m.Year,
		Genres:     firstN(m.Genres, genreLimit),
		Director:   m.Director,
		Cast:       firstN(m.Cast, castLimit),
		Rating:     m.Rating,
		UserRating: it.UserRating,
		Overview:   util.TruncateWithEllipsis(util.CollapseWhitespace(m.Overview), overviewLimit),
		Keywords:   firstN(m.Keywords, keywordLimit),
	}
}

// firstN copies up to n values so pool entries never alias cached records.
func firstN(values []string, n int) []string {
	if len(values) == 0 {
		return nil
	}
	if len(values) > n {
		values = values[:n]
	}
	return append([]string(nil), values...)
}
