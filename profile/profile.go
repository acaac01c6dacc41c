// Package profile turns matched viewing histories into taste breakdowns:
// per-viewer analysis, pairwise and group comparisons, and fresh picks for
// watch parties. Analyze, ComparePair, and CompareGroup are pure functions;
// only the taste-profile generation and the fresh-picks lookup touch the
// network, and both live on Service.
//
// Viewer ratings are carried in stars (0 to 5 in halves, 0 = unrated).
// Catalog vote averages keep their native 10-point scale; fields that mix
// the two say so.
package profile

import (
	"math"
	"sort"

	"github.com/teranos/matinee/pool"
)

// User is one viewer's matched history: the films that resolved against the
// catalog, with star ratings where the profile carried them.
type User struct {
	Username string
	Films    []pool.Item
}

// Rating thresholds on the star scale.
const (
	favoriteStars = 4.0 // at or above counts as loved
	dislikeStars  = 2.0 // at or below counts as disliked
)

// roundHalfStar rounds to the nearest half star, the grain ratings come in.
func roundHalfStar(v float64) float64 { return math.Round(v*2) / 2 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// rated reports whether the viewer actually scored the film.
func rated(it pool.Item) bool { return it.UserRating > 0 }

// compactFilms drops items without a catalog record so everything downstream
// can assume Movie is present.
func compactFilms(films []pool.Item) []pool.Item {
	out := make([]pool.Item, 0, len(films))
	for _, it := range films {
		if it.Movie != nil {
			out = append(out, it)
		}
	}
	return out
}

// filmsByTitle indexes films by title; the first occurrence of a duplicate
// title wins.
func filmsByTitle(films []pool.Item) map[string]pool.Item {
	byTitle := make(map[string]pool.Item, len(films))
	for _, it := range films {
		if _, dup := byTitle[it.Movie.Title]; !dup {
			byTitle[it.Movie.Title] = it
		}
	}
	return byTitle
}

// sharedTitles returns the titles both maps hold, sorted for deterministic
// iteration.
func sharedTitles(a, b map[string]pool.Item) []string {
	var shared []string
	for title := range a {
		if _, ok := b[title]; ok {
			shared = append(shared, title)
		}
	}
	sort.Strings(shared)
	return shared
}

func capList[T any](list []T, limit int) []T {
	if len(list) > limit {
		return list[:limit]
	}
	return list
}

// firstNames projects up to n display names out of a stat list.
func firstNames[T any](items []T, n int, name func(T) string) []string {
	names := make([]string, 0, n)
	for _, it := range items {
		if len(names) == n {
			break
		}
		names = append(names, name(it))
	}
	return names
}
