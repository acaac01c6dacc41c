package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pipeline"
	"github.com/teranos/matinee/pool"
	"github.com/teranos/matinee/tmdb"
)

const (
	// seedLimit caps how many shared favorites feed the catalog lookup.
	seedLimit = 10

	// perListingLimit caps what each related listing contributes per seed.
	perListingLimit = 10

	// groupPickLimit caps the final fresh-picks list.
	groupPickLimit = 15
)

// Seed is a film the viewers loved in common, used to ask the catalog for
// related titles.
type Seed struct {
	ID      int     `json:"tmdb_id"`
	Title   string  `json:"title"`
	Average float64 `json:"average_stars"`
}

// GroupPick is a fresh suggestion drawn from the related listings of the
// viewers' shared favorites. Overlap counts how many seeds pointed at it.
type GroupPick struct {
	tmdb.Movie
	Overlap int `json:"overlap"`
}

// PairSeeds picks the shared favorites that carry a catalog id, best
// average first.
func PairSeeds(a, b User) []Seed {
	aFilms := filmsByTitle(compactFilms(a.Films))
	bFilms := filmsByTitle(compactFilms(b.Films))

	var seeds []Seed
	for _, title := range sharedTitles(aFilms, bFilms) {
		fa, fb := aFilms[title], bFilms[title]
		if fa.UserRating < favoriteStars || fb.UserRating < favoriteStars || fa.Movie.ID == 0 {
			continue
		}
		seeds = append(seeds, Seed{
			ID:      fa.Movie.ID,
			Title:   title,
			Average: (fa.UserRating + fb.UserRating) / 2,
		})
	}
	return capList(sortSeeds(seeds), seedLimit)
}

// GroupSeeds picks the group's safe bets that carry a catalog id, best
// average first. Same rule as the safe-bets list itself.
func GroupSeeds(users []User) []Seed {
	maps := make([]map[string]pool.Item, len(users))
	for i, u := range users {
		maps[i] = filmsByTitle(compactFilms(u.Films))
	}

	var seeds []Seed
	for title, views := range filmWatchers(maps) {
		if float64(len(views)) < float64(len(users))/2 {
			continue
		}
		raters, avg, lowest := viewingSummary(views)
		if raters < 2 || avg < favoriteStars || lowest < safeBetFloor {
			continue
		}
		if id := views[0].item.Movie.ID; id != 0 {
			seeds = append(seeds, Seed{ID: id, Title: title, Average: avg})
		}
	}
	return capList(sortSeeds(seeds), seedLimit)
}

func sortSeeds(seeds []Seed) []Seed {
	sort.SliceStable(seeds, func(i, j int) bool {
		if seeds[i].Average != seeds[j].Average {
			return seeds[i].Average > seeds[j].Average
		}
		return seeds[i].Title < seeds[j].Title
	})
	return seeds
}

// exclusion is everything the viewers have already seen, matched by catalog
// id or case-folded title.
type exclusion struct {
	ids    map[int]bool
	titles map[string]bool
}

func excludeAll(users []User) exclusion {
	seen := exclusion{ids: make(map[int]bool), titles: make(map[string]bool)}
	for _, u := range users {
		for _, it := range u.Films {
			if it.Movie == nil {
				continue
			}
			if it.Movie.ID != 0 {
				seen.ids[it.Movie.ID] = true
			}
			seen.titles[strings.ToLower(it.Movie.Title)] = true
		}
	}
	return seen
}

// freshPicks asks the catalog for titles related to the seeds, ranks them by
// how many seeds point at them, and enriches the survivors. A seed whose
// listings are unavailable is skipped; only authentication failures
// propagate. Picks the enrichment cannot resolve keep their basic listing
// record.
func (s *Service) freshPicks(ctx context.Context, log *zap.SugaredLogger, seeds []Seed, seen exclusion, emitter pipeline.Emitter) ([]GroupPick, error) {
	counts := make(map[int]int)
	basics := make(map[int]tmdb.RelatedMovie)
	for i, seed := range seeds {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		related, err := s.relatedFor(ctx, seed.ID)
		if err != nil {
			if errors.IsAuthentication(err) {
				return nil, err
			}
			log.Warnw("Skipping seed with unavailable related listings",
				logger.FieldTitle, seed.Title,
				logger.FieldError, err)
			continue
		}
		for _, rm := range related {
			if seen.ids[rm.ID] || seen.titles[strings.ToLower(rm.Title)] {
				continue
			}
			counts[rm.ID]++
			if _, ok := basics[rm.ID]; !ok {
				basics[rm.ID] = rm
			}
		}
		emitter.EmitProgress(pipeline.StageComparing,
			fmt.Sprintf("Collected fresh picks from %d/%d seeds", i+1, len(seeds)),
			i+1, len(seeds))
	}

	picks := make([]GroupPick, 0, len(counts))
	for id, overlap := range counts {
		rm := basics[id]
		picks = append(picks, GroupPick{
			Movie:   tmdb.Movie{ID: id, Title: rm.Title, Year: rm.Year},
			Overlap: overlap,
		})
	}
	sort.SliceStable(picks, func(i, j int) bool {
		if picks[i].Overlap != picks[j].Overlap {
			return picks[i].Overlap > picks[j].Overlap
		}
		return picks[i].Title < picks[j].Title
	})
	picks = capList(picks, groupPickLimit)

	for i := range picks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		movie, err := s.catalog.Details(ctx, picks[i].ID)
		if err != nil {
			if errors.IsAuthentication(err) {
				return nil, err
			}
			log.Debugw("Keeping unenriched pick",
				logger.FieldTitle, picks[i].Title,
				logger.FieldError, err)
			continue
		}
		picks[i].Movie = *movie
	}
	return picks, nil
}

// relatedFor merges the catalog's similar and recommendation listings for
// one seed, capped per listing and deduplicated by id.
func (s *Service) relatedFor(ctx context.Context, id int) ([]tmdb.RelatedMovie, error) {
	similar, err := s.catalog.Similar(ctx, id)
	if err != nil {
		return nil, err
	}
	recs, err := s.catalog.Recommendations(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := make([]tmdb.RelatedMovie, 0, 2*perListingLimit)
	merged = append(merged, capList(similar, perListingLimit)...)
	merged = append(merged, capList(recs, perListingLimit)...)

	seen := make(map[int]bool, len(merged))
	related := merged[:0]
	for _, rm := range merged {
		if rm.ID == 0 || seen[rm.ID] {
			continue
		}
		seen[rm.ID] = true
		related = append(related, rm)
	}
	return related, nil
}
