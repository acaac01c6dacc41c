package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pool"
	"github.com/teranos/matinee/tmdb"
)

// Progress cadence during matching. One event per title would flood slow
// transports on big lists.
const matchProgressEvery = 5

// matchEntries resolves scraped entries against the catalog with at most
// p.workers lookups in flight. Completion order is nondeterministic, so
// results are written into an index-aligned slice and reassembled in scrape
// order afterwards. Unmatched titles and transient lookup failures are
// skipped; an authentication failure cancels the whole batch.
func (p *Pipeline) matchEntries(ctx context.Context, log *zap.SugaredLogger, entries []letterboxd.Entry, emitter Emitter) ([]pool.Item, error) {
	results := make([]*tmdb.Movie, len(entries))

	var mu sync.Mutex
	completed := 0
	matched := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			movie, err := p.catalog.Find(gctx, entry.Title, entry.Year)
			switch {
			case err == nil:
				results[i] = movie
			case errors.IsAuthentication(err):
				return err
			case gctx.Err() != nil:
				return gctx.Err()
			case errors.IsNotMatched(err):
				log.Debugw("No catalog match",
					logger.FieldTitle, entry.Title,
					logger.FieldYear, entry.Year)
			default:
				log.Warnw("Catalog lookup failed, skipping title",
					logger.FieldTitle, entry.Title,
					logger.FieldYear, entry.Year,
					logger.FieldError, err)
			}

			// Emitting under the lock keeps the counters monotonic on the
			// wire even though lookups finish out of order.
			mu.Lock()
			completed++
			if results[i] != nil {
				matched++
			}
			if gctx.Err() == nil && (completed%matchProgressEvery == 0 || completed == len(entries)) {
				emitter.EmitProgress(StageMatching,
					fmt.Sprintf("Matched %d/%d movies", matched, completed),
					matched, len(entries))
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]pool.Item, 0, len(entries))
	for i, movie := range results {
		if movie == nil {
			continue
		}
		items = append(items, pool.Item{Movie: movie, UserRating: entries[i].Stars()})
	}
	return items, nil
}
