// Package pipeline orchestrates a recommendation run: scrape the input,
// match titles against the catalog, build the candidate pool, ask the model
// for picks, and resolve those picks back into displayable movies.
//
// The orchestrator owns the state machine and the abort rules; it knows
// nothing about transports. Callers pass an Emitter and receive the event
// stream through it, so the same Run serves SSE, WebSockets, and the CLI.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pool"
	"github.com/teranos/matinee/recommend"
	"github.com/teranos/matinee/tmdb"
)

// Default thresholds, applied when the config leaves them zero.
const (
	defaultMinMatches    = 5
	defaultLowMatchRatio = 0.5
	defaultMatchWorkers  = 8
)

// RecommendedMovie is one displayed pick: full catalog metadata plus the
// model's reasoning when explain mode is on.
type RecommendedMovie struct {
	tmdb.Movie
	Reason string `json:"reason,omitempty"`
}

// Stats summarizes how much of the input survived each stage.
type Stats struct {
	Scraped   int     `json:"scraped"`
	Matched   int     `json:"matched"`
	Unmatched int     `json:"unmatched"`
	MatchRate float64 `json:"match_rate"`
	// Partial is set when the match ratio fell below the configured floor
	// and the run proceeded on a thinner pool than the input suggested.
	Partial bool `json:"partial,omitempty"`
}

// Result is the terminal payload of a successful run.
type Result struct {
	RunID     string             `json:"run_id"`
	Source    string             `json:"source"`
	Requested int                `json:"requested"`
	Movies    []RecommendedMovie `json:"movies"`
	Stats     Stats              `json:"stats"`
}

// Partial reports whether the run delivered less than it was asked for,
// through thin matching or picks dropped during result enrichment.
func (r *Result) Partial() bool {
	return r.Stats.Partial || len(r.Movies) < r.Requested
}

// AbortError is returned when a run stops at a stage with a user-facing
// reason. It wraps the underlying cause, so sentinel checks like
// errors.IsAuthentication see through it.
type AbortError struct {
	Stage  Stage
	Reason string
	Err    error
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s aborted: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s aborted: %s", e.Stage, e.Reason)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Pipeline runs recommendation pipelines. Safe for concurrent use; each Run
// is independent.
type Pipeline struct {
	catalog    *tmdb.Client
	engine     *recommend.Engine
	minMatches int
	lowRatio   float64
	workers    int
	logger     *zap.SugaredLogger
}

// Options configures a Pipeline. Catalog and Engine are required; zero
// thresholds fall back to defaults.
type Options struct {
	Catalog *tmdb.Client
	Engine  *recommend.Engine

	// Rules carries the abort thresholds, usually straight from config.
	Rules config.PipelineConfig

	// MatchWorkers bounds concurrent catalog lookups during matching.
	MatchWorkers int

	Logger *zap.SugaredLogger // nil = component logger
}

// New creates a pipeline orchestrator.
func New(opts Options) *Pipeline {
	minMatches := opts.Rules.MinMatches
	if minMatches <= 0 {
		minMatches = defaultMinMatches
	}
	lowRatio := opts.Rules.LowMatchRatio
	if lowRatio <= 0 {
		lowRatio = defaultLowMatchRatio
	}
	workers := opts.MatchWorkers
	if workers <= 0 {
		workers = defaultMatchWorkers
	}
	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("pipeline")
	}
	return &Pipeline{
		catalog:    opts.Catalog,
		engine:     opts.Engine,
		minMatches: minMatches,
		lowRatio:   lowRatio,
		workers:    workers,
		logger:     log,
	}
}

// Request describes one run.
type Request struct {
	Source      Source
	Preferences string
	Explain     bool
}

// Run executes the pipeline for one input and streams lifecycle events to
// the emitter. It returns the result delivered via EmitComplete, or an error
// matching the EmitError event. A cancelled context returns ctx.Err() with
// no terminal event: the client is gone, and in-flight work is abandoned
// without touching the cache.
func (p *Pipeline) Run(ctx context.Context, req Request, emitter Emitter) (*Result, error) {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	runID := uuid.New().String()
	log := logger.ChildLogger(p.logger, logger.FieldRunID, runID)
	start := time.Now()

	log.Infow("Pipeline run starting",
		"source", req.Source.Describe(),
		"explain", req.Explain)

	items, stats, err := p.gather(ctx, log, req.Source, emitter)
	if err != nil {
		return nil, err
	}
	if stats.Matched < p.minMatches {
		return nil, p.abort(log, emitter, StageMatching, "insufficient matches",
			errors.Newf("need at least %d matched movies, got %d of %d", p.minMatches, stats.Matched, stats.Scraped))
	}
	if stats.MatchRate < p.lowRatio {
		stats.Partial = true
		log.Warnw("Low match ratio, proceeding with partial pool",
			logger.FieldMatched, stats.Matched,
			logger.FieldTotal, stats.Scraped,
			"ratio", stats.MatchRate)
	}

	// Pool building.
	emitter.EmitStage(StagePoolBuilding, "Building candidate pool")
	candidates := pool.Build(items)
	emitter.EmitStageComplete(StagePoolBuilding, fmt.Sprintf("Pool of %d entries ready", len(candidates)))

	// Recommending.
	requested := p.engine.Count()
	emitter.EmitStage(StageRecommending, fmt.Sprintf("Asking the model for %d picks", requested))
	recs, err := p.engine.Recommend(ctx, recommend.Request{
		Pool:        candidates,
		Preferences: req.Preferences,
		Explain:     req.Explain,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.IsAuthentication(err) {
			return nil, p.abort(log, emitter, StageRecommending, "AI provider authentication failed", err)
		}
		return nil, p.abort(log, emitter, StageRecommending, "recommendation generation failed", err)
	}
	emitter.EmitStageComplete(StageRecommending, fmt.Sprintf("Model returned %d picks", len(recs)))

	// Result enrichment.
	emitter.EmitStage(StageResultEnrichment, "Resolving picks against the catalog")
	movies, err := p.enrichPicks(ctx, log, recs, emitter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, p.abort(log, emitter, StageResultEnrichment, "catalog authentication failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emitter.EmitStageComplete(StageResultEnrichment,
		fmt.Sprintf("Resolved %d/%d picks", len(movies), len(recs)))

	result := &Result{
		RunID:     runID,
		Source:    req.Source.Describe(),
		Requested: requested,
		Movies:    movies,
		Stats:     stats,
	}
	log.Infow("Pipeline run complete",
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		logger.FieldMatched, stats.Matched,
		logger.FieldTotal, stats.Scraped,
		logger.FieldCount, len(movies),
		"partial", result.Partial())
	emitter.EmitComplete(result)
	return result, nil
}

// Gather runs only the scraping and matching stages and returns the rated,
// catalog-matched items in scrape order. Flows that consume the matched
// films directly, like profile analysis, compose around this instead of Run.
// Zero matches is not an abort here; callers apply their own floor.
func (p *Pipeline) Gather(ctx context.Context, source Source, emitter Emitter) ([]pool.Item, Stats, error) {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return p.gather(ctx, p.logger, source, emitter)
}

func (p *Pipeline) gather(ctx context.Context, log *zap.SugaredLogger, source Source, emitter Emitter) ([]pool.Item, Stats, error) {
	emitter.EmitStage(StageScraping, "Scraping "+source.Describe())
	entries, err := source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Stats{}, ctx.Err()
		}
		return nil, Stats{}, p.abort(log, emitter, StageScraping, fetchFailureReason(source, err), err)
	}
	if len(entries) == 0 {
		return nil, Stats{}, p.abort(log, emitter, StageScraping, "no movies found", nil)
	}
	emitter.EmitStageComplete(StageScraping, fmt.Sprintf("Found %d movies", len(entries)))

	emitter.EmitStage(StageMatching, fmt.Sprintf("Matching %d titles against the catalog", len(entries)))
	items, err := p.matchEntries(ctx, log, entries, emitter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Stats{}, ctx.Err()
		}
		if errors.IsAuthentication(err) {
			return nil, Stats{}, p.abort(log, emitter, StageMatching, "catalog authentication failed", err)
		}
		return nil, Stats{}, p.abort(log, emitter, StageMatching, "matching failed", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{
		Scraped:   len(entries),
		Matched:   len(items),
		Unmatched: len(entries) - len(items),
		MatchRate: float64(len(items)) / float64(len(entries)),
	}
	emitter.EmitStageComplete(StageMatching,
		fmt.Sprintf("Matched %d/%d movies (%.1f%%)", stats.Matched, stats.Scraped, 100*stats.MatchRate))
	return items, stats, nil
}

// enrichPicks resolves model picks back against the catalog so the display
// list carries posters and full metadata. Unresolvable picks are dropped in
// place; the surviving picks keep the model's order. Only an authentication
// failure is returned, everything else is isolation territory.
func (p *Pipeline) enrichPicks(ctx context.Context, log *zap.SugaredLogger, recs []recommend.Recommendation, emitter Emitter) ([]RecommendedMovie, error) {
	movies := make([]RecommendedMovie, 0, len(recs))
	for _, rec := range recs {
		if ctx.Err() != nil {
			return movies, nil
		}
		movie, err := p.catalog.Find(ctx, rec.Title, rec.Year)
		if err != nil {
			if errors.IsAuthentication(err) {
				return nil, err
			}
			log.Warnw("Dropping unresolvable pick",
				logger.FieldTitle, rec.Title,
				logger.FieldYear, rec.Year,
				logger.FieldError, err)
			continue
		}
		movies = append(movies, RecommendedMovie{Movie: *movie, Reason: rec.Reason})
		emitter.EmitProgress(StageResultEnrichment,
			fmt.Sprintf("Resolved %d/%d picks", len(movies), len(recs)),
			len(movies), len(recs))
	}
	return movies, nil
}

// Abort emits the terminal error event and returns the matching AbortError,
// for flows composed around Gather that hit their own failure conditions.
func (p *Pipeline) Abort(emitter Emitter, stage Stage, reason string, cause error) error {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return p.abort(p.logger, emitter, stage, reason, cause)
}

// abort logs the failure, emits the terminal error event, and returns the
// matching AbortError. Every non-isolated failure funnels through here, which
// is what keeps "exactly one terminal event" true.
func (p *Pipeline) abort(log *zap.SugaredLogger, emitter Emitter, stage Stage, reason string, cause error) error {
	log.Errorw("Pipeline run aborted",
		logger.FieldStage, stage,
		"reason", reason,
		logger.FieldError, cause)
	emitter.EmitError(stage, reason)
	return &AbortError{Stage: stage, Reason: reason, Err: cause}
}

// fetchFailureReason maps a scrape failure onto the one-line reason users
// see. Detail stays in the logs.
func fetchFailureReason(src Source, err error) string {
	switch {
	case errors.IsMalformedInput(err):
		return "invalid " + src.Describe()
	case errors.IsNotFound(err):
		return src.Describe() + " not found"
	case errors.IsAccessDenied(err):
		return src.Describe() + " is private"
	default:
		return "failed to fetch " + src.Describe()
	}
}
