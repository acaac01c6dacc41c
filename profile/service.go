package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/matinee/ai/provider"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pipeline"
	"github.com/teranos/matinee/tmdb"
)

// Group size bounds for comparisons.
const (
	MinCompareUsers = 2
	MaxCompareUsers = 5
)

// Service runs the profile flows end to end: scrape, match, then analyze or
// compare. Safe for concurrent use; each call is independent.
type Service struct {
	pipe    *pipeline.Pipeline
	scraper *letterboxd.Scraper
	catalog *tmdb.Client
	ai      provider.AIClient
	logger  *zap.SugaredLogger
}

// Options configures a Service. Pipeline, Scraper, and Catalog are required.
// AI is optional; without it the analysis skips the generated taste profile
// and everything else still runs in full.
type Options struct {
	Pipeline *pipeline.Pipeline
	Scraper  *letterboxd.Scraper
	Catalog  *tmdb.Client
	AI       provider.AIClient
	Logger   *zap.SugaredLogger // nil = component logger
}

// NewService creates a profile service.
func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("profile")
	}
	return &Service{
		pipe:    opts.Pipeline,
		scraper: opts.Scraper,
		catalog: opts.Catalog,
		ai:      opts.AI,
		logger:  log,
	}
}

// Comparison is the terminal payload of Compare. Exactly one of Pair or
// Group is set, by group size.
type Comparison struct {
	Pair  *PairComparison  `json:"pair,omitempty"`
	Group *GroupComparison `json:"group,omitempty"`
}

// Analyze scrapes one viewer's rated films, matches them against the
// catalog, and builds the full taste breakdown. Event and error semantics
// follow pipeline.Run: exactly one terminal event, none on cancellation.
func (s *Service) Analyze(ctx context.Context, username string, emitter pipeline.Emitter) (*Analysis, error) {
	if emitter == nil {
		emitter = pipeline.NopEmitter{}
	}
	runID := uuid.New().String()
	log := logger.ChildLogger(s.logger, logger.FieldRunID, runID)
	start := time.Now()

	log.Infow("Profile analysis starting", logger.FieldUsername, username)

	films, stats, err := s.pipe.Gather(ctx, pipeline.ProfileSource{Scraper: s.scraper, Username: username}, emitter)
	if err != nil {
		return nil, err
	}
	if stats.Matched == 0 {
		return nil, s.pipe.Abort(emitter, pipeline.StageMatching, "insufficient matches",
			errors.Newf("no films matched for %s", username))
	}

	emitter.EmitStage(pipeline.StageAnalyzing, fmt.Sprintf("Analyzing %d films", len(films)))
	analysis := Analyze(username, films)
	if s.ai != nil {
		analysis.AIProfile = GenerateTasteProfile(ctx, s.ai, analysis, log)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emitter.EmitStageComplete(pipeline.StageAnalyzing, "Taste profile ready")

	log.Infow("Profile analysis complete",
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		logger.FieldUsername, username,
		logger.FieldMatched, stats.Matched,
		logger.FieldTotal, stats.Scraped)
	emitter.EmitComplete(analysis)
	return analysis, nil
}

// Compare scrapes every viewer in turn and builds the pairwise or group
// comparison, plus fresh picks where the catalog can seed them. Group size
// is validated before any events fire.
func (s *Service) Compare(ctx context.Context, usernames []string, emitter pipeline.Emitter) (*Comparison, error) {
	if emitter == nil {
		emitter = pipeline.NopEmitter{}
	}
	if len(usernames) < MinCompareUsers || len(usernames) > MaxCompareUsers {
		return nil, errors.NewMalformedInputError("comparison needs %d to %d users, got %d",
			MinCompareUsers, MaxCompareUsers, len(usernames))
	}
	runID := uuid.New().String()
	log := logger.ChildLogger(s.logger, logger.FieldRunID, runID)
	start := time.Now()

	log.Infow("Comparison starting", "users", usernames)

	users := make([]User, 0, len(usernames))
	for _, username := range usernames {
		films, stats, err := s.pipe.Gather(ctx, pipeline.ProfileSource{Scraper: s.scraper, Username: username}, emitter)
		if err != nil {
			return nil, err
		}
		if stats.Matched == 0 {
			return nil, s.pipe.Abort(emitter, pipeline.StageMatching, "insufficient matches",
				errors.Newf("no films matched for %s", username))
		}
		users = append(users, User{Username: username, Films: films})
	}

	emitter.EmitStage(pipeline.StageComparing, fmt.Sprintf("Comparing %d taste profiles", len(users)))

	result := &Comparison{}
	var seeds []Seed
	if len(users) == 2 {
		result.Pair = ComparePair(users[0], users[1])
		seeds = PairSeeds(users[0], users[1])
	} else {
		result.Group = CompareGroup(users)
		seeds = GroupSeeds(users)
	}

	picks, err := s.freshPicks(ctx, log, seeds, excludeAll(users), emitter)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, s.pipe.Abort(emitter, pipeline.StageComparing, "catalog authentication failed", err)
	}
	if result.Pair != nil {
		result.Pair.FreshPicks = picks
	} else {
		result.Group.GroupPicks = picks
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emitter.EmitStageComplete(pipeline.StageComparing, "Comparison ready")

	log.Infow("Comparison complete",
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		logger.FieldCount, len(users))
	emitter.EmitComplete(result)
	return result, nil
}
