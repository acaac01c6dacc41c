package commands

import (
	"os"

	"github.com/teranos/matinee/ai/llm"
	"github.com/teranos/matinee/ai/provider"
	"github.com/teranos/matinee/ai/tracker"
	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pipeline"
	"github.com/teranos/matinee/profile"
	"github.com/teranos/matinee/recommend"
	"github.com/teranos/matinee/tmdb"
)

// app is the assembled application: every command that runs the pipeline
// builds one of these from config and tears it down when it returns.
type app struct {
	cfg      *config.Config
	scraper  *letterboxd.Scraper
	cache    *tmdb.Cache
	catalog  *tmdb.Client
	ai       *provider.Switchable
	usage    *tracker.Tracker
	pipe     *pipeline.Pipeline
	profiles *profile.Service
}

// newApp loads configuration and wires the full pipeline stack. The AI
// client is wrapped in a Switchable so the serve command can swap it on
// config reload; one-shot commands never touch the swap.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	logger.SetTheme(cfg.GetServerLogTheme())

	client, err := provider.NewAIClient(cfg, logger.ComponentLogger("ai"))
	if err != nil {
		return nil, err
	}
	usage := tracker.NewTracker()
	ai := provider.NewSwitchable(tracker.Wrap(client, usage, string(provider.ActiveProvider(cfg))))

	scraper := letterboxd.FromConfig(cfg)
	cache := tmdb.NewCache()
	catalog := tmdb.FromConfig(cfg.TMDB, cache, tmdb.NewLimiter(cfg.TMDB.RateOps, cfg.TMDB.RateWindowSeconds))

	pipe := pipeline.New(pipeline.Options{
		Catalog:      catalog,
		Engine:       recommend.New(recommend.Options{Client: ai, Count: cfg.Pipeline.RecommendationCount}),
		Rules:        cfg.Pipeline,
		MatchWorkers: cfg.GetMatchWorkers(),
	})

	profiles := profile.NewService(profile.Options{
		Pipeline: pipe,
		Scraper:  scraper,
		Catalog:  catalog,
		AI:       ai,
	})

	return &app{
		cfg:      cfg,
		scraper:  scraper,
		cache:    cache,
		catalog:  catalog,
		ai:       ai,
		usage:    usage,
		pipe:     pipe,
		profiles: profiles,
	}, nil
}

// jsonMode resolves whether a run's output should be machine readable: the
// --json flag, or an AI agent detected driving the terminal.
func jsonMode(flag bool) bool {
	return flag || llm.IsAgentEnvironment()
}

// emitterFor picks the progress surface for a one-shot run: JSON lines on
// stdout for --json, pterm spinners otherwise.
func emitterFor(jsonOutput bool, verbosity int) pipeline.Emitter {
	if jsonOutput {
		return pipeline.NewJSONEmitter(os.Stdout)
	}
	return pipeline.NewCLIEmitter(verbosity)
}
