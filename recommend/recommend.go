// Package recommend turns a candidate pool into a ranked recommendation
// list through a single LLM call. The reply must satisfy a strict JSON
// contract; one stricter-format retry is allowed before the run fails with
// the recommendation-parse sentinel. There is no local fallback: when the
// model cannot produce a usable list, the caller aborts.
package recommend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/teranos/matinee/ai/openrouter"
	"github.com/teranos/matinee/ai/provider"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pool"
)

// DefaultCount is the recommendation list size when none is configured.
const DefaultCount = 10

// Recommendation is one model pick. Reason is populated only in explain
// mode.
type Recommendation struct {
	Title  string `json:"title"`
	Year   int    `json:"year"`
	Reason string `json:"reason,omitempty"`
}

// Request carries one recommendation call.
type Request struct {
	Pool        []pool.Entry
	Preferences string // free-text taste hints, may be empty
	Explain     bool   // ask the model for a per-pick reason
}

// Engine drives the prompt/parse cycle against an AI client.
type Engine struct {
	ai     provider.AIClient
	count  int
	logger *zap.SugaredLogger
}

// Options configures an Engine.
type Options struct {
	Client provider.AIClient
	Count  int                // 0 = DefaultCount
	Logger *zap.SugaredLogger // nil = component logger
}

// New creates a recommendation engine.
func New(opts Options) *Engine {
	count := opts.Count
	if count <= 0 {
		count = DefaultCount
	}
	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("recommend")
	}
	return &Engine{
		ai:     opts.Client,
		count:  count,
		logger: log,
	}
}

// Count returns how many picks the engine requests per run.
func (e *Engine) Count() int { return e.count }

// Recommend asks the model for exactly the configured number of picks.
// An unparseable or wrong-sized reply triggers one retry with a stricter
// formatting instruction appended; a second failure surfaces as
// ErrRecommendationParse. Transport and authentication errors pass through
// untouched so callers can distinguish them from contract violations.
func (e *Engine) Recommend(ctx context.Context, req Request) ([]Recommendation, error) {
	if len(req.Pool) == 0 {
		return nil, errors.New("empty candidate pool")
	}

	system := buildSystemPrompt(e.count, req.Explain)
	user := buildUserPrompt(req.Pool, req.Preferences, e.count)

	e.logger.Infow("Requesting recommendations",
		"pool_size", len(req.Pool),
		logger.FieldCount, e.count,
		"explain", req.Explain,
	)

	resp, err := e.ai.Chat(ctx, openrouter.ChatRequest{
		SystemPrompt: system,
		UserPrompt:   user,
	})
	if err != nil {
		return nil, errors.Wrap(err, "recommendation request failed")
	}

	recs, parseErr := parseReply(resp.Content, e.count, req.Explain)
	if parseErr == nil {
		e.logger.Infow("Generated recommendations", logger.FieldCount, len(recs), "attempts", 1)
		return recs, nil
	}

	e.logger.Warnw("Recommendation reply failed validation, retrying with stricter format",
		logger.FieldError, parseErr,
		"reply_length", len(resp.Content),
	)

	strictUser := user + fmt.Sprintf(strictRetryInstruction, e.count)
	resp, err = e.ai.Chat(ctx, openrouter.ChatRequest{
		SystemPrompt: system,
		UserPrompt:   strictUser,
	})
	if err != nil {
		return nil, errors.Wrap(err, "recommendation request failed")
	}

	recs, parseErr = parseReply(resp.Content, e.count, req.Explain)
	if parseErr != nil {
		return nil, errors.Wrap(errors.ErrRecommendationParse, parseErr.Error())
	}

	e.logger.Infow("Generated recommendations", logger.FieldCount, len(recs), "attempts", 2)
	return recs, nil
}
