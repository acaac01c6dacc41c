package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/pipeline"
	"github.com/teranos/matinee/profile"
)

// Run kinds shared by the JSON, SSE, and WebSocket surfaces.
const (
	runRecommend        = "recommend"
	runProfileRecommend = "profile_recommend"
	runAnalyze          = "analyze"
	runCompare          = "compare"
)

// runRequest is one unit of work, however it arrived.
type runRequest struct {
	Kind        string
	URL         string
	Username    string
	Users       []string
	Preferences string
	Explain     bool
}

// validateRun normalizes the request in place and rejects anything a run
// would refuse anyway. Streaming surfaces call this before switching
// protocols, so bad input gets a plain HTTP error instead of a stream with
// no terminal event.
func (s *Server) validateRun(req *runRequest) error {
	switch req.Kind {
	case runRecommend:
		// Validation only; the scraper normalizes the URL itself at fetch
		// time, against its configured base.
		if _, err := letterboxd.ValidateListURL(req.URL); err != nil {
			return err
		}
	case runProfileRecommend, runAnalyze:
		username, err := letterboxd.ValidateUsername(req.Username)
		if err != nil {
			return err
		}
		req.Username = username
	case runCompare:
		if len(req.Users) < profile.MinCompareUsers || len(req.Users) > profile.MaxCompareUsers {
			return errors.NewMalformedInputError("comparison needs %d to %d users, got %d",
				profile.MinCompareUsers, profile.MaxCompareUsers, len(req.Users))
		}
		for i, u := range req.Users {
			username, err := letterboxd.ValidateUsername(u)
			if err != nil {
				return err
			}
			req.Users[i] = username
		}
	default:
		return errors.NewMalformedInputError("unknown run type %q", req.Kind)
	}
	return nil
}

// executeRun dispatches a validated request to the owning flow and returns
// its terminal payload. Lifecycle events go to the emitter; by the time this
// returns, the emitter has seen the terminal event for every failure except
// cancellation.
func (s *Server) executeRun(ctx context.Context, req runRequest, emitter pipeline.Emitter) (interface{}, error) {
	switch req.Kind {
	case runRecommend:
		return s.pipe.Run(ctx, pipeline.Request{
			Source:      pipeline.ListSource{Scraper: s.scraper, URL: req.URL},
			Preferences: req.Preferences,
			Explain:     req.Explain,
		}, emitter)
	case runProfileRecommend:
		return s.pipe.Run(ctx, pipeline.Request{
			Source:      pipeline.ProfileSource{Scraper: s.scraper, Username: req.Username},
			Preferences: req.Preferences,
			Explain:     req.Explain,
		}, emitter)
	case runAnalyze:
		return s.profiles.Analyze(ctx, req.Username, emitter)
	case runCompare:
		return s.profiles.Compare(ctx, req.Users, emitter)
	default:
		return nil, errors.NewMalformedInputError("unknown run type %q", req.Kind)
	}
}

// runContext scopes a run to both the request and the server lifetime, so
// shutdown cancels in-flight runs that clients are still reading.
func (s *Server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// splitUsers parses the comma-separated users query parameter.
func splitUsers(raw string) []string {
	var users []string
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	return users
}
