// Package server exposes the recommendation pipeline over HTTP: JSON
// endpoints for one-shot runs, SSE streams and a WebSocket for progress
// events, and health/status introspection.
//
// The server owns no domain logic. Handlers translate requests into run
// descriptions, hand them to the pipeline or the profile service with a
// transport-appropriate emitter, and write whatever comes back.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/matinee/ai/tracker"
	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pipeline"
	"github.com/teranos/matinee/profile"
	"github.com/teranos/matinee/tmdb"
)

// State tracks the server lifecycle for draining-aware handlers.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

const (
	// MaxClients caps concurrent WebSocket connections.
	MaxClients = 64

	// ShutdownTimeout bounds how long Stop waits for in-flight work.
	ShutdownTimeout = 10 * time.Second
)

// Server serves the matinee HTTP and WebSocket API.
type Server struct {
	pipe     *pipeline.Pipeline
	profiles *profile.Service
	scraper  *letterboxd.Scraper
	cache    *tmdb.Cache
	usage    *tracker.Tracker
	logger   *zap.SugaredLogger

	tmdbConfigured bool
	aiConfigured   bool

	// origins holds the CORS/WebSocket origin allowlist ([]string).
	// Replaced wholesale on config reload.
	origins atomic.Value

	httpServer *http.Server
	started    time.Time
	state      atomic.Int32
	addr       atomic.Value // bound listen address (string), set by Start

	mu      sync.Mutex
	clients map[*Client]bool

	// ctx parents every run started over a socket; cancel tears them all
	// down on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures a Server. Pipeline, Profiles, and Scraper are required;
// Cache and Usage feed the status endpoint and may be nil.
type Options struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Profiles *profile.Service
	Scraper  *letterboxd.Scraper
	Cache    *tmdb.Cache
	Usage    *tracker.Tracker
	Logger   *zap.SugaredLogger
}

// New creates a Server. It does not listen; call Start.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		pipe:     opts.Pipeline,
		profiles: opts.Profiles,
		scraper:  opts.Scraper,
		cache:    opts.Cache,
		usage:    opts.Usage,
		logger:   log,
		started:  time.Now(),
		clients:  make(map[*Client]bool),
		ctx:      ctx,
		cancel:   cancel,
	}

	origins := []string{}
	if cfg := opts.Config; cfg != nil {
		origins = cfg.GetServerAllowedOrigins()
		s.tmdbConfigured = cfg.TMDB.APIKey != ""
		s.aiConfigured = aiKeyConfigured(cfg)
	}
	s.origins.Store(origins)

	return s
}

func aiKeyConfigured(cfg *config.Config) bool {
	if cfg.AI.Provider == "openrouter" {
		return cfg.OpenRouter.APIKey != ""
	}
	return cfg.Anthropic.APIKey != ""
}

// SetAllowedOrigins replaces the origin allowlist. Called by the config
// watcher on reload; safe while serving.
func (s *Server) SetAllowedOrigins(origins []string) {
	s.origins.Store(append([]string(nil), origins...))
	s.logger.Infow("Allowed origins updated", "origins", origins)
}

func (s *Server) allowedOrigins() []string {
	origins, _ := s.origins.Load().([]string)
	return origins
}

// checkOrigin validates a request origin against the allowlist. Requests
// without an Origin header (curl, same-host tools) are allowed; browser
// requests must prefix-match an allowed origin, so any port passes.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins() {
		if len(origin) >= len(allowed) && origin[:len(allowed)] == allowed {
			return true
		}
	}
	return false
}

// Addr returns the listen address once Start has bound it, "" before.
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

func (s *Server) getState() State {
	return State(s.state.Load())
}

func (s *Server) setState(state State) {
	s.state.Store(int32(state))
	s.logger.Infow("Server state changed", "state", stateString(state))
}

func stateString(state State) string {
	switch state {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// addClient registers a WebSocket client, enforcing the connection cap.
func (s *Server) addClient(c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= MaxClients {
		return errors.Newf("client limit of %d reached", MaxClients)
	}
	s.clients[c] = true
	s.logger.Infow("Client connected",
		"client_id", c.id,
		"total_clients", len(s.clients))
	return nil
}

func (s *Server) removeClient(c *Client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client disconnected",
		"client_id", c.id,
		"total_clients", total)
}

func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
