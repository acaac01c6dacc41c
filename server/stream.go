package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pipeline"
)

// heartbeatInterval paces SSE keepalive comments so idle proxies don't cut
// the stream during slow stages.
const heartbeatInterval = 15 * time.Second

// sseStream writes wire events to one client as server-sent events. The
// pipeline emits sequentially, but heartbeats arrive from a second
// goroutine, so writes are serialized.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func newSSEStream(w http.ResponseWriter) (*sseStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseStream{w: w, flusher: flusher}, true
}

// send writes one event frame. Used as a pipeline.EventEmitter callback.
func (s *sseStream) send(ev pipeline.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.w.Write([]byte("data: "))
	s.w.Write(payload)
	s.w.Write([]byte("\n\n"))
	s.flusher.Flush()
}

// heartbeat writes an SSE comment line.
func (s *sseStream) heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.w.Write([]byte(": heartbeat\n\n"))
	s.flusher.Flush()
}

// close stops further writes. The response itself closes when the handler
// returns.
func (s *sseStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// serveStream runs a validated request as an SSE stream: events as they
// happen, heartbeats in the gaps, terminal event then EOF.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, req runRequest) {
	stream, ok := newSSEStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	defer stream.close()

	ctx, cancel := s.runContext(r)
	defer cancel()

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stream.heartbeat()
			}
		}
	}()

	if _, err := s.executeRun(ctx, req, pipeline.EventEmitter(stream.send)); err != nil {
		// The terminal error event is already on the wire; cancellation
		// means the client is gone either way.
		s.logger.Debugw("Stream run ended with error",
			"kind", req.Kind,
			logger.FieldError, err)
	}
}

// HandleRecommendStream streams a list recommendation run.
// Query: url, preferences, explain.
func (s *Server) HandleRecommendStream(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	req := runRequest{
		Kind:        runRecommend,
		URL:         q.Get("url"),
		Preferences: q.Get("preferences"),
		Explain:     q.Get("explain") == "true",
	}
	if err := s.validateRun(&req); err != nil {
		writeRunError(w, s.logger, err)
		return
	}
	s.serveStream(w, r, req)
}

// HandleProfileRecommendStream streams a profile recommendation run.
// Query: username, preferences, explain.
func (s *Server) HandleProfileRecommendStream(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	req := runRequest{
		Kind:        runProfileRecommend,
		Username:    q.Get("username"),
		Preferences: q.Get("preferences"),
		Explain:     q.Get("explain") == "true",
	}
	if err := s.validateRun(&req); err != nil {
		writeRunError(w, s.logger, err)
		return
	}
	s.serveStream(w, r, req)
}

// HandleProfileAnalyzeStream streams a taste analysis run. Query: username.
func (s *Server) HandleProfileAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	req := runRequest{
		Kind:     runAnalyze,
		Username: r.URL.Query().Get("username"),
	}
	if err := s.validateRun(&req); err != nil {
		writeRunError(w, s.logger, err)
		return
	}
	s.serveStream(w, r, req)
}

// HandleCompareStream streams a taste comparison run.
// Query: users, comma-separated.
func (s *Server) HandleCompareStream(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	req := runRequest{
		Kind:  runCompare,
		Users: splitUsers(r.URL.Query().Get("users")),
	}
	if err := s.validateRun(&req); err != nil {
		writeRunError(w, s.logger, err)
		return
	}
	s.serveStream(w, r, req)
}
