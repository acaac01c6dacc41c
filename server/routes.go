package server

import "net/http"

// Handler builds the route table. Exposed so tests can serve the API from
// an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	mux.HandleFunc("/api/status", s.corsMiddleware(s.HandleStatus))
	mux.HandleFunc("/api/recommend", s.corsMiddleware(s.HandleRecommend))
	mux.HandleFunc("/api/recommend/stream", s.corsMiddleware(s.HandleRecommendStream))
	mux.HandleFunc("/api/profile/recommend", s.corsMiddleware(s.HandleProfileRecommend))
	mux.HandleFunc("/api/profile/recommend/stream", s.corsMiddleware(s.HandleProfileRecommendStream))
	mux.HandleFunc("/api/profile/analyze/stream", s.corsMiddleware(s.HandleProfileAnalyzeStream))
	mux.HandleFunc("/api/compare/stream", s.corsMiddleware(s.HandleCompareStream))
	mux.HandleFunc("/ws", s.HandleWebSocket)

	return mux
}

// corsMiddleware adds CORS headers using the configured origin allowlist and
// refuses new API work once the server is draining. Health stays reachable
// so orchestrators can watch the drain.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		if s.getState() != StateRunning && r.URL.Path != "/health" {
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}

		next(w, r)
	}
}
