package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
)

// listenWithFallback binds the requested port, falling back to the default
// and fallback ports and finally a small high range. Binding directly
// instead of probe-then-bind avoids losing the port between the check and
// the listen.
func listenWithFallback(port int) (net.Listener, int, error) {
	candidates := []int{port}
	for _, p := range []int{config.DefaultServerPort, config.FallbackServerPort} {
		if p != port {
			candidates = append(candidates, p)
		}
	}
	for i := 1; i <= 9; i++ {
		candidates = append(candidates, config.FallbackServerPort+i)
	}

	for _, p := range candidates {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err == nil {
			// Report the port the kernel actually bound; a requested port
			// of 0 comes back as an ephemeral one.
			return ln, ln.Addr().(*net.TCPAddr).Port, nil
		}
	}
	return nil, 0, errors.Newf("no available port, tried %d, %d, %d, and %d-%d",
		port, config.DefaultServerPort, config.FallbackServerPort,
		config.FallbackServerPort+1, config.FallbackServerPort+9)
}

// Start binds a port and serves until Stop or a listener error. Returns nil
// on graceful shutdown.
func (s *Server) Start(port int) error {
	ln, actualPort, err := listenWithFallback(port)
	if err != nil {
		return errors.Wrap(err, "failed to bind server port")
	}
	if port != 0 && actualPort != port {
		s.logger.Infow("Port in use, using alternative",
			"requested_port", port,
			"actual_port", actualPort)
	}

	// No WriteTimeout: SSE and WebSocket connections outlive any sane value.
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	s.addr.Store(ln.Addr().String())

	s.setState(StateRunning)
	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://localhost:%d", actualPort),
		"port", actualPort)

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server terminated")
	}
	return nil
}

// Stop drains the server: refuse new work, drop WebSocket clients so their
// runs cancel, shut the HTTP listener down, and wait briefly for run
// goroutines.
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")
	s.setState(StateDraining)

	// Closing the connections unblocks each client's read pump, whose
	// teardown cancels the client's run.
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	if len(clients) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clients))
		for _, c := range clients {
			c.conn.Close()
		}
	}

	s.cancel()

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP shutdown incomplete", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("All run goroutines stopped")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Run goroutine shutdown timed out", "timeout", ShutdownTimeout)
	}

	s.setState(StateStopped)
	s.logger.Infow("Server shutdown complete")
	return nil
}
