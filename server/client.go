package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pipeline"
	"github.com/teranos/matinee/version"
)

// WebSocket timing per the gorilla chat example: pings must outpace the pong
// deadline, writes get their own deadline.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// wsRequest is a client-to-server message. Type selects the run kind, or
// "cancel"/"ping" for control.
type wsRequest struct {
	Type        string   `json:"type"`
	URL         string   `json:"url,omitempty"`
	Username    string   `json:"username,omitempty"`
	Users       []string `json:"users,omitempty"`
	Preferences string   `json:"preferences,omitempty"`
	Explain     bool     `json:"explain,omitempty"`
}

// helloMessage greets a new connection with build info.
type helloMessage struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Client is one WebSocket connection. A client runs at most one pipeline at
// a time; events stream back as the same wire events SSE carries. Closing
// the socket cancels the active run.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan pipeline.Event
	done   chan struct{}
	id     string

	closeOnce sync.Once

	mu        sync.Mutex
	runCancel context.CancelFunc
}

// HandleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.getState() != StateRunning {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan pipeline.Event, sendBuffer),
		done:   make(chan struct{}),
		id:     fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano()),
	}

	if err := s.addClient(client); err != nil {
		s.logger.Warnw("Rejecting connection", "client_id", client.id, logger.FieldError, err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	// Greet before the write pump starts so the writes can't interleave.
	info := version.Get()
	conn.WriteJSON(helloMessage{Type: "hello", Version: info.Version, Commit: info.Short()})

	go client.writePump()
	client.readPump()
}

// readPump reads client messages until the connection drops, then tears the
// client down, cancelling any active run.
func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warnw("WebSocket read error",
					"client_id", c.id,
					logger.FieldError, err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.sendError("", "invalid message: "+err.Error())
			continue
		}
		c.routeMessage(req)
	}
}

func (c *Client) routeMessage(req wsRequest) {
	switch req.Type {
	case "ping":
		// Deadline refresh happens in the pong handler.
	case "cancel":
		c.cancelRun()
	case runRecommend, runProfileRecommend, runAnalyze, runCompare:
		c.startRun(runRequest{
			Kind:        req.Type,
			URL:         req.URL,
			Username:    req.Username,
			Users:       req.Users,
			Preferences: req.Preferences,
			Explain:     req.Explain,
		})
	default:
		c.sendError("", fmt.Sprintf("unknown message type %q", req.Type))
	}
}

// startRun validates the request and launches it on its own goroutine. One
// run per connection: a second request while one is active is refused.
func (c *Client) startRun(req runRequest) {
	if err := c.server.validateRun(&req); err != nil {
		c.sendError("", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(c.server.ctx)
	c.mu.Lock()
	if c.runCancel != nil {
		c.mu.Unlock()
		cancel()
		c.sendError("", "a run is already in progress")
		return
	}
	c.runCancel = cancel
	c.mu.Unlock()

	c.server.wg.Add(1)
	go func() {
		defer c.server.wg.Done()
		defer c.finishRun(cancel)

		if _, err := c.server.executeRun(ctx, req, pipeline.EventEmitter(c.push)); err != nil {
			c.server.logger.Debugw("WebSocket run ended with error",
				"client_id", c.id,
				"kind", req.Kind,
				logger.FieldError, err)
		}
	}()
}

// finishRun releases the one-run slot if this run still holds it.
func (c *Client) finishRun(cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	c.runCancel = nil
	c.mu.Unlock()
}

func (c *Client) cancelRun() {
	c.mu.Lock()
	cancel := c.runCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// push queues an event for the write pump. A full buffer means the client
// stopped reading; the connection is closed and the run's context does the
// rest.
func (c *Client) push(ev pipeline.Event) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		c.server.logger.Warnw("Client send buffer full, dropping connection", "client_id", c.id)
		c.conn.Close()
	}
}

func (c *Client) sendError(stage pipeline.Stage, message string) {
	c.push(pipeline.Event{Type: pipeline.TypeError, Stage: stage, Message: message})
}

// writePump serializes all writes to the connection: run events, and pings
// on an interval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-c.server.ctx.Done():
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.server.logger.Debugw("WebSocket write failed",
					"client_id", c.id,
					logger.FieldError, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown cancels the active run and detaches the client. Safe to call
// more than once.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		c.cancelRun()
		c.server.removeClient(c)
		close(c.done)
		c.conn.Close()
	})
}
