package provider

import (
	"context"
	"sync/atomic"

	"github.com/teranos/matinee/ai/openrouter"
)

// Switchable is an AIClient whose underlying client can be replaced at
// runtime, used by the server to apply config reloads without restarting.
// Calls already in flight finish on the client they started with.
type Switchable struct {
	// Holds *AIClient rather than AIClient so every Store sees the same
	// concrete type; atomic.Value panics when the stored type changes.
	current atomic.Value
}

var _ AIClient = (*Switchable)(nil)

// NewSwitchable wraps client in a swappable shell.
func NewSwitchable(client AIClient) *Switchable {
	s := &Switchable{}
	s.current.Store(&client)
	return s
}

// Swap replaces the underlying client for all future calls.
func (s *Switchable) Swap(client AIClient) {
	s.current.Store(&client)
}

// Chat delegates to the current underlying client.
func (s *Switchable) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	return (*s.current.Load().(*AIClient)).Chat(ctx, req)
}
