package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teranos/matinee/ai/openrouter"
	"github.com/teranos/matinee/ai/provider"
)

// Tracker accumulates per-process accounting of AI model calls: request and
// failure counts, token totals, and a per-model breakdown. The server
// surfaces the snapshot in /api/status so operators can see what a day of
// runs actually spent. Counters live for the process, like the catalog
// cache; nothing is persisted.
type Tracker struct {
	mu               sync.Mutex
	requests         int
	failures         int
	promptTokens     int
	completionTokens int
	totalTokens      int
	models           map[string]*modelUsage
}

type modelUsage struct {
	requests   int
	failures   int
	tokens     int
	durationMS float64
}

// NewTracker creates an empty usage tracker.
func NewTracker() *Tracker {
	return &Tracker{models: make(map[string]*modelUsage)}
}

// Record notes one model call. Failed calls count toward requests and the
// model's failure tally; their token usage is whatever the provider reported
// before failing, usually zero.
func (t *Tracker) Record(model string, usage openrouter.Usage, elapsed time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests++
	if err != nil {
		t.failures++
	}
	t.promptTokens += usage.PromptTokens
	t.completionTokens += usage.CompletionTokens
	t.totalTokens += usage.TotalTokens

	mu := t.models[model]
	if mu == nil {
		mu = &modelUsage{}
		t.models[model] = mu
	}
	mu.requests++
	if err != nil {
		mu.failures++
	}
	mu.tokens += usage.TotalTokens
	mu.durationMS += float64(elapsed.Milliseconds())
}

// UsageStats is an aggregate snapshot of model usage.
type UsageStats struct {
	TotalRequests      int              `json:"total_requests"`
	SuccessfulRequests int              `json:"successful_requests"`
	SuccessRate        float64          `json:"success_rate"`
	PromptTokens       int              `json:"prompt_tokens"`
	CompletionTokens   int              `json:"completion_tokens"`
	TotalTokens        int              `json:"total_tokens"`
	Models             []ModelBreakdown `json:"models,omitempty"`
}

// ModelBreakdown is one model's share of the usage, busiest first.
type ModelBreakdown struct {
	Model             string  `json:"model"`
	Requests          int     `json:"requests"`
	Failures          int     `json:"failures,omitempty"`
	TotalTokens       int     `json:"total_tokens"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// Snapshot returns the current aggregate. The breakdown is sorted by request
// count, then name, so the payload is stable across calls.
func (t *Tracker) Snapshot() *UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := &UsageStats{
		TotalRequests:      t.requests,
		SuccessfulRequests: t.requests - t.failures,
		PromptTokens:       t.promptTokens,
		CompletionTokens:   t.completionTokens,
		TotalTokens:        t.totalTokens,
	}
	if t.requests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(t.requests)
	}

	for model, mu := range t.models {
		mb := ModelBreakdown{
			Model:       model,
			Requests:    mu.requests,
			Failures:    mu.failures,
			TotalTokens: mu.tokens,
		}
		if mu.requests > 0 {
			mb.AvgResponseTimeMs = mu.durationMS / float64(mu.requests)
		}
		stats.Models = append(stats.Models, mb)
	}
	sort.Slice(stats.Models, func(i, j int) bool {
		if stats.Models[i].Requests != stats.Models[j].Requests {
			return stats.Models[i].Requests > stats.Models[j].Requests
		}
		return stats.Models[i].Model < stats.Models[j].Model
	})

	return stats
}

// Client wraps an AIClient so every Chat call lands in the tracker. The
// label names the wrapped provider; a per-request model override wins as
// the breakdown key.
type Client struct {
	inner   provider.AIClient
	tracker *Tracker
	label   string
}

var _ provider.AIClient = (*Client)(nil)

// Wrap returns a tracking client around inner.
func Wrap(inner provider.AIClient, t *Tracker, label string) *Client {
	return &Client{inner: inner, tracker: t, label: label}
}

func (c *Client) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	start := time.Now()
	resp, err := c.inner.Chat(ctx, req)

	model := c.label
	if req.Model != nil && *req.Model != "" {
		model = *req.Model
	}
	var usage openrouter.Usage
	if resp != nil {
		usage = resp.Usage
	}
	c.tracker.Record(model, usage, time.Since(start), err)

	return resp, err
}
