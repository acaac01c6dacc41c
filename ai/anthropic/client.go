// Package anthropic implements a client for the Anthropic Messages API.
// It satisfies the same Chat surface as ai/openrouter so providers can be
// swapped through ai/provider without touching call sites.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/matinee/ai/openrouter"
	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/internal/httpclient"
)

const (
	// DefaultModel is the default Claude model
	DefaultModel = "claude-sonnet-4-20250514"

	// BaseURL is the Anthropic API endpoint
	BaseURL = "https://api.anthropic.com/v1"

	// APIVersion is the required Anthropic API version header
	APIVersion = "2023-06-01"

	// defaultTimeout bounds a single Messages call; long generations
	// on large pools can legitimately run past a minute.
	defaultTimeout = 120 * time.Second
)

// Client represents an Anthropic API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds Anthropic client configuration
type Config struct {
	APIKey      string
	Model       string
	Temperature *float64           // nil = use default (0.7)
	MaxTokens   *int               // nil = use default (2000)
	Timeout     time.Duration      // 0 = use default (120s)
	Logger      *zap.SugaredLogger // Structured logger (nil = nop logger)
}

// NewClient creates a new Anthropic API client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		defaultTemp := 0.7
		config.Temperature = &defaultTemp
	}
	if config.MaxTokens == nil {
		defaultTokens := 2000
		config.MaxTokens = &defaultTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	blockPrivateIP := true
	saferClient := httpclient.NewSaferClientWithOptions(config.Timeout, httpclient.SaferClientOptions{
		BlockPrivateIP: &blockPrivateIP,
	})

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    BaseURL,
		httpClient: saferClient,
		config:     config,
		logger:     logger,
	}
}

// FromConfig creates a client from the application Anthropic section.
func FromConfig(cfg config.AnthropicConfig, logger *zap.SugaredLogger) *Client {
	var timeout time.Duration
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return NewClient(Config{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     timeout,
		Logger:      logger,
	})
}

// MessagesRequest represents a request to the Anthropic Messages API
type MessagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// MessagesResponse represents the response from the Messages API
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Chat implements the AIClient interface for Anthropic.
// Requests and responses use the provider-neutral openrouter types so
// callers can switch providers through configuration alone.
func (c *Client) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("Anthropic API key not configured")
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	maxTokens := *c.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	c.logger.Debugw("AI chat request",
		"provider", "anthropic",
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"prompt_length", len(req.SystemPrompt)+len(req.UserPrompt),
	)

	anthropicReq := MessagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      req.SystemPrompt,
		Messages: []Message{
			{Role: "user", Content: req.UserPrompt},
		},
	}

	maxRetries := 3
	var resp *MessagesResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying Anthropic request",
				"attempt", attempt, "max_retries", maxRetries-1, "delay", delay)
			time.Sleep(delay)
		}

		resp, err = c.createMessages(ctx, anthropicReq)
		if err == nil {
			break
		}

		c.logger.Warnw("Anthropic API error",
			"attempt", attempt+1, "max_retries", maxRetries,
			"error", err, "model", model)

		if !c.isRetryableError(err) {
			return nil, errors.Wrap(err, "Anthropic API error")
		}
	}

	if err != nil {
		return nil, errors.Wrapf(err, "Anthropic API error after %d retries", maxRetries)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	c.logger.Debugw("Anthropic response",
		"content_length", content.Len(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason,
		"estimated_cost_usd", CalculateCost(model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
	)

	return &openrouter.ChatResponse{
		Content: strings.TrimSpace(content.String()),
		Usage: openrouter.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// createMessages sends a request to the Anthropic Messages API
func (c *Client) createMessages(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.NewAuthenticationError("Anthropic rejected the API key")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var messagesResp MessagesResponse
	if err := json.Unmarshal(respBody, &messagesResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &messagesResp, nil
}

// isRetryableError checks if an error is worth retrying.
// Anthropic reports overload as HTTP 529, which surfaces here as an
// error string rather than a typed network error.
func (c *Client) isRetryableError(err error) bool {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}

	if syscallErr, ok := err.(*net.OpError); ok {
		if errno, ok := syscallErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
		"overloaded",
		"529",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}

// IsConfigured returns true if the client has a valid API key
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SetHTTPClient allows overriding the HTTP client for testing
// ⚠️ WARNING: Only use this in tests. Production code should use the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}
