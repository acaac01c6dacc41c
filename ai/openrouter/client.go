// Package openrouter implements a chat completion client for OpenRouter.ai's
// OpenAI-compatible API. It also defines the provider-neutral ChatRequest and
// ChatResponse types shared by every AI backend; see ai/provider for the
// interface and factory.
package openrouter

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

	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/internal/httpclient"
)

const (
	// DefaultModel is the fallback model when none is configured
	DefaultModel = "openai/gpt-4o-mini"

	// BaseURL is the OpenRouter API endpoint
	BaseURL = "https://openrouter.ai/api/v1"
)

// Client represents an OpenRouter.ai API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds OpenRouter client configuration
type Config struct {
	APIKey      string
	Model       string
	Temperature *float64           // nil = use default (0.2)
	MaxTokens   *int               // nil = use default (2000)
	Logger      *zap.SugaredLogger // Structured logger (nil = nop logger)
}

// NewClient creates a new OpenRouter.ai client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		defaultTemp := 0.2
		config.Temperature = &defaultTemp
	}
	if config.MaxTokens == nil {
		defaultTokens := 2000
		config.MaxTokens = &defaultTokens
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// SSRF-safer HTTP client with redirect protection.
	// Blocks private IPs, localhost, AWS metadata endpoint, dangerous schemes.
	blockPrivateIP := true
	saferClient := httpclient.NewSaferClientWithOptions(120*time.Second, httpclient.SaferClientOptions{
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

// FromConfig creates a client from the application OpenRouter section.
func FromConfig(cfg config.OpenRouterConfig, logger *zap.SugaredLogger) *Client {
	return NewClient(Config{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Logger:      logger,
	})
}

// ChatCompletionRequest represents a request to the chat completions endpoint
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatRequest represents a high-level request to the AI
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // Override default temperature
	MaxTokens    *int     // Override default max tokens
	Model        *string  // Override default model
}

// ChatResponse represents the AI response
type ChatResponse struct {
	Content string
	Usage   Usage
}

// Message represents a message in a chat completion
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from chat completions
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CreateChatCompletion sends a chat completion request to OpenRouter
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	// X-Title header for OpenRouter dashboard tracking
	httpReq.Header.Set("X-Title", "matinee")

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
		return nil, errors.NewAuthenticationError("OpenRouter rejected the API key")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &chatResp, nil
}

// Chat sends a chat completion request to OpenRouter with retry logic
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("OpenRouter API key not configured")
	}

	// Resolve parameters (config defaults, per-request overrides)
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
		"provider", "openrouter",
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"prompt_length", len(req.SystemPrompt)+len(req.UserPrompt),
	)

	messages := []Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	openrouterReq := ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	maxRetries := 3
	var resp *ChatCompletionResponse
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			c.logger.Debugw("Retrying OpenRouter request",
				"attempt", attempt, "max_retries", maxRetries-1, "delay", delay)
			time.Sleep(delay)
		}

		resp, err = c.CreateChatCompletion(ctx, openrouterReq)
		if err == nil {
			if attempt > 0 {
				c.logger.Infow("Request succeeded after retries", "attempts", attempt+1, "model", model)
			}
			break
		}

		c.logger.Warnw("OpenRouter API error",
			"attempt", attempt+1, "max_retries", maxRetries,
			"error", err, "model", model)

		if c.isRetryableError(err) {
			continue
		}

		return nil, errors.Wrap(err, "OpenRouter API error")
	}

	if err != nil {
		return nil, errors.Wrapf(err, "OpenRouter API error after %d retries", maxRetries)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response choices from OpenRouter")
	}

	responseText := resp.Choices[0].Message.Content

	c.logger.Debugw("OpenRouter response",
		"content_length", len(responseText),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"estimated_cost_usd", CalculateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	)

	return &ChatResponse{
		Content: strings.TrimSpace(responseText),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// isRetryableError checks if an error is worth retrying (network-related)
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
	networkErrors := []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"i/o timeout",
	}

	for _, netErr := range networkErrors {
		if strings.Contains(errStr, netErr) {
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
