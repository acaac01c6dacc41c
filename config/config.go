package config

// Config represents the core matinee configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Letterboxd LetterboxdConfig `mapstructure:"letterboxd"`
	TMDB       TMDBConfig       `mapstructure:"tmdb"`
	AI         AIConfig         `mapstructure:"ai"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// ServerConfig configures the matinee web server
type ServerConfig struct {
	Port           *int     `mapstructure:"port"`          // Server port: nil = default 1895, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogTheme       string   `mapstructure:"log_theme"` // Color theme: gruvbox, everforest
}

// Server port constants
const (
	DefaultServerPort  = 1895  // Year of the first public film screening (easy to remember)
	FallbackServerPort = 18950 // Fallback when the default port is taken
)

// LetterboxdConfig configures the Letterboxd scraper
type LetterboxdConfig struct {
	BaseURL        string `mapstructure:"base_url"`        // e.g., "https://letterboxd.com"
	MaxPages       int    `mapstructure:"max_pages"`       // Pagination cap per list/profile (default: 10)
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // Per-page request timeout (default: 30)
	UserAgent      string `mapstructure:"user_agent"`      // Sent on every scrape request
}

// TMDBConfig configures TMDB catalog access
type TMDBConfig struct {
	APIKey   string `mapstructure:"api_key"`  // TMDB API key (env: TMDB_API_KEY)
	BaseURL  string `mapstructure:"base_url"` // e.g., "https://api.themoviedb.org/3"
	Language string `mapstructure:"language"` // Response language (default: en-US)

	// Rolling-window rate limit applied to every catalog call.
	// Exceeding the ceiling suspends callers, it never fails them.
	RateOps           int `mapstructure:"rate_ops"`            // Operations allowed per window (default: 40)
	RateWindowSeconds int `mapstructure:"rate_window_seconds"` // Window length in seconds (default: 10)

	// Retry policy for transient failures (429, 5xx, timeouts)
	MaxRetries  int `mapstructure:"max_retries"`   // Attempts after the first (default: 2, giving 3 total)
	RetryBaseMS int `mapstructure:"retry_base_ms"` // First backoff delay (default: 500)
	RetryMaxMS  int `mapstructure:"retry_max_ms"`  // Backoff cap (default: 8000)

	// MatchWorkers bounds concurrent title matching.
	// Values <= 0 default to 8.
	MatchWorkers int `mapstructure:"match_workers"`
}

// AIConfig selects the model provider for recommendation generation
type AIConfig struct {
	Provider string `mapstructure:"provider"` // "anthropic" or "openrouter" (default: anthropic)
}

// AnthropicConfig configures Anthropic API access
type AnthropicConfig struct {
	APIKey         string   `mapstructure:"api_key"`         // Anthropic API key (env: ANTHROPIC_API_KEY)
	Model          string   `mapstructure:"model"`           // e.g., "claude-sonnet-4-20250514"
	Temperature    *float64 `mapstructure:"temperature"`     // Sampling temperature (nil = default 0.7)
	MaxTokens      *int     `mapstructure:"max_tokens"`      // Maximum tokens per request (nil = default 2000)
	TimeoutSeconds int      `mapstructure:"timeout_seconds"` // Request timeout in seconds (default: 120)
}

// OpenRouterConfig configures OpenRouter.ai API access
type OpenRouterConfig struct {
	APIKey      string   `mapstructure:"api_key"`     // OpenRouter API key (env: OPENROUTER_API_KEY)
	Model       string   `mapstructure:"model"`       // Default model (e.g., "openai/gpt-4o-mini")
	Temperature *float64 `mapstructure:"temperature"` // Sampling temperature (nil = default 0.2)
	MaxTokens   *int     `mapstructure:"max_tokens"`  // Maximum tokens per request (nil = default 2000)
}

// PipelineConfig configures recommendation pipeline thresholds
type PipelineConfig struct {
	MinMatches          int     `mapstructure:"min_matches"`          // Abort below this many matched movies (default: 5)
	LowMatchRatio       float64 `mapstructure:"low_match_ratio"`      // Warn below this matched/total ratio (default: 0.5)
	RecommendationCount int     `mapstructure:"recommendation_count"` // Recommendations requested per run (default: 10)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
