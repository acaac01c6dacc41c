package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server configuration defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.log_theme", "everforest")

	// Letterboxd scraper defaults
	v.SetDefault("letterboxd.base_url", "https://letterboxd.com")
	v.SetDefault("letterboxd.max_pages", 10)
	v.SetDefault("letterboxd.timeout_seconds", 30)
	v.SetDefault("letterboxd.user_agent", "matinee (+https://github.com/teranos/matinee)")

	// TMDB catalog defaults
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.language", "en-US")
	v.SetDefault("tmdb.rate_ops", 40)            // 40 calls per rolling window
	v.SetDefault("tmdb.rate_window_seconds", 10) // 10 second window
	v.SetDefault("tmdb.max_retries", 2)          // 3 attempts total
	v.SetDefault("tmdb.retry_base_ms", 500)      // First backoff delay
	v.SetDefault("tmdb.retry_max_ms", 8000)      // Backoff cap
	v.SetDefault("tmdb.match_workers", 8)

	// AI provider defaults
	v.SetDefault("ai.provider", "anthropic")

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.temperature", 0.7)
	v.SetDefault("anthropic.max_tokens", 2000)
	v.SetDefault("anthropic.timeout_seconds", 120)

	// OpenRouter defaults
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini") // Cost-effective default
	v.SetDefault("openrouter.temperature", 0.2)            // Deterministic
	v.SetDefault("openrouter.max_tokens", 2000)            // Token limit

	// Pipeline threshold defaults
	v.SetDefault("pipeline.min_matches", 5)
	v.SetDefault("pipeline.low_match_ratio", 0.5)
	v.SetDefault("pipeline.recommendation_count", 10)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables.
// These use the unprefixed names the services themselves document, so a .env written
// for other tooling keeps working.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("tmdb.api_key", "TMDB_API_KEY")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
}

// GetServerPort returns the configured matinee server port
// Returns server.port from config, or DefaultServerPort (1895) if not configured
func GetServerPort() int {
	cfg, err := Load()
	if err != nil || cfg.Server.Port == nil || *cfg.Server.Port == 0 {
		return DefaultServerPort
	}
	return *cfg.Server.Port
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
		}
	}
	return c.Server.AllowedOrigins
}

// GetServerLogTheme returns the log theme (default: everforest)
func (c *Config) GetServerLogTheme() string {
	if c.Server.LogTheme == "" {
		return "everforest"
	}
	return c.Server.LogTheme
}

// GetMatchWorkers returns the matching concurrency with defaults applied
func (c *Config) GetMatchWorkers() int {
	if c.TMDB.MatchWorkers <= 0 {
		return 8
	}
	return c.TMDB.MatchWorkers
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Provider: %s, TMDB: {RateOps: %d}, Pipeline: {MinMatches: %d}}",
		c.AI.Provider, c.TMDB.RateOps, c.Pipeline.MinMatches)
}
