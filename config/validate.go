package config

import "github.com/teranos/matinee/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.New("server.port cannot be 0 (omit for default port 1895)")
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	// Log theme: empty = default, anything else must be a known theme
	if theme := c.Server.LogTheme; theme != "" && theme != "everforest" && theme != "gruvbox" {
		return errors.Newf("server.log_theme must be everforest or gruvbox, got %q", theme)
	}

	// Scraper pagination: 0 = unlimited, negative = invalid
	if c.Letterboxd.MaxPages < 0 {
		return errors.Newf("letterboxd.max_pages must be >= 0, got %d", c.Letterboxd.MaxPages)
	}
	if c.Letterboxd.TimeoutSeconds < 0 {
		return errors.Newf("letterboxd.timeout_seconds must be >= 0, got %d", c.Letterboxd.TimeoutSeconds)
	}

	// Rate limit: a zero-capacity window would suspend every catalog call forever
	if c.TMDB.RateOps <= 0 {
		return errors.Newf("tmdb.rate_ops must be > 0, got %d (omit for default)", c.TMDB.RateOps)
	}
	if c.TMDB.RateWindowSeconds <= 0 {
		return errors.Newf("tmdb.rate_window_seconds must be > 0, got %d (omit for default)", c.TMDB.RateWindowSeconds)
	}

	// Retries: 0 = single attempt, negative = invalid
	if c.TMDB.MaxRetries < 0 {
		return errors.Newf("tmdb.max_retries must be >= 0, got %d", c.TMDB.MaxRetries)
	}
	if c.TMDB.RetryBaseMS < 0 {
		return errors.Newf("tmdb.retry_base_ms must be >= 0, got %d", c.TMDB.RetryBaseMS)
	}
	if c.TMDB.RetryMaxMS < 0 {
		return errors.Newf("tmdb.retry_max_ms must be >= 0, got %d", c.TMDB.RetryMaxMS)
	}

	// Provider: empty = anthropic default
	if p := c.AI.Provider; p != "" && p != "anthropic" && p != "openrouter" {
		return errors.Newf("ai.provider must be anthropic or openrouter, got %q", p)
	}

	if c.Anthropic.TimeoutSeconds < 0 {
		return errors.Newf("anthropic.timeout_seconds must be >= 0, got %d", c.Anthropic.TimeoutSeconds)
	}

	// Pipeline thresholds: 0 = no floor, negative = invalid
	if c.Pipeline.MinMatches < 0 {
		return errors.Newf("pipeline.min_matches must be >= 0, got %d", c.Pipeline.MinMatches)
	}
	if c.Pipeline.LowMatchRatio < 0 || c.Pipeline.LowMatchRatio > 1 {
		return errors.Newf("pipeline.low_match_ratio must be within [0, 1], got %f", c.Pipeline.LowMatchRatio)
	}
	if c.Pipeline.RecommendationCount <= 0 {
		return errors.Newf("pipeline.recommendation_count must be > 0, got %d (omit for default)", c.Pipeline.RecommendationCount)
	}

	return nil
}
