package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBasicSourceTracking tests that source tracking works for defined config fields
func TestBasicSourceTracking(t *testing.T) {
	t.Run("matinee.toml vs config.toml precedence", func(t *testing.T) {
		// Reset global state
		Reset()
		defer Reset()

		// Create temp directory
		tempDir := t.TempDir()
		matineeDir := filepath.Join(tempDir, ".matinee")
		require.NoError(t, os.MkdirAll(matineeDir, 0755))

		// Create config.toml
		configToml := `
[letterboxd]
max_pages = 4

[tmdb]
language = "de-DE"
`
		require.NoError(t, os.WriteFile(
			filepath.Join(matineeDir, "config.toml"),
			[]byte(configToml),
			0644,
		))

		// Create matinee.toml that overrides letterboxd.max_pages
		matineeToml := `
[letterboxd]
max_pages = 7
`
		require.NoError(t, os.WriteFile(
			filepath.Join(matineeDir, "matinee.toml"),
			[]byte(matineeToml),
			0644,
		))

		// Set environment
		os.Chdir(tempDir)
		os.Setenv("HOME", tempDir)
		defer os.Unsetenv("HOME")

		// Load configuration
		cfg, err := Load()
		require.NoError(t, err)

		// Verify matinee.toml won
		assert.Equal(t, 7, cfg.Letterboxd.MaxPages, "matinee.toml should win over config.toml")
		assert.Equal(t, SourceUser, ConfigSources["letterboxd.max_pages"].Source)
		assert.Contains(t, ConfigSources["letterboxd.max_pages"].Path, "matinee.toml")

		// Verify tmdb.language from config.toml is tracked
		assert.Equal(t, "de-DE", cfg.TMDB.Language)
		assert.Equal(t, SourceUser, ConfigSources["tmdb.language"].Source)
		assert.Contains(t, ConfigSources["tmdb.language"].Path, "config.toml")
	})

	t.Run("Default values are tracked", func(t *testing.T) {
		// Reset global state
		Reset()
		defer Reset()

		// Create empty temp directory (no configs)
		tempDir := t.TempDir()
		os.Chdir(tempDir)
		os.Setenv("HOME", tempDir)
		defer os.Unsetenv("HOME")

		// Load configuration (all defaults)
		cfg, err := Load()
		require.NoError(t, err)

		// Check a known default
		assert.Equal(t, 40, cfg.TMDB.RateOps)

		// Verify it's tracked as default
		source, exists := ConfigSources["tmdb.rate_ops"]
		assert.True(t, exists, "Default should be tracked")
		assert.Equal(t, SourceDefault, source.Source)
		assert.Equal(t, "", source.Path, "Defaults have no path")
	})

	t.Run("Managed file is tracked separately", func(t *testing.T) {
		// Reset global state
		Reset()
		defer Reset()

		// Create temp directory
		tempDir := t.TempDir()
		matineeDir := filepath.Join(tempDir, ".matinee")
		require.NoError(t, os.MkdirAll(matineeDir, 0755))

		// Values written by `matinee config set` land in matinee_set.toml
		setToml := `
[ai]
provider = "openrouter"
`
		require.NoError(t, os.WriteFile(
			filepath.Join(matineeDir, "matinee_set.toml"),
			[]byte(setToml),
			0644,
		))

		// Set environment
		os.Chdir(tempDir)
		os.Setenv("HOME", tempDir)
		defer os.Unsetenv("HOME")

		// Load configuration
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "openrouter", cfg.AI.Provider)

		source := ConfigSources["ai.provider"]
		assert.Equal(t, SourceManaged, source.Source)
		assert.Contains(t, source.Path, "matinee_set.toml")
	})
}

// TestIntrospectionConsistency verifies introspection matches loaded config
func TestIntrospectionConsistency(t *testing.T) {
	// Reset global state
	Reset()
	defer Reset()

	// Create temp directory with config
	tempDir := t.TempDir()
	matineeDir := filepath.Join(tempDir, ".matinee")
	require.NoError(t, os.MkdirAll(matineeDir, 0755))

	matineeToml := `
[letterboxd]
max_pages = 3

[pipeline]
min_matches = 8
`
	require.NoError(t, os.WriteFile(
		filepath.Join(matineeDir, "matinee.toml"),
		[]byte(matineeToml),
		0644,
	))

	// Set environment
	os.Chdir(tempDir)
	os.Setenv("HOME", tempDir)
	defer os.Unsetenv("HOME")

	// Load configuration
	cfg, err := Load()
	require.NoError(t, err)

	// Get introspection
	intro, err := GetConfigIntrospection()
	require.NoError(t, err)

	// Build a map for easier lookup
	settings := make(map[string]*SettingInfo)
	for i := range intro.Settings {
		settings[intro.Settings[i].Key] = &intro.Settings[i]
	}

	// Verify letterboxd.max_pages
	pagesSetting := settings["letterboxd.max_pages"]
	require.NotNil(t, pagesSetting)
	assert.EqualValues(t, cfg.Letterboxd.MaxPages, pagesSetting.Value)
	assert.Equal(t, SourceUser, pagesSetting.Source)
	assert.Contains(t, pagesSetting.SourcePath, "matinee.toml")

	// Verify pipeline.min_matches
	matchesSetting := settings["pipeline.min_matches"]
	require.NotNil(t, matchesSetting)
	assert.EqualValues(t, cfg.Pipeline.MinMatches, matchesSetting.Value)
	assert.Equal(t, SourceUser, matchesSetting.Source)
	assert.Contains(t, matchesSetting.SourcePath, "matinee.toml")

	// Untouched keys stay attributed to defaults
	rateSetting := settings["tmdb.rate_ops"]
	require.NotNil(t, rateSetting)
	assert.Equal(t, SourceDefault, rateSetting.Source)
}

// TestEnvironmentOverrideTracking verifies env vars are reported as the source
func TestEnvironmentOverrideTracking(t *testing.T) {
	Reset()
	defer Reset()

	tempDir := t.TempDir()
	os.Chdir(tempDir)
	os.Setenv("HOME", tempDir)
	defer os.Unsetenv("HOME")

	os.Setenv("MATINEE_TMDB_LANGUAGE", "fr-FR")
	defer os.Unsetenv("MATINEE_TMDB_LANGUAGE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fr-FR", cfg.TMDB.Language)

	intro, err := GetConfigIntrospection()
	require.NoError(t, err)

	var langSetting *SettingInfo
	for i := range intro.Settings {
		if intro.Settings[i].Key == "tmdb.language" {
			langSetting = &intro.Settings[i]
			break
		}
	}
	require.NotNil(t, langSetting)
	assert.Equal(t, SourceEnvironment, langSetting.Source)
	assert.Equal(t, "MATINEE_TMDB_LANGUAGE", langSetting.SourcePath)
}
