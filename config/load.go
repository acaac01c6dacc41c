package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var globalConfig *Config
var viperInstance *viper.Viper

// ConfigSources tracks where each configuration key came from.
// Populated during Load so introspection reports exactly what was merged.
var ConfigSources map[string]SourceInfo

// Load reads the matinee configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Set defaults but don't bind environment variables for this specific load
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from %s: %w", configPath, err)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
	ConfigSources = nil
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix("MATINEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific sensitive configuration values to environment variables
	BindSensitiveEnvVars(v)

	// Set defaults first, tracking every default key
	SetDefaults(v)
	ConfigSources = make(map[string]SourceInfo)
	trackSettings(v.AllSettings(), "", SourceInfo{Source: SourceDefault})

	// Manually merge configs in precedence order: system -> user -> managed -> project
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// findProjectConfig searches for matinee.toml or config.toml by walking up the
// directory tree. Returns the path to the first config file found, or empty
// string if none found. Preference order: matinee.toml > config.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Walk up the directory tree looking for config files
	for {
		matineePath := filepath.Join(dir, "matinee.toml")
		if _, err := os.Stat(matineePath); err == nil {
			return matineePath
		}

		configPath := filepath.Join(dir, "config.toml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			break
		}
		dir = parent
	}

	return ""
}

// UserConfigDir returns ~/.matinee, creating it if needed
func UserConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(homeDir, ".matinee")
	os.MkdirAll(dir, DefaultDirPermissions)
	return dir
}

// mergeConfigFiles manually merges configuration files in the correct precedence order
// Precedence (lowest to highest): system < user < managed < project
func mergeConfigFiles(v *viper.Viper) {
	matineeDir := UserConfigDir()

	// Build config paths, with project config found via upward search
	projectConfig := findProjectConfig()
	configPaths := []string{
		"/etc/matinee/config.toml",                    // System config (lowest precedence)
		filepath.Join(matineeDir, "config.toml"),      // User config (alternate name)
		filepath.Join(matineeDir, "matinee.toml"),     // User config (canonical, wins over alternate)
		filepath.Join(matineeDir, "matinee_set.toml"), // Values written by `matinee config set`
	}

	// Add project config if found (highest file precedence, below env vars)
	if projectConfig != "" {
		configPaths = append(configPaths, projectConfig)
	}

	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err == nil {
			// Config file exists, merge it
			tempViper := viper.New()
			tempViper.SetConfigFile(configPath)
			tempViper.SetConfigType("toml")

			if err := tempViper.ReadInConfig(); err == nil {
				// Merge this config into the main viper instance
				settings := tempViper.AllSettings()
				for key, value := range settings {
					v.Set(key, value)
				}
				trackSettings(settings, "", SourceInfo{
					Source: classifySource(configPath, matineeDir),
					Path:   configPath,
				})
			}
		}
	}
}

// classifySource maps a config file path to its source kind
func classifySource(configPath, userDir string) ConfigSource {
	switch {
	case strings.HasPrefix(configPath, "/etc/matinee/"):
		return SourceSystem
	case filepath.Base(configPath) == "matinee_set.toml":
		return SourceManaged
	case userDir != "" && strings.HasPrefix(configPath, userDir):
		return SourceUser
	default:
		return SourceProject
	}
}

// trackSettings records the source of every flattened key in settings
func trackSettings(settings map[string]interface{}, prefix string, info SourceInfo) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]interface{}); ok {
			trackSettings(nested, fullKey, info)
			continue
		}

		ConfigSources[fullKey] = info
	}
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	v := initViper()
	return v.Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	v := initViper()
	return v.GetString(key)
}

// GetBool returns a configuration value as bool using dot notation
func GetBool(key string) bool {
	v := initViper()
	return v.GetBool(key)
}

// GetInt returns a configuration value as int using dot notation
func GetInt(key string) int {
	v := initViper()
	return v.GetInt(key)
}

// GetFloat64 returns a configuration value as float64 using dot notation
func GetFloat64(key string) float64 {
	v := initViper()
	return v.GetFloat64(key)
}
