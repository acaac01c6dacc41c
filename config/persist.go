package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/matinee/errors"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Log deletion failures (but don't fail config save)
		fmt.Printf("⚠️  Failed to delete old backup %s: %v\n", back3, err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// GetManagedConfigPath returns the path to the CLI-managed config file in
// ~/.matinee/matinee_set.toml. Values written by `matinee config set` live
// here so hand-edited config files are never clobbered.
func GetManagedConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".matinee", "matinee_set.toml")
}

// loadOrInitializeManagedConfig loads the managed config file, or creates an empty one if it doesn't exist
func loadOrInitializeManagedConfig() (map[string]interface{}, string, error) {
	configPath := GetManagedConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	// Ensure ~/.matinee directory exists
	matineeDir := filepath.Dir(configPath)
	if err := os.MkdirAll(matineeDir, 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .matinee directory")
	}

	// Try to read existing config
	var config map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		// File exists, parse it
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse managed config")
		}
	} else {
		// File doesn't exist, create empty config
		config = make(map[string]interface{})
	}

	return config, configPath, nil
}

// saveManagedConfig writes the config to the managed config file with backup
func saveManagedConfig(config map[string]interface{}, configPath string) error {
	// Create backup
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	// Marshal to TOML
	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	// Write to file
	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write managed config")
	}

	return nil
}

// SetValue persists a single dotted-key value into the managed config file.
// Intermediate sections are created as needed, so "tmdb.match_workers" lands
// under a [tmdb] table.
func SetValue(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 || key == "" {
		return errors.New("config key cannot be empty")
	}
	for _, part := range parts {
		if part == "" {
			return errors.Newf("malformed config key %q", key)
		}
	}

	config, configPath, err := loadOrInitializeManagedConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load managed config")
	}

	// Walk or create nested sections down to the final key
	section := config
	for _, part := range parts[:len(parts)-1] {
		child, ok := section[part].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			section[part] = child
		}
		section = child
	}
	section[parts[len(parts)-1]] = value

	return saveManagedConfig(config, configPath)
}

// UnsetValue removes a dotted-key value from the managed config file.
// Missing keys are not an error. Emptied sections are pruned.
func UnsetValue(key string) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 || key == "" {
		return errors.New("config key cannot be empty")
	}

	config, configPath, err := loadOrInitializeManagedConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load managed config")
	}

	// Walk down to the parent section, remembering the path for pruning
	sections := []map[string]interface{}{config}
	section := config
	for _, part := range parts[:len(parts)-1] {
		child, ok := section[part].(map[string]interface{})
		if !ok {
			return nil // Section absent, nothing to unset
		}
		sections = append(sections, child)
		section = child
	}
	delete(section, parts[len(parts)-1])

	// Prune empty sections bottom-up
	for i := len(sections) - 1; i > 0; i-- {
		if len(sections[i]) == 0 {
			delete(sections[i-1], parts[i-1])
		}
	}

	return saveManagedConfig(config, configPath)
}
