package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/matinee/config"
)

// ConfigCmd manages matinee configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage matinee configuration",
	Long: `Inspect and change configuration.

Values merge from defaults, the user config (~/.matinee/), a project
.matinee.toml, the managed file written by 'config set', and environment
variables, later sources winning.`,
}

var configFormat string

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Print the fully merged configuration after defaults, files, and environment.`,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value",
	Long: `Write one dotted-key value into the managed config file. A running server
picks the change up through the config watcher without a restart.

Examples:
  matinee config set ai.provider anthropic
  matinee config set anthropic.model claude-sonnet-4-20250514
  matinee config set pipeline.recommendation_count 5
  matinee config set server.allowed_origins http://localhost:5173`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show where configuration is loaded from",
	RunE:  runConfigPath,
}

func init() {
	// Add flags
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")

	// Add subcommands
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configSetCmd)
	ConfigCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# matinee configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json)", configFormat)
	}

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	if err := config.SetValue(key, parseConfigValue(raw)); err != nil {
		return err
	}

	pterm.Success.Printf("Set %s = %s\n", key, raw)
	pterm.Printf("Written to %s\n", config.GetManagedConfigPath())
	return nil
}

// parseConfigValue keeps TOML types honest: "true" becomes a bool and "5"
// an integer, so numeric keys round-trip instead of landing as strings.
func parseConfigValue(raw string) interface{} {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	intro, err := config.GetConfigIntrospection()
	if err != nil {
		return fmt.Errorf("failed to get config introspection: %w", err)
	}

	// Show config cascade header
	fmt.Println("Configuration cascade (later overrides earlier):")
	fmt.Println("  1. [DEFAULT]  Built-in defaults")
	fmt.Println("  2. [SYSTEM]   /etc/matinee/config.toml")
	fmt.Println("  3. [USER]     ~/.matinee/config.toml or ~/.matinee/matinee.toml")
	fmt.Printf("  4. [MANAGED]  %s (written by 'config set')\n", config.GetManagedConfigPath())
	fmt.Println("  5. [PROJECT]  ./matinee.toml or ./config.toml (searches up directories)")
	fmt.Println("  6. [ENV]      MATINEE_* plus TMDB_API_KEY, ANTHROPIC_API_KEY, OPENROUTER_API_KEY")
	fmt.Println()

	// Group overrides by their source file; defaults stay a single count line
	sourceOrder := []config.ConfigSource{
		config.SourceSystem,
		config.SourceUser,
		config.SourceManaged,
		config.SourceProject,
		config.SourceEnvironment,
	}

	defaults := 0
	bySource := make(map[config.ConfigSource][]config.SettingInfo)
	for _, setting := range intro.Settings {
		if setting.Source == config.SourceDefault {
			defaults++
			continue
		}
		bySource[setting.Source] = append(bySource[setting.Source], setting)
	}

	fmt.Printf("Active configuration: %d settings at built-in defaults\n", defaults)
	for _, source := range sourceOrder {
		settings := bySource[source]
		if len(settings) == 0 {
			continue
		}
		label := settings[0].SourcePath
		if source == config.SourceEnvironment || label == "" {
			label = "environment variables"
		}
		fmt.Printf("\n%s: %d settings from %s\n", source, len(settings), label)
		for _, setting := range settings {
			valueStr := fmt.Sprintf("%v", setting.Value)
			if len(valueStr) > 50 {
				valueStr = valueStr[:47] + "..."
			}
			fmt.Printf("  %s = %s\n", setting.Key, valueStr)
		}
	}

	return nil
}
