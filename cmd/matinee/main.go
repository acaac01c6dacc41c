package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/teranos/matinee/cmd/matinee/commands"
	"github.com/teranos/matinee/logger"
)

var rootCmd = &cobra.Command{
	Use:   "matinee",
	Short: "Matinee - movie recommendations from Letterboxd taste",
	Long: `Matinee - movie recommendations built on Letterboxd viewing history.

Matinee scrapes a Letterboxd list or profile, matches the films against the
TMDB catalog, and asks an AI model for recommendations grounded in what the
list actually contains.

Available commands:
  serve     - Start the HTTP/WebSocket recommendation server
  recommend - Recommend movies from a Letterboxd list URL
  profile   - Recommend from or analyze a Letterboxd profile
  compare   - Compare 2-5 Letterboxd profiles for group movie night
  config    - Manage matinee configuration
  version   - Show version information

Examples:
  matinee recommend https://letterboxd.com/user/list/film-noir/
  matinee profile recommend davidlynch
  matinee profile analyze davidlynch
  matinee compare ana ben chloe
  matinee serve            # Start server on the configured port
  matinee config show      # Show current configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs. Output commands
		// like 'config show' print raw documents and skip it.
		if cmd.Name() != "show" {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			if err := logger.InitializeWithVerbosity(false, verbosity); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	// API keys commonly live in a project .env during development. A missing
	// file is the normal case; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	// Add global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	// Add commands
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.RecommendCmd)
	rootCmd.AddCommand(commands.ProfileCmd)
	rootCmd.AddCommand(commands.CompareCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
