package commands

import (
	"fmt"

	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity, port int, aiProvider string) {
	// ANSI escape codes
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔═══════════════════════════════════════════════════╗\n")
	fmt.Printf("   ║  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ║\n")
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║              M A T I N E E                        ║\n")
	fmt.Printf("   ║        tonight's picks, projected                 ║\n")
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ·  ║\n")
	fmt.Printf("   ╚═══════════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ Matinee Info ──────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:   %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:     %s\n", green, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Verbosity: %s\n", green, reset, logger.LevelName(verbosity))
	if verbosity >= 2 {
		fmt.Printf("%s│%s Showing:   %s\n", green, reset, logger.VerbosityDescription(verbosity))
	}
	fmt.Printf("%s│%s Port:      %d\n", green, reset, port)
	if aiProvider != "" {
		fmt.Printf("%s│%s AI:        %s\n", green, reset, aiProvider)
	}
	fmt.Printf("%s└─────────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%s✨ POST /api/recommend or connect to /ws to start a run%s\n", yellow, bold, reset)
	fmt.Printf("%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
