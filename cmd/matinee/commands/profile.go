package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/pipeline"
	"github.com/teranos/matinee/profile"
)

// ProfileCmd groups the profile-driven commands
var ProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Recommend from or analyze a Letterboxd profile",
	Long: `Work from a viewer's full rated history instead of a list.

recommend builds picks weighted by the profile's ratings; analyze breaks the
taste down into genres, directors, decades, and rating habits.

Examples:
  matinee profile recommend davidlynch
  matinee profile analyze davidlynch --json`,
}

var profileRecommendCmd = &cobra.Command{
	Use:   "recommend <username>",
	Short: "Recommend movies from a profile's rated history",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRecommend,
}

var profileAnalyzeCmd = &cobra.Command{
	Use:   "analyze <username>",
	Short: "Break down a profile's taste",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileAnalyze,
}

var (
	profilePreferences string
	profileExplain     bool
	profileJSON        bool
)

func init() {
	profileRecommendCmd.Flags().StringVar(&profilePreferences, "preferences", "", "Steer the picks (e.g. \"something uplifting\")")
	profileRecommendCmd.Flags().BoolVar(&profileExplain, "explain", false, "Ask the model to explain each pick")
	profileRecommendCmd.Flags().BoolVar(&profileJSON, "json", false, "Emit progress and result as JSON lines on stdout")
	profileAnalyzeCmd.Flags().BoolVar(&profileJSON, "json", false, "Emit progress and analysis as JSON lines on stdout")

	ProfileCmd.AddCommand(profileRecommendCmd)
	ProfileCmd.AddCommand(profileAnalyzeCmd)
}

func runProfileRecommend(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	jsonOut := jsonMode(profileJSON)

	username, err := letterboxd.ValidateUsername(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.pipe.Run(ctx, pipeline.Request{
		Source:      pipeline.ProfileSource{Scraper: a.scraper, Username: username},
		Preferences: profilePreferences,
		Explain:     profileExplain,
	}, emitterFor(jsonOut, verbosity))
	if err != nil {
		return err
	}

	if !jsonOut {
		renderResult(result)
	}
	return nil
}

func runProfileAnalyze(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	jsonOut := jsonMode(profileJSON)

	username, err := letterboxd.ValidateUsername(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analysis, err := a.profiles.Analyze(ctx, username, emitterFor(jsonOut, verbosity))
	if err != nil {
		return err
	}

	if !jsonOut {
		renderAnalysis(analysis)
	}
	return nil
}

// renderAnalysis prints the taste breakdown. The full document is richer
// than this; --json delivers every field for anything downstream.
func renderAnalysis(a *profile.Analysis) {
	pterm.Println()
	pterm.DefaultSection.Printf("Taste profile: %s", a.Username)

	if a.AIProfile != nil {
		pterm.Printf("%s\n", pterm.Bold.Sprint(a.AIProfile.Title))
		pterm.Printf("%s\n\n", a.AIProfile.Description)
	}
	if a.TasteSummary != "" {
		pterm.Printf("%s\n\n", a.TasteSummary)
	}

	pterm.Printf("Films: %d logged, %d rated, %.1f average stars\n",
		a.Stats.TotalFilms, a.Stats.RatedFilms, a.Stats.AverageStars)

	if len(a.Genres) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Top genres"))
		for i, g := range a.Genres {
			if i == 5 {
				break
			}
			line := fmt.Sprintf("  %-16s %d films", g.Name, g.Count)
			if g.AverageStars > 0 {
				line += fmt.Sprintf(", %.1f★ average", g.AverageStars)
			}
			pterm.Println(line)
		}
	}

	if len(a.Directors) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Most watched directors"))
		for i, d := range a.Directors {
			if i == 3 {
				break
			}
			pterm.Printf("  %-24s %d films\n", d.Name, d.Count)
			if len(d.SampleTitles) > 0 {
				pterm.Printf("    %s\n", pterm.Gray(strings.Join(d.SampleTitles, ", ")))
			}
		}
	}

	if len(a.Decades) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Decades"))
		for _, d := range a.Decades {
			pterm.Printf("  %-6s %d films\n", d.Decade, d.Count)
		}
	}

	if len(a.Ratings.Highest) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Highest rated"))
		for i, f := range a.Ratings.Highest {
			if i == 3 {
				break
			}
			pterm.Printf("  %.1f★  %s\n", f.Stars, formatTitleYear(f.Title, f.Year))
		}
	}

	if len(a.HiddenGems) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Hidden gems they loved"))
		for i, g := range a.HiddenGems {
			if i == 3 {
				break
			}
			pterm.Printf("  %.1f★  %s\n", g.Stars, formatTitleYear(g.Title, g.Year))
		}
	}
}

func formatTitleYear(title string, year int) string {
	if year > 0 {
		return fmt.Sprintf("%s (%d)", title, year)
	}
	return title
}
