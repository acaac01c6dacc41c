package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/pipeline"
)

// RecommendCmd runs a one-shot list recommendation
var RecommendCmd = &cobra.Command{
	Use:   "recommend <list-url>",
	Short: "Recommend movies from a Letterboxd list",
	Long: `Scrape a Letterboxd list, match its films against the TMDB catalog, and
ask the AI for recommendations grounded in what the list contains.

Examples:
  matinee recommend https://letterboxd.com/user/list/film-noir/
  matinee recommend letterboxd.com/user/list/film-noir --preferences "slow-burn crime"
  matinee recommend https://letterboxd.com/user/list/film-noir/ --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

var (
	recommendPreferences string
	recommendExplain     bool
	recommendJSON        bool
)

func init() {
	RecommendCmd.Flags().StringVar(&recommendPreferences, "preferences", "", "Steer the picks (e.g. \"slow-burn crime, nothing over two hours\")")
	RecommendCmd.Flags().BoolVar(&recommendExplain, "explain", false, "Ask the model to explain each pick")
	RecommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "Emit progress and result as JSON lines on stdout")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	jsonOut := jsonMode(recommendJSON)

	// Reject garbage before any spinner starts
	if _, err := letterboxd.ValidateListURL(args[0]); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.pipe.Run(ctx, pipeline.Request{
		Source:      pipeline.ListSource{Scraper: a.scraper, URL: args[0]},
		Preferences: recommendPreferences,
		Explain:     recommendExplain,
	}, emitterFor(jsonOut, verbosity))
	if err != nil {
		return err
	}

	if !jsonOut {
		renderResult(result)
	}
	return nil
}

// renderResult prints the picks of a finished run. JSON mode skips this; the
// result already rode out on the complete event.
func renderResult(result *pipeline.Result) {
	pterm.Println()
	pterm.DefaultSection.Printf("Recommendations (%d picks from %d matched films)",
		len(result.Movies), result.Stats.Matched)

	for i, m := range result.Movies {
		title := pterm.Bold.Sprint(m.Title)
		if m.Year > 0 {
			title += " " + pterm.Gray(fmt.Sprintf("(%d)", m.Year))
		}
		pterm.Printf("%2d. %s\n", i+1, title)
		if m.Director != "" {
			pterm.Printf("    directed by %s\n", m.Director)
		}
		if m.Rating > 0 {
			pterm.Printf("    rated %.1f/10 on TMDB\n", m.Rating)
		}
		if m.Reason != "" {
			pterm.Printf("    %s\n", pterm.Italic.Sprint(m.Reason))
		}
	}

	if result.Partial() {
		pterm.Println()
		pterm.Warning.Printf("Partial result: %d of %d requested picks (matched %d of %d scraped films)\n",
			len(result.Movies), result.Requested, result.Stats.Matched, result.Stats.Scraped)
	}
}
