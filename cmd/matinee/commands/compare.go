package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/profile"
)

// CompareCmd compares Letterboxd profiles for group movie night
var CompareCmd = &cobra.Command{
	Use:   "compare <username> <username> [username...]",
	Short: "Compare 2-5 Letterboxd profiles",
	Long: `Compare viewing histories. Two users get a head-to-head: compatibility
score, shared favorites, biggest disagreements, and cross recommendations.
Three to five get a group report: safe bets, unwatched gems, and picks new
to everyone.

Examples:
  matinee compare ana ben
  matinee compare ana ben chloe dmitri --json`,
	Args: cobra.RangeArgs(profile.MinCompareUsers, profile.MaxCompareUsers),
	RunE: runCompare,
}

var compareJSON bool

func init() {
	CompareCmd.Flags().BoolVar(&compareJSON, "json", false, "Emit progress and comparison as JSON lines on stdout")
}

func runCompare(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	jsonOut := jsonMode(compareJSON)

	users := make([]string, len(args))
	for i, raw := range args {
		username, err := letterboxd.ValidateUsername(raw)
		if err != nil {
			return err
		}
		users[i] = username
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comparison, err := a.profiles.Compare(ctx, users, emitterFor(jsonOut, verbosity))
	if err != nil {
		return err
	}

	if !jsonOut {
		renderComparison(comparison)
	}
	return nil
}

func renderComparison(c *profile.Comparison) {
	switch {
	case c.Pair != nil:
		renderPair(c.Pair)
	case c.Group != nil:
		renderGroup(c.Group)
	}
}

func renderPair(p *profile.PairComparison) {
	pterm.Println()
	pterm.DefaultSection.Printf("%s vs %s", p.Users[0], p.Users[1])

	pterm.Printf("Compatibility: %s  (%d films rated together, %.1f★ average gap)\n",
		pterm.Bold.Sprintf("%.0f/100", p.Compatibility.Score),
		p.Compatibility.RatedTogether, p.Compatibility.AverageDifference)
	pterm.Printf("Watched together: %d films  (%d and %d watched alone)\n",
		p.SharedCount, p.UniqueCounts[0], p.UniqueCounts[1])

	if len(p.SharedFavorites) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Both loved"))
		for i, f := range p.SharedFavorites {
			if i == 3 {
				break
			}
			pterm.Printf("  %s  %.1f★ / %.1f★\n", formatTitleYear(f.Title, f.Year), f.Stars[0], f.Stars[1])
		}
	}

	if len(p.Disagreements) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Biggest splits"))
		for i, d := range p.Disagreements {
			if i == 3 {
				break
			}
			pterm.Printf("  %s  %.1f★ vs %.1f★\n", formatTitleYear(d.Title, d.Year), d.Stars[0], d.Stars[1])
		}
	}

	for side, recs := range p.CrossRecs {
		if len(recs) == 0 {
			continue
		}
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprintf("%s should watch", p.Users[side]))
		for i, r := range recs {
			if i == 3 {
				break
			}
			pterm.Printf("  %s  (%s rated it %.1f★)\n",
				formatTitleYear(r.Title, r.Year), p.Users[1-side], r.Stars)
		}
	}

	renderFreshPicks(p.FreshPicks)
}

func renderGroup(g *profile.GroupComparison) {
	pterm.Println()
	pterm.DefaultSection.Printf("Movie night for %d", len(g.Users))

	pterm.Printf("Average compatibility: %s   Watched by everyone: %d films\n",
		pterm.Bold.Sprintf("%.0f/100", g.AverageCompatibility), g.WatchedByAll)

	if len(g.SafeBets) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Safe rewatches"))
		for i, b := range g.SafeBets {
			if i == 3 {
				break
			}
			pterm.Printf("  %s  %.1f★ average across %d of you\n",
				formatTitleYear(b.Title, b.Year), b.Average, b.WatchedBy)
		}
	}

	if len(g.UnwatchedGems) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("Gems part of the group missed"))
		for i, u := range g.UnwatchedGems {
			if i == 3 {
				break
			}
			pterm.Printf("  %s  loved by %s\n",
				formatTitleYear(u.Title, u.Year), strings.Join(u.WatchedBy, ", "))
		}
	}

	if len(g.Members) > 0 {
		pterm.Println()
		pterm.Printf("%s\n", pterm.Bold.Sprint("The room"))
		for _, m := range g.Members {
			pterm.Printf("  %-16s %s (%.1f★ average over %d films)\n",
				m.Username, m.CriticType, m.AverageStars, m.TotalFilms)
		}
	}

	renderFreshPicks(g.GroupPicks)
}

// renderFreshPicks prints the catalog-sourced picks nobody in the pair or
// group has logged.
func renderFreshPicks(picks []profile.GroupPick) {
	if len(picks) == 0 {
		return
	}
	pterm.Println()
	pterm.Printf("%s\n", pterm.Bold.Sprint("Fresh picks for everyone"))
	for i, pick := range picks {
		if i == 5 {
			break
		}
		line := "  " + formatTitleYear(pick.Title, pick.Year)
		if pick.Director != "" {
			line += ", dir. " + pick.Director
		}
		pterm.Println(line)
	}
}
