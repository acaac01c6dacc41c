package tmdb

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/internal/util"
	"github.com/teranos/matinee/logger"
)

const (
	// acceptScore is the similarity at which a candidate is taken outright;
	// fallbackScore admits the best remaining candidate with a warning in the
	// log. Below that the title is NotMatched.
	acceptScore   = 85
	fallbackScore = 75

	// yearBonus rewards candidates whose release year matches the scraped one.
	yearBonus = 15

	// maxCandidates bounds how deep into a result page scoring looks.
	maxCandidates = 10
)

var (
	// Leading articles in the languages Letterboxd titles commonly carry.
	leadingArticles = regexp.MustCompile(`^(the|a|an|le|la|les|un|une|der|die|das|el|los|las)\s+`)
	nonAlnum        = regexp.MustCompile(`[^a-z0-9\s]`)
)

type searchResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseDate   string  `json:"release_date"`
	Popularity    float64 `json:"popularity"`
	VoteCount     int     `json:"vote_count"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type scoredResult struct {
	id    int
	title string
	year  int
	score int
}

// Search resolves a title and optional year (0 = unknown) to a catalog id.
// Year-constrained search runs first; an exact-year top result is trusted
// outright. Otherwise candidates from both the constrained and unconstrained
// searches are scored by normalized-title similarity with a year bonus.
// No acceptable candidate is a non-error outcome: ErrNotMatched.
func (c *Client) Search(ctx context.Context, title string, year int) (int, error) {
	if strings.TrimSpace(title) == "" {
		return 0, errors.NewMalformedInputError("search title cannot be empty")
	}

	var candidates []scoredResult
	if year > 0 {
		results, err := c.searchPage(ctx, title, year)
		if err != nil {
			return 0, err
		}
		if len(results) > 0 && yearOf(results[0]) == year {
			return results[0].ID, nil
		}
		candidates = scoreResults(results, title, year)
	}

	results, err := c.searchPage(ctx, title, 0)
	if err != nil {
		return 0, err
	}
	candidates = append(candidates, scoreResults(results, title, year)...)

	best := bestCandidate(candidates)
	if best == nil || best.score < fallbackScore {
		logger.Debugw("No acceptable catalog match",
			logger.FieldTitle, title,
			logger.FieldYear, year,
		)
		return 0, errors.Wrapf(errors.ErrNotMatched, "%s (%d)", title, year)
	}

	if best.score < acceptScore {
		logger.Debugw("Accepting low-confidence catalog match",
			logger.FieldTitle, title,
			"matched_title", best.title,
			"score", best.score,
		)
	}
	return best.id, nil
}

func (c *Client) searchPage(ctx context.Context, title string, year int) ([]searchResult, error) {
	q := url.Values{}
	q.Set("query", title)
	q.Set("include_adult", "false")
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var resp searchResponse
	if err := c.getWithRetry(ctx, "/search/movie", q, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// scoreResults scores up to maxCandidates results against the wanted title.
func scoreResults(results []searchResult, title string, year int) []scoredResult {
	want := normalizeTitle(title)

	limit := len(results)
	if limit > maxCandidates {
		limit = maxCandidates
	}

	scored := make([]scoredResult, 0, limit)
	for _, r := range results[:limit] {
		score := similarity(want, normalizeTitle(r.Title))
		if r.OriginalTitle != "" && r.OriginalTitle != r.Title {
			if alt := similarity(want, normalizeTitle(r.OriginalTitle)); alt > score {
				score = alt
			}
		}
		if year > 0 && yearOf(r) == year {
			score += yearBonus
		}
		scored = append(scored, scoredResult{id: r.ID, title: r.Title, year: yearOf(r), score: score})
	}
	return scored
}

// bestCandidate picks the highest score; ties keep the earlier result, which
// the API ranks by popularity.
func bestCandidate(candidates []scoredResult) *scoredResult {
	var best *scoredResult
	for i := range candidates {
		if best == nil || candidates[i].score > best.score {
			best = &candidates[i]
		}
	}
	return best
}

// normalizeTitle lowercases, strips a leading article and punctuation, and
// collapses whitespace. Titles that normalize to nothing (non-Latin scripts)
// keep their lowercased form so they still compare against each other.
func normalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = leadingArticles.ReplaceAllString(t, "")
	stripped := util.CollapseWhitespace(nonAlnum.ReplaceAllString(t, ""))
	if stripped == "" {
		return util.CollapseWhitespace(t)
	}
	return stripped
}

// similarity is a 0..100 Levenshtein ratio between normalized titles.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}

	dist := fuzzy.LevenshteinDistance(a, b)
	if dist >= longest {
		return 0
	}
	return (longest - dist) * 100 / longest
}

func yearOf(r searchResult) int { return yearFromDate(r.ReleaseDate) }
