package letterboxd

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/logger"
)

var (
	usernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	profileURLPattern = regexp.MustCompile(`letterboxd\.com/([a-zA-Z0-9_-]+)`)
)

// ValidateUsername normalizes a username or profile URL to a lowercase
// username. Letterboxd usernames are case-insensitive and limited to letters,
// digits, underscores, and hyphens.
func ValidateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", errors.NewMalformedInputError("username cannot be empty")
	}

	if strings.Contains(username, "letterboxd.com/") {
		m := profileURLPattern.FindStringSubmatch(username)
		if m == nil {
			return "", errors.NewMalformedInputError("could not extract a username from %q", raw)
		}
		username = m[1]
	}

	if !usernamePattern.MatchString(username) {
		return "", errors.NewMalformedInputError("username may only contain letters, numbers, underscores, and hyphens, got %q", username)
	}
	return strings.ToLower(username), nil
}

// FetchProfile scrapes a member's watched films, newest first, with their
// ratings and flags. A missing profile surfaces as a not-found error; a
// private one as access denied. Once at least one page has been scraped,
// fetch failures end pagination with the partial result instead of failing
// the whole scrape.
func (s *Scraper) FetchProfile(ctx context.Context, username string) ([]Entry, error) {
	name, err := ValidateUsername(username)
	if err != nil {
		return nil, err
	}

	logger.Infow("Scraping profile", logger.FieldUsername, name)

	var all []Entry
	for page := 1; ; page++ {
		if page > 1 {
			if err := s.politeWait(ctx, s.profileDelay); err != nil {
				return nil, err
			}
		}

		pageURL := fmt.Sprintf("%s/%s/films/page/%d/", s.baseURL, name, page)
		doc, _, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			if errors.IsNotFound(err) {
				if page == 1 {
					return nil, errors.NewNotFoundError("profile %q not found", name)
				}
				break
			}
			if errors.IsAccessDenied(err) || page == 1 || ctx.Err() != nil {
				return nil, err
			}
			logger.Warnw("Stopping profile pagination early", logger.FieldPage, page, logger.FieldError, err)
			break
		}

		entries := extractProfileEntries(doc)
		if len(entries) == 0 {
			break
		}
		all = append(all, entries...)
		logger.Debugw("Scraped profile page", logger.FieldPage, page, logger.FieldCount, len(entries))

		if s.maxPages > 0 && page >= s.maxPages {
			logger.Debugw("Reached profile page cap", logger.FieldPage, page)
			break
		}
		if !hasNextPage(doc) {
			break
		}
	}

	logger.Infow("Profile scrape complete", logger.FieldUsername, name, logger.FieldCount, len(all))
	return all, nil
}

// extractProfileEntries parses the poster grid of a films page. Each poster
// is a div carrying the film id; the viewing data (rating, like, review) sits
// on a sibling paragraph inside the same list item.
func extractProfileEntries(doc *goquery.Document) []Entry {
	var entries []Entry
	doc.Find("div[data-film-id]").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.AttrOr("data-item-name", ""))
		if name == "" {
			return
		}

		title, year := splitTitleYear(name)
		if year == 0 {
			year = yearFromSlug(sel.AttrOr("data-item-slug", ""))
		}

		entry := Entry{
			Title:  title,
			Year:   year,
			Slug:   sel.AttrOr("data-item-slug", ""),
			FilmID: sel.AttrOr("data-film-id", ""),
			Link:   sel.AttrOr("data-item-link", ""),
		}

		container := sel.Closest("li")
		if container.Length() == 0 {
			container = sel.Parent()
		}
		viewing := container.Find("p.poster-viewingdata").First()
		if viewing.Length() > 0 {
			entry.Rating = ratingFromClasses(viewing.Find("span.rating").First())
			entry.Liked = viewing.Find("span.like.liked-micro").Length() > 0
			entry.Reviewed = viewing.Find("a.review-micro").Length() > 0
		}

		entries = append(entries, entry)
	})
	return entries
}

// ratingFromClasses pulls the half-star rating out of a rated-N class.
func ratingFromClasses(sel *goquery.Selection) int {
	for _, class := range strings.Fields(sel.AttrOr("class", "")) {
		n, ok := strings.CutPrefix(class, "rated-")
		if !ok {
			continue
		}
		if rating, err := strconv.Atoi(n); err == nil && rating >= 1 && rating <= 10 {
			return rating
		}
	}
	return 0
}

func hasNextPage(doc *goquery.Document) bool {
	return doc.Find("div.pagination a.next").Length() > 0
}

// Stats summarizes a scraped profile. Ratings are half-star units (1..10);
// the stars fields translate to the 0.5..5.0 scale members see.
type Stats struct {
	TotalFilms    int         `json:"total_films"`
	RatedFilms    int         `json:"rated_films"`
	UnratedFilms  int         `json:"unrated_films"`
	AverageRating float64     `json:"average_rating"`
	AverageStars  float64     `json:"average_stars"`
	LikedCount    int         `json:"liked_count"`
	ReviewedCount int         `json:"reviewed_count"`
	RatingCounts  map[int]int `json:"rating_distribution"`
	FirstYear     int         `json:"first_year,omitempty"`
	LastYear      int         `json:"last_year,omitempty"`
}

// ProfileStats computes summary statistics over scraped profile entries.
func ProfileStats(entries []Entry) Stats {
	stats := Stats{
		TotalFilms:   len(entries),
		RatingCounts: make(map[int]int, 10),
	}
	for i := 1; i <= 10; i++ {
		stats.RatingCounts[i] = 0
	}

	var ratingSum int
	for _, e := range entries {
		if e.Rated() {
			stats.RatedFilms++
			ratingSum += e.Rating
			stats.RatingCounts[e.Rating]++
		}
		if e.Liked {
			stats.LikedCount++
		}
		if e.Reviewed {
			stats.ReviewedCount++
		}
		if e.Year > 0 {
			if stats.FirstYear == 0 || e.Year < stats.FirstYear {
				stats.FirstYear = e.Year
			}
			if e.Year > stats.LastYear {
				stats.LastYear = e.Year
			}
		}
	}

	stats.UnratedFilms = stats.TotalFilms - stats.RatedFilms
	if stats.RatedFilms > 0 {
		stats.AverageRating = float64(ratingSum) / float64(stats.RatedFilms)
		stats.AverageStars = stats.AverageRating / 2
	}
	return stats
}
