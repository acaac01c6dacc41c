package letterboxd

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/logger"
)

var (
	listPathPattern  = regexp.MustCompile(`^/[\w-]+/list/[\w-]+/?$`)
	titleYearPattern = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)$`)
	slugYearPattern  = regexp.MustCompile(`-(\d{4})$`)
)

// ValidateListURL checks that rawURL points at a public Letterboxd list and
// returns the normalized target: the list path ("/{user}/list/{slug}/") for
// letterboxd.com URLs, or the full URL for boxd.it short links, which resolve
// through a redirect at fetch time.
func ValidateListURL(rawURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if trimmed == "" {
		return "", errors.NewMalformedInputError("list URL cannot be empty")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", errors.NewMalformedInputError("invalid list URL %q", rawURL)
	}

	host := strings.ToLower(u.Hostname())
	if host == "boxd.it" || host == "www.boxd.it" {
		return trimmed, nil
	}
	if host != "letterboxd.com" && host != "www.letterboxd.com" {
		return "", errors.NewMalformedInputError("URL must be from letterboxd.com or boxd.it, got %q", host)
	}
	if !listPathPattern.MatchString(u.Path) {
		return "", errors.NewMalformedInputError("URL must be a list like letterboxd.com/{user}/list/{name}/, got %q", u.Path)
	}

	path := u.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path, nil
}

// FetchList scrapes every page of a list and returns its entries in page
// order. Entries whose year cannot be determined are kept with Year 0 so the
// catalog lookup can still try an unconstrained search. A fetch failure after
// the first page keeps the partial result rather than discarding pages
// already scraped.
func (s *Scraper) FetchList(ctx context.Context, rawURL string) ([]Entry, error) {
	target, err := ValidateListURL(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(target, "/") {
		target = s.baseURL + target
	}

	logger.Infow("Scraping list", logger.FieldURL, target)

	doc, finalURL, err := s.fetchDocument(ctx, target)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(finalURL, "/") {
		finalURL += "/"
	}

	entries := extractListEntries(doc)
	logger.Debugw("Scraped list page", logger.FieldPage, 1, logger.FieldCount, len(entries))

	total := totalListPages(doc)
	if s.maxPages > 0 && total > s.maxPages {
		total = s.maxPages
	}

	for page := 2; page <= total; page++ {
		if err := s.politeWait(ctx, s.listDelay); err != nil {
			return nil, err
		}

		pageDoc, _, err := s.fetchDocument(ctx, fmt.Sprintf("%spage/%d/", finalURL, page))
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Warnw("Stopping list pagination early", logger.FieldPage, page, logger.FieldError, err)
			break
		}

		pageEntries := extractListEntries(pageDoc)
		entries = append(entries, pageEntries...)
		logger.Debugw("Scraped list page", logger.FieldPage, page, logger.FieldCount, len(pageEntries))
	}

	logger.Infow("List scrape complete", logger.FieldURL, target, logger.FieldCount, len(entries))
	return entries, nil
}

// extractListEntries parses the film posters on a list page. The full display
// name carries "Title (Year)"; when it is missing the plain name attribute and
// the slug's trailing year are the fallbacks.
func extractListEntries(doc *goquery.Document) []Entry {
	var entries []Entry
	doc.Find("li.posteritem div.react-component").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.AttrOr("data-item-full-display-name", ""))
		if name == "" {
			name = strings.TrimSpace(sel.AttrOr("data-item-name", ""))
		}
		if name == "" {
			return
		}

		slug := sel.AttrOr("data-item-slug", "")
		title, year := splitTitleYear(name)
		if year == 0 {
			year = yearFromSlug(slug)
		}

		entries = append(entries, Entry{Title: title, Year: year, Slug: slug})
	})
	return entries
}

// totalListPages reads the highest page number from the pagination block.
func totalListPages(doc *goquery.Document) int {
	pages := 1
	doc.Find("div.pagination a.paginate-page").Each(func(_ int, sel *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(sel.Text())); err == nil && n > pages {
			pages = n
		}
	})
	return pages
}

func splitTitleYear(name string) (string, int) {
	m := titleYearPattern.FindStringSubmatch(name)
	if m == nil {
		return name, 0
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return name, 0
	}
	return strings.TrimSpace(m[1]), year
}

func yearFromSlug(slug string) int {
	m := slugYearPattern.FindStringSubmatch(slug)
	if m == nil {
		return 0
	}
	year, _ := strconv.Atoi(m[1])
	return year
}
