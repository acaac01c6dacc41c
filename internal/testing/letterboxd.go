package testing

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ListFilm describes one entry on a list page fixture.
type ListFilm struct {
	DisplayName string // data-item-full-display-name, e.g. "Heat (1995)"
	Name        string // data-item-name fallback when DisplayName is empty
	Slug        string // data-item-slug, e.g. "heat-1995"
}

// ListPageHTML renders a list page the way Letterboxd does: one
// li.posteritem per film wrapping a react-component div whose data
// attributes carry the title and year. totalPages > 1 adds numbered
// pagination links.
func ListPageHTML(films []ListFilm, totalPages int) string {
	var b strings.Builder
	b.WriteString("<html><body><ul class=\"poster-list\">\n")

	for _, f := range films {
		b.WriteString("<li class=\"posteritem\"><div class=\"react-component\"")
		writeAttr(&b, "data-item-full-display-name", f.DisplayName)
		writeAttr(&b, "data-item-name", f.Name)
		writeAttr(&b, "data-item-slug", f.Slug)
		b.WriteString("></div></li>\n")
	}

	b.WriteString("</ul>\n")

	if totalPages > 1 {
		b.WriteString("<div class=\"pagination\">")
		for p := 1; p <= totalPages; p++ {
			fmt.Fprintf(&b, "<a class=\"paginate-page\" href=\"page/%d/\">%d</a>", p, p)
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</body></html>")
	return b.String()
}

// ProfileFilm describes one entry on a profile films page fixture.
type ProfileFilm struct {
	Name     string // data-item-name, may carry a "(YYYY)" suffix
	Slug     string // data-item-slug
	FilmID   string // data-film-id; films without one are invisible to the scraper
	Link     string // data-item-link
	Rating   int    // 1..10 renders a rated-N span; 0 means unrated
	Liked    bool
	Reviewed bool
}

// ProfilePageHTML renders a profile films page. When hasNext is true the
// pagination block carries a next link, signalling more pages to scrape.
func ProfilePageHTML(films []ProfileFilm, hasNext bool) string {
	var b strings.Builder
	b.WriteString("<html><body><ul class=\"poster-list\">\n")

	for _, f := range films {
		b.WriteString("<li class=\"poster-container\"><div class=\"react-component\"")
		writeAttr(&b, "data-film-id", f.FilmID)
		writeAttr(&b, "data-item-name", f.Name)
		writeAttr(&b, "data-item-slug", f.Slug)
		writeAttr(&b, "data-item-link", f.Link)
		b.WriteString("></div><p class=\"poster-viewingdata\">")

		if f.Rating > 0 {
			fmt.Fprintf(&b, "<span class=\"rating rated-%d\"></span>", f.Rating)
		}
		if f.Liked {
			b.WriteString("<span class=\"like liked-micro\"></span>")
		}
		if f.Reviewed {
			b.WriteString("<a class=\"review-micro\" href=\"/review/\"></a>")
		}

		b.WriteString("</p></li>\n")
	}

	b.WriteString("</ul>\n")

	if hasNext {
		b.WriteString("<div class=\"pagination\"><a class=\"next\" href=\"#\">Older</a></div>\n")
	}

	b.WriteString("</body></html>")
	return b.String()
}

func writeAttr(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, " %s=\"%s\"", name, html.EscapeString(value))
}

// NewHTMLServer starts a server returning fixed HTML bodies by exact request
// path. Unknown paths get a 404, which is how Letterboxd signals a missing
// profile or the end of pagination.
func NewHTMLServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}
