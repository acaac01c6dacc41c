package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teranos/matinee/ai/tracker"
	"github.com/teranos/matinee/config"
	"github.com/teranos/matinee/internal/httpclient"
	matineetest "github.com/teranos/matinee/internal/testing"
	"github.com/teranos/matinee/internal/util"
	"github.com/teranos/matinee/letterboxd"
	"github.com/teranos/matinee/pipeline"
	"github.com/teranos/matinee/profile"
	"github.com/teranos/matinee/recommend"
	"github.com/teranos/matinee/tmdb"
)

const testAPIKey = "test-key"

// Catalog records shared across the handler, stream, and socket tests.
var (
	mvHeat     = matineetest.TMDBMovie{ID: 11, Title: "Heat", ReleaseDate: "1995-12-15", Runtime: 170, VoteAverage: 8.3, VoteCount: 7000, Popularity: 60, Genres: []string{"Crime", "Thriller"}, Director: "Michael Mann", PosterPath: "/heat.jpg"}
	mvRonin    = matineetest.TMDBMovie{ID: 12, Title: "Ronin", ReleaseDate: "1998-09-25", Runtime: 122, VoteAverage: 7.2, VoteCount: 3500, Popularity: 40, Genres: []string{"Crime", "Thriller"}, Director: "John Frankenheimer"}
	mvCats     = matineetest.TMDBMovie{ID: 14, Title: "Cats", ReleaseDate: "2019-12-20", Runtime: 110, VoteAverage: 2.8, VoteCount: 2500, Popularity: 50, Genres: []string{"Comedy"}, Director: "Tom Hooper"}
	mvBlowOut  = matineetest.TMDBMovie{ID: 19, Title: "Blow Out", ReleaseDate: "1981-07-24", Runtime: 108, VoteAverage: 7.4, VoteCount: 1200, Popularity: 20, Genres: []string{"Thriller"}, Director: "Brian De Palma"}
	mvDrive    = matineetest.TMDBMovie{ID: 22, Title: "Drive", ReleaseDate: "2011-09-15", Runtime: 100, VoteAverage: 7.6, VoteCount: 9000, Popularity: 70, Genres: []string{"Crime", "Thriller"}, Director: "Nicolas Refn"}
	mvSamourai = matineetest.TMDBMovie{ID: 32, Title: "Le Samouraï", ReleaseDate: "1967-10-25", Runtime: 105, VoteAverage: 8.0, VoteCount: 1500, Popularity: 15, Genres: []string{"Crime", "Thriller"}, Director: "Jean-Pierre Melville"}
	mvSorcerer = matineetest.TMDBMovie{ID: 33, Title: "Sorcerer", ReleaseDate: "1977-06-24", Runtime: 121, VoteAverage: 7.6, VoteCount: 900, Popularity: 14, Genres: []string{"Thriller"}, Director: "William Friedkin"}
)

// recommendReply is a model reply picking two films from the noir list.
const recommendReply = `{"recommendations":[{"title":"Heat","year":1995},{"title":"Le Samouraï","year":1967}]}`

// noirList renders a single-page list of the given movies.
func noirList(movies ...matineetest.TMDBMovie) string {
	films := make([]matineetest.ListFilm, len(movies))
	for i, m := range movies {
		films[i] = matineetest.ListFilm{
			DisplayName: fmt.Sprintf("%s (%s)", m.Title, m.ReleaseDate[:4]),
			Name:        m.Title,
		}
	}
	return matineetest.ListPageHTML(films, 1)
}

// profilePage renders a films page rating the given movies; ratings[i] is
// the 1..10 half-star value.
func profilePage(movies []matineetest.TMDBMovie, ratings []int) string {
	films := make([]matineetest.ProfileFilm, len(movies))
	for i, m := range movies {
		films[i] = matineetest.ProfileFilm{
			Name:   fmt.Sprintf("%s (%s)", m.Title, m.ReleaseDate[:4]),
			FilmID: strconv.Itoa(m.ID),
			Rating: ratings[i],
		}
	}
	return matineetest.ProfilePageHTML(films, false)
}

func testScraper(t *testing.T, pages map[string]string) *letterboxd.Scraper {
	srv := matineetest.NewHTMLServer(t, pages)
	return letterboxd.New(letterboxd.Options{
		BaseURL:   srv.URL,
		PageDelay: util.Ptr(time.Duration(0)),
		Client:    httpclient.WrapClient(srv.Client()),
	})
}

// newTestServer wires a full server over stubbed upstreams: the catalog
// stub, a scraped-pages server, and a scripted model.
func newTestServer(t *testing.T, stub *matineetest.TMDBStub, pages map[string]string, ai *matineetest.AIScript) *Server {
	scraper := testScraper(t, pages)
	cache := tmdb.NewCache()
	catalog := tmdb.New(tmdb.Options{
		APIKey:  testAPIKey,
		BaseURL: stub.URL(),
		Client:  httpclient.WrapClient(stub.Server.Client()),
		Cache:   cache,
		Retry: &tmdb.RetryPolicy{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	})
	usage := tracker.NewTracker()
	pipe := pipeline.New(pipeline.Options{
		Catalog:      catalog,
		Engine:       recommend.New(recommend.Options{Client: tracker.Wrap(ai, usage, "anthropic"), Count: 2}),
		Rules:        config.PipelineConfig{MinMatches: 2},
		MatchWorkers: 4,
	})
	profiles := profile.NewService(profile.Options{Pipeline: pipe, Scraper: scraper, Catalog: catalog})

	cfg := &config.Config{}
	cfg.TMDB.APIKey = testAPIKey
	cfg.Anthropic.APIKey = "anthropic-key"
	cfg.Server.AllowedOrigins = []string{"http://localhost", "http://127.0.0.1", "https://app.example.com"}

	return New(Options{
		Config:   cfg,
		Pipeline: pipe,
		Profiles: profiles,
		Scraper:  scraper,
		Cache:    cache,
		Usage:    usage,
	})
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestHandleHealth(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	var payload map[string]interface{}
	resp := getJSON(t, ts.URL+"/health", &payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	require.Equal(t, "running", payload["status"])
	require.Equal(t, true, payload["tmdb_configured"])
	require.Equal(t, true, payload["ai_configured"])
	require.Equal(t, float64(0), payload["cache_size"])
	require.Equal(t, float64(0), payload["clients"])
}

func TestHandleHealthReportsMissingKeys(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	s.tmdbConfigured = false
	s.aiConfigured = false
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	var payload map[string]interface{}
	getJSON(t, ts.URL+"/health", &payload)
	require.Equal(t, false, payload["tmdb_configured"])
	require.Equal(t, false, payload["ai_configured"])
}

func TestHandleStatus(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	var status StatusResponse
	resp := getJSON(t, ts.URL+"/api/status", &status)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, "running", status.Status)
	require.NotEmpty(t, status.Version)
	require.NotEmpty(t, status.GoVersion)
	require.NotEmpty(t, status.Platform)
	require.Greater(t, status.Goroutines, 0)
	require.Greater(t, status.CPU.Cores, 0)
	require.GreaterOrEqual(t, status.UptimeSeconds, int64(0))
	require.Equal(t, 0, status.Clients)

	// No AI calls yet, but the tracker is wired.
	require.NotNil(t, status.AI)
	require.Equal(t, 0, status.AI.TotalRequests)
}

func TestHandleStatusRejectsPost(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleRecommend(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, mvHeat, mvRonin, mvBlowOut, mvSamourai, mvSorcerer)
	ai := matineetest.NewAIScript(recommendReply)
	pages := map[string]string{
		"/ana/list/noir/": noirList(mvHeat, mvRonin, mvBlowOut, mvSamourai, mvSorcerer),
	}
	s := newTestServer(t, stub, pages, ai)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	body := `{"url":"https://letterboxd.com/ana/list/noir/","preferences":"slow-burn crime"}`
	resp, err := http.Post(ts.URL+"/api/recommend", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	require.NotEmpty(t, result["run_id"])
	require.Equal(t, float64(2), result["requested"])

	movies, ok := result["movies"].([]interface{})
	require.True(t, ok)
	require.Len(t, movies, 2)
	first := movies[0].(map[string]interface{})
	require.Equal(t, "Heat", first["title"])
	require.Equal(t, float64(1995), first["year"])
	require.Equal(t, "Michael Mann", first["director"])

	stats := result["stats"].(map[string]interface{})
	require.Equal(t, float64(5), stats["scraped"])
	require.Equal(t, float64(5), stats["matched"])

	require.Equal(t, 1, ai.Calls())
	require.Contains(t, ai.LastRequest().UserPrompt, "slow-burn crime")

	// The run populated the shared catalog cache and the AI usage counters.
	var health map[string]interface{}
	getJSON(t, ts.URL+"/health", &health)
	require.Greater(t, health["cache_size"], float64(0))

	var status StatusResponse
	getJSON(t, ts.URL+"/api/status", &status)
	require.NotNil(t, status.AI)
	require.Equal(t, 1, status.AI.TotalRequests)
	require.Equal(t, 150, status.AI.TotalTokens)
}

func TestHandleRecommendRejectsBadInput(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/recommend")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/recommend", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, payload["error"], "invalid request body")

	resp, err = http.Post(ts.URL+"/api/recommend", "application/json",
		strings.NewReader(`{"url":"https://example.com/ana/list/noir/"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRecommendInsufficientMatches(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	films := []matineetest.ListFilm{
		{DisplayName: "Phantom Reel (2001)", Name: "Phantom Reel"},
		{DisplayName: "Vanishing Print (2002)", Name: "Vanishing Print"},
	}
	pages := map[string]string{
		"/ana/list/noir/": matineetest.ListPageHTML(films, 1),
	}
	s := newTestServer(t, stub, pages, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/api/recommend", "application/json",
		strings.NewReader(`{"url":"https://letterboxd.com/ana/list/noir/"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "insufficient matches", payload["error"])
}

func TestHandleProfileRecommend(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, mvHeat, mvRonin, mvBlowOut, mvSamourai)
	ai := matineetest.NewAIScript(recommendReply)
	pages := map[string]string{
		"/dave/films/page/1/": profilePage(
			[]matineetest.TMDBMovie{mvHeat, mvRonin, mvBlowOut, mvSamourai},
			[]int{9, 8, 7, 10}),
	}
	s := newTestServer(t, stub, pages, ai)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	// Mixed case normalizes to the lowercase profile path.
	resp, err := http.Post(ts.URL+"/api/profile/recommend", "application/json",
		strings.NewReader(`{"username":"Dave"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	movies := result["movies"].([]interface{})
	require.Len(t, movies, 2)
}

func TestHandleProfileRecommendRejectsBadUsername(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/api/profile/recommend", "application/json",
		strings.NewReader(`{"username":"no spaces allowed"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())

	allowed := httptest.NewRequest(http.MethodGet, "/health", nil)
	allowed.Header.Set("Origin", "http://localhost:5173")
	require.True(t, s.checkOrigin(allowed))

	noOrigin := httptest.NewRequest(http.MethodGet, "/health", nil)
	require.True(t, s.checkOrigin(noOrigin))

	denied := httptest.NewRequest(http.MethodGet, "/health", nil)
	denied.Header.Set("Origin", "https://evil.example")
	require.False(t, s.checkOrigin(denied))

	s.SetAllowedOrigins([]string{"https://evil.example"})
	require.True(t, s.checkOrigin(denied))
	require.False(t, s.checkOrigin(allowed))
}

func TestCORSHeaders(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req, err = http.NewRequest(http.MethodOptions, ts.URL+"/api/recommend", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDrainingRefusesNewWork(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	s.setState(StateDraining)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "server is shutting down", payload["error"])

	// Health stays reachable and reports the drain.
	var health map[string]interface{}
	resp = getJSON(t, ts.URL+"/health", &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "draining", health["status"])
}
