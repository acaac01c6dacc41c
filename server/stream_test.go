package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	matineetest "github.com/teranos/matinee/internal/testing"
	"github.com/teranos/matinee/pipeline"
)

// parseEvents reads an SSE body to EOF and decodes every data frame.
func parseEvents(t *testing.T, r io.Reader) []pipeline.Event {
	t.Helper()
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	var events []pipeline.Event
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev pipeline.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func stageOrder(events []pipeline.Event) []pipeline.Stage {
	seen := make(map[pipeline.Stage]bool)
	var order []pipeline.Stage
	for _, ev := range events {
		if ev.Type == pipeline.TypeProgress && ev.Stage != "" && !seen[ev.Stage] {
			seen[ev.Stage] = true
			order = append(order, ev.Stage)
		}
	}
	return order
}

func eventsOfType(events []pipeline.Event, tp pipeline.Type) []pipeline.Event {
	var out []pipeline.Event
	for _, ev := range events {
		if ev.Type == tp {
			out = append(out, ev)
		}
	}
	return out
}

func TestRecommendStream(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, mvHeat, mvRonin, mvBlowOut, mvSamourai, mvSorcerer)
	ai := matineetest.NewAIScript(recommendReply)
	pages := map[string]string{
		"/ana/list/noir/": noirList(mvHeat, mvRonin, mvBlowOut, mvSamourai, mvSorcerer),
	}
	s := newTestServer(t, stub, pages, ai)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/recommend/stream?url=" +
		url.QueryEscape("https://letterboxd.com/ana/list/noir/"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := parseEvents(t, resp.Body)
	require.NotEmpty(t, events)
	require.Equal(t, []pipeline.Stage{
		pipeline.StageScraping,
		pipeline.StageMatching,
		pipeline.StagePoolBuilding,
		pipeline.StageRecommending,
		pipeline.StageResultEnrichment,
	}, stageOrder(events))

	require.Empty(t, eventsOfType(events, pipeline.TypeError))
	completes := eventsOfType(events, pipeline.TypeComplete)
	require.Len(t, completes, 1)
	require.Equal(t, pipeline.TypeComplete, events[len(events)-1].Type)

	result, ok := completes[0].Result.(map[string]interface{})
	require.True(t, ok)
	movies := result["movies"].([]interface{})
	require.Len(t, movies, 2)
	require.Equal(t, "Heat", movies[0].(map[string]interface{})["title"])
}

func TestRecommendStreamRejectsBadURL(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/recommend/stream?url=" +
		url.QueryEscape("https://example.com/ana/list/noir/"))
	require.NoError(t, err)
	defer resp.Body.Close()

	// Validation fails before the stream opens, so the client gets a plain
	// JSON error instead of an event stream.
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NotEmpty(t, payload["error"])
}

func TestStreamRejectsPost(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/api/recommend/stream", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAnalyzeStream(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, mvHeat, mvRonin, mvBlowOut)
	pages := map[string]string{
		"/dave/films/page/1/": profilePage(
			[]matineetest.TMDBMovie{mvHeat, mvRonin, mvBlowOut},
			[]int{9, 8, 7}),
	}
	s := newTestServer(t, stub, pages, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/profile/analyze/stream?username=dave")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := parseEvents(t, resp.Body)
	require.Equal(t, []pipeline.Stage{
		pipeline.StageScraping,
		pipeline.StageMatching,
		pipeline.StageAnalyzing,
	}, stageOrder(events))

	completes := eventsOfType(events, pipeline.TypeComplete)
	require.Len(t, completes, 1)

	result := completes[0].Result.(map[string]interface{})
	require.Equal(t, "dave", result["username"])
	require.NotEmpty(t, result["taste_summary"])

	stats := result["stats"].(map[string]interface{})
	require.Equal(t, float64(3), stats["total_films"])
	require.Equal(t, float64(3), stats["rated_films"])
	require.Equal(t, float64(4), stats["average_stars"])

	genres := result["genres"].([]interface{})
	require.Equal(t, "Thriller", genres[0].(map[string]interface{})["name"])
}

func TestCompareStream(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, mvHeat, mvRonin, mvCats, mvBlowOut, mvDrive, mvSamourai)
	stub.SetRelated(mvHeat.ID, mvSamourai.ID)
	stub.SetRelated(mvRonin.ID, mvSamourai.ID)
	pages := map[string]string{
		"/ana/films/page/1/": profilePage(
			[]matineetest.TMDBMovie{mvHeat, mvRonin, mvCats, mvBlowOut},
			[]int{10, 9, 2, 8}),
		"/ben/films/page/1/": profilePage(
			[]matineetest.TMDBMovie{mvHeat, mvRonin, mvCats, mvDrive},
			[]int{9, 8, 4, 10}),
	}
	s := newTestServer(t, stub, pages, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/compare/stream?users=ana,ben")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := parseEvents(t, resp.Body)
	require.Equal(t, []pipeline.Stage{
		pipeline.StageScraping,
		pipeline.StageMatching,
		pipeline.StageComparing,
	}, stageOrder(events))

	completes := eventsOfType(events, pipeline.TypeComplete)
	require.Len(t, completes, 1)

	result := completes[0].Result.(map[string]interface{})
	_, hasGroup := result["group"]
	require.False(t, hasGroup)

	pair := result["pair"].(map[string]interface{})
	users := pair["users"].([]interface{})
	require.Equal(t, []interface{}{"ana", "ben"}, users)

	compat := pair["compatibility"].(map[string]interface{})
	require.Equal(t, float64(87), compat["score"])
	require.Equal(t, float64(3), compat["rated_together"])

	picks := pair["fresh_picks"].([]interface{})
	require.Len(t, picks, 1)
	pick := picks[0].(map[string]interface{})
	require.Equal(t, "Le Samouraï", pick["title"])
	require.Equal(t, float64(2), pick["overlap"])
}

func TestCompareStreamRejectsSingleUser(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	s := newTestServer(t, stub, nil, matineetest.NewAIScript())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/compare/stream?users=solo")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Contains(t, payload["error"], "comparison needs 2 to 5 users")
}
