package tmdb

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/internal/httpclient"
	matineetest "github.com/teranos/matinee/internal/testing"
)

var heat = matineetest.TMDBMovie{
	ID:            949,
	Title:         "Heat",
	ReleaseDate:   "1995-12-15",
	Overview:      "Obsessive master thief Neil McCauley leads a top-notch crew.",
	Runtime:       170,
	VoteAverage:   7.9,
	VoteCount:     6718,
	Popularity:    63.0,
	Genres:        []string{"Action", "Crime", "Drama"},
	Director:      "Michael Mann",
	Cast:          []string{"Al Pacino", "Robert De Niro", "Val Kilmer", "Jon Voight", "Tom Sizemore", "Diane Venora"},
	Keywords:      []string{"bank robbery", "heist", "los angeles"},
	Certification: "R",
	PosterPath:    "/heat.jpg",
}

func TestDetails(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, heat)
	c := newTestClient(stub.Server)

	m, err := c.Details(context.Background(), 949)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if m.ID != 949 || m.Title != "Heat" || m.Year != 1995 {
		t.Errorf("Unexpected identity fields: %+v", m)
	}
	if m.Director != "Michael Mann" {
		t.Errorf("Expected director Michael Mann, got %q", m.Director)
	}
	if len(m.Cast) != castLimit {
		t.Errorf("Expected cast capped at %d, got %d", castLimit, len(m.Cast))
	}
	if m.Cast[0] != "Al Pacino" {
		t.Errorf("Expected billing order preserved, got %q first", m.Cast[0])
	}
	if len(m.Genres) != 3 || m.Genres[0] != "Action" {
		t.Errorf("Unexpected genres: %v", m.Genres)
	}
	if len(m.Keywords) != 3 {
		t.Errorf("Expected 3 keywords, got %d", len(m.Keywords))
	}
	if m.Certification != "R" {
		t.Errorf("Expected certification R, got %q", m.Certification)
	}
	if m.Runtime != 170 {
		t.Errorf("Expected runtime 170, got %d", m.Runtime)
	}
	if m.Rating != 7.9 || m.VoteCount != 6718 {
		t.Errorf("Unexpected rating fields: %v/%d", m.Rating, m.VoteCount)
	}
	if m.PosterURL != posterBaseURL+"/heat.jpg" {
		t.Errorf("Unexpected poster URL: %q", m.PosterURL)
	}
}

func TestDetailsNotFound(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	c := newTestClient(stub.Server)

	_, err := c.Details(context.Background(), 12345)
	if err == nil {
		t.Fatal("Expected error for unknown id")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("Expected not found error, got %v", err)
	}
	// Not found is final, no retries.
	if n := stub.RequestCount("/movie/12345"); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}
}

func TestAuthenticationErrorAbortsWithoutRetry(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, "the-real-key", heat)

	c := New(Options{
		APIKey:  "wrong-key",
		BaseURL: stub.URL(),
		Client:  httpclient.WrapClient(stub.Server.Client()),
	})

	_, err := c.Search(context.Background(), "Heat", 1995)
	if err == nil {
		t.Fatal("Expected authentication error")
	}
	if !errors.IsAuthentication(err) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}
	if n := stub.RequestCount("/search/movie"); n != 1 {
		t.Errorf("Expected no retries on 401, got %d requests", n)
	}
}

func TestRetryOnThrottleThenSuccess(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, heat)
	stub.FailNext("/search/movie", http.StatusTooManyRequests)
	c := newTestClient(stub.Server)

	id, err := c.Search(context.Background(), "Heat", 1995)
	if err != nil {
		t.Fatalf("Expected the retry to recover, got %v", err)
	}
	if id != 949 {
		t.Errorf("Expected id 949, got %d", id)
	}
	if n := stub.RequestCount("/search/movie"); n != 2 {
		t.Errorf("Expected 2 requests (throttled then retried), got %d", n)
	}
}

func TestRetryOnServerErrorThenSuccess(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, heat)
	stub.FailNext("/movie/949", http.StatusInternalServerError, http.StatusBadGateway)
	c := newTestClient(stub.Server)

	m, err := c.Details(context.Background(), 949)
	if err != nil {
		t.Fatalf("Expected retries to recover, got %v", err)
	}
	if m.Title != "Heat" {
		t.Errorf("Expected Heat, got %q", m.Title)
	}
	if n := stub.RequestCount("/movie/949"); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, heat)
	stub.FailNext("/search/movie", 500, 500, 500, 500)
	c := newTestClient(stub.Server)

	_, err := c.Search(context.Background(), "Heat", 1995)
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if errors.IsAuthentication(err) || errors.IsNotMatched(err) {
		t.Errorf("Expected a transport error, got %v", err)
	}
	// Three attempts: the first plus MaxRetries.
	if n := stub.RequestCount("/search/movie"); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second}, // capped
		{10, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d): expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if isTransient(nil) {
		t.Error("Expected nil to be non-retryable")
	}
	if !isTransient(&apiError{Status: 429}) {
		t.Error("Expected 429 to be retryable")
	}
	if !isTransient(&apiError{Status: 503}) {
		t.Error("Expected 503 to be retryable")
	}
	if isTransient(&apiError{Status: 400}) {
		t.Error("Expected 400 to be final")
	}
	if isTransient(errors.NewAuthenticationError("bad key")) {
		t.Error("Expected authentication failures to be final")
	}
	if isTransient(errors.ErrNotMatched) {
		t.Error("Expected not-matched to be final")
	}
	// Wrapping must not hide the classification.
	if !isTransient(errors.Wrap(&apiError{Status: 502}, "fetching page")) {
		t.Error("Expected a wrapped 502 to stay retryable")
	}
}

func TestFindCachesResult(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, heat)
	c := newTestClient(stub.Server)

	first, err := c.Find(context.Background(), "Heat", 1995)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := c.Find(context.Background(), "Heat", 1995)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if first != second {
		t.Error("Expected the cached record to be returned")
	}
	if n := stub.RequestCount("/search/movie"); n != 1 {
		t.Errorf("Expected 1 search, got %d", n)
	}
	if n := stub.RequestCount("/movie/949"); n != 1 {
		t.Errorf("Expected 1 details fetch, got %d", n)
	}
	if c.CacheSize() != 1 {
		t.Errorf("Expected 1 cached movie, got %d", c.CacheSize())
	}
}

func TestFindNormalizesCacheKey(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, heat)
	c := newTestClient(stub.Server)

	if _, err := c.Find(context.Background(), "Heat", 1995); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := c.Find(context.Background(), "  HEAT ", 1995); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if n := stub.RequestCount("/search/movie"); n != 1 {
		t.Errorf("Expected case and whitespace variants to share a cache entry, got %d searches", n)
	}
}

func TestFindSingleFlight(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, heat)
	c := newTestClient(stub.Server)

	var wg sync.WaitGroup
	results := make([]*Movie, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := c.Find(context.Background(), "Heat", 1995)
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			results[i] = m
		}(i)
	}
	wg.Wait()

	if n := stub.RequestCount("/search/movie"); n != 1 {
		t.Errorf("Expected concurrent lookups to share one fetch, got %d searches", n)
	}
	for i, m := range results {
		if m == nil || m.ID != 949 {
			t.Errorf("Result %d: expected Heat, got %+v", i, m)
		}
	}
}

func TestFindDoesNotCacheFailures(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey)
	c := newTestClient(stub.Server)

	if _, err := c.Find(context.Background(), "Unknown Film", 2020); !errors.IsNotMatched(err) {
		t.Fatalf("Expected ErrNotMatched, got %v", err)
	}
	if c.CacheSize() != 0 {
		t.Errorf("Expected failures to stay uncached, got %d entries", c.CacheSize())
	}

	// The title becomes findable and the next lookup must fetch it.
	stub.Add(heat)
	m, err := c.Find(context.Background(), "Heat", 1995)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.ID != 949 {
		t.Errorf("Expected id 949, got %d", m.ID)
	}
}

func TestSimilarAndRecommendations(t *testing.T) {
	ronin := matineetest.TMDBMovie{ID: 8584, Title: "Ronin", ReleaseDate: "1998-09-25"}
	thief := matineetest.TMDBMovie{ID: 11368, Title: "Thief", ReleaseDate: "1981-03-27"}

	stub := matineetest.NewTMDBStub(t, testAPIKey, heat, ronin, thief)
	stub.SetRelated(949, 8584, 11368)
	c := newTestClient(stub.Server)

	similar, err := c.Similar(context.Background(), 949)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(similar) != 2 {
		t.Fatalf("Expected 2 similar titles, got %d", len(similar))
	}
	if similar[0].ID != 8584 || similar[0].Year != 1998 {
		t.Errorf("Unexpected first similar title: %+v", similar[0])
	}

	recs, err := c.Recommendations(context.Background(), 949)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 recommendations, got %d", len(recs))
	}
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(40, 10)
	if l.Burst() != 40 {
		t.Errorf("Expected burst 40, got %d", l.Burst())
	}
	if l.Limit() != rate.Every(250*time.Millisecond) {
		t.Errorf("Expected a slot every 250ms, got %v", l.Limit())
	}

	// Defaults apply when config values are missing.
	d := NewLimiter(0, 0)
	if d.Burst() != 40 || d.Limit() != rate.Every(250*time.Millisecond) {
		t.Errorf("Expected default 40 ops per 10s, got burst %d limit %v", d.Burst(), d.Limit())
	}
}

func TestSharedCacheAcrossClients(t *testing.T) {
	stub := matineetest.NewTMDBStub(t, testAPIKey, heat)

	cache := NewCache()
	limiter := NewLimiter(40, 10)
	a := New(Options{APIKey: testAPIKey, BaseURL: stub.URL(), Cache: cache, Limiter: limiter, Client: httpclient.WrapClient(stub.Server.Client())})
	b := New(Options{APIKey: testAPIKey, BaseURL: stub.URL(), Cache: cache, Limiter: limiter, Client: httpclient.WrapClient(stub.Server.Client())})

	if _, err := a.Find(context.Background(), "Heat", 1995); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := b.Find(context.Background(), "Heat", 1995); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if n := stub.RequestCount("/search/movie"); n != 1 {
		t.Errorf("Expected both clients to share the cache, got %d searches", n)
	}
}

func TestCacheKey(t *testing.T) {
	if Key("Heat", 1995) != Key("  heat ", 1995) {
		t.Error("Expected whitespace and case to normalize away")
	}
	if Key("Heat", 1995) == Key("Heat", 1972) {
		t.Error("Expected different years to key separately")
	}
	if Key("Heat", 0) == Key("Heat", 1995) {
		t.Error("Expected the unknown year to key separately")
	}
}
