package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// TMDBMovie seeds the catalog stub. The same record backs search results,
// related-movie listings, and the detail endpoint.
type TMDBMovie struct {
	ID            int
	Title         string
	ReleaseDate   string // "1995-12-15"
	Overview      string
	Runtime       int
	VoteAverage   float64
	VoteCount     int
	Popularity    float64
	Genres        []string
	Director      string
	Cast          []string
	Keywords      []string
	Certification string
	PosterPath    string
}

// TMDBStub is a scripted double for the catalog API. It validates the
// api_key parameter, serves /search/movie, /movie/{id} (with the appended
// credits/keywords/release_dates sections), and the similar/recommendations
// listings, and records per-path request counts so tests can assert on retry
// and single-flight behavior.
type TMDBStub struct {
	Server *httptest.Server

	apiKey string

	mu       sync.Mutex
	movies   map[int]TMDBMovie
	searches map[string][]int // scripted query → result IDs
	related  map[int][]int
	failures map[string][]int // path → status codes served before success
	requests map[string]int
}

// NewTMDBStub starts a catalog stub seeded with the given movies. The server
// shuts down via t.Cleanup.
func NewTMDBStub(t *testing.T, apiKey string, movies ...TMDBMovie) *TMDBStub {
	t.Helper()

	s := &TMDBStub{
		apiKey:   apiKey,
		movies:   make(map[int]TMDBMovie),
		searches: make(map[string][]int),
		related:  make(map[int][]int),
		failures: make(map[string][]int),
		requests: make(map[string]int),
	}
	for _, m := range movies {
		s.movies[m.ID] = m
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Server.Close)

	return s
}

// URL returns the stub's base URL.
func (s *TMDBStub) URL() string { return s.Server.URL }

// Add seeds another movie after construction.
func (s *TMDBStub) Add(m TMDBMovie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.ID] = m
}

// ScriptSearch pins the result set for a query, bypassing the default
// substring match. The real API matches fuzzily server-side; scripting lets
// tests hand the client imperfect candidates to choose between.
func (s *TMDBStub) ScriptSearch(query string, ids ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches[strings.ToLower(query)] = ids
}

// SetRelated wires what /movie/{id}/similar and /movie/{id}/recommendations
// return for a movie.
func (s *TMDBStub) SetRelated(id int, relatedIDs ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.related[id] = relatedIDs
}

// FailNext queues status codes for a path; each request pops one until the
// queue drains, then normal handling resumes.
func (s *TMDBStub) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// RequestCount returns how many requests hit path, failures included.
func (s *TMDBStub) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *TMDBStub) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	s.mu.Lock()
	s.requests[path]++
	var injected int
	if queue := s.failures[path]; len(queue) > 0 {
		injected = queue[0]
		s.failures[path] = queue[1:]
	}
	s.mu.Unlock()

	if injected != 0 {
		writeTMDBError(w, injected, "injected failure")
		return
	}

	if r.URL.Query().Get("api_key") != s.apiKey {
		writeTMDBError(w, http.StatusUnauthorized, "Invalid API key: You must be granted a valid key.")
		return
	}

	switch {
	case path == "/search/movie":
		s.handleSearch(w, r)
	case strings.HasPrefix(path, "/movie/") && strings.HasSuffix(path, "/similar"):
		s.handleRelated(w, strings.TrimSuffix(strings.TrimPrefix(path, "/movie/"), "/similar"))
	case strings.HasPrefix(path, "/movie/") && strings.HasSuffix(path, "/recommendations"):
		s.handleRelated(w, strings.TrimSuffix(strings.TrimPrefix(path, "/movie/"), "/recommendations"))
	case strings.HasPrefix(path, "/movie/"):
		s.handleDetails(w, strings.TrimPrefix(path, "/movie/"))
	default:
		writeTMDBError(w, http.StatusNotFound, "The resource you requested could not be found.")
	}
}

func (s *TMDBStub) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))
	year := r.URL.Query().Get("year")

	s.mu.Lock()
	var matched []TMDBMovie
	if ids, scripted := s.searches[query]; scripted {
		for _, id := range ids {
			if m, ok := s.movies[id]; ok {
				matched = append(matched, m)
			}
		}
	} else {
		ids := make([]int, 0, len(s.movies))
		for id := range s.movies {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			if strings.Contains(strings.ToLower(s.movies[id].Title), query) {
				matched = append(matched, s.movies[id])
			}
		}
	}
	s.mu.Unlock()

	// The real API's year parameter filters results by release year.
	if year != "" {
		var filtered []TMDBMovie
		for _, m := range matched {
			if strings.HasPrefix(m.ReleaseDate, year+"-") {
				filtered = append(filtered, m)
			}
		}
		matched = filtered
	}

	writeJSON(w, map[string]interface{}{
		"page":          1,
		"total_pages":   1,
		"total_results": len(matched),
		"results":       searchResults(matched),
	})
}

func (s *TMDBStub) handleRelated(w http.ResponseWriter, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeTMDBError(w, http.StatusNotFound, "The resource you requested could not be found.")
		return
	}

	s.mu.Lock()
	var results []TMDBMovie
	for _, rid := range s.related[id] {
		if m, ok := s.movies[rid]; ok {
			results = append(results, m)
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]interface{}{
		"page":          1,
		"total_pages":   1,
		"total_results": len(results),
		"results":       searchResults(results),
	})
}

func (s *TMDBStub) handleDetails(w http.ResponseWriter, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeTMDBError(w, http.StatusNotFound, "The resource you requested could not be found.")
		return
	}

	s.mu.Lock()
	m, ok := s.movies[id]
	s.mu.Unlock()

	if !ok {
		writeTMDBError(w, http.StatusNotFound, "The resource you requested could not be found.")
		return
	}

	genres := make([]map[string]interface{}, 0, len(m.Genres))
	for i, g := range m.Genres {
		genres = append(genres, map[string]interface{}{"id": 100 + i, "name": g})
	}

	cast := make([]map[string]interface{}, 0, len(m.Cast))
	for i, name := range m.Cast {
		cast = append(cast, map[string]interface{}{
			"id":           1000 + i,
			"name":         name,
			"profile_path": "/profile" + strconv.Itoa(i) + ".jpg",
			"order":        i,
		})
	}

	var crew []map[string]interface{}
	if m.Director != "" {
		crew = append(crew, map[string]interface{}{"name": m.Director, "job": "Director"})
	}

	keywords := make([]map[string]interface{}, 0, len(m.Keywords))
	for i, k := range m.Keywords {
		keywords = append(keywords, map[string]interface{}{"id": 2000 + i, "name": k})
	}

	details := map[string]interface{}{
		"id":             m.ID,
		"title":          m.Title,
		"original_title": m.Title,
		"release_date":   m.ReleaseDate,
		"overview":       m.Overview,
		"runtime":        m.Runtime,
		"vote_average":   m.VoteAverage,
		"vote_count":     m.VoteCount,
		"popularity":     m.Popularity,
		"poster_path":    m.PosterPath,
		"tagline":        "",
		"status":         "Released",
		"genres":         genres,
		"credits": map[string]interface{}{
			"cast": cast,
			"crew": crew,
		},
		"keywords": map[string]interface{}{
			"keywords": keywords,
		},
	}

	if m.Certification != "" {
		details["release_dates"] = map[string]interface{}{
			"results": []map[string]interface{}{
				{
					"iso_3166_1": "US",
					"release_dates": []map[string]interface{}{
						{"certification": m.Certification, "type": 3},
					},
				},
			},
		}
	}

	writeJSON(w, details)
}

func searchResults(movies []TMDBMovie) []map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(movies))
	for _, m := range movies {
		results = append(results, map[string]interface{}{
			"id":           m.ID,
			"title":        m.Title,
			"release_date": m.ReleaseDate,
			"overview":     m.Overview,
			"vote_average": m.VoteAverage,
			"vote_count":   m.VoteCount,
			"popularity":   m.Popularity,
			"poster_path":  m.PosterPath,
		})
	}
	return results
}

// tmdbStatusCodes maps HTTP statuses to the API's own status_code values so
// error bodies look like the real thing.
var tmdbStatusCodes = map[int]int{
	http.StatusUnauthorized:    7,
	http.StatusNotFound:        34,
	http.StatusTooManyRequests: 25,
}

func writeTMDBError(w http.ResponseWriter, httpStatus int, message string) {
	code, ok := tmdbStatusCodes[httpStatus]
	if !ok {
		code = 11 // "Internal error: Something went wrong"
	}

	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        false,
		"status_code":    code,
		"status_message": message,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	json.NewEncoder(w).Encode(v)
}
