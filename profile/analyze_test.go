package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teranos/matinee/pool"
	"github.com/teranos/matinee/tmdb"
)

// tasteHistory is a hand-checkable eight-film history. Golf is watched but
// unrated; Charlie and Hotel are the only films small enough to qualify as
// hidden gems.
func tasteHistory() []pool.Item {
	return []pool.Item{
		{UserRating: 5, Movie: &tmdb.Movie{ID: 1, Title: "Alpha", Year: 1994, Genres: []string{"Crime", "Drama"}, Director: "Jane Doe", Cast: []string{"Actor A", "Actor B"}, Runtime: 120, Rating: 8.6, VoteCount: 5000, Popularity: 40, Keywords: []string{"heist"}, Certification: "R", PosterURL: "https://img.test/alpha.jpg"}},
		{UserRating: 4.5, Movie: &tmdb.Movie{ID: 2, Title: "Bravo", Year: 1996, Genres: []string{"Crime", "Thriller"}, Director: "Jane Doe", Cast: []string{"Actor A", "Actor C"}, Runtime: 110, Rating: 7.9, VoteCount: 3000, Popularity: 30, Keywords: []string{"heist", "betrayal"}, Certification: "R"}},
		{UserRating: 4, Movie: &tmdb.Movie{ID: 3, Title: "Charlie", Year: 2003, Genres: []string{"Drama"}, Director: "John Roe", Cast: []string{"Actor A", "Actor D"}, Runtime: 100, Rating: 6.1, VoteCount: 800, Popularity: 12, Keywords: []string{"grief"}, Certification: "PG-13", Overview: strings.Repeat("A quiet film about grief. ", 10)}},
		{UserRating: 3.5, Movie: &tmdb.Movie{ID: 4, Title: "Delta", Year: 2005, Genres: []string{"Comedy", "Drama"}, Director: "John Roe", Cast: []string{"Actor B", "Actor C"}, Runtime: 95, Rating: 7.0, VoteCount: 2500, Popularity: 28, Keywords: []string{"road trip"}, Certification: "PG-13"}},
		{UserRating: 2, Movie: &tmdb.Movie{ID: 5, Title: "Echo", Year: 2012, Genres: []string{"Comedy"}, Director: "Ann Smith", Cast: []string{"Actor B", "Actor D"}, Runtime: 90, Rating: 7.5, VoteCount: 4000, Popularity: 35, Certification: "PG"}},
		{UserRating: 1.5, Movie: &tmdb.Movie{ID: 6, Title: "Foxtrot", Year: 2014, Genres: []string{"Horror"}, Director: "Bob Chan", Cast: []string{"Actor C", "Actor E"}, Runtime: 85, Rating: 6.5, VoteCount: 1500, Popularity: 22, Keywords: []string{"haunting"}, Certification: "R"}},
		{UserRating: 0, Movie: &tmdb.Movie{ID: 7, Title: "Golf", Year: 1999, Genres: []string{"Drama", "Thriller"}, Director: "Jane Doe", Cast: []string{"Actor A", "Actor E"}, Runtime: 105, Rating: 7.2, VoteCount: 2200, Popularity: 26, Keywords: []string{"betrayal"}, Certification: "R"}},
		{UserRating: 4.5, Movie: &tmdb.Movie{ID: 8, Title: "Hotel", Year: 2021, Genres: []string{"Drama", "Crime"}, Director: "Ann Smith", Cast: []string{"Actor D", "Actor E"}, Runtime: 130, Rating: 7.8, VoteCount: 900, Popularity: 18, Keywords: []string{"heist"}, Certification: "R"}},
	}
}

func TestAnalyzeRatingStats(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Equal(t, "dave", a.Username)
	require.Equal(t, RatingStats{
		TotalFilms:   8,
		RatedFilms:   7,
		AverageStars: 3.57,
		MedianStars:  4,
	}, a.Stats)
}

func TestAnalyzeGenreRanking(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	// Count descending, name ascending on ties; averages cover rated films
	// only, so Golf never dilutes Drama or Thriller.
	require.Equal(t, []GenreStat{
		{Name: "Drama", Count: 5, AverageStars: 4.25},
		{Name: "Crime", Count: 3, AverageStars: 4.67},
		{Name: "Comedy", Count: 2, AverageStars: 2.75},
		{Name: "Thriller", Count: 2, AverageStars: 4.5},
		{Name: "Horror", Count: 1, AverageStars: 1.5},
	}, a.Genres)
}

func TestAnalyzeDirectorsNeedTwoFilms(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Equal(t, []DirectorStat{
		{Name: "Jane Doe", Count: 3, AverageStars: 4.75, SampleTitles: []string{"Alpha", "Bravo", "Golf"}},
		{Name: "Ann Smith", Count: 2, AverageStars: 3.25, SampleTitles: []string{"Echo", "Hotel"}},
		{Name: "John Roe", Count: 2, AverageStars: 3.75, SampleTitles: []string{"Charlie", "Delta"}},
	}, a.Directors)
}

func TestAnalyzeActorsNeedThreeFilms(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Len(t, a.Actors, 5)
	require.Equal(t, ActorStat{Name: "Actor A", Count: 4, AverageStars: 4.5}, a.Actors[0])
	for i, name := range []string{"Actor B", "Actor C", "Actor D", "Actor E"} {
		require.Equal(t, name, a.Actors[i+1].Name)
		require.Equal(t, 3, a.Actors[i+1].Count)
	}
}

func TestAnalyzeDecadesChronological(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Equal(t, []DecadeStat{
		{Decade: "1990s", Count: 3, AverageStars: 4.75},
		{Decade: "2000s", Count: 2, AverageStars: 3.75},
		{Decade: "2010s", Count: 2, AverageStars: 1.75},
		{Decade: "2020s", Count: 1, AverageStars: 4.5},
	}, a.Decades)
}

func TestAnalyzeKeywords(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Equal(t, []KeywordStat{
		{Name: "heist", Count: 3},
		{Name: "betrayal", Count: 2},
		{Name: "grief", Count: 1},
		{Name: "haunting", Count: 1},
		{Name: "road trip", Count: 1},
	}, a.Keywords)
}

func TestAnalyzeRatingPatterns(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Equal(t, []StarBucket{
		{Stars: 1.5, Count: 1},
		{Stars: 2, Count: 1},
		{Stars: 3.5, Count: 1},
		{Stars: 4, Count: 1},
		{Stars: 4.5, Count: 2},
		{Stars: 5, Count: 1},
	}, a.Ratings.Distribution)

	require.Len(t, a.Ratings.Highest, 7)
	require.Equal(t, "Alpha", a.Ratings.Highest[0].Title)
	// Title breaks the 4.5-star tie.
	require.Equal(t, "Bravo", a.Ratings.Highest[1].Title)
	require.Equal(t, "Hotel", a.Ratings.Highest[2].Title)

	require.Equal(t, []RatedFilm{
		{Title: "Foxtrot", Year: 2014, Stars: 1.5},
		{Title: "Echo", Year: 2012, Stars: 2},
	}, a.Ratings.Lowest)
}

func TestAnalyzePublicDisagreement(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	// Overrated holds the films the viewer scored furthest above the crowd.
	require.Len(t, a.Disagreement.Overrated, 5)
	require.Equal(t, RatingGap{
		Title: "Charlie", Year: 2003, UserStars: 4, CrowdScore: 6.1, Difference: 1.9,
	}, a.Disagreement.Overrated[0])
	require.Equal(t, "Alpha", a.Disagreement.Overrated[1].Title)

	require.Len(t, a.Disagreement.Underrated, 5)
	require.Equal(t, "Echo", a.Disagreement.Underrated[0].Title)
	require.Equal(t, -3.5, a.Disagreement.Underrated[0].Difference)
	// Foxtrot ties Echo at -3.5; title orders them.
	require.Equal(t, "Foxtrot", a.Disagreement.Underrated[1].Title)

	// Golf is unrated and stays out of both lists.
	for _, gap := range append(a.Disagreement.Overrated, a.Disagreement.Underrated...) {
		require.NotEqual(t, "Golf", gap.Title)
	}
}

func TestAnalyzeHiddenGems(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Len(t, a.HiddenGems, 2)
	require.Equal(t, "Hotel", a.HiddenGems[0].Title)
	require.Equal(t, "Charlie", a.HiddenGems[1].Title)

	// Charlie's rambling overview is collapsed and cut.
	overview := a.HiddenGems[1].Overview
	require.Len(t, []rune(overview), 150)
	require.True(t, strings.HasSuffix(overview, "..."))
	require.NotContains(t, overview, "  ")
}

func TestAnalyzeCertifications(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Equal(t, Certifications{
		Distribution: []CertificationStat{
			{Certification: "R", Count: 5, Percentage: 62.5},
			{Certification: "PG-13", Count: 2, Percentage: 25},
			{Certification: "PG", Count: 1, Percentage: 12.5},
		},
		TotalCertified: 8,
		MostCommon:     "R",
	}, a.Certifications)
}

func TestAnalyzeWatchTime(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Equal(t, WatchTime{
		TotalMinutes:   835,
		TotalHours:     13.9,
		TotalDays:      0.58,
		FilmsCounted:   8,
		AverageRuntime: 104,
		Comparisons:    []string{"Enough time to fly from NYC to LA 2 times"},
	}, a.WatchTime)
}

func TestAnalyzeWatchTimeComparisonsScaleUp(t *testing.T) {
	films := make([]pool.Item, 12)
	for i := range films {
		films[i] = pool.Item{Movie: &tmdb.Movie{Title: "Long Film", Runtime: 200}}
	}
	wt := Analyze("dave", films).WatchTime

	// 2400 minutes: a full work week, a dozen films, more than a day.
	require.Equal(t, []string{
		"Enough time to fly from NYC to LA 7 times",
		"Equivalent to 1.0 full-time work weeks",
		"That's 12 films back-to-back!",
		"1.7 days of continuous viewing",
	}, wt.Comparisons)

	films = make([]pool.Item, 60)
	for i := range films {
		films[i] = pool.Item{Movie: &tmdb.Movie{Title: "Long Film", Runtime: 180}}
	}
	wt = Analyze("dave", films).WatchTime
	require.Contains(t, wt.Comparisons, "Over 7 days of pure movie watching")
	require.NotContains(t, wt.Comparisons, "7.5 days of continuous viewing")
}

func TestAnalyzeTasteSummary(t *testing.T) {
	a := Analyze("dave", tasteHistory())

	require.Equal(t,
		"You've watched 8 films, rating 7 of them with an average rating of 3.57★. "+
			"Your taste gravitates strongly toward Drama, Crime, and Comedy, with 5 Drama films in your history. "+
			"You're a fan of Jane Doe's work (3 films watched, avg rating 4.75★). "+
			"The 1990s is your most-watched era with 3 films.",
		a.TasteSummary)
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	a := Analyze("ghost", nil)

	require.Equal(t, RatingStats{}, a.Stats)
	require.Empty(t, a.Genres)
	require.Empty(t, a.HiddenGems)
	require.Equal(t, WatchTime{}, a.WatchTime)
	require.Equal(t, "No films found to analyze.", a.TasteSummary)
}

func TestAnalyzeSkipsItemsWithoutCatalogRecord(t *testing.T) {
	films := []pool.Item{
		{UserRating: 4},
		{UserRating: 3, Movie: &tmdb.Movie{Title: "Only Match", Year: 2000}},
	}
	a := Analyze("dave", films)

	require.Equal(t, 1, a.Stats.TotalFilms)
	require.Equal(t, 1, a.Stats.RatedFilms)
}
