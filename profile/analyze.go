package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/matinee/internal/util"
	"github.com/teranos/matinee/pool"
)

// List bounds for the analysis payload.
const (
	directorMinFilms  = 2
	directorLimit     = 15
	sampleTitleLimit  = 3
	actorMinFilms     = 3
	actorLimit        = 15
	keywordLimit      = 20
	ratedListLimit    = 10
	disagreementLimit = 5
	hiddenGemLimit    = 10
	gemOverviewLimit  = 150

	// lowRatedCeiling keeps the lowest-rated list to films the viewer
	// actually panned.
	lowRatedCeiling = 2.5

	// Hidden gems are loved films the wider audience has not found.
	gemPopularityMax = 25
	gemVoteCountMax  = 1000
)

// Analysis is the full taste breakdown for one viewer.
type Analysis struct {
	Username       string             `json:"username"`
	Stats          RatingStats        `json:"stats"`
	Genres         []GenreStat        `json:"genres"`
	Directors      []DirectorStat     `json:"directors"`
	Actors         []ActorStat        `json:"actors"`
	Decades        []DecadeStat       `json:"decades"`
	Keywords       []KeywordStat      `json:"keywords"`
	Ratings        RatingPatterns     `json:"rating_patterns"`
	Disagreement   PublicDisagreement `json:"public_disagreement"`
	HiddenGems     []HiddenGem        `json:"hidden_gems"`
	Certifications Certifications     `json:"certifications"`
	WatchTime      WatchTime          `json:"watch_time"`
	TasteSummary   string             `json:"taste_summary"`
	AIProfile      *TasteProfile      `json:"ai_profile,omitempty"`
}

// RatingStats summarizes the rating habit.
type RatingStats struct {
	TotalFilms   int     `json:"total_films"`
	RatedFilms   int     `json:"rated_films"`
	AverageStars float64 `json:"average_stars"`
	MedianStars  float64 `json:"median_stars"`
}

// GenreStat is one genre's footprint in the history.
type GenreStat struct {
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	AverageStars float64 `json:"average_stars,omitempty"`
}

// DirectorStat is a recurring director, with a few of the films that put
// them on the list.
type DirectorStat struct {
	Name         string   `json:"name"`
	Count        int      `json:"count"`
	AverageStars float64  `json:"average_stars,omitempty"`
	SampleTitles []string `json:"sample_titles,omitempty"`
}

// ActorStat is a recurring top-billed actor.
type ActorStat struct {
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	AverageStars float64 `json:"average_stars,omitempty"`
}

// DecadeStat is one decade's share of the history, chronological on the
// wire.
type DecadeStat struct {
	Decade       string  `json:"decade"`
	Count        int     `json:"count"`
	AverageStars float64 `json:"average_stars,omitempty"`
}

// KeywordStat is one recurring catalog keyword.
type KeywordStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// StarBucket is one bar of the rating histogram.
type StarBucket struct {
	Stars float64 `json:"stars"`
	Count int     `json:"count"`
}

// RatedFilm is a title/rating line for the highest and lowest lists.
type RatedFilm struct {
	Title     string  `json:"title"`
	Year      int     `json:"year,omitempty"`
	Stars     float64 `json:"stars"`
	PosterURL string  `json:"poster_url,omitempty"`
}

// RatingPatterns is the histogram plus the extremes.
type RatingPatterns struct {
	Distribution []StarBucket `json:"distribution"`
	Highest      []RatedFilm  `json:"highest_rated"`
	Lowest       []RatedFilm  `json:"lowest_rated"`
}

// RatingGap is one film where the viewer and the public consensus split.
// UserStars is the viewer's rating; CrowdScore keeps the catalog's 10-point
// scale, and Difference is viewer-minus-crowd on that scale.
type RatingGap struct {
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	UserStars  float64 `json:"user_stars"`
	CrowdScore float64 `json:"crowd_score"`
	Difference float64 `json:"difference"`
	PosterURL  string  `json:"poster_url,omitempty"`
}

// PublicDisagreement is viewer-centric: Overrated lists the films the viewer
// scored furthest above the crowd, Underrated the ones furthest below.
type PublicDisagreement struct {
	Overrated  []RatingGap `json:"overrated"`
	Underrated []RatingGap `json:"underrated"`
}

// HiddenGem is a loved film with a small audience.
type HiddenGem struct {
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	Stars      float64 `json:"stars"`
	Popularity float64 `json:"popularity"`
	VoteCount  int     `json:"vote_count"`
	Overview   string  `json:"overview,omitempty"`
	PosterURL  string  `json:"poster_url,omitempty"`
}

// CertificationStat is one content rating's share of the certified films.
type CertificationStat struct {
	Certification string  `json:"certification"`
	Count         int     `json:"count"`
	Percentage    float64 `json:"percentage"`
}

// Certifications is the content-rating breakdown.
type Certifications struct {
	Distribution   []CertificationStat `json:"distribution"`
	TotalCertified int                 `json:"total_certified"`
	MostCommon     string              `json:"most_common,omitempty"`
}

// WatchTime totals the runtime of every film with a known length.
type WatchTime struct {
	TotalMinutes   int      `json:"total_minutes"`
	TotalHours     float64  `json:"total_hours"`
	TotalDays      float64  `json:"total_days"`
	FilmsCounted   int      `json:"films_counted"`
	AverageRuntime int      `json:"average_runtime"`
	Comparisons    []string `json:"comparisons,omitempty"`
}

// Analyze breaks a viewer's matched history down into the full taste
// profile. Pure and deterministic: the same history always produces the
// same analysis. AIProfile stays nil; Service fills it when a model is
// available.
func Analyze(username string, films []pool.Item) *Analysis {
	films = compactFilms(films)
	a := &Analysis{
		Username:       username,
		Stats:          ratingStats(films),
		Genres:         genreStats(films),
		Directors:      directorStats(films),
		Actors:         actorStats(films),
		Decades:        decadeStats(films),
		Keywords:       keywordStats(films),
		Ratings:        ratingPatterns(films),
		Disagreement:   publicDisagreement(films),
		HiddenGems:     hiddenGems(films),
		Certifications: certificationStats(films),
		WatchTime:      watchTime(films),
	}
	a.TasteSummary = tasteSummary(a)
	return a
}

// tally accumulates per-name counts and ratings for the grouped stats.
type tally struct {
	count  int
	rated  int
	stars  float64
	titles []string
}

func (t *tally) add(stars float64, title string) {
	t.count++
	if title != "" {
		t.titles = append(t.titles, title)
	}
	if stars > 0 {
		t.rated++
		t.stars += stars
	}
}

func (t *tally) average() float64 {
	if t.rated == 0 {
		return 0
	}
	return round2(t.stars / float64(t.rated))
}

func tallyFor(tallies map[string]*tally, name string) *tally {
	t, ok := tallies[name]
	if !ok {
		t = &tally{}
		tallies[name] = t
	}
	return t
}

func ratingStats(films []pool.Item) RatingStats {
	stats := RatingStats{TotalFilms: len(films)}

	var ratings []float64
	for _, it := range films {
		if rated(it) {
			ratings = append(ratings, it.UserRating)
		}
	}
	stats.RatedFilms = len(ratings)
	if len(ratings) == 0 {
		return stats
	}

	var sum float64
	for _, r := range ratings {
		sum += r
	}
	stats.AverageStars = round2(sum / float64(len(ratings)))

	sort.Float64s(ratings)
	mid := len(ratings) / 2
	if len(ratings)%2 == 1 {
		stats.MedianStars = ratings[mid]
	} else {
		stats.MedianStars = round2((ratings[mid-1] + ratings[mid]) / 2)
	}
	return stats
}

func genreStats(films []pool.Item) []GenreStat {
	tallies := make(map[string]*tally)
	for _, it := range films {
		for _, name := range it.Movie.Genres {
			tallyFor(tallies, name).add(it.UserRating, "")
		}
	}

	stats := make([]GenreStat, 0, len(tallies))
	for name, t := range tallies {
		stats = append(stats, GenreStat{Name: name, Count: t.count, AverageStars: t.average()})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}

func directorStats(films []pool.Item) []DirectorStat {
	tallies := make(map[string]*tally)
	for _, it := range films {
		if it.Movie.Director == "" {
			continue
		}
		tallyFor(tallies, it.Movie.Director).add(it.UserRating, it.Movie.Title)
	}

	stats := make([]DirectorStat, 0, len(tallies))
	for name, t := range tallies {
		if t.count < directorMinFilms {
			continue
		}
		stats = append(stats, DirectorStat{
			Name:         name,
			Count:        t.count,
			AverageStars: t.average(),
			SampleTitles: capList(t.titles, sampleTitleLimit),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})
	return capList(stats, directorLimit)
}

func actorStats(films []pool.Item) []ActorStat {
	tallies := make(map[string]*tally)
	for _, it := range films {
		for _, name := range it.Movie.Cast {
			tallyFor(tallies, name).add(it.UserRating, "")
		}
	}

	stats := make([]ActorStat, 0, len(tallies))
	for name, t := range tallies {
		if t.count < actorMinFilms {
			continue
		}
		stats = append(stats, ActorStat{Name: name, Count: t.count, AverageStars: t.average()})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})
	return capList(stats, actorLimit)
}

func decadeStats(films []pool.Item) []DecadeStat {
	tallies := make(map[int]*tally)
	for _, it := range films {
		if it.Movie.Year == 0 {
			continue
		}
		decade := (it.Movie.Year / 10) * 10
		t, ok := tallies[decade]
		if !ok {
			t = &tally{}
			tallies[decade] = t
		}
		t.add(it.UserRating, "")
	}

	starts := make([]int, 0, len(tallies))
	for decade := range tallies {
		starts = append(starts, decade)
	}
	sort.Ints(starts)

	stats := make([]DecadeStat, 0, len(starts))
	for _, decade := range starts {
		t := tallies[decade]
		stats = append(stats, DecadeStat{
			Decade:       fmt.Sprintf("%ds", decade),
			Count:        t.count,
			AverageStars: t.average(),
		})
	}
	return stats
}

func keywordStats(films []pool.Item) []KeywordStat {
	counts := make(map[string]int)
	for _, it := range films {
		for _, name := range it.Movie.Keywords {
			counts[name]++
		}
	}

	stats := make([]KeywordStat, 0, len(counts))
	for name, count := range counts {
		stats = append(stats, KeywordStat{Name: name, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})
	return capList(stats, keywordLimit)
}

func ratingPatterns(films []pool.Item) RatingPatterns {
	buckets := make(map[float64]int)
	var ratedFilms []RatedFilm
	for _, it := range films {
		if !rated(it) {
			continue
		}
		buckets[it.UserRating]++
		ratedFilms = append(ratedFilms, RatedFilm{
			Title:     it.Movie.Title,
			Year:      it.Movie.Year,
			Stars:     it.UserRating,
			PosterURL: it.Movie.PosterURL,
		})
	}

	dist := make([]StarBucket, 0, len(buckets))
	for stars, count := range buckets {
		dist = append(dist, StarBucket{Stars: stars, Count: count})
	}
	sort.Slice(dist, func(i, j int) bool { return dist[i].Stars < dist[j].Stars })

	highest := append([]RatedFilm(nil), ratedFilms...)
	sort.SliceStable(highest, func(i, j int) bool {
		if highest[i].Stars != highest[j].Stars {
			return highest[i].Stars > highest[j].Stars
		}
		return highest[i].Title < highest[j].Title
	})

	var lowest []RatedFilm
	for _, f := range ratedFilms {
		if f.Stars <= lowRatedCeiling {
			lowest = append(lowest, f)
		}
	}
	sort.SliceStable(lowest, func(i, j int) bool {
		if lowest[i].Stars != lowest[j].Stars {
			return lowest[i].Stars < lowest[j].Stars
		}
		return lowest[i].Title < lowest[j].Title
	})

	return RatingPatterns{
		Distribution: dist,
		Highest:      capList(highest, ratedListLimit),
		Lowest:       capList(lowest, ratedListLimit),
	}
}

func publicDisagreement(films []pool.Item) PublicDisagreement {
	var gaps []RatingGap
	for _, it := range films {
		// A zero catalog score is a missing score, not a film the whole
		// world hated.
		if !rated(it) || it.Movie.Rating <= 0 {
			continue
		}
		gaps = append(gaps, RatingGap{
			Title:      it.Movie.Title,
			Year:       it.Movie.Year,
			UserStars:  it.UserRating,
			CrowdScore: round1(it.Movie.Rating),
			Difference: round1(it.UserRating*2 - it.Movie.Rating),
			PosterURL:  it.Movie.PosterURL,
		})
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Difference != gaps[j].Difference {
			return gaps[i].Difference < gaps[j].Difference
		}
		return gaps[i].Title < gaps[j].Title
	})

	underrated := append([]RatingGap(nil), capList(gaps, disagreementLimit)...)

	start := len(gaps) - disagreementLimit
	if start < 0 {
		start = 0
	}
	overrated := make([]RatingGap, 0, len(gaps)-start)
	for i := len(gaps) - 1; i >= start; i-- {
		overrated = append(overrated, gaps[i])
	}

	return PublicDisagreement{Overrated: overrated, Underrated: underrated}
}

func hiddenGems(films []pool.Item) []HiddenGem {
	var gems []HiddenGem
	for _, it := range films {
		m := it.Movie
		if it.UserRating < favoriteStars || m.Popularity >= gemPopularityMax || m.VoteCount >= gemVoteCountMax {
			continue
		}
		gems = append(gems, HiddenGem{
			Title:      m.Title,
			Year:       m.Year,
			Stars:      it.UserRating,
			Popularity: round1(m.Popularity),
			VoteCount:  m.VoteCount,
			Overview:   util.TruncateWithEllipsis(util.CollapseWhitespace(m.Overview), gemOverviewLimit),
			PosterURL:  m.PosterURL,
		})
	}
	sort.SliceStable(gems, func(i, j int) bool {
		if gems[i].Stars != gems[j].Stars {
			return gems[i].Stars > gems[j].Stars
		}
		if gems[i].Popularity != gems[j].Popularity {
			return gems[i].Popularity < gems[j].Popularity
		}
		return gems[i].Title < gems[j].Title
	})
	return capList(gems, hiddenGemLimit)
}

func certificationStats(films []pool.Item) Certifications {
	counts := make(map[string]int)
	total := 0
	for _, it := range films {
		if cert := it.Movie.Certification; cert != "" {
			counts[cert]++
			total++
		}
	}
	if total == 0 {
		return Certifications{}
	}

	dist := make([]CertificationStat, 0, len(counts))
	for cert, count := range counts {
		dist = append(dist, CertificationStat{
			Certification: cert,
			Count:         count,
			Percentage:    round1(100 * float64(count) / float64(total)),
		})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Certification < dist[j].Certification
	})

	return Certifications{
		Distribution:   dist,
		TotalCertified: total,
		MostCommon:     dist[0].Certification,
	}
}

func watchTime(films []pool.Item) WatchTime {
	var minutes, counted int
	for _, it := range films {
		if it.Movie.Runtime > 0 {
			minutes += it.Movie.Runtime
			counted++
		}
	}
	if minutes == 0 {
		return WatchTime{}
	}

	hours := float64(minutes) / 60
	days := hours / 24
	wt := WatchTime{
		TotalMinutes:   minutes,
		TotalHours:     round1(hours),
		TotalDays:      round2(days),
		FilmsCounted:   counted,
		AverageRuntime: int(math.Round(float64(minutes) / float64(counted))),
	}

	if flights := int(hours / 5.5); flights >= 1 {
		wt.Comparisons = append(wt.Comparisons,
			fmt.Sprintf("Enough time to fly from NYC to LA %d times", flights))
	}
	if weeks := hours / 40; weeks >= 1 {
		wt.Comparisons = append(wt.Comparisons,
			fmt.Sprintf("Equivalent to %.1f full-time work weeks", weeks))
	}
	if counted >= 10 {
		wt.Comparisons = append(wt.Comparisons,
			fmt.Sprintf("That's %d films back-to-back!", counted))
	}
	switch {
	case days >= 7:
		wt.Comparisons = append(wt.Comparisons,
			fmt.Sprintf("Over %d days of pure movie watching", int(days)))
	case days >= 1:
		wt.Comparisons = append(wt.Comparisons,
			fmt.Sprintf("%.1f days of continuous viewing", days))
	}
	return wt
}

// tasteSummary renders the analysis highlights as a few plain sentences.
func tasteSummary(a *Analysis) string {
	if a.Stats.TotalFilms == 0 {
		return "No films found to analyze."
	}

	var parts []string

	opener := fmt.Sprintf("You've watched %d films", a.Stats.TotalFilms)
	if a.Stats.RatedFilms > 0 && a.Stats.RatedFilms != a.Stats.TotalFilms {
		opener += fmt.Sprintf(", rating %d of them", a.Stats.RatedFilms)
	}
	if a.Stats.AverageStars > 0 {
		opener += fmt.Sprintf(" with an average rating of %s★", trimFloat(a.Stats.AverageStars))
	}
	parts = append(parts, opener+".")

	if len(a.Genres) > 0 {
		names := firstNames(a.Genres, 3, func(g GenreStat) string { return g.Name })
		parts = append(parts, fmt.Sprintf(
			"Your taste gravitates strongly toward %s, with %d %s films in your history.",
			joinNames(names), a.Genres[0].Count, a.Genres[0].Name))
	}

	if len(a.Directors) > 0 {
		d := a.Directors[0]
		line := fmt.Sprintf("You're a fan of %s's work (%d films watched", d.Name, d.Count)
		if d.AverageStars > 0 {
			line += fmt.Sprintf(", avg rating %s★", trimFloat(d.AverageStars))
		}
		parts = append(parts, line+").")
	}

	if d := mostWatchedDecade(a.Decades); d != nil {
		parts = append(parts, fmt.Sprintf(
			"The %s is your most-watched era with %d films.", d.Decade, d.Count))
	}

	return strings.Join(parts, " ")
}

// mostWatchedDecade picks the decade with the highest film count; earlier
// decades win ties.
func mostWatchedDecade(decades []DecadeStat) *DecadeStat {
	var top *DecadeStat
	for i := range decades {
		if top == nil || decades[i].Count > top.Count {
			top = &decades[i]
		}
	}
	return top
}

// joinNames renders "A", "A and B", or "A, B, and C".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}

// trimFloat prints v without trailing zeros (3.8, not 3.80).
func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
