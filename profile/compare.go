package profile

import (
	"fmt"
	"math"
	"sort"

	"github.com/teranos/matinee/internal/util"
	"github.com/teranos/matinee/pool"
)

// List bounds and thresholds for comparison payloads.
const (
	sharedListLimit       = 10
	crossRecLimit         = 10
	unwatchedGemLimit     = 15
	uniqueFavoriteLimit   = 5
	distinctiveGenreLimit = 3
	overlapTopN           = 10
	overlapNameLimit      = 5

	// splitStars is the gap that counts as a real disagreement.
	splitStars = 2.0

	// sharedOnlyScore is the compatibility floor for viewers who share
	// films but never rated the same one.
	sharedOnlyScore = 30

	// safeBetFloor is the minimum any rater gave a safe bet.
	safeBetFloor = 3.0

	// Critic types flip when a viewer's average sits this far from the
	// group's, in stars.
	criticStarGap = 0.5
)

// Compatibility scores how close two viewers' tastes run, 0 to 100.
// Scoring happens on the catalog's 10-point scale: a perfect rating match
// earns 100 before the shared-film bonus, ten points of average split earns
// zero. AverageDifference is reported in stars.
type Compatibility struct {
	Score             float64 `json:"score"`
	SharedFilms       int     `json:"shared_films"`
	RatedTogether     int     `json:"rated_together"`
	AverageDifference float64 `json:"average_difference"`
}

// SharedFilm is a title both viewers rated, with each viewer's stars in
// comparison order.
type SharedFilm struct {
	Title     string     `json:"title"`
	Year      int        `json:"year,omitempty"`
	Stars     [2]float64 `json:"stars"`
	Average   float64    `json:"average_stars"`
	PosterURL string     `json:"poster_url,omitempty"`
}

// Split is a shared film the two viewers scored at least two stars apart.
type Split struct {
	Title      string     `json:"title"`
	Year       int        `json:"year,omitempty"`
	Stars      [2]float64 `json:"stars"`
	Difference float64    `json:"difference"`
	PosterURL  string     `json:"poster_url,omitempty"`
}

// TasteOverlap reports how much two viewers' top-ten lists intersect.
type TasteOverlap struct {
	Count  int      `json:"overlap_count"`
	Shared []string `json:"shared,omitempty"`
}

// CrossRec is a film one viewer loved that the other has not seen.
type CrossRec struct {
	Title     string  `json:"title"`
	Year      int     `json:"year,omitempty"`
	Stars     float64 `json:"stars"`
	PosterURL string  `json:"poster_url,omitempty"`
}

// PairComparison is the full head-to-head between two viewers. CrossRecs is
// indexed like Users: CrossRecs[0] holds picks for Users[0] drawn from the
// other viewer's favorites.
type PairComparison struct {
	Users           [2]string     `json:"users"`
	Compatibility   Compatibility `json:"compatibility"`
	SharedCount     int           `json:"shared_count"`
	UniqueCounts    [2]int        `json:"unique_counts"`
	SharedFavorites []SharedFilm  `json:"shared_favorites"`
	SharedDislikes  []SharedFilm  `json:"shared_dislikes"`
	Disagreements   []Split       `json:"disagreements"`
	Genres          TasteOverlap  `json:"genre_overlap"`
	Directors       TasteOverlap  `json:"director_overlap"`
	CrossRecs       [2][]CrossRec `json:"cross_recommendations"`
	FreshPicks      []GroupPick   `json:"fresh_picks,omitempty"`
}

// ComparePair runs the full head-to-head. Pure; FreshPicks stays empty for
// Service to fill from the catalog.
func ComparePair(a, b User) *PairComparison {
	a.Films = compactFilms(a.Films)
	b.Films = compactFilms(b.Films)

	aFilms := filmsByTitle(a.Films)
	bFilms := filmsByTitle(b.Films)
	shared := sharedTitles(aFilms, bFilms)

	return &PairComparison{
		Users:           [2]string{a.Username, b.Username},
		Compatibility:   compatibility(aFilms, bFilms, shared),
		SharedCount:     len(shared),
		UniqueCounts:    [2]int{len(aFilms) - len(shared), len(bFilms) - len(shared)},
		SharedFavorites: sharedFavorites(aFilms, bFilms, shared),
		SharedDislikes:  sharedDislikes(aFilms, bFilms, shared),
		Disagreements:   ratingSplits(aFilms, bFilms, shared),
		Genres: nameOverlap(
			topGenreNames(a.Films),
			topGenreNames(b.Films)),
		Directors: nameOverlap(
			topDirectorNames(a.Films),
			topDirectorNames(b.Films)),
		CrossRecs: [2][]CrossRec{
			crossRecs(bFilms, aFilms),
			crossRecs(aFilms, bFilms),
		},
	}
}

// compatibility translates shared viewing into a 0-100 score. No shared
// films scores zero; shared films with no co-rated ones get a flat base.
func compatibility(aFilms, bFilms map[string]pool.Item, shared []string) Compatibility {
	if len(shared) == 0 {
		return Compatibility{}
	}

	var ratedTogether int
	var diffSum float64 // 10-point scale
	for _, title := range shared {
		ra, rb := aFilms[title].UserRating, bFilms[title].UserRating
		if ra > 0 && rb > 0 {
			ratedTogether++
			diffSum += util.AbsFloat64(ra-rb) * 2
		}
	}
	if ratedTogether == 0 {
		return Compatibility{Score: sharedOnlyScore, SharedFilms: len(shared)}
	}

	avgDiff := diffSum / float64(ratedTogether)
	score := math.Max(0, (10-avgDiff)*10) + math.Min(20, float64(len(shared))/10)
	if score > 100 {
		score = 100
	}

	return Compatibility{
		Score:             round1(score),
		SharedFilms:       len(shared),
		RatedTogether:     ratedTogether,
		AverageDifference: round2(avgDiff / 2),
	}
}

func newSharedFilm(title string, a, b pool.Item) SharedFilm {
	return SharedFilm{
		Title:     title,
		Year:      a.Movie.Year,
		Stars:     [2]float64{a.UserRating, b.UserRating},
		Average:   roundHalfStar((a.UserRating + b.UserRating) / 2),
		PosterURL: a.Movie.PosterURL,
	}
}

func sharedFavorites(aFilms, bFilms map[string]pool.Item, shared []string) []SharedFilm {
	var favorites []SharedFilm
	for _, title := range shared {
		a, b := aFilms[title], bFilms[title]
		if a.UserRating < favoriteStars || b.UserRating < favoriteStars {
			continue
		}
		favorites = append(favorites, newSharedFilm(title, a, b))
	}
	sort.SliceStable(favorites, func(i, j int) bool {
		if favorites[i].Average != favorites[j].Average {
			return favorites[i].Average > favorites[j].Average
		}
		return favorites[i].Title < favorites[j].Title
	})
	return capList(favorites, sharedListLimit)
}

func sharedDislikes(aFilms, bFilms map[string]pool.Item, shared []string) []SharedFilm {
	var dislikes []SharedFilm
	for _, title := range shared {
		a, b := aFilms[title], bFilms[title]
		if !rated(a) || !rated(b) || a.UserRating > dislikeStars || b.UserRating > dislikeStars {
			continue
		}
		dislikes = append(dislikes, newSharedFilm(title, a, b))
	}
	sort.SliceStable(dislikes, func(i, j int) bool {
		if dislikes[i].Average != dislikes[j].Average {
			return dislikes[i].Average < dislikes[j].Average
		}
		return dislikes[i].Title < dislikes[j].Title
	})
	return capList(dislikes, sharedListLimit)
}

func ratingSplits(aFilms, bFilms map[string]pool.Item, shared []string) []Split {
	var splits []Split
	for _, title := range shared {
		a, b := aFilms[title], bFilms[title]
		if !rated(a) || !rated(b) {
			continue
		}
		diff := util.AbsFloat64(a.UserRating - b.UserRating)
		if diff < splitStars {
			continue
		}
		splits = append(splits, Split{
			Title:      title,
			Year:       a.Movie.Year,
			Stars:      [2]float64{a.UserRating, b.UserRating},
			Difference: diff,
			PosterURL:  a.Movie.PosterURL,
		})
	}
	sort.SliceStable(splits, func(i, j int) bool {
		if splits[i].Difference != splits[j].Difference {
			return splits[i].Difference > splits[j].Difference
		}
		return splits[i].Title < splits[j].Title
	})
	return capList(splits, sharedListLimit)
}

func topGenreNames(films []pool.Item) []string {
	return firstNames(genreStats(films), overlapTopN, func(g GenreStat) string { return g.Name })
}

func topDirectorNames(films []pool.Item) []string {
	return firstNames(directorStats(films), overlapTopN, func(d DirectorStat) string { return d.Name })
}

func nameOverlap(a, b []string) TasteOverlap {
	inA := make(map[string]bool, len(a))
	for _, name := range a {
		inA[name] = true
	}
	var shared []string
	for _, name := range b {
		if inA[name] {
			shared = append(shared, name)
		}
	}
	sort.Strings(shared)
	return TasteOverlap{Count: len(shared), Shared: capList(shared, overlapNameLimit)}
}

// crossRecs picks the loved films in from that exclude has never seen.
func crossRecs(from, exclude map[string]pool.Item) []CrossRec {
	var recs []CrossRec
	for title, it := range from {
		if _, seen := exclude[title]; seen {
			continue
		}
		if it.UserRating < favoriteStars {
			continue
		}
		recs = append(recs, CrossRec{
			Title:     title,
			Year:      it.Movie.Year,
			Stars:     it.UserRating,
			PosterURL: it.Movie.PosterURL,
		})
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Stars != recs[j].Stars {
			return recs[i].Stars > recs[j].Stars
		}
		return recs[i].Title < recs[j].Title
	})
	return capList(recs, crossRecLimit)
}

// PairScore is one cell of the pairwise compatibility matrix. Score is nil
// on the diagonal.
type PairScore struct {
	Username    string   `json:"username"`
	Score       *float64 `json:"score"`
	SharedCount int      `json:"shared_count,omitempty"`
	IsSelf      bool     `json:"is_self,omitempty"`
}

// Affinity names the group member a viewer matches best or worst.
type Affinity struct {
	Username string  `json:"username"`
	Score    float64 `json:"score"`
}

// SafeBet is a rewatch candidate the group already agrees on: at least two
// raters, a loved average, nobody lukewarm.
type SafeBet struct {
	Title     string  `json:"title"`
	Year      int     `json:"year,omitempty"`
	Average   float64 `json:"average_stars"`
	Lowest    float64 `json:"lowest_stars"`
	WatchedBy int     `json:"watched_by"`
	PosterURL string  `json:"poster_url,omitempty"`
}

// UnwatchedGem is loved by part of the group and new to the rest.
type UnwatchedGem struct {
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	WatchedBy []string `json:"watched_by"`
	Average   float64  `json:"average_stars"`
	PosterURL string   `json:"poster_url,omitempty"`
}

// MemberProfile situates one viewer inside the group.
type MemberProfile struct {
	Username          string      `json:"username"`
	TotalFilms        int         `json:"total_films"`
	AverageStars      float64     `json:"average_stars"`
	CriticType        string      `json:"critic_type"`
	CriticNote        string      `json:"critic_note"`
	UniqueFavorites   []RatedFilm `json:"unique_favorites,omitempty"`
	DistinctiveGenres []string    `json:"distinctive_genres,omitempty"`
	MostCompatible    *Affinity   `json:"most_compatible,omitempty"`
	LeastCompatible   *Affinity   `json:"least_compatible,omitempty"`
}

// GroupComparison is the watch-party consensus for a group of viewers.
type GroupComparison struct {
	Users                []string        `json:"users"`
	WatchedByAll         int             `json:"watched_by_all_count"`
	MajorityWatched      int             `json:"majority_watched_count"`
	SafeBets             []SafeBet       `json:"safe_bets"`
	UnwatchedGems        []UnwatchedGem  `json:"unwatched_gems"`
	AverageCompatibility float64         `json:"average_compatibility"`
	Pairwise             [][]PairScore   `json:"pairwise_compatibility"`
	Members              []MemberProfile `json:"members"`
	GroupPicks           []GroupPick     `json:"group_picks,omitempty"`
}

// viewing is one member's take on a title.
type viewing struct {
	user  int // index into users
	stars float64
	item  pool.Item
}

// CompareGroup builds the consensus view for two or more viewers. Pure;
// GroupPicks stays empty for Service to fill. Callers guarantee the group
// size bounds.
func CompareGroup(users []User) *GroupComparison {
	for i := range users {
		users[i].Films = compactFilms(users[i].Films)
	}

	maps := make([]map[string]pool.Item, len(users))
	usernames := make([]string, len(users))
	for i, u := range users {
		maps[i] = filmsByTitle(u.Films)
		usernames[i] = u.Username
	}

	watchers := filmWatchers(maps)

	watchedByAll := 0
	for _, views := range watchers {
		if len(views) == len(users) {
			watchedByAll++
		}
	}

	majority := make(map[string][]viewing)
	for title, views := range watchers {
		if float64(len(views)) >= float64(len(users))/2 {
			majority[title] = views
		}
	}

	pairwise, averageCompat := pairwiseMatrix(usernames, maps)

	return &GroupComparison{
		Users:                usernames,
		WatchedByAll:         watchedByAll,
		MajorityWatched:      len(majority),
		SafeBets:             safeBets(majority),
		UnwatchedGems:        unwatchedGems(usernames, watchers, len(users)),
		AverageCompatibility: averageCompat,
		Pairwise:             pairwise,
		Members:              memberProfiles(users, maps, pairwise),
	}
}

// filmWatchers inverts the per-user film maps into title → viewings, in
// user order.
func filmWatchers(maps []map[string]pool.Item) map[string][]viewing {
	watchers := make(map[string][]viewing)
	for i, films := range maps {
		for title, it := range films {
			watchers[title] = append(watchers[title], viewing{user: i, stars: it.UserRating, item: it})
		}
	}
	for _, views := range watchers {
		sort.Slice(views, func(i, j int) bool { return views[i].user < views[j].user })
	}
	return watchers
}

// viewingSummary aggregates the rated viewings of one title: how many
// members rated it, their average, and the lowest score given.
func viewingSummary(views []viewing) (raters int, avg, lowest float64) {
	var sum float64
	for _, v := range views {
		if v.stars == 0 {
			continue
		}
		if raters == 0 || v.stars < lowest {
			lowest = v.stars
		}
		sum += v.stars
		raters++
	}
	if raters == 0 {
		return 0, 0, 0
	}
	return raters, sum / float64(raters), lowest
}

func safeBets(majority map[string][]viewing) []SafeBet {
	var bets []SafeBet
	for title, views := range majority {
		raters, avg, lowest := viewingSummary(views)
		if raters < 2 || avg < favoriteStars || lowest < safeBetFloor {
			continue
		}
		bets = append(bets, SafeBet{
			Title:     title,
			Year:      views[0].item.Movie.Year,
			Average:   roundHalfStar(avg),
			Lowest:    roundHalfStar(lowest),
			WatchedBy: len(views),
			PosterURL: views[0].item.Movie.PosterURL,
		})
	}
	sort.SliceStable(bets, func(i, j int) bool {
		if bets[i].Average != bets[j].Average {
			return bets[i].Average > bets[j].Average
		}
		return bets[i].Title < bets[j].Title
	})
	return capList(bets, sharedListLimit)
}

func unwatchedGems(usernames []string, watchers map[string][]viewing, groupSize int) []UnwatchedGem {
	var gems []UnwatchedGem
	for title, views := range watchers {
		if len(views) == groupSize {
			continue
		}
		raters, avg, _ := viewingSummary(views)
		if raters == 0 || avg < favoriteStars {
			continue
		}
		names := make([]string, 0, len(views))
		for _, v := range views {
			names = append(names, usernames[v.user])
		}
		gems = append(gems, UnwatchedGem{
			Title:     title,
			Year:      views[0].item.Movie.Year,
			WatchedBy: names,
			Average:   roundHalfStar(avg),
			PosterURL: views[0].item.Movie.PosterURL,
		})
	}
	sort.SliceStable(gems, func(i, j int) bool {
		if gems[i].Average != gems[j].Average {
			return gems[i].Average > gems[j].Average
		}
		return gems[i].Title < gems[j].Title
	})
	return capList(gems, unwatchedGemLimit)
}

// pairwiseMatrix computes every pair's compatibility once and returns both
// the full matrix and the average over the distinct pairs.
func pairwiseMatrix(usernames []string, maps []map[string]pool.Item) ([][]PairScore, float64) {
	n := len(usernames)
	matrix := make([][]PairScore, n)
	var total float64
	pairs := 0

	for i := 0; i < n; i++ {
		matrix[i] = make([]PairScore, n)
		matrix[i][i] = PairScore{Username: usernames[i], IsSelf: true}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := compatibility(maps[i], maps[j], sharedTitles(maps[i], maps[j]))
			matrix[i][j] = PairScore{Username: usernames[j], Score: util.Ptr(c.Score), SharedCount: c.SharedFilms}
			matrix[j][i] = PairScore{Username: usernames[i], Score: util.Ptr(c.Score), SharedCount: c.SharedFilms}
			total += c.Score
			pairs++
		}
	}
	if pairs == 0 {
		return matrix, 0
	}
	return matrix, round1(total / float64(pairs))
}

func memberProfiles(users []User, maps []map[string]pool.Item, pairwise [][]PairScore) []MemberProfile {
	groupAvg := averageStars(allRatings(users))

	groupGenreCounts := make(map[string]int)
	totalGroupFilms := 0
	for _, u := range users {
		totalGroupFilms += len(u.Films)
		for _, g := range genreStats(u.Films) {
			groupGenreCounts[g.Name] += g.Count
		}
	}

	members := make([]MemberProfile, 0, len(users))
	for i, u := range users {
		var own []float64
		for _, it := range u.Films {
			if rated(it) {
				own = append(own, it.UserRating)
			}
		}
		avg := averageStars(own)

		m := MemberProfile{
			Username:     u.Username,
			TotalFilms:   len(u.Films),
			AverageStars: roundHalfStar(avg),
		}
		m.CriticType, m.CriticNote = criticType(avg, groupAvg)
		m.UniqueFavorites = uniqueFavorites(i, users, maps)
		m.DistinctiveGenres = distinctiveGenres(u.Films, groupGenreCounts, totalGroupFilms)
		m.MostCompatible, m.LeastCompatible = affinities(pairwise[i])
		members = append(members, m)
	}
	return members
}

func allRatings(users []User) []float64 {
	var ratings []float64
	for _, u := range users {
		for _, it := range u.Films {
			if rated(it) {
				ratings = append(ratings, it.UserRating)
			}
		}
	}
	return ratings
}

// averageStars defaults to the midpoint when nobody rated anything, so the
// critic-type comparison stays meaningful.
func averageStars(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 2.5
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return sum / float64(len(ratings))
}

func criticType(avg, groupAvg float64) (string, string) {
	diff := avg - groupAvg
	switch {
	case diff > criticStarGap:
		return "generous", fmt.Sprintf("Rates %.1f stars higher than the group average", diff)
	case diff < -criticStarGap:
		return "harsh", fmt.Sprintf("Rates %.1f stars lower than the group average", -diff)
	default:
		return "balanced", "Rates similarly to the group"
	}
}

// uniqueFavorites lists the loved films only this member has seen.
func uniqueFavorites(i int, users []User, maps []map[string]pool.Item) []RatedFilm {
	var favorites []RatedFilm
	for title, it := range maps[i] {
		if it.UserRating < favoriteStars {
			continue
		}
		seen := false
		for j := range users {
			if j != i {
				if _, ok := maps[j][title]; ok {
					seen = true
					break
				}
			}
		}
		if seen {
			continue
		}
		favorites = append(favorites, RatedFilm{
			Title:     title,
			Year:      it.Movie.Year,
			Stars:     it.UserRating,
			PosterURL: it.Movie.PosterURL,
		})
	}
	sort.SliceStable(favorites, func(i, j int) bool {
		if favorites[i].Stars != favorites[j].Stars {
			return favorites[i].Stars > favorites[j].Stars
		}
		return favorites[i].Title < favorites[j].Title
	})
	return capList(favorites, uniqueFavoriteLimit)
}

// distinctiveGenres flags genres this member leans into at least 30% harder
// than the group as a whole.
func distinctiveGenres(films []pool.Item, groupCounts map[string]int, totalGroupFilms int) []string {
	if len(films) == 0 || totalGroupFilms == 0 {
		return nil
	}
	var names []string
	for _, g := range capList(genreStats(films), overlapTopN) {
		memberShare := float64(g.Count) / float64(len(films))
		groupShare := float64(groupCounts[g.Name]) / float64(totalGroupFilms)
		if memberShare > groupShare*1.3 {
			names = append(names, g.Name)
		}
	}
	return capList(names, distinctiveGenreLimit)
}

func affinities(row []PairScore) (most, least *Affinity) {
	for _, cell := range row {
		if cell.Score == nil {
			continue
		}
		if most == nil || *cell.Score > most.Score {
			most = &Affinity{Username: cell.Username, Score: *cell.Score}
		}
		if least == nil || *cell.Score < least.Score {
			least = &Affinity{Username: cell.Username, Score: *cell.Score}
		}
	}
	return most, least
}
