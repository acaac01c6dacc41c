package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/matinee/ai/openrouter"
	"github.com/teranos/matinee/ai/provider"
	"github.com/teranos/matinee/internal/util"
	"github.com/teranos/matinee/logger"
)

// Model settings for persona generation. Runs hotter than recommendation
// calls; the output is prose, not a ranked list.
const (
	tasteTemperature = 0.8
	tasteMaxTokens   = 1000
)

// TasteProfile is the model's persona riff on an analysis: a short title
// and a few paragraphs of description.
type TasteProfile struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GenerateTasteProfile asks the model to write a persona for the analyzed
// viewer. It never fails: any transport or parse problem logs a warning and
// falls back to a deterministic profile built from the analysis itself.
func GenerateTasteProfile(ctx context.Context, client provider.AIClient, a *Analysis, log *zap.SugaredLogger) *TasteProfile {
	if log == nil {
		log = logger.ComponentLogger("profile")
	}

	resp, err := client.Chat(ctx, openrouter.ChatRequest{
		UserPrompt:  buildTastePrompt(a),
		Temperature: util.Ptr(tasteTemperature),
		MaxTokens:   util.Ptr(tasteMaxTokens),
	})
	if err != nil {
		log.Warnw("Taste profile generation failed, using fallback", logger.FieldError, err)
		return fallbackTasteProfile(a)
	}

	var p TasteProfile
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &p); err != nil {
		log.Warnw("Taste profile reply was not valid JSON, using fallback",
			logger.FieldError, err,
			"reply_length", len(resp.Content))
		return fallbackTasteProfile(a)
	}

	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	if p.Title == "" {
		p.Title = "Film Enthusiast"
	}
	if p.Description == "" {
		p.Description = "A passionate moviegoer with diverse tastes."
	}
	return &p
}

// buildTastePrompt packs the analysis highlights into the persona request.
func buildTastePrompt(a *Analysis) string {
	var b strings.Builder

	b.WriteString("Based on this viewer's film history, create a personalized cinematic profile.\n\n")
	b.WriteString("VIEWING DATA:\n")
	fmt.Fprintf(&b, "- Total films watched: %d\n", a.Stats.TotalFilms)
	if a.Stats.AverageStars > 0 {
		fmt.Fprintf(&b, "- Average rating: %s/5 stars\n", trimFloat(a.Stats.AverageStars))
	}
	if names := firstNames(a.Genres, 5, func(g GenreStat) string { return g.Name }); len(names) > 0 {
		fmt.Fprintf(&b, "- Top genres: %s\n", strings.Join(names, ", "))
	}
	if names := firstNames(a.Directors, 3, func(d DirectorStat) string { return d.Name }); len(names) > 0 {
		fmt.Fprintf(&b, "- Favorite directors: %s\n", strings.Join(names, ", "))
	}
	if names := firstNames(a.Actors, 3, func(s ActorStat) string { return s.Name }); len(names) > 0 {
		fmt.Fprintf(&b, "- Favorite actors: %s\n", strings.Join(names, ", "))
	}
	if d := mostWatchedDecade(a.Decades); d != nil {
		fmt.Fprintf(&b, "- Most-watched decade: %s\n", d.Decade)
	}
	if lines := firstNames(a.Ratings.Highest, 3, ratedFilmLine); len(lines) > 0 {
		fmt.Fprintf(&b, "- Highest rated films: %s\n", strings.Join(lines, ", "))
	}

	b.WriteString(`
Generate a JSON response with:
1. "title": A catchy, creative 3-5 word title that captures their moviegoer personality (e.g., "Cerebral Indie Explorer", "Blockbuster Action Devotee", "Art House Cinephile")
2. "description": A 2-3 paragraph engaging narrative (150-200 words) that describes their taste profile, highlights what makes their viewing habits distinctive, and reads like a film critic who knows them personally

Output ONLY valid JSON with no additional text:
{"title": "...", "description": "..."}`)

	return b.String()
}

func ratedFilmLine(f RatedFilm) string {
	if f.Year > 0 {
		return fmt.Sprintf("%s (%d)", f.Title, f.Year)
	}
	return f.Title
}

// fallbackTasteProfile is the deterministic stand-in when the model is
// unavailable or off-contract.
func fallbackTasteProfile(a *Analysis) *TasteProfile {
	desc := fmt.Sprintf("A dedicated moviegoer who has watched %d films", a.Stats.TotalFilms)
	if names := firstNames(a.Genres, 3, func(g GenreStat) string { return g.Name }); len(names) > 0 {
		desc += ", with a particular affinity for " + strings.Join(names, ", ")
	}
	return &TasteProfile{Title: "Film Enthusiast", Description: desc + "."}
}

// extractJSON recovers the JSON object from a noisy model reply: markdown
// fences are stripped and the widest {...} window is taken when prose
// surrounds the payload.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
