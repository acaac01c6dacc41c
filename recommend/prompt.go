package recommend

import (
	"fmt"
	"strings"

	"github.com/teranos/matinee/pool"
)

// strictRetryInstruction is appended to the user prompt on the second
// attempt after an unparseable or wrong-sized reply.
const strictRetryInstruction = `

IMPORTANT: Your previous reply could not be used. Respond with ONLY the JSON object described above. No markdown fences, no commentary, no text before or after the JSON. The "recommendations" array must contain exactly %d entries.`

// buildSystemPrompt fixes the curator persona and the output contract.
func buildSystemPrompt(count int, explain bool) string {
	var b strings.Builder

	b.WriteString("You are an expert film curator and analyst with deep knowledge of cinema across all genres, eras, and cultures. ")
	fmt.Fprintf(&b, "You analyze a viewer's watched movies and recommend exactly %d films they have not seen yet.\n\n", count)

	b.WriteString("OUTPUT FORMAT (STRICT JSON ONLY):\n")
	if explain {
		b.WriteString(`{
  "recommendations": [
    {"title": "Movie Title", "year": 1999, "reason": "One short sentence tying this pick to their taste."}
  ]
}
`)
	} else {
		b.WriteString(`{
  "recommendations": [
    {"title": "Movie Title", "year": 1999}
  ]
}
`)
	}
	fmt.Fprintf(&b, "\nThe \"recommendations\" array must contain exactly %d entries. ", count)
	b.WriteString("Every entry must have a release year. ")
	if explain {
		b.WriteString("Every entry must carry a short free-text reason grounded in the viewer's demonstrated taste. ")
	}
	b.WriteString("Provide ONLY the JSON output, no additional commentary, explanation, or text. The response must be valid JSON that can be parsed directly.")

	return b.String()
}

// buildUserPrompt serializes the candidate pool and the analysis task.
// It is a pure function of its inputs: identical pools and preferences
// always produce byte-identical prompts.
func buildUserPrompt(entries []pool.Entry, preferences string, count int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "VIEWER'S WATCHED MOVIES (%d total):\n\n", len(entries))
	for i, e := range entries {
		writeEntry(&b, i+1, e)
		b.WriteString("\n\n")
	}

	if prefs := strings.TrimSpace(preferences); prefs != "" {
		b.WriteString("VIEWER'S SPECIFIC PREFERENCES:\n\n")
		fmt.Fprintf(&b, "%q\n\n", prefs)
		b.WriteString("These preferences are your PRIMARY consideration. Prioritize picks that match them while still respecting the overall taste profile.\n\n")
	}

	b.WriteString("ANALYSIS TASK:\n\n")
	b.WriteString(`1. Identify patterns in their taste:
   - What genres do they gravitate toward?
   - Favorite directors, actors, or filmmakers?
   - Preferred themes, storytelling styles, or tones?
   - What keywords appear repeatedly?
   - What do their ratings suggest about their preferences?

`)
	fmt.Fprintf(&b, "2. Generate %d diverse recommendations following this strategy:\n", count)
	b.WriteString(`   - Several close matches they'll likely love (safe bets based on clear preferences)
   - A few hidden gems (critically acclaimed but lesser-known films matching their taste)
   - A few boundary-expanding picks (same director but different genre, adjacent movements, thematic connections)

3. Ensure variety:
   - Mix of decades and eras
   - Different genres within their taste profile
   - Balance between classics and modern films

CRITICAL REQUIREMENTS:
`)
	fmt.Fprintf(&b, "- Return EXACTLY %d movie recommendations\n", count)
	b.WriteString(`- Each movie must have a release year
- Do NOT recommend any movies from the watched list above
- Focus on movies that genuinely match their demonstrated preferences`)

	return b.String()
}

// writeEntry renders one pool entry as a numbered block. Fields follow the
// pool projection; the user rating line appears only for rated entries.
func writeEntry(b *strings.Builder, n int, e pool.Entry) {
	if e.Year > 0 {
		fmt.Fprintf(b, "%d. Title: %s (%d)\n", n, e.Title, e.Year)
	} else {
		fmt.Fprintf(b, "%d. Title: %s\n", n, e.Title)
	}
	fmt.Fprintf(b, "   Genres: %s\n", strings.Join(e.Genres, ", "))
	fmt.Fprintf(b, "   Director: %s\n", e.Director)
	fmt.Fprintf(b, "   Cast: %s\n", strings.Join(e.Cast, ", "))
	fmt.Fprintf(b, "   Rating: %.1f/10\n", e.Rating)
	if e.UserRating > 0 {
		fmt.Fprintf(b, "   Viewer rating: %.1f/5\n", e.UserRating)
	}
	fmt.Fprintf(b, "   Overview: %s\n", e.Overview)
	fmt.Fprintf(b, "   Keywords: %s", strings.Join(e.Keywords, ", "))
}
