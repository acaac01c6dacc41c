package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teranos/matinee/errors"
	matineetest "github.com/teranos/matinee/internal/testing"
)

func TestGenerateTasteProfile(t *testing.T) {
	ai := matineetest.NewAIScript(`{"title": "Nineties Crime Devotee", "description": "Rain-slicked streets and bad decisions."}`)
	a := Analyze("dave", tasteHistory())

	p := GenerateTasteProfile(context.Background(), ai, a, nil)

	require.Equal(t, "Nineties Crime Devotee", p.Title)
	require.Equal(t, "Rain-slicked streets and bad decisions.", p.Description)
	require.Equal(t, 1, ai.Calls())

	req := ai.LastRequest()
	require.NotNil(t, req.Temperature)
	require.Equal(t, 0.8, *req.Temperature)
	require.NotNil(t, req.MaxTokens)
	require.Equal(t, 1000, *req.MaxTokens)

	// The prompt carries the analysis highlights, not the raw history.
	require.Contains(t, req.UserPrompt, "- Total films watched: 8")
	require.Contains(t, req.UserPrompt, "- Average rating: 3.57/5 stars")
	require.Contains(t, req.UserPrompt, "- Top genres: Drama, Crime, Comedy, Thriller, Horror")
	require.Contains(t, req.UserPrompt, "- Favorite directors: Jane Doe, Ann Smith, John Roe")
	require.Contains(t, req.UserPrompt, "- Most-watched decade: 1990s")
	require.Contains(t, req.UserPrompt, "- Highest rated films: Alpha (1994), Bravo (1996), Hotel (2021)")
	require.Contains(t, req.UserPrompt, "Output ONLY valid JSON")
}

func TestGenerateTasteProfileFencedReply(t *testing.T) {
	ai := matineetest.NewAIScript("```json\n{\"title\": \"Fence Sitter\", \"description\": \"Wrapped but valid.\"}\n```")
	a := Analyze("dave", tasteHistory())

	p := GenerateTasteProfile(context.Background(), ai, a, nil)

	require.Equal(t, "Fence Sitter", p.Title)
	require.Equal(t, "Wrapped but valid.", p.Description)
}

func TestGenerateTasteProfileFallbackOnError(t *testing.T) {
	ai := (&matineetest.AIScript{}).FailNext(errors.Newf("model unavailable"))
	a := Analyze("dave", tasteHistory())

	p := GenerateTasteProfile(context.Background(), ai, a, nil)

	require.Equal(t, "Film Enthusiast", p.Title)
	require.Equal(t, "A dedicated moviegoer who has watched 8 films, with a particular affinity for Drama, Crime, Comedy.", p.Description)
}

func TestGenerateTasteProfileFallbackOnBadJSON(t *testing.T) {
	ai := matineetest.NewAIScript("I couldn't possibly reduce this viewer to a label.")
	a := Analyze("dave", tasteHistory())

	p := GenerateTasteProfile(context.Background(), ai, a, nil)

	require.Equal(t, "Film Enthusiast", p.Title)
	require.Contains(t, p.Description, "watched 8 films")
}

func TestGenerateTasteProfileDefaultsForEmptyFields(t *testing.T) {
	ai := matineetest.NewAIScript(`{"title": "  ", "description": ""}`)
	a := Analyze("dave", tasteHistory())

	p := GenerateTasteProfile(context.Background(), ai, a, nil)

	require.Equal(t, "Film Enthusiast", p.Title)
	require.Equal(t, "A passionate moviegoer with diverse tastes.", p.Description)
}
