package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teranos/matinee/errors"
	matineetest "github.com/teranos/matinee/internal/testing"
)

func TestRecommendHappyPath(t *testing.T) {
	script := matineetest.NewAIScript(scriptedReplyJSON(10))
	engine := New(Options{Client: script})

	recs, err := engine.Recommend(context.Background(), Request{Pool: testPool()})

	require.NoError(t, err)
	require.Len(t, recs, 10)
	require.Equal(t, 1, script.Calls())
	require.Equal(t, "Pick 1", recs[0].Title)
}

func TestRecommendMalformedThenValid(t *testing.T) {
	script := matineetest.NewAIScript(
		"Sorry, here are some films you might enjoy: Heat 2, Ronin 2...",
		scriptedReplyJSON(10),
	)
	engine := New(Options{Client: script})

	recs, err := engine.Recommend(context.Background(), Request{Pool: testPool()})

	require.NoError(t, err)
	require.Len(t, recs, 10)
	require.Equal(t, 2, script.Calls())

	// The retry keeps the original prompt and appends the stricter
	// formatting instruction.
	first := script.Request(0)
	second := script.Request(1)
	require.Equal(t, first.SystemPrompt, second.SystemPrompt)
	require.Contains(t, second.UserPrompt, first.UserPrompt)
	require.Contains(t, second.UserPrompt, "ONLY the JSON object")
}

func TestRecommendTwoMalformedReplies(t *testing.T) {
	script := matineetest.NewAIScript(
		"not json",
		"still not json",
	)
	engine := New(Options{Client: script})

	_, err := engine.Recommend(context.Background(), Request{Pool: testPool()})

	require.Error(t, err)
	require.True(t, errors.IsRecommendationParse(err))
	require.Equal(t, 2, script.Calls())
}

func TestRecommendWrongCountTriggersRetry(t *testing.T) {
	script := matineetest.NewAIScript(
		scriptedReplyJSON(9),
		scriptedReplyJSON(10),
	)
	engine := New(Options{Client: script})

	recs, err := engine.Recommend(context.Background(), Request{Pool: testPool()})

	require.NoError(t, err)
	require.Len(t, recs, 10)
	require.Equal(t, 2, script.Calls())
}

func TestRecommendPromptDeterminism(t *testing.T) {
	entries := testPool()

	first := matineetest.NewAIScript(scriptedReplyJSON(10))
	second := matineetest.NewAIScript(scriptedReplyJSON(10))

	_, err := New(Options{Client: first}).Recommend(context.Background(), Request{Pool: entries})
	require.NoError(t, err)
	_, err = New(Options{Client: second}).Recommend(context.Background(), Request{Pool: entries})
	require.NoError(t, err)

	require.Equal(t, first.Request(0).SystemPrompt, second.Request(0).SystemPrompt)
	require.Equal(t, first.Request(0).UserPrompt, second.Request(0).UserPrompt)
}

func TestRecommendEmptyPool(t *testing.T) {
	script := matineetest.NewAIScript(scriptedReplyJSON(10))
	engine := New(Options{Client: script})

	_, err := engine.Recommend(context.Background(), Request{})

	require.Error(t, err)
	require.Equal(t, 0, script.Calls())
}

func TestRecommendTransportErrorPassesThrough(t *testing.T) {
	script := (&matineetest.AIScript{}).FailNext(errors.NewAuthenticationError("bad key"))
	engine := New(Options{Client: script})

	_, err := engine.Recommend(context.Background(), Request{Pool: testPool()})

	require.Error(t, err)
	require.True(t, errors.IsAuthentication(err))
	require.False(t, errors.IsRecommendationParse(err))
	// Transport failures are not contract violations: no stricter retry.
	require.Equal(t, 1, script.Calls())
}

func TestRecommendExplainMode(t *testing.T) {
	raw := `{"recommendations": [
		{"title": "Thief", "year": 1981, "reason": "Mann's heist debut matches the crime streak."},
		{"title": "Collateral", "year": 2004, "reason": "Night-time Los Angeles crime in the Heat mold."}
	]}`
	script := matineetest.NewAIScript(raw)
	engine := New(Options{Client: script, Count: 2})

	recs, err := engine.Recommend(context.Background(), Request{Pool: testPool(), Explain: true})

	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NotEmpty(t, recs[0].Reason)
	require.Contains(t, script.Request(0).SystemPrompt, `"reason"`)
}

func TestRecommendConfiguredCount(t *testing.T) {
	script := matineetest.NewAIScript(scriptedReplyJSON(3))
	engine := New(Options{Client: script, Count: 3})

	recs, err := engine.Recommend(context.Background(), Request{Pool: testPool()})

	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Contains(t, script.Request(0).UserPrompt, "Return EXACTLY 3 movie recommendations")
}
