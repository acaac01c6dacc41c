package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf("error: %s %d", "test", 42)
	require.NotNil(t, err)
	assert.Equal(t, "error: test 42", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestIs(t *testing.T) {
	err1 := New("error 1")
	err2 := New("error 2")
	wrapped := Wrap(err1, "wrapped")

	assert.True(t, Is(wrapped, err1))
	assert.False(t, Is(wrapped, err2))
	assert.False(t, Is(nil, err1))
}

type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}

func TestAs(t *testing.T) {
	original := &customError{msg: "custom"}
	wrapped := Wrap(original, "wrapped")

	var target *customError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "custom", target.msg)
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
		check    func(error) bool
	}{
		{"malformed input", ErrMalformedInput, IsMalformedInput},
		{"not found", ErrNotFound, IsNotFound},
		{"access denied", ErrAccessDenied, IsAccessDenied},
		{"not matched", ErrNotMatched, IsNotMatched},
		{"authentication", ErrAuthentication, IsAuthentication},
		{"recommendation parse", ErrRecommendationParse, IsRecommendationParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(Wrap(tt.sentinel, "inner context"), "outer context")
			assert.True(t, tt.check(wrapped), "helper should see sentinel through two wraps")
			assert.True(t, Is(wrapped, tt.sentinel))
			assert.False(t, tt.check(nil), "nil is never a sentinel")
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	// A NotMatched outcome must never be mistaken for a fatal failure.
	assert.False(t, IsAuthentication(ErrNotMatched))
	assert.False(t, IsNotMatched(ErrAuthentication))
	assert.False(t, IsNotFound(ErrAccessDenied))
}

func TestFormattedConstructors(t *testing.T) {
	err := NewNotFoundError("list %q does not exist", "top-100")
	require.NotNil(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), `list "top-100" does not exist`)

	err = NewAuthenticationError("catalog rejected key ending %s", "abcd")
	assert.True(t, IsAuthentication(err))
	assert.Contains(t, err.Error(), "abcd")

	err = NewMalformedInputError("bad url %q", "ftp://nope")
	assert.True(t, IsMalformedInput(err))

	err = NewAccessDeniedError("profile %s is private", "secretive")
	assert.True(t, IsAccessDenied(err))
}

func TestWithHint(t *testing.T) {
	err := New("error")
	withHint := WithHint(err, "try this fix")

	hints := GetAllHints(withHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "try this fix", hints[0])
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	// Format with stack trace
	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
}

func TestErrorChaining(t *testing.T) {
	base := ErrAuthentication

	err := Wrap(base, "catalog search")
	err = WithHint(err, "check the TMDB_API_KEY environment variable")
	err = Wrap(err, "matching stage")

	assert.True(t, Is(err, base))
	assert.Contains(t, err.Error(), "matching stage")
	assert.Contains(t, err.Error(), "catalog search")

	hints := GetAllHints(err)
	assert.Contains(t, hints, "check the TMDB_API_KEY environment variable")
}

func ExampleNew() {
	err := New("something went wrong")
	fmt.Println(err)
	// Output: something went wrong
}

func ExampleWrap() {
	baseErr := New("connection refused")
	err := Wrap(baseErr, "failed to reach catalog")
	fmt.Println(err)
	// Output: failed to reach catalog: connection refused
}
