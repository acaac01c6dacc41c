// Package errors provides error handling for matinee.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//   - Sentry integration
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotMatched) {
//	    // skip this title
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors for the pipeline error taxonomy.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrMalformedInput indicates a list URL or username that does not match
	// the expected pattern. Raised before any network call is made.
	ErrMalformedInput = New("malformed input")

	// ErrNotFound indicates the requested list, profile, or catalog resource
	// does not exist (404-equivalent).
	ErrNotFound = New("not found")

	// ErrAccessDenied indicates the target list or profile is private.
	ErrAccessDenied = New("access denied")

	// ErrNotMatched indicates the catalog search found no acceptable match for
	// a title. This is a normal per-movie outcome, not a failure: callers count
	// it and move on.
	ErrNotMatched = New("no catalog match")

	// ErrAuthentication indicates the catalog or LLM provider rejected our
	// credentials (401-equivalent). Fatal: the whole pipeline aborts, since
	// every subsequent call would fail the same way.
	ErrAuthentication = New("authentication failed")

	// ErrRecommendationParse indicates the model reply could not be parsed
	// into a valid recommendation list even after the stricter-format retry.
	ErrRecommendationParse = New("unparseable recommendation reply")

	// ErrTimeout indicates an operation exceeded its deadline after retries.
	ErrTimeout = New("operation timed out")
)

// IsMalformedInput checks if an error is or wraps ErrMalformedInput.
func IsMalformedInput(err error) bool {
	return err != nil && Is(err, ErrMalformedInput)
}

// IsNotFound checks if an error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsAccessDenied checks if an error is or wraps ErrAccessDenied.
func IsAccessDenied(err error) bool {
	return err != nil && Is(err, ErrAccessDenied)
}

// IsNotMatched checks if an error is or wraps ErrNotMatched.
func IsNotMatched(err error) bool {
	return err != nil && Is(err, ErrNotMatched)
}

// IsAuthentication checks if an error is or wraps ErrAuthentication.
func IsAuthentication(err error) bool {
	return err != nil && Is(err, ErrAuthentication)
}

// IsRecommendationParse checks if an error is or wraps ErrRecommendationParse.
func IsRecommendationParse(err error) bool {
	return err != nil && Is(err, ErrRecommendationParse)
}

// NewMalformedInputError creates a malformed-input error with a formatted message.
func NewMalformedInputError(format string, args ...interface{}) error {
	return Wrap(ErrMalformedInput, Newf(format, args...).Error())
}

// NewNotFoundError creates a not-found error with a formatted message.
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewAccessDeniedError creates an access-denied error with a formatted message.
func NewAccessDeniedError(format string, args ...interface{}) error {
	return Wrap(ErrAccessDenied, Newf(format, args...).Error())
}

// NewAuthenticationError creates an authentication error with a formatted message.
func NewAuthenticationError(format string, args ...interface{}) error {
	return Wrap(ErrAuthentication, Newf(format, args...).Error())
}
