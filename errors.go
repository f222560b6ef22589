package imageloop

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError is returned when a rate limit is hit.
type RateLimitError struct {
	RetryAfter time.Duration
	LimitType  string
	Model      string
	Err        error // Underlying error from the provider
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %s limit, retry after %v",
		e.Model, e.LimitType, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimitError checks if an error is a RateLimitError.
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// ReferenceError reports a reference image that could not be loaded.
type ReferenceError struct {
	Ref string
	Err error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference %q: %v", e.Ref, e.Err)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

var (
	// ErrStorageNotConfigured is returned when storage operations are attempted
	// without a configured storage backend.
	ErrStorageNotConfigured = errors.New("storage not configured")

	// ErrNoImage is returned when a provider answers without any image.
	ErrNoImage = errors.New("no image returned by model")

	// ErrUnknownContinuation is returned for a continuation token the manager does not hold.
	ErrUnknownContinuation = errors.New("unknown continuation token")

	// ErrNothingToGenerate is returned when neither a prompt nor a usable reference was given.
	ErrNothingToGenerate = errors.New("empty prompt and no usable references")

	// ErrMalformedEvaluation is returned when no valid evaluation object can be extracted.
	ErrMalformedEvaluation = errors.New("malformed evaluation response")
)
