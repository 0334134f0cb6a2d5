package dispatcher

import (
	"errors"
	"fmt"
)

// ErrAllProvidersExhausted is returned when every configured provider
// failed with a retryable error. The last provider error is wrapped.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

// FatalError wraps a provider failure that must not be retried against
// another provider (malformed input, auth failure, payload rejection).
type FatalError struct {
	Provider string
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal provider error from %s: %v", e.Provider, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ExhaustedError carries the last retryable failure once the provider
// list is used up, keeping ErrAllProvidersExhausted matchable via
// errors.Is.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d providers exhausted, last error: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllProvidersExhausted }

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
