package ai

import (
	"context"
	"errors"
	"fmt"
)

// Client is the uniform capability surface every backend provider
// implements. Exactly one attempt per call; retries and fallback live
// in the dispatcher layer.
type Client interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// ProviderError is the normalized failure signal a provider returns.
// StatusCode is 0 when the failure happened before an HTTP status was
// available (transport error, missing key).
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

var ErrEmptyResponse = errors.New("provider returned no content")
