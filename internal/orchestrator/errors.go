package orchestrator

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/local/aigateway/internal/dispatcher"
	"github.com/local/aigateway/internal/filesearch"
	"github.com/local/aigateway/internal/parser"
)

// ErrRateLimited is returned when a caller exceeds its admission window.
var ErrRateLimited = errors.New("rate limit exceeded, try again later")

// ErrMissingCaller is returned when no caller identity accompanies a request.
var ErrMissingCaller = errors.New("missing API key")

// PayloadTooLargeError rejects input before any provider dispatch.
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	var tooLarge *PayloadTooLargeError
	var parseErr *parser.ParseError
	var fatal *dispatcher.FatalError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrMissingCaller):
		return http.StatusUnauthorized
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, filesearch.ErrIndexingTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, filesearch.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, filesearch.ErrRegistrationInProgress):
		return http.StatusConflict
	case errors.Is(err, dispatcher.ErrAllProvidersExhausted):
		return http.StatusInternalServerError
	case errors.As(err, &fatal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
