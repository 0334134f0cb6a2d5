package dispatcher

import (
	"errors"
	"strings"

	"github.com/local/aigateway/internal/ai"
)

// Failure classification drives fallback: retryable errors advance to
// the next provider, everything else stops the sequence. The matching
// rules below are a behavioral contract — they decide when a second
// provider gets billed — so changes here need test coverage first.

var retryableTokens = []string{
	"429",
	"rate limit",
	"too many requests",
	"quota",
	"resource exhausted",
	"overloaded",
	"internal server error",
	"service unavailable",
	"502",
	"503",
	"504",
}

var fatalTokens = []string{
	"invalid",
	"malformed",
	"bad request",
	"unauthorized",
	"forbidden",
	"api key",
	"authentication",
	"payload too large",
	"413",
}

// IsRetryable reports whether err signals a transient condition safe to
// retry against a different provider: throttling (429), server errors
// (5xx) or quota exhaustion. Unrecognized errors are NOT retryable —
// unknown failure classes fail closed so a non-recoverable request is
// never billed twice.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perr *ai.ProviderError
	if errors.As(err, &perr) && perr.StatusCode > 0 {
		if perr.StatusCode == 429 {
			return true
		}
		if perr.StatusCode >= 500 && perr.StatusCode < 600 {
			return true
		}
		if perr.StatusCode >= 400 && perr.StatusCode < 500 {
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, tok := range fatalTokens {
		if strings.Contains(msg, tok) {
			return false
		}
	}
	for _, tok := range retryableTokens {
		if strings.Contains(msg, tok) {
			return true
		}
	}

	return false
}
