package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/aigateway/internal/ai"
	mpkg "github.com/local/aigateway/internal/metrics"
)

// Fallback attempts an operation against an ordered list of providers.
// Strictly sequential: one provider at a time, short-circuit on the
// first success or the first fatal failure. Ordering is fixed at
// construction — primary before secondary, no health-based reordering —
// which bounds worst-case latency to the sum of per-provider timeouts
// and worst-case cost to the number of configured providers.
type Fallback struct {
	clients []ai.Client
}

func New(clients ...ai.Client) *Fallback {
	return &Fallback{clients: clients}
}

// Result is a successful generation plus the provider that produced it.
type Result struct {
	Text     string
	Provider string
}

func (f *Fallback) GenerateText(ctx context.Context, prompt string) (Result, error) {
	return f.run(ctx, func(c ai.Client) (string, error) {
		return c.GenerateText(ctx, prompt)
	})
}

func (f *Fallback) GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (Result, error) {
	return f.run(ctx, func(c ai.Client) (string, error) {
		return c.GenerateVision(ctx, prompt, image, mimeType)
	})
}

func (f *Fallback) run(ctx context.Context, attempt func(ai.Client) (string, error)) (Result, error) {
	var lastErr error

	for i, client := range f.clients {
		start := time.Now()
		text, err := attempt(client)
		dur := time.Since(start)

		if err == nil {
			mpkg.ObserveProvider(client.Name(), "success", dur)
			log.Debug().
				Str("provider", client.Name()).
				Int("attempt", i+1).
				Dur("duration", dur).
				Msg("provider call success")
			return Result{Text: text, Provider: client.Name()}, nil
		}

		if IsRetryable(err) {
			mpkg.ObserveProvider(client.Name(), "retryable", dur)
			log.Warn().
				Err(err).
				Str("provider", client.Name()).
				Int("attempt", i+1).
				Dur("duration", dur).
				Msg("retryable provider failure - trying next provider")
			lastErr = err
			continue
		}

		mpkg.ObserveProvider(client.Name(), "fatal", dur)
		log.Error().
			Err(err).
			Str("provider", client.Name()).
			Int("attempt", i+1).
			Msg("fatal provider failure - no further attempts")
		return Result{}, &FatalError{Provider: client.Name(), Err: err}
	}

	mpkg.ObserveProvider("all", "exhausted", 0)
	log.Error().Err(lastErr).Int("providers", len(f.clients)).Msg("all providers exhausted")
	return Result{}, &ExhaustedError{Attempts: len(f.clients), LastErr: lastErr}
}
