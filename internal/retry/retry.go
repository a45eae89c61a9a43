// Package retry provides the shared retry policy used by every external
// call in the pipeline. Each stage wraps its outbound requests in
// Policy.Execute so transient failures are absorbed uniformly.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
)

// retryableStatusCodes are the HTTP statuses worth another attempt.
var retryableStatusCodes = map[int]bool{
	408: true, // Request Timeout
	429: true, // Too Many Requests
	500: true, // Internal Server Error
	502: true, // Bad Gateway
	503: true, // Service Unavailable
	504: true, // Gateway Timeout
}

// Policy defines retry behavior with exponential backoff
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewPolicy creates the default policy: five attempts with backoff
// 1s, 2s, 4s, 8s between them, capped at 60s, jittered ±25%.
func NewPolicy() *Policy {
	return &Policy{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff calculates the delay before attempt+2. The cap applies to the
// exponential term, then jitter is added on top.
func (p *Policy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
	}
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	// ±25% jitter
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}

// Execute runs fn up to MaxAttempts times, sleeping between attempts.
// Non-retryable errors fail immediately. Context cancellation aborts the
// wait between attempts and returns ctx.Err().
func (p *Policy) Execute(ctx context.Context, logger arbor.ILogger, name string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			logger.Debug().
				Str("operation", name).
				Int("attempt", attempt+1).
				Err(lastErr).
				Msg("Non-retryable error, failing immediately")
			return lastErr
		}

		if attempt < p.MaxAttempts-1 {
			backoff := p.Backoff(attempt)
			logger.Debug().
				Str("operation", name).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying after backoff")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	logger.Warn().
		Str("operation", name).
		Int("max_attempts", p.MaxAttempts).
		Err(lastErr).
		Msg("All retry attempts exhausted")

	return lastErr
}

// IsRetryable reports whether an error is transient. Auth, validation,
// and configuration errors are permanent; so are HTTP client errors
// outside the retryable status set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *interfaces.StatusError
	if errors.As(err, &statusErr) {
		return retryableStatusCodes[statusErr.Code]
	}

	var authErr *interfaces.AuthError
	if errors.As(err, &authErr) {
		return false
	}

	var validationErr *interfaces.ValidationError
	if errors.As(err, &validationErr) {
		return false
	}

	var configErr *interfaces.ConfigError
	if errors.As(err, &configErr) {
		return false
	}

	// Per-request deadlines are timeouts, not cancellation
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}
