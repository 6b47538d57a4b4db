// internal/retry/retry.go
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy describes an exponential backoff schedule with jitter.
type Policy struct {
	// MaxAttempts is the total number of tries before giving up.
	MaxAttempts int
	// Base is the delay before the second attempt; it doubles per attempt.
	Base time.Duration
	// Max caps the delay between attempts.
	Max time.Duration
	// Retryable decides whether an error is worth another attempt. A nil
	// Retryable retries everything.
	Retryable func(error) bool
}

// Default is the schedule used by outbound publish calls: 3 attempts,
// 1s/2s delays with up to 25% jitter.
var Default = Policy{
	MaxAttempts: 3,
	Base:        time.Second,
	Max:         10 * time.Second,
}

// Do runs fn under the policy, sleeping between attempts. It respects
// context cancellation and returns the last error when all attempts fail or
// the error is not retryable.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay(attempt)):
			}
		}
	}
	return lastErr
}

// delay is the backoff for the given attempt (0-indexed): Base doubled per
// attempt, capped at Max, plus up to 25% jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := p.Base << uint(attempt)
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	jitter := time.Duration(float64(d) * 0.25 * rand.Float64())
	return d + jitter
}
