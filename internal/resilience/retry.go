package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BackoffFunc returns the delay before the next attempt. n counts failures of
// the given class so far, starting at 1.
type BackoffFunc func(class ErrorClass, n int) time.Duration

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy controls how a flaky call is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts (including the first try)
	// shared by every error class. Default: 4.
	MaxAttempts int

	// Backoff picks the delay per error class. Default: LinearBackoff(1.2s, 2s).
	Backoff BackoffFunc

	// Sleep waits between attempts. Default: a context-aware timer.
	Sleep SleepFunc

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, class ErrorClass, wait time.Duration, err error)
}

// DefaultPolicy returns the policy used for Wikidata calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		Backoff:     LinearBackoff(1200*time.Millisecond, 2*time.Second),
		Sleep:       SleepContext,
	}
}

// LinearBackoff waits generic*n after the nth transient failure and
// rateLimited*n after the nth 429. The two counters are independent.
func LinearBackoff(generic, rateLimited time.Duration) BackoffFunc {
	return func(class ErrorClass, n int) time.Duration {
		if class == ClassRateLimited {
			return rateLimited * time.Duration(n)
		}
		return generic * time.Duration(n)
	}
}

// SleepContext sleeps for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do executes fn until it succeeds, returns a permanent error, or the attempt
// budget runs out. Context cancellation stops retries immediately.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with retry logic. Same semantics as Do
// but preserves the return value from the successful call.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = applyDefaults(p)

	var zero T
	var lastErr error
	failures := make(map[ErrorClass]int, 2)

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}

		class := Classify(err)
		if class == ClassPermanent {
			return zero, lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		failures[class]++
		wait := p.Backoff(class, failures[class])
		if p.OnRetry != nil {
			p.OnRetry(attempt, class, wait, err)
		}
		if err := p.Sleep(ctx, wait); err != nil {
			return zero, lastErr
		}
	}

	return zero, eris.Wrapf(lastErr, "resilience: gave up after %d attempts", p.MaxAttempts)
}

func applyDefaults(p Policy) Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = def.Backoff
	}
	if p.Sleep == nil {
		p.Sleep = def.Sleep
	}
	return p
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, ErrorClass, time.Duration, error) {
	return func(attempt int, class ErrorClass, wait time.Duration, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Stringer("class", class),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
