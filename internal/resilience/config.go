package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a Policy. Zero values keep the defaults.
func FromRetryConfig(maxAttempts, backoffMs, rateLimitBackoffMs int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	generic := 1200 * time.Millisecond
	if backoffMs > 0 {
		generic = time.Duration(backoffMs) * time.Millisecond
	}
	limited := 2 * time.Second
	if rateLimitBackoffMs > 0 {
		limited = time.Duration(rateLimitBackoffMs) * time.Millisecond
	}
	p.Backoff = LinearBackoff(generic, limited)
	return p
}
