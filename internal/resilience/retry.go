package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/sertdev/inference-gateway/internal/gwerr"
)

// RetryOpts configures retry behavior.
type RetryOpts struct {
	MaxAttempts int           // total attempts including first try (default 3)
	MinWait     time.Duration // initial delay between retries (default 100ms)
	MaxWait     time.Duration // maximum delay cap (default 2s)
	ExpBase     float64       // backoff growth base (default 2)
	Jitter      bool          // add uniform [0, wait) jitter (off when unset)
}

func (o *RetryOpts) withDefaults() RetryOpts {
	out := *o
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.MinWait <= 0 {
		out.MinWait = 100 * time.Millisecond
	}
	if out.MaxWait <= 0 {
		out.MaxWait = 2 * time.Second
	}
	if out.ExpBase <= 1 {
		out.ExpBase = 2
	}
	return out
}

// Do retries fn with exponential backoff, bounded by MaxAttempts. A
// transient outcome (per IsRetryable) is retried; a fatal outcome is
// surfaced immediately without delay. Backoff sleep wakes on ctx
// cancellation, which is returned unwrapped and is not itself an outcome.
func Do(ctx context.Context, opts RetryOpts, fn func() error) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) && ctx.Err() != nil {
			return lastErr
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == opts.MaxAttempts-1 {
			break
		}

		delay := backoffDelay(opts, attempt)
		if opts.Jitter {
			delay += time.Duration(rand.Float64() * float64(delay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// backoffDelay computes min(max_wait, min_wait * exp_base^attempt).
func backoffDelay(opts RetryOpts, attempt int) time.Duration {
	d := float64(opts.MinWait) * pow(opts.ExpBase, attempt)
	if d > float64(opts.MaxWait) {
		d = float64(opts.MaxWait)
	}
	return time.Duration(d)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// IsRetryable reports whether err should be retried. A classified
// GatewayError is retryable iff its Kind's Class is transient; an
// unclassified net.Error is retryable iff it reports a timeout.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ge *gwerr.GatewayError
	if errors.As(err, &ge) {
		return ge.Class() == gwerr.ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
