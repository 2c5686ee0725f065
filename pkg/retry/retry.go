// Package retry provides a bounded retry combinator with a fixed backoff
// delay. Whether an error is worth another attempt is decided by a
// pluggable classifier so call sites can distinguish transient transport
// failures from terminal ones.
package retry

import (
	"context"
	"errors"
	"time"

	xerrors "github.com/Greeshmanth19/payment-bot-crypto/internal/errors"
)

// Classifier reports whether an error should be retried.
type Classifier func(error) bool

// Always treats every error as retryable.
func Always(error) bool { return true }

// Policy describes how many attempts to make and how long to wait between
// them. The zero value is not usable; use Default or fill all fields.
type Policy struct {
	Attempts  int
	Delay     time.Duration
	Retryable Classifier
}

// Default mirrors the delivery policy used for interface hand-offs: three
// attempts with a fixed one second pause, retrying errors classified as
// retryable by the error registry.
func Default() Policy {
	return Policy{
		Attempts:  3,
		Delay:     time.Second,
		Retryable: xerrors.RetryableError,
	}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Retryable == nil {
		p.Retryable = xerrors.RetryableError
	}
	return p
}

// Do invokes fn until it succeeds, the error is classified as terminal, the
// attempts are exhausted, or the context is cancelled. The last error seen
// is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-time.After(p.Delay):
		}
	}
	return lastErr
}
