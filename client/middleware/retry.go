package middleware

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/arkeep-io/actorrpc/client/transport"
	"github.com/arkeep-io/actorrpc/rpcerr"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryInitial    = 200 * time.Millisecond
	defaultRetryMax        = 5 * time.Second
	defaultRetryMultiplier = 2.0
)

// Retry wraps a Transport, making at most MaxAttempts attempts in total
// (the first call included) with a jittered exponential backoff between attempts (spec §4.9):
// delay = min(initialDelay * backoffMultiplier^(attempt-1), maxDelay).
type Retry struct {
	next transport.Transport

	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// DisableJitter skips the randomized jitter term, making the delay
	// sequence deterministic (delay = min(initialDelay*mult^(attempt-1),
	// maxDelay) exactly) for tests that assert exact wait times.
	DisableJitter bool

	// ShouldRetry decides whether a failed call is worth retrying. Defaults
	// to rpcerr.IsRetryable(err).
	ShouldRetry func(err error) bool

	// OnRetry, if set, fires before each retry attempt.
	OnRetry func(attempt int, err error)
}

// NewRetry wraps next with the default retry policy.
func NewRetry(next transport.Transport) *Retry {
	return &Retry{
		next:              next,
		MaxAttempts:       defaultRetryAttempts,
		InitialDelay:      defaultRetryInitial,
		MaxDelay:          defaultRetryMax,
		BackoffMultiplier: defaultRetryMultiplier,
		ShouldRetry:       rpcerr.IsRetryable,
	}
}

func (r *Retry) Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error) {
	shouldRetry := r.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = rpcerr.IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		result, err := r.next.Call(ctx, path, args)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == r.MaxAttempts || !shouldRetry(err) {
			return nil, err
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}
	return nil, lastErr
}

func (r *Retry) delay(attempt int) time.Duration {
	d := time.Duration(float64(r.InitialDelay) * math.Pow(r.BackoffMultiplier, float64(attempt-1)))
	if d > r.MaxDelay || d <= 0 {
		d = r.MaxDelay
	}
	if r.DisableJitter {
		return d
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func (r *Retry) Close() error { return r.next.Close() }
