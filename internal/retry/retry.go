// Package retry runs backend calls with exponential backoff on transient failures.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ppiankov/aclarai/internal/logging"
)

// Policy bounds a retry loop
type Policy struct {
	MaxTries       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *logging.Logger
}

// DefaultPolicy returns three attempts starting at 200ms
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:       3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Do runs fn until it succeeds, returns a non-transient error, or runs out of attempts.
// Non-transient errors are returned after the first attempt.
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	tries := p.MaxTries
	if tries <= 0 {
		tries = 1
	}

	operation := func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn("retrying transient failure", "op", op, "error", err.Error(), "wait", wait.String())
		}
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(notify),
	)
}

// DoErr is Do for operations without a result value
func DoErr(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"broken pipe",
	"timeout",
	"timed out",
	"rate limit",
	"too many requests",
	"deadlock",
	"temporarily unavailable",
	"service unavailable",
}

// IsTransient classifies errors worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if neo4j.IsRetryable(err) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
