// Package poller runs a bounded fixed-interval status check on top of a failsafe-go
// retry policy.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

var (
	// ErrExhausted is returned when every attempt reported a pending state.
	ErrExhausted = errors.New("polling attempts exhausted")

	errPending = errors.New("still pending")
)

// Policy bounds a poll loop. The first check runs immediately.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy waits up to ~20s for a remote job.
var DefaultPolicy = Policy{Interval: 2 * time.Second, MaxAttempts: 10}

// State is what a single check observed.
type State int

const (
	Pending State = iota
	Done
)

// CheckFunc inspects the remote resource once. Errors wrapped with Permanent end the
// loop immediately; other errors consume an attempt.
type CheckFunc func(ctx context.Context, attempt int) (State, error)

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as terminal for the poll loop.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe permanentError
	return errors.As(err, &pe)
}

// Until calls check until it reports Done, returns a permanent error, the attempts run
// out, or ctx ends. It returns the number of checks performed.
func Until(ctx context.Context, p Policy, check CheckFunc) (int, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	policy := retrypolicy.NewBuilder[State]().
		WithMaxAttempts(p.MaxAttempts).
		WithDelay(p.Interval).
		HandleIf(func(_ State, err error) bool {
			return err != nil && !isPermanent(err)
		}).
		Build()

	var (
		attempts int
		lastErr  error
	)
	_, runErr := failsafe.With[State](policy).WithContext(ctx).Get(func() (State, error) {
		attempts++
		state, err := check(ctx, attempts)
		switch {
		case err != nil:
			lastErr = err
			return state, err
		case state == Done:
			lastErr = nil
			return Done, nil
		default:
			lastErr = errPending
			return Pending, errPending
		}
	})

	if runErr == nil {
		return attempts, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return attempts, ctxErr
	}
	if lastErr != nil && isPermanent(lastErr) {
		var pe permanentError
		errors.As(lastErr, &pe)
		return attempts, pe.err
	}
	if lastErr == nil || errors.Is(lastErr, errPending) {
		return attempts, fmt.Errorf("%w after %d attempts", ErrExhausted, attempts)
	}
	return attempts, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, lastErr)
}
