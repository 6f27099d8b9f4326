// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults used when a Controller field is zero.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Retryable is implemented by errors that know whether another attempt
// could succeed. Errors that do not implement it are terminal.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether any error in err's chain asks to be retried.
func IsRetryable(err error) bool {
	var r Retryable
	return errors.As(err, &r) && r.Retryable()
}

// State describes the progress of one call. It never outlives the call.
type State struct {
	// Attempt is the zero-based index of the attempt about to run or
	// that just failed.
	Attempt int

	// MaxAttempts is MaxRetries + 1.
	MaxAttempts int

	base time.Duration
}

// NextDelay returns the wait before the retry that follows Attempt:
// base * 2^Attempt.
func (s State) NextDelay() time.Duration {
	return s.base * (1 << s.Attempt)
}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Controller holds the retry policy. The zero value retries three times
// starting at one second.
type Controller struct {
	// MaxRetries is the number of attempts after the first one.
	// Negative values disable retries.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// Sleep waits between attempts. Tests replace it to avoid real delays.
	Sleep SleepFunc

	// OnRetry, if set, is called after a retryable failure and before the
	// backoff wait.
	OnRetry func(state State, err error, delay time.Duration)
}

// ExhaustedError is returned when every attempt failed with a retryable
// error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Result carries the value of a successful call together with the number
// of attempts it took.
type Result[T any] struct {
	Value    T
	Attempts int
}

// Do calls fn until it succeeds, fails with a terminal error, or the retry
// budget is spent. Terminal errors are returned unchanged; exhaustion is
// reported as *ExhaustedError. The returned attempt count is also set on
// failure.
func Do[T any](ctx context.Context, c Controller, fn func(ctx context.Context, attempt int) (T, error)) (Result[T], error) {
	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := c.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	state := State{MaxAttempts: maxRetries + 1, base: base}
	for {
		value, err := fn(ctx, state.Attempt)
		if err == nil {
			return Result[T]{Value: value, Attempts: state.Attempt + 1}, nil
		}

		attempts := state.Attempt + 1
		if !IsRetryable(err) {
			return Result[T]{Attempts: attempts}, err
		}
		if attempts >= state.MaxAttempts {
			return Result[T]{Attempts: attempts}, &ExhaustedError{Attempts: attempts, Last: err}
		}

		delay := state.NextDelay()
		if c.OnRetry != nil {
			c.OnRetry(state, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return Result[T]{Attempts: attempts}, &ExhaustedError{Attempts: attempts, Last: err}
		}
		state.Attempt++
	}
}
