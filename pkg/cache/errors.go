package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that a shared backend (Redis, MongoDB) could not be
// reached.
var ErrUnavailable = errors.New("cache backend unavailable")

// RetryableError marks a failure worth another attempt, such as a refused
// connection while the backend is still starting.
type RetryableError struct{ Err error }

// Retryable marks err as retryable. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

const connectAttempts = 3

// retryDelay is the first backoff step. Tests shorten it.
var retryDelay = time.Second

// RetryWithBackoff calls fn until it succeeds, fails with an error not marked
// Retryable, or has failed connectAttempts times. The delay doubles after
// each retryable failure.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := retryDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsRetryable(err) || attempt == connectAttempts {
			return err
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}
