// Package mkerr provides the error types shared between the GitHub client and
// the engines.
package mkerr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a GitHub resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBaseDoesNotExist is returned by a branch merge when the base
	// branch does not exist in the repository.
	// GitHub only reports this condition via the error message of a 404
	// response, the client translates it into this error.
	ErrBaseDoesNotExist = errors.New("base does not exist")
)

type RetryableError struct {
	// Err is the wrapped original error
	Err error
	// After is the earliest point in time that the operation can be retried
	After time.Time
}

func NewRetryableError(originalErr error, retryAfter time.Time) *RetryableError {
	return &RetryableError{
		Err:   originalErr,
		After: retryAfter,
	}
}

func NewRetryableAnytimeError(originalErr error) *RetryableError {
	return &RetryableError{
		Err: originalErr,
	}
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) Error() string {
	if e.After.IsZero() {
		return fmt.Sprintf("retryable error: %s", e.Err)
	}

	return fmt.Sprintf("retryable error (after %s): %s", e.After, e.Err)
}
