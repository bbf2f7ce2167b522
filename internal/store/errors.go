package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document or collection entry is absent.
var ErrNotFound = errors.New("document not found")

// TransientError marks a store failure worth retrying: network partitions,
// timeouts, service unavailability. Everything else is fatal to the attempt.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError for the given operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
