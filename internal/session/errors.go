package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is not valid in
	// the session's current status. The caller retries with a correct
	// operation; no state was mutated.
	ErrInvalidTransition = errors.New("operation not valid in current session status")

	// ErrUnknownQuestion is returned for a question ID that does not
	// belong to the session's question set.
	ErrUnknownQuestion = errors.New("question does not belong to this session")

	// ErrOutOfRange is returned for a navigation index outside the
	// question set. Indexes are never silently clamped.
	ErrOutOfRange = errors.New("navigation index out of range")

	// ErrAlreadySubmitting is observed by the loser of a concurrent
	// submit race. It is benign; the winner's submission proceeds.
	ErrAlreadySubmitting = errors.New("submission already in progress")
)

// PersistenceError wraps a failed store write with enough detail to retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
