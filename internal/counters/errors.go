package counters

import "errors"

var (
	// ErrNoSession means the store session could not be established; the
	// operation was skipped.
	ErrNoSession = errors.New("counter store session unavailable")

	// ErrUnauthorized is returned by backends when the store rejects the
	// session. The client reconnects on the next operation.
	ErrUnauthorized = errors.New("counter store rejected session")
)

// StoreError wraps every counter read or write failure. Callers log it and
// carry on; it never reaches the user.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "counter store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
