package repository

import (
	"errors"
	"fmt"
)

// PersistenceError wraps any local database failure. It is never swallowed: a
// silent local-write failure after a successful remote mutation would let the
// two systems drift with no trace.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// IsPersistence reports whether err is a local database failure.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Cause: err}
}
