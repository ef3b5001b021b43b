// Package storage holds the error contract shared by every store implementation.
package storage

import (
	"errors"
	"fmt"
)

// ErrUnavailable reports that the persistence layer could not serve the call.
// It never means the data was invalid, and retrying is safe.
var ErrUnavailable = errors.New("store unavailable")

// Error wraps the backend failure of a store operation.
type Error struct {
	Op  string
	Err error
}

// Unavailable wraps err as a store failure of op. A nil err returns nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrUnavailable, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrUnavailable }
