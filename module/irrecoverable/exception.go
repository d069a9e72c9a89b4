package irrecoverable

import (
	"errors"
	"fmt"
)

// exception represents an unexpected error: a broken internal invariant or
// state corruption. Exceptions must never be treated as benign sentinel
// errors by callers. Wrapping the underlying error into an exception hides
// its type, so no caller can mistake it for an expected error further up.
type exception struct {
	err error
}

func (e exception) Error() string {
	return e.err.Error()
}

func (e exception) String() string {
	return e.err.Error()
}

func (e exception) Unwrap() error {
	return e.err
}

// NewException wraps the input error as an exception.
func NewException(err error) error {
	return exception{err: err}
}

// NewExceptionf is NewException with a formatted message.
func NewExceptionf(msg string, args ...interface{}) error {
	return exception{err: fmt.Errorf(msg, args...)}
}

// IsException returns true if err was wrapped as an exception somewhere in its chain.
func IsException(err error) bool {
	var e exception
	return errors.As(err, &e)
}
