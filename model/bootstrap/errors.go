package bootstrap

import (
	"errors"
	"fmt"
)

// DecodeErrorKind tells why snapshot bytes were rejected.
type DecodeErrorKind int

const (
	Truncated DecodeErrorKind = iota + 1
	VersionMismatch
	InvalidChecksum
	Malformed
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case VersionMismatch:
		return "version_mismatch"
	case InvalidChecksum:
		return "invalid_checksum"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// DecodeError is returned for snapshot bytes that cannot be decoded. It is
// always recoverable by fetching the snapshot again, possibly from another peer.
type DecodeError struct {
	Kind DecodeErrorKind
	err  error
}

func NewDecodeErrorf(kind DecodeErrorKind, msg string, args ...interface{}) error {
	return DecodeError{
		Kind: kind,
		err:  fmt.Errorf(msg, args...),
	}
}

func (e DecodeError) Unwrap() error {
	return e.err
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("could not decode snapshot (%s): %s", e.Kind, e.err.Error())
}

// IsDecodeError returns whether an error is a DecodeError.
func IsDecodeError(err error) bool {
	var e DecodeError
	return errors.As(err, &e)
}

// DecodeErrorKindOf returns the kind of a DecodeError, and false for any other error.
func DecodeErrorKindOf(err error) (DecodeErrorKind, bool) {
	var e DecodeError
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Kind, true
}
