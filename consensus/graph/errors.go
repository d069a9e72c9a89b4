package graph

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/blockclique/blockclique-go/model/dag"
)

// ValidationKind tells why a block was rejected.
type ValidationKind int

const (
	MalformedHeader ValidationKind = iota + 1
	UnknownParent
	StaleSlot
	BadSignature
	NotEntitled
	DuplicateSlotEquivocation
	IncompatibleParents
	InvalidOperations
	AlreadyDiscarded
)

func (k ValidationKind) String() string {
	switch k {
	case MalformedHeader:
		return "malformed_header"
	case UnknownParent:
		return "unknown_parent"
	case StaleSlot:
		return "stale_slot"
	case BadSignature:
		return "bad_signature"
	case NotEntitled:
		return "not_entitled"
	case DuplicateSlotEquivocation:
		return "duplicate_slot_equivocation"
	case IncompatibleParents:
		return "incompatible_parents"
	case InvalidOperations:
		return "invalid_operations"
	case AlreadyDiscarded:
		return "already_discarded"
	default:
		return "unknown"
	}
}

// ValidationError is returned for a block rejected at submission. It is never
// fatal: the block is dropped and the graph is unchanged, except for the
// rejection possibly being remembered against replays.
type ValidationError struct {
	Kind    ValidationKind
	BlockID dag.Identifier
	err     error
}

func NewValidationErrorf(kind ValidationKind, blockID dag.Identifier, msg string, args ...interface{}) error {
	return ValidationError{
		Kind:    kind,
		BlockID: blockID,
		err:     fmt.Errorf(msg, args...),
	}
}

func (e ValidationError) Unwrap() error {
	return e.err
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid block %v (%s): %s", e.BlockID, e.Kind, e.err.Error())
}

// IsValidationError returns whether an error is a ValidationError.
func IsValidationError(err error) bool {
	var e ValidationError
	return errors.As(err, &e)
}

// ValidationKindOf returns the kind of a ValidationError, and false for any other error.
func ValidationKindOf(err error) (ValidationKind, bool) {
	var e ValidationError
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Kind, true
}

// ImportError is returned for a snapshot that is not internally consistent. It
// lists every problem found; the graph is left untouched.
type ImportError struct {
	err *multierror.Error
}

func (e ImportError) Unwrap() error {
	return e.err
}

func (e ImportError) Error() string {
	return fmt.Sprintf("inconsistent snapshot: %s", e.err.Error())
}

// Problems returns the individual consistency violations.
func (e ImportError) Problems() []error {
	return e.err.WrappedErrors()
}

// IsImportError returns whether an error is an ImportError.
func IsImportError(err error) bool {
	var e ImportError
	return errors.As(err, &e)
}
