package blockstore

import (
	"errors"
	"fmt"

	"github.com/blockclique/blockclique-go/model/dag"
)

// ErrUnknownBlock is returned when an operation targets a block the store does not hold.
var ErrUnknownBlock = errors.New("unknown block")

// DiscardedError is returned when inserting a block whose id was discarded
// and is still remembered.
type DiscardedError struct {
	BlockID dag.Identifier
	Record  DiscardRecord
	err     error
}

func NewDiscardedErrorf(blockID dag.Identifier, record DiscardRecord, msg string, args ...interface{}) error {
	return DiscardedError{
		BlockID: blockID,
		Record:  record,
		err:     fmt.Errorf(msg, args...),
	}
}

func (e DiscardedError) Unwrap() error {
	return e.err
}

func (e DiscardedError) Error() string {
	return fmt.Sprintf("block %v is %s: %s", e.BlockID, e.Record.Status, e.err.Error())
}

// IsDiscardedError returns whether an error is a DiscardedError.
func IsDiscardedError(err error) bool {
	var e DiscardedError
	return errors.As(err, &e)
}
