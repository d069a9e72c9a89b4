package storage

import (
	"github.com/blockclique/blockclique-go/model/dag"
)

// FinalizedBlock is the compact record kept for every final block once it left
// the in-memory graph.
type FinalizedBlock struct {
	BlockID      dag.Identifier
	Slot         dag.Slot
	Parents      []dag.Identifier
	Creator      dag.Address
	OperationIDs []dag.Identifier
	// FinalizedAt is the latest slot tick when the block was promoted.
	FinalizedAt dag.Slot
}

// FinalizedHistory is the index of final blocks. Final blocks of one thread form
// a chain, so there is at most one final block per (thread, period).
type FinalizedHistory interface {
	// StoreBatch stores the blocks of one promotion batch atomically.
	// Storing a block again with identical content is a no-op.
	// Expected errors:
	//   - ErrDataMismatch if a different block is already final at the same (thread, period)
	StoreBatch(blocks []*FinalizedBlock) error

	// ByID returns a final block.
	// Expected errors:
	//   - ErrNotFound if the block is not in the history
	ByID(blockID dag.Identifier) (*FinalizedBlock, error)

	// ByThreadPeriod returns the final block of a thread at a period.
	// Expected errors:
	//   - ErrNotFound if no block of that thread was finalized at that period
	ByThreadPeriod(thread uint8, period uint64) (*FinalizedBlock, error)

	// Range returns the final blocks of a thread with from <= period <= to, ordered by period.
	Range(thread uint8, from uint64, to uint64) ([]*FinalizedBlock, error)

	// Latest returns the final block with the highest period of a thread.
	// Expected errors:
	//   - ErrNotFound if nothing was finalized in that thread
	Latest(thread uint8) (*FinalizedBlock, error)
}
