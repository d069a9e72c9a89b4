package graph

import (
	"github.com/blockclique/blockclique-go/model/dag"
)

// AddedBlock is a block that entered the graph as active.
type AddedBlock struct {
	BlockID dag.Identifier
	Slot    dag.Slot
}

// FinalizedBlock is a block that became final, with the operations it applies.
type FinalizedBlock struct {
	BlockID    dag.Identifier
	Slot       dag.Slot
	Operations []dag.Operation
}

// DiscardedBlock is a block that left the graph for good. Its operations are
// released back to the pool.
type DiscardedBlock struct {
	BlockID      dag.Identifier
	Slot         dag.Slot
	Status       dag.BlockStatus
	OperationIDs dag.IdentifierList
}

// CliqueChange describes a new blockclique.
type CliqueChange struct {
	Blockclique dag.IdentifierList
	CliqueCount int
}

// Events are the outcomes of graph mutations, in the order they happened.
// Finalized blocks are listed in slot order, so each thread's final blocks come
// in prefix order.
type Events struct {
	Added     []AddedBlock
	Finalized []FinalizedBlock
	Discarded []DiscardedBlock
	// CliqueChanged is set if the blockclique changed.
	CliqueChanged *CliqueChange
	// NeedBlocks lists missing blocks other blocks depend on.
	NeedBlocks dag.IdentifierList
}

// Empty returns whether nothing happened.
func (e Events) Empty() bool {
	return len(e.Added) == 0 &&
		len(e.Finalized) == 0 &&
		len(e.Discarded) == 0 &&
		e.CliqueChanged == nil &&
		len(e.NeedBlocks) == 0
}
