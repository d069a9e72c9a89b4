package module

import (
	"github.com/blockclique/blockclique-go/model/dag"
)

// Selector answers the proof-of-stake questions the graph needs: which address
// may create a block in a slot, and how much stake an address carries.
// Implementations must be safe for concurrent use.
type Selector interface {
	// EntitledCreator returns the address drawn to produce the block of the slot.
	// An error is returned if the draw for the slot is not available.
	EntitledCreator(slot dag.Slot) (dag.Address, error)

	// Stake returns the stake weight of an address. Unknown addresses have zero stake.
	Stake(address dag.Address) uint64
}

// CheckpointProvider exposes opaque checkpoint handles of the collaborators
// (ledger, proof-of-stake) to embed into bootstrap snapshots.
type CheckpointProvider interface {
	Checkpoints() map[string][]byte
}
