package consensus

import (
	"github.com/blockclique/blockclique-go/model/dag"
)

// SignalKind is the kind of request sent to the protocol layer.
type SignalKind int

const (
	// RequestBlock asks for the full block of an id: a missing parent, or the
	// body of a header received alone.
	RequestBlock SignalKind = iota + 1
	// RequestParents asks for the parents of a block waiting for its dependencies.
	RequestParents
)

func (k SignalKind) String() string {
	switch k {
	case RequestBlock:
		return "request_block"
	case RequestParents:
		return "request_parents"
	default:
		return "unknown"
	}
}

// ProtocolSignal is sent to the protocol layer, which fetches blocks from peers.
type ProtocolSignal struct {
	Kind    SignalKind
	BlockID dag.Identifier
}

// PoolEventKind is the kind of event sent to the operation pool.
type PoolEventKind int

const (
	// BlocksFinalized: the operations are included for good and leave the pool.
	BlocksFinalized PoolEventKind = iota + 1
	// BlocksDiscarded: the operations of the blocks are released.
	BlocksDiscarded
)

func (k PoolEventKind) String() string {
	switch k {
	case BlocksFinalized:
		return "blocks_finalized"
	case BlocksDiscarded:
		return "blocks_discarded"
	default:
		return "unknown"
	}
}

// PoolEvent tells the operation pool which operations got final or released.
type PoolEvent struct {
	Kind         PoolEventKind
	BlockIDs     dag.IdentifierList
	OperationIDs dag.IdentifierList
}

// ExecutionEvent carries a final block to the execution layer. Events of a
// thread are emitted in finalization order, which is the order of the thread.
type ExecutionEvent struct {
	BlockID    dag.Identifier
	Slot       dag.Slot
	Operations []dag.Operation
}
