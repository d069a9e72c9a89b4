// Package bootstrap defines the canonical model and encoding of the graph
// snapshots used to bootstrap a joining node.
package bootstrap

import (
	"github.com/blockclique/blockclique-go/model/dag"
)

// Version of the snapshot format. Snapshots of another version are rejected.
const Version uint32 = 2

// Well-known checkpoint names.
const (
	CheckpointLedger = "ledger"
	CheckpointPoS    = "pos"
)

// ExportedBlock is a block as carried by a snapshot.
type ExportedBlock struct {
	Header     dag.Header
	Operations []dag.Operation
}

// NewExportedBlock copies a block for export.
func NewExportedBlock(block *dag.Block) ExportedBlock {
	return ExportedBlock{
		Header:     *block.Header,
		Operations: block.Operations,
	}
}

// Block returns the exported block.
func (e ExportedBlock) Block() *dag.Block {
	header := e.Header
	return &dag.Block{Header: &header, Operations: e.Operations}
}

// ID returns the id of the exported block.
func (e ExportedBlock) ID() dag.Identifier {
	return e.Header.ID()
}

// FinalOperation is the key of an operation included in a final block. It is
// carried until the operation expires so that it cannot be included again.
type FinalOperation struct {
	Key          dag.OperationKey
	ExpirePeriod uint64
}

// Graph is a consistent snapshot of the consensus state: the retained final
// blocks, the non-final active blocks, the unexpired final operations and the
// checkpoint handles of the collaborators at the time of export.
type Graph struct {
	Version     uint32
	ThreadCount uint8
	CurrentSlot dag.Slot
	// LatestFinal holds the latest final block of each thread, indexed by thread.
	LatestFinal  []dag.Identifier
	FinalBlocks  []ExportedBlock
	ActiveBlocks []ExportedBlock
	// FinalOperations is sorted by sender then nonce.
	FinalOperations []FinalOperation
	Checkpoints     map[string][]byte
}
