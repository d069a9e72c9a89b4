package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/storage"
)

func InsertFinalizedBlock(block *storage.FinalizedBlock) func(*badger.Txn) error {
	return insert(makePrefix(codeFinalizedBlock, block.BlockID), block)
}

func RetrieveFinalizedBlock(blockID dag.Identifier, block *storage.FinalizedBlock) func(*badger.Txn) error {
	return retrieve(makePrefix(codeFinalizedBlock, blockID), block)
}

func FinalizedBlockExists(blockID dag.Identifier, blockExists *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeFinalizedBlock, blockID), blockExists)
}

// IndexSlot indexes the final block of a thread at a period. A different block
// indexed at the same slot results in storage.ErrDataMismatch.
func IndexSlot(slot dag.Slot, blockID dag.Identifier) func(*badger.Txn) error {
	return insert(makePrefix(codeSlotIndex, slot.Thread, slot.Period), blockID)
}

func LookupSlot(slot dag.Slot, blockID *dag.Identifier) func(*badger.Txn) error {
	return retrieve(makePrefix(codeSlotIndex, slot.Thread, slot.Period), blockID)
}

// LookupSlotRange collects the ids of final blocks of a thread with from <= period <= to,
// ordered by period.
func LookupSlotRange(thread uint8, from uint64, to uint64, blockIDs *[]dag.Identifier) func(*badger.Txn) error {
	start := makePrefix(codeSlotIndex, thread, from)
	end := makePrefix(codeSlotIndex, thread, to)
	return iterate(start, end, func() (createFunc, handleFunc) {
		var blockID dag.Identifier
		create := func() interface{} {
			return &blockID
		}
		handle := func() error {
			*blockIDs = append(*blockIDs, blockID)
			return nil
		}
		return create, handle
	})
}

// UpdateLatestFinal sets the latest final block of a thread.
func UpdateLatestFinal(thread uint8, blockID dag.Identifier) func(*badger.Txn) error {
	return upsert(makePrefix(codeLatestFinal, thread), blockID)
}

func RetrieveLatestFinal(thread uint8, blockID *dag.Identifier) func(*badger.Txn) error {
	return retrieve(makePrefix(codeLatestFinal, thread), blockID)
}
