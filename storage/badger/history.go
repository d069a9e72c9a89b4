package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module"
	"github.com/blockclique/blockclique-go/module/metrics"
	"github.com/blockclique/blockclique-go/storage"
	"github.com/blockclique/blockclique-go/storage/badger/operation"
)

// History implements the finalized-history index on top of badger.
type History struct {
	db    *badger.DB
	cache *Cache
}

var _ storage.FinalizedHistory = (*History)(nil)

func NewHistory(collector module.CacheMetrics, db *badger.DB, cacheSize uint) *History {
	retrieve := func(blockID dag.Identifier) (interface{}, error) {
		var block storage.FinalizedBlock
		err := db.View(operation.RetrieveFinalizedBlock(blockID, &block))
		return &block, err
	}

	return &History{
		db: db,
		cache: newCache(collector,
			withLimit(cacheSize),
			withRetrieve(retrieve),
			withResource(metrics.ResourceFinalizedBlock)),
	}
}

func (h *History) StoreBatch(blocks []*storage.FinalizedBlock) error {
	err := h.db.Update(func(tx *badger.Txn) error {
		latest := make(map[uint8]*storage.FinalizedBlock)
		for _, block := range blocks {
			err := operation.InsertFinalizedBlock(block)(tx)
			if err != nil {
				return fmt.Errorf("could not insert final block %v: %w", block.BlockID, err)
			}
			err = operation.IndexSlot(block.Slot, block.BlockID)(tx)
			if err != nil {
				return fmt.Errorf("could not index final block %v at %v: %w", block.BlockID, block.Slot, err)
			}
			if current, ok := latest[block.Slot.Thread]; !ok || current.Slot.Period < block.Slot.Period {
				latest[block.Slot.Thread] = block
			}
		}

		for thread, block := range latest {
			var currentID dag.Identifier
			err := operation.RetrieveLatestFinal(thread, &currentID)(tx)
			if err == nil {
				var current storage.FinalizedBlock
				err = operation.RetrieveFinalizedBlock(currentID, &current)(tx)
				if err != nil {
					return fmt.Errorf("could not retrieve latest final block of thread %d: %w", thread, err)
				}
				if current.Slot.Period >= block.Slot.Period {
					continue
				}
			} else if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("could not retrieve latest final of thread %d: %w", thread, err)
			}

			err = operation.UpdateLatestFinal(thread, block.BlockID)(tx)
			if err != nil {
				return fmt.Errorf("could not update latest final of thread %d: %w", thread, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, block := range blocks {
		h.cache.Insert(block.BlockID, block)
	}
	return nil
}

func (h *History) ByID(blockID dag.Identifier) (*storage.FinalizedBlock, error) {
	block, err := h.cache.Get(blockID)
	if err != nil {
		return nil, err
	}
	return block.(*storage.FinalizedBlock), nil
}

func (h *History) ByThreadPeriod(thread uint8, period uint64) (*storage.FinalizedBlock, error) {
	var blockID dag.Identifier
	err := h.db.View(operation.LookupSlot(dag.NewSlot(period, thread), &blockID))
	if err != nil {
		return nil, fmt.Errorf("could not look up final block of thread %d at period %d: %w", thread, period, err)
	}
	return h.ByID(blockID)
}

func (h *History) Range(thread uint8, from uint64, to uint64) ([]*storage.FinalizedBlock, error) {
	if from > to {
		return nil, nil
	}
	var blockIDs []dag.Identifier
	err := h.db.View(operation.LookupSlotRange(thread, from, to, &blockIDs))
	if err != nil {
		return nil, fmt.Errorf("could not look up final blocks of thread %d: %w", thread, err)
	}

	blocks := make([]*storage.FinalizedBlock, 0, len(blockIDs))
	for _, blockID := range blockIDs {
		block, err := h.ByID(blockID)
		if err != nil {
			return nil, fmt.Errorf("inconsistent slot index for block %v: %w", blockID, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func (h *History) Latest(thread uint8) (*storage.FinalizedBlock, error) {
	var blockID dag.Identifier
	err := h.db.View(operation.RetrieveLatestFinal(thread, &blockID))
	if err != nil {
		return nil, fmt.Errorf("could not look up latest final block of thread %d: %w", thread, err)
	}
	return h.ByID(blockID)
}
