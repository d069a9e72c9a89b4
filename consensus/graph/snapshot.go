package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/blockclique/blockclique-go/model/bootstrap"
	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/irrecoverable"
	"github.com/blockclique/blockclique-go/storage"
)

// ExportSnapshot exports the latest published state of the graph. It is safe
// for concurrent use.
func (g *BlockGraph) ExportSnapshot() *bootstrap.Graph {
	var checkpoints map[string][]byte
	if g.checkpoints != nil {
		checkpoints = g.checkpoints.Checkpoints()
	}
	return g.View().Snapshot(checkpoints)
}

// ImportSnapshot replaces the state of the graph with a snapshot exported by
// another node. The snapshot is fully checked before anything is replaced: its
// blocks pass the checks of submitted blocks, and its final blocks are written
// to the finalized history only once the new state is complete.
// Expected errors:
//   - ImportError if the snapshot is inconsistent, or conflicts with the local
//     finalized history
//
// Any other error is an exception.
func (g *BlockGraph) ImportSnapshot(snapshot *bootstrap.Graph) error {
	err := g.checkSnapshot(snapshot)
	if err != nil {
		return err
	}

	next, err := g.empty()
	if err != nil {
		return irrecoverable.NewExceptionf("could not create graph state: %w", err)
	}
	next.current = snapshot.CurrentSlot
	copy(next.latestFinal, snapshot.LatestFinal)
	for _, op := range snapshot.FinalOperations {
		next.finalKeys[op.Key] = op.ExpirePeriod
	}

	var problems *multierror.Error
	finals := sortedBlocks(snapshot.FinalBlocks)
	records := make([]*storage.FinalizedBlock, 0, len(finals))
	for _, block := range finals {
		id, _, err := next.store.Insert(block, dag.Final, true, snapshot.CurrentSlot)
		if err != nil {
			return irrecoverable.NewExceptionf("could not insert final block %v: %w", id, err)
		}
		next.index(id, block)
		for _, op := range block.Operations {
			next.finalKeys[op.Key()] = op.ExpirePeriod
		}
		_, err = g.history.ByID(id)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return irrecoverable.NewExceptionf("could not look up final block %v in history: %w", id, err)
		}
		existing, err := g.history.ByThreadPeriod(block.Header.Slot.Thread, block.Header.Slot.Period)
		if err == nil {
			problems = multierror.Append(problems, fmt.Errorf("final block %v conflicts with final block %v of the local history",
				id, existing.BlockID))
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return irrecoverable.NewExceptionf("could not look up final blocks at %v in history: %w", block.Header.Slot, err)
		}
		records = append(records, finalizedRecord(id, block, snapshot.CurrentSlot))
	}

	for _, block := range sortedBlocks(snapshot.ActiveBlocks) {
		id := block.ID()
		if !next.knowsParents(block) {
			problems = multierror.Append(problems, fmt.Errorf("active block %v: descends from a rejected block", id))
			continue
		}
		err := next.checkBody(id, block)
		if err == nil {
			err = next.checkParents(id, block)
		}
		if err != nil {
			if !IsValidationError(err) {
				return err
			}
			problems = multierror.Append(problems, fmt.Errorf("active block %v: %w", id, err))
			continue
		}
		_, _, err = next.store.Insert(block, dag.Active, true, snapshot.CurrentSlot)
		if err != nil {
			return irrecoverable.NewExceptionf("could not insert active block %v: %w", id, err)
		}
		next.activate(id, block)
	}
	if problems != nil {
		return ImportError{err: problems}
	}

	err = next.refresh()
	if err != nil {
		return err
	}
	err = g.history.StoreBatch(records)
	if errors.Is(err, storage.ErrDataMismatch) {
		return ImportError{err: multierror.Append(nil, fmt.Errorf("final blocks conflict with the local history: %w", err))}
	}
	if err != nil {
		return irrecoverable.NewExceptionf("could not store imported final blocks: %w", err)
	}
	g.adopt(next)
	g.events = Events{}
	g.publish()
	g.log.Info().
		Int("final_blocks", len(snapshot.FinalBlocks)).
		Int("active_blocks", len(snapshot.ActiveBlocks)).
		Uint64("period", snapshot.CurrentSlot.Period).
		Uint8("thread", snapshot.CurrentSlot.Thread).
		Msg("snapshot imported")
	return nil
}

// checkSnapshot checks that a snapshot is self-contained and consistent,
// collecting every problem found.
func (g *BlockGraph) checkSnapshot(snapshot *bootstrap.Graph) error {
	if snapshot == nil {
		return ImportError{err: multierror.Append(nil, errors.New("missing snapshot"))}
	}
	var problems *multierror.Error
	fail := func(msg string, args ...interface{}) {
		problems = multierror.Append(problems, fmt.Errorf(msg, args...))
	}

	if snapshot.Version != bootstrap.Version {
		fail("snapshot version %d, expected %d", snapshot.Version, bootstrap.Version)
	}
	if snapshot.ThreadCount != g.config.ThreadCount {
		fail("snapshot has %d threads, expected %d", snapshot.ThreadCount, g.config.ThreadCount)
		return ImportError{err: problems}
	}
	if snapshot.CurrentSlot.Thread >= g.config.ThreadCount {
		fail("current slot %v out of range", snapshot.CurrentSlot)
	}
	if len(snapshot.LatestFinal) != int(g.config.ThreadCount) {
		fail("%d latest final blocks for %d threads", len(snapshot.LatestFinal), g.config.ThreadCount)
		return ImportError{err: problems}
	}

	slots := make(map[dag.Identifier]dag.Slot)
	check := func(kind string, exported bootstrap.ExportedBlock) (dag.Identifier, bool) {
		block := exported.Block()
		id := block.ID()
		slot := block.Header.Slot
		switch {
		case slot.Thread >= g.config.ThreadCount:
			fail("%s block %v: thread %d out of range", kind, id, slot.Thread)
		case !block.Header.IsGenesis() && len(block.Header.Parents) != int(g.config.ThreadCount):
			fail("%s block %v: %d parents", kind, id, len(block.Header.Parents))
		case !block.Valid():
			fail("%s block %v: operations do not match the merkle root", kind, id)
		default:
			if _, ok := slots[id]; ok {
				fail("%s block %v: duplicate", kind, id)
				return id, false
			}
			if !block.Header.IsGenesis() {
				err := g.checkCreator(id, block.Header)
				if err != nil {
					fail("%s block %v: %w", kind, id, err)
					return id, false
				}
			}
			slots[id] = slot
			return id, true
		}
		return id, false
	}

	// final blocks of a thread must form a chain ending at the latest final block
	chains := make([][]bootstrap.ExportedBlock, g.config.ThreadCount)
	for _, exported := range snapshot.FinalBlocks {
		if _, ok := check("final", exported); ok {
			thread := exported.Header.Slot.Thread
			chains[thread] = append(chains[thread], exported)
		}
	}
	for thread, chain := range chains {
		sort.Slice(chain, func(i, j int) bool {
			return chain[i].Header.Slot.Period < chain[j].Header.Slot.Period
		})
		for i := 1; i < len(chain); i++ {
			parent, ok := chain[i].Header.ParentInThread(uint8(thread))
			if !ok || parent != chain[i-1].ID() {
				fail("final block %v does not extend final block %v of thread %d", chain[i].ID(), chain[i-1].ID(), thread)
			}
		}
		latest := snapshot.LatestFinal[thread]
		if len(chain) == 0 || chain[len(chain)-1].ID() != latest {
			fail("latest final block %v of thread %d is not the last final block of the thread", latest, thread)
		}
	}

	finalPeriods := make([]uint64, g.config.ThreadCount)
	for thread, id := range snapshot.LatestFinal {
		if slot, ok := slots[id]; ok {
			finalPeriods[thread] = slot.Period
		}
	}
	for _, exported := range snapshot.ActiveBlocks {
		id, ok := check("active", exported)
		if !ok {
			continue
		}
		slot := exported.Header.Slot
		if exported.Header.IsGenesis() {
			fail("active block %v: genesis blocks are final", id)
			continue
		}
		if slot.Period <= finalPeriods[slot.Thread] {
			fail("active block %v at %v is not after the latest final block of its thread", id, slot)
		}
		if snapshot.CurrentSlot.Before(slot) {
			fail("active block %v at %v is after the current slot %v", id, slot, snapshot.CurrentSlot)
		}
	}
	// parent closure, checked once every block is known
	for _, exported := range snapshot.ActiveBlocks {
		for thread, parentID := range exported.Header.Parents {
			if _, ok := slots[parentID]; !ok {
				fail("active block %v references parent %v of thread %d outside of the snapshot", exported.ID(), parentID, thread)
			}
		}
	}

	keys := make(map[dag.OperationKey]struct{}, len(snapshot.FinalOperations))
	for _, op := range snapshot.FinalOperations {
		if _, ok := keys[op.Key]; ok {
			fail("final operation %v: duplicate", op.Key)
		}
		keys[op.Key] = struct{}{}
	}

	if problems != nil {
		return ImportError{err: problems}
	}
	return nil
}

func (g *BlockGraph) knowsParents(block *dag.Block) bool {
	for _, parentID := range block.Header.Parents {
		if _, ok := g.info[parentID]; !ok {
			return false
		}
	}
	return true
}

// sortedBlocks returns the blocks in slot order, ties broken by id.
func sortedBlocks(exported []bootstrap.ExportedBlock) []*dag.Block {
	blocks := make([]*dag.Block, 0, len(exported))
	for _, e := range exported {
		blocks = append(blocks, e.Block())
	}
	sort.Slice(blocks, func(i, j int) bool {
		cmp := blocks[i].Header.Slot.Compare(blocks[j].Header.Slot)
		if cmp != 0 {
			return cmp < 0
		}
		return blocks[i].ID().Less(blocks[j].ID())
	})
	return blocks
}
