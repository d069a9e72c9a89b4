package graph

import (
	"sort"

	"github.com/blockclique/blockclique-go/consensus/blockstore"
	"github.com/blockclique/blockclique-go/consensus/clique"
	"github.com/blockclique/blockclique-go/model/bootstrap"
	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/storage"
)

// View is an immutable point-in-time picture of the graph, published after
// every mutation. It never shows a partially applied mutation, and it is safe
// for concurrent use.
type View struct {
	threadCount  uint8
	currentSlot  dag.Slot
	bestParents  dag.IdentifierList
	latestFinal  dag.IdentifierList
	cliques      []clique.Clique
	statuses     map[dag.Identifier]dag.BlockStatus
	finalBlocks  []*dag.Block
	activeBlocks []*dag.Block
	finalOps     []bootstrap.FinalOperation
	discarded    func(dag.Identifier) (blockstore.DiscardRecord, bool)
	history      storage.FinalizedHistory
}

// publish builds and publishes the view of the current state.
func (g *BlockGraph) publish() {
	v := &View{
		threadCount: g.config.ThreadCount,
		currentSlot: g.current,
		latestFinal: append(dag.IdentifierList(nil), g.latestFinal...),
		cliques:     append([]clique.Clique(nil), g.computed...),
		statuses:    make(map[dag.Identifier]dag.BlockStatus, g.store.Len()),
		discarded:   g.store.DiscardRecord,
		history:     g.history,
	}
	for _, kind := range []dag.StatusKind{
		dag.StatusIncoming,
		dag.StatusWaitingForSlot,
		dag.StatusWaitingForDependencies,
		dag.StatusActive,
		dag.StatusFinal,
	} {
		for _, id := range g.store.ByStatus(kind) {
			entry, _ := g.store.Get(id)
			v.statuses[id] = entry.Status
			switch kind {
			case dag.StatusActive:
				v.activeBlocks = append(v.activeBlocks, entry.Block)
			case dag.StatusFinal:
				v.finalBlocks = append(v.finalBlocks, entry.Block)
			}
		}
	}
	v.bestParents = g.bestParents()
	v.finalOps = g.finalOperations()
	g.view.Store(v)
}

// finalOperations returns the unexpired final operation keys, sorted by sender then nonce.
func (g *BlockGraph) finalOperations() []bootstrap.FinalOperation {
	ops := make([]bootstrap.FinalOperation, 0, len(g.finalKeys))
	for key, expire := range g.finalKeys {
		ops = append(ops, bootstrap.FinalOperation{Key: key, ExpirePeriod: expire})
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Key.Sender != ops[j].Key.Sender {
			return dag.Identifier(ops[i].Key.Sender).Less(dag.Identifier(ops[j].Key.Sender))
		}
		return ops[i].Key.Nonce < ops[j].Key.Nonce
	})
	return ops
}

// bestParents returns the tip of the blockclique in each thread, or the latest
// final block for threads without a non-final blockclique block.
func (g *BlockGraph) bestParents() dag.IdentifierList {
	parents := append(dag.IdentifierList(nil), g.latestFinal...)
	if len(g.computed) == 0 {
		return parents
	}
	for _, id := range g.computed[0].Blocks {
		slot := g.info[id].slot
		tip := parents[slot.Thread]
		tipSlot := g.info[tip].slot
		if tipSlot.Before(slot) || (tipSlot == slot && id.Less(tip)) {
			parents[slot.Thread] = id
		}
	}
	return parents
}

// CurrentSlot returns the slot the graph was last ticked to.
func (v *View) CurrentSlot() dag.Slot {
	return v.currentSlot
}

// BestParents returns the parents a new block must reference, indexed by thread.
func (v *View) BestParents() dag.IdentifierList {
	return append(dag.IdentifierList(nil), v.bestParents...)
}

// LatestFinal returns the latest final block of each thread, indexed by thread.
func (v *View) LatestFinal() dag.IdentifierList {
	return append(dag.IdentifierList(nil), v.latestFinal...)
}

// Blockclique returns the non-final blocks of the blockclique, in id order.
func (v *View) Blockclique() dag.IdentifierList {
	if len(v.cliques) == 0 {
		return dag.IdentifierList{}
	}
	return append(dag.IdentifierList{}, v.cliques[0].Blocks...)
}

// Cliques returns the maximal cliques of the non-final blocks, blockclique first.
func (v *View) Cliques() []clique.Clique {
	return append([]clique.Clique(nil), v.cliques...)
}

// Status returns the status of a block.
func (v *View) Status(id dag.Identifier) dag.BlockStatus {
	if status, ok := v.statuses[id]; ok {
		return status
	}
	if record, ok := v.discarded(id); ok {
		return record.Status
	}
	if _, err := v.history.ByID(id); err == nil {
		return dag.Final
	}
	return dag.Unknown
}

// FinalBlocks returns the final blocks held in memory, in slot order.
func (v *View) FinalBlocks() []*dag.Block {
	return append([]*dag.Block(nil), v.finalBlocks...)
}

// ActiveBlocks returns the non-final active blocks, in slot order.
func (v *View) ActiveBlocks() []*dag.Block {
	return append([]*dag.Block(nil), v.activeBlocks...)
}

// Snapshot exports the view for a bootstrapping node.
func (v *View) Snapshot(checkpoints map[string][]byte) *bootstrap.Graph {
	snapshot := &bootstrap.Graph{
		Version:         bootstrap.Version,
		ThreadCount:     v.threadCount,
		CurrentSlot:     v.currentSlot,
		LatestFinal:     v.LatestFinal(),
		FinalBlocks:     make([]bootstrap.ExportedBlock, 0, len(v.finalBlocks)),
		ActiveBlocks:    make([]bootstrap.ExportedBlock, 0, len(v.activeBlocks)),
		FinalOperations: append([]bootstrap.FinalOperation(nil), v.finalOps...),
		Checkpoints:     checkpoints,
	}
	for _, block := range v.finalBlocks {
		snapshot.FinalBlocks = append(snapshot.FinalBlocks, bootstrap.NewExportedBlock(block))
	}
	for _, block := range v.activeBlocks {
		snapshot.ActiveBlocks = append(snapshot.ActiveBlocks, bootstrap.NewExportedBlock(block))
	}
	return snapshot
}
