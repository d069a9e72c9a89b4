package graph

import (
	"github.com/blockclique/blockclique-go/consensus/clique"
	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/irrecoverable"
	"github.com/blockclique/blockclique-go/storage"
	"github.com/blockclique/blockclique-go/utils/logging"
)

// Tick advances the graph to a new slot: blocks of slots that started are
// released, blocks waiting too long for their parents or body time out, and
// the blockclique and final blocks are updated. Ticks to an earlier slot are
// ignored.
// No errors are expected during normal operation.
func (g *BlockGraph) Tick(slot dag.Slot) error {
	if slot.Before(g.current) {
		g.log.Debug().
			Func(logging.Slot(slot)).
			Msg("ignoring tick to a past slot")
		return nil
	}
	defer g.publish()
	g.current = slot
	g.metrics.CurrentSlot(slot)

	for _, id := range g.store.ByStatus(dag.StatusWaitingForSlot) {
		entry, ok := g.store.Get(id)
		if !ok || g.current.Before(entry.Slot()) {
			continue
		}
		status, missing, err := g.place(id, entry.Block)
		if err != nil {
			if !IsValidationError(err) {
				return err
			}
			err = g.discard(id, g.discardStatus(status, err))
			if err != nil {
				return err
			}
			continue
		}
		err = g.store.SetStatus(id, status)
		if err != nil {
			return irrecoverable.NewExceptionf("could not release block %v: %w", id, err)
		}
		err = g.admitted(id, entry.Block, status, missing)
		if err != nil {
			return err
		}
	}

	for _, kind := range []dag.StatusKind{dag.StatusIncoming, dag.StatusWaitingForDependencies} {
		for _, id := range g.store.ByStatus(kind) {
			entry, ok := g.store.Get(id)
			if !ok {
				continue
			}
			// a block received ahead of its slot only starts waiting at its slot
			since := entry.ReceivedAt
			if since.Before(entry.Slot()) {
				since = entry.Slot()
			}
			if g.current.Period < since.Period+g.config.DependencyTimeoutPeriods {
				continue
			}
			err := g.discard(id, dag.Discarded(dag.ReasonTimeout, ""))
			if err != nil {
				return err
			}
		}
	}

	return g.refresh()
}

// refresh brings the graph to a fixpoint after a mutation: blocks conflicting
// with final blocks are discarded, the cliques are computed, eligible blocks are
// promoted to final in one batch, and blocks outside the retained cliques are
// discarded as stale. Then the graph is pruned. Promotion and stale discards are
// skipped while the clique enumeration is truncated.
func (g *BlockGraph) refresh() error {
	for {
		err := g.supersede()
		if err != nil {
			return err
		}

		candidates := g.store.ByStatus(dag.StatusActive)
		cliques, truncated := g.cliques.Compute(candidates, g.incompat, g.weightOf)
		if truncated {
			// a block missing from an enumerated clique may be in an unseen rival:
			// nothing is promoted or discarded until every clique is known
			g.log.Warn().
				Int("cliques", len(cliques)).
				Int("active_blocks", len(candidates)).
				Msg("finalization suspended, cliques are incomplete")
			g.setCliques(cliques)
			break
		}
		retained := g.retained(cliques)

		batch := g.promotable(candidates, cliques[0], retained)
		if len(batch) > 0 {
			err = g.finalize(batch)
			if err != nil {
				return err
			}
			err = g.supersede()
			if err != nil {
				return err
			}
		}

		stale := 0
		for _, id := range candidates {
			entry, ok := g.store.Get(id)
			if !ok || entry.Status.Kind != dag.StatusActive || inAny(retained, id) {
				continue
			}
			err = g.discard(id, dag.Discarded(dag.ReasonStale, "outside of the retained cliques"))
			if err != nil {
				return err
			}
			stale++
		}

		if len(batch) == 0 && stale == 0 {
			g.setCliques(cliques)
			break
		}
	}

	g.prune()
	g.metrics.GraphSize(
		g.store.Count(dag.StatusActive),
		g.store.Count(dag.StatusIncoming)+g.store.Count(dag.StatusWaitingForSlot)+g.store.Count(dag.StatusWaitingForDependencies),
		g.store.Count(dag.StatusFinal),
	)
	return nil
}

// supersede discards the active blocks incompatible with a final block.
func (g *BlockGraph) supersede() error {
	for _, id := range g.store.ByStatus(dag.StatusActive) {
		entry, ok := g.store.Get(id)
		if !ok || entry.Status.Kind != dag.StatusActive {
			continue
		}
		for _, other := range g.incompat.Of(id) {
			if g.store.Status(other).Kind != dag.StatusFinal {
				continue
			}
			err := g.discard(id, dag.Discarded(dag.ReasonSupersededByFinal, "incompatible with final block "+other.String()))
			if err != nil {
				return err
			}
			break
		}
	}
	return nil
}

// retained returns the cliques within the finality threshold of the blockclique.
func (g *BlockGraph) retained(cliques []clique.Clique) []clique.Clique {
	best := cliques[0].Weight
	retained := make([]clique.Clique, 0, len(cliques))
	for _, c := range cliques {
		if c.Weight+g.config.FinalityThreshold >= best {
			retained = append(retained, c)
		}
	}
	return retained
}

// promotable returns the active blocks to promote, in slot order. A block is
// promoted when it belongs to every retained clique, its descendants in the
// blockclique weigh more than the finality threshold and span enough periods,
// and its parents are final or promoted along with it.
func (g *BlockGraph) promotable(candidates dag.IdentifierList, blockclique clique.Clique, retained []clique.Clique) dag.IdentifierList {
	var batch dag.IdentifierList
	promoted := make(map[dag.Identifier]struct{})
	for _, id := range candidates {
		info := g.info[id]
		if !inAll(retained, id) {
			continue
		}

		parentsFinal := true
		for _, parentID := range info.parents {
			if _, ok := promoted[parentID]; ok {
				continue
			}
			// parents of active blocks missing from the store are pruned final blocks
			if !g.store.Has(parentID) || g.store.Status(parentID).Kind == dag.StatusFinal {
				continue
			}
			parentsFinal = false
			break
		}
		if !parentsFinal {
			continue
		}

		var weight uint64
		var lastPeriod uint64
		for _, other := range blockclique.Blocks {
			descendant := g.info[other]
			if other == id || !descendant.descendsFrom(id) {
				continue
			}
			weight += descendant.weight
			if descendant.slot.Period > lastPeriod {
				lastPeriod = descendant.slot.Period
			}
		}
		if weight <= g.config.FinalityThreshold || lastPeriod < info.slot.Period+g.config.FinalityPeriods {
			continue
		}

		promoted[id] = struct{}{}
		batch = append(batch, id)
	}
	return batch
}

// finalize promotes a batch of blocks, in slot order, and writes them to the
// finalized history in one atomic write.
func (g *BlockGraph) finalize(batch dag.IdentifierList) error {
	records := make([]*storage.FinalizedBlock, 0, len(batch))
	for _, id := range batch {
		entry, ok := g.store.Get(id)
		if !ok {
			return irrecoverable.NewExceptionf("block %v to finalize is not stored", id)
		}
		records = append(records, finalizedRecord(id, entry.Block, g.current))
	}
	err := g.history.StoreBatch(records)
	if err != nil {
		return irrecoverable.NewExceptionf("could not store final blocks: %w", err)
	}

	for _, id := range batch {
		entry, _ := g.store.Get(id)
		err = g.store.SetStatus(id, dag.Final)
		if err != nil {
			return irrecoverable.NewExceptionf("could not finalize block %v: %w", id, err)
		}
		slot := entry.Slot()
		if g.latestFinalSlot(slot.Thread).Before(slot) {
			g.latestFinal[slot.Thread] = id
		}
		for _, op := range entry.Block.Operations {
			g.finalKeys[op.Key()] = op.ExpirePeriod
		}
		g.events.Finalized = append(g.events.Finalized, FinalizedBlock{
			BlockID:    id,
			Slot:       slot,
			Operations: entry.Block.Operations,
		})
		g.metrics.BlockFinalized(slot)
	}
	g.log.Info().
		Int("blocks", len(batch)).
		Strs("block_ids", logging.IDs(batch)).
		Func(logging.Slot(g.current)).
		Msg("blocks finalized")
	return nil
}

// setCliques records the computed cliques and reports a blockclique change.
func (g *BlockGraph) setCliques(cliques []clique.Clique) {
	previous := g.computed
	g.computed = cliques
	g.metrics.Cliques(len(cliques), len(cliques[0].Blocks))
	if len(previous) == len(cliques) && equalIDs(previous[0].Blocks, cliques[0].Blocks) {
		return
	}
	g.events.CliqueChanged = &CliqueChange{
		Blockclique: append(dag.IdentifierList(nil), cliques[0].Blocks...),
		CliqueCount: len(cliques),
	}
	if len(cliques) > 1 {
		g.log.Debug().
			Int("cliques", len(cliques)).
			Int("blockclique_size", len(cliques[0].Blocks)).
			Uint64("blockclique_weight", cliques[0].Weight).
			Msg("blockclique changed")
	}
}

// prune drops the final blocks no longer needed in memory and forgets old
// discarded blocks and expired final operations. The final blocks kept in a
// thread always chain up to its latest final block: a final block with a
// non-final child keeps every later final block of its thread.
func (g *BlockGraph) prune() {
	finals := g.store.ByStatus(dag.StatusFinal)
	keepFrom := make([]uint64, g.config.ThreadCount)
	for thread := range keepFrom {
		latest := g.latestFinalSlot(uint8(thread)).Period
		if latest+1 > g.config.KeepFinalPeriods {
			keepFrom[thread] = latest + 1 - g.config.KeepFinalPeriods
		}
	}
	for _, id := range finals {
		slot := g.info[id].slot
		if slot.Period >= keepFrom[slot.Thread] {
			continue
		}
		for _, childID := range g.store.AllChildren(id) {
			if g.store.Status(childID).Kind != dag.StatusFinal {
				keepFrom[slot.Thread] = slot.Period
				break
			}
		}
	}

	pruned := 0
	for _, id := range finals {
		slot := g.info[id].slot
		if id == g.latestFinal[slot.Thread] || slot.Period >= keepFrom[slot.Thread] {
			continue
		}
		g.unindex(id)
		g.store.Remove(id)
		pruned++
	}

	oldest := g.latestFinalSlot(0).Period
	for thread := uint8(1); thread < g.config.ThreadCount; thread++ {
		if period := g.latestFinalSlot(thread).Period; period < oldest {
			oldest = period
		}
	}
	for key, expire := range g.finalKeys {
		if expire < oldest {
			delete(g.finalKeys, key)
		}
	}

	evicted := 0
	if g.current.Period > g.config.DiscardRetentionPeriods {
		evicted = g.store.EvictDiscardedBefore(g.current.Period - g.config.DiscardRetentionPeriods)
	}
	if pruned > 0 || evicted > 0 {
		g.log.Debug().
			Int("pruned_final", pruned).
			Int("evicted_discarded", evicted).
			Msg("graph pruned")
	}
}

func inAny(cliques []clique.Clique, id dag.Identifier) bool {
	for _, c := range cliques {
		if c.Contains(id) {
			return true
		}
	}
	return false
}

func inAll(cliques []clique.Clique, id dag.Identifier) bool {
	for _, c := range cliques {
		if !c.Contains(id) {
			return false
		}
	}
	return len(cliques) > 0
}

func equalIDs(a, b dag.IdentifierList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
