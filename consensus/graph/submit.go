package graph

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/irrecoverable"
	"github.com/blockclique/blockclique-go/storage"
	"github.com/blockclique/blockclique-go/utils/logging"
)

// Outcomes of a block submission, as reported to metrics.
const (
	outcomeRejected = "rejected"
	outcomeKnown    = "known"
)

// Submit validates a block and adds it to the graph. A block of a future slot
// waits for its slot, a block with missing parents waits for them and requests
// them through the NeedBlocks event. Submitting a known block is a no-op.
// Expected errors:
//   - ValidationError if the block is invalid; the graph is unchanged except
//     that blocks invalid for good are remembered to reject their replay
//
// Any other error is an exception.
func (g *BlockGraph) Submit(block *dag.Block) (dag.Identifier, error) {
	if block == nil || block.Header == nil {
		return dag.ZeroID, NewValidationErrorf(MalformedHeader, dag.ZeroID, "block without header")
	}
	id := block.ID()
	defer g.publish()

	entry, known := g.store.Get(id)
	if known && entry.HasBody {
		g.metrics.BlockReceived(outcomeKnown)
		return id, nil
	}
	if !known {
		err := g.checkHeader(id, block.Header)
		if err != nil {
			return id, g.rejected(id, block.Header.Slot, err)
		}
	}
	err := g.checkBody(id, block)
	if err != nil {
		return id, g.rejected(id, block.Header.Slot, err)
	}
	if !known && g.isDependencyOverflow(id, block) {
		return id, g.rejected(id, block.Header.Slot, NewValidationErrorf(UnknownParent, id,
			"%d blocks are already waiting for their dependencies", g.config.MaxDependencyBlocks))
	}

	status, missing, err := g.place(id, block)
	if err != nil {
		if !IsValidationError(err) {
			return id, err
		}
		if status.Kind == dag.StatusDiscarded {
			var rememberErr error
			if known {
				rememberErr = g.discard(id, status)
			} else {
				_, _, rememberErr = g.store.Insert(block, status, true, g.current)
			}
			if rememberErr != nil {
				return id, irrecoverable.NewExceptionf("could not remember discarded block %v: %w", id, rememberErr)
			}
		}
		return id, g.rejected(id, block.Header.Slot, err)
	}

	if known {
		err = g.store.AttachBody(id, block.Operations)
		if err == nil {
			err = g.store.SetStatus(id, status)
		}
	} else {
		_, _, err = g.store.Insert(block, status, true, g.current)
	}
	if err != nil {
		return id, irrecoverable.NewExceptionf("could not store block %v as %s: %w", id, status, err)
	}

	err = g.admitted(id, block, status, missing)
	if err != nil {
		return id, err
	}
	g.metrics.BlockReceived(status.Kind.String())
	return id, g.refresh()
}

// SubmitHeader pre-validates the header of a block whose body is not known yet
// and records it as incoming. It returns whether the body should be requested.
// Expected errors:
//   - ValidationError if the header is invalid
func (g *BlockGraph) SubmitHeader(header *dag.Header) (dag.Identifier, bool, error) {
	if header == nil {
		return dag.ZeroID, false, NewValidationErrorf(MalformedHeader, dag.ZeroID, "missing header")
	}
	id := header.ID()
	defer g.publish()

	if g.store.Has(id) {
		g.metrics.BlockReceived(outcomeKnown)
		entry, _ := g.store.Get(id)
		return id, !entry.HasBody, nil
	}
	err := g.checkHeader(id, header)
	if err != nil {
		return id, false, g.rejected(id, header.Slot, err)
	}
	h := *header
	_, _, err = g.store.Insert(&dag.Block{Header: &h}, dag.Incoming, false, g.current)
	if err != nil {
		return id, false, irrecoverable.NewExceptionf("could not store incoming header %v: %w", id, err)
	}
	g.metrics.BlockReceived(dag.StatusIncoming.String())
	return id, true, nil
}

// rejected logs and counts a rejected block and returns the rejection.
func (g *BlockGraph) rejected(id dag.Identifier, slot dag.Slot, err error) error {
	if !IsValidationError(err) {
		return err
	}
	g.metrics.BlockReceived(outcomeRejected)
	kind, _ := ValidationKindOf(err)
	event := g.log.Debug()
	if kind == NotEntitled || kind == DuplicateSlotEquivocation {
		event = g.log.Warn()
	}
	event.Err(err).
		Func(logging.Block(id, slot)).
		Str("kind", kind.String()).
		Msg("block rejected")
	return err
}

// checkHeader runs the checks that only depend on the header.
func (g *BlockGraph) checkHeader(id dag.Identifier, header *dag.Header) error {
	if record, ok := g.store.DiscardRecord(id); ok {
		return NewValidationErrorf(AlreadyDiscarded, id, "block was discarded at %v: %s", record.DiscardedAt, record.Status)
	}

	slot := header.Slot
	if slot.Thread >= g.config.ThreadCount {
		return NewValidationErrorf(MalformedHeader, id, "thread %d out of range", slot.Thread)
	}
	if slot.Period == 0 {
		return NewValidationErrorf(MalformedHeader, id, "period 0 is reserved to genesis blocks")
	}
	if len(header.Parents) != int(g.config.ThreadCount) {
		return NewValidationErrorf(MalformedHeader, id, "%d parents for %d threads", len(header.Parents), g.config.ThreadCount)
	}
	for thread, parentID := range header.Parents {
		if parentID == dag.ZeroID {
			return NewValidationErrorf(MalformedHeader, id, "missing parent in thread %d", thread)
		}
	}
	if slot.Period > g.current.Period+g.config.FutureBlockMaxPeriods {
		return NewValidationErrorf(MalformedHeader, id, "slot %v is too far ahead of current slot %v", slot, g.current)
	}
	seen := make(map[uint32]struct{}, len(header.Endorsements))
	for _, e := range header.Endorsements {
		if _, ok := seen[e.Index]; ok {
			return NewValidationErrorf(MalformedHeader, id, "duplicate endorsement index %d", e.Index)
		}
		seen[e.Index] = struct{}{}
		if e.Slot.Thread >= g.config.ThreadCount || header.Parents[e.Slot.Thread] != e.EndorsedBlock {
			return NewValidationErrorf(MalformedHeader, id, "endorsement %d does not endorse a parent", e.Index)
		}
	}

	if slot.Period <= g.latestFinalSlot(slot.Thread).Period {
		return NewValidationErrorf(StaleSlot, id, "slot %v is not after the latest final block of its thread at %v",
			slot, g.latestFinalSlot(slot.Thread))
	}

	err := g.checkCreator(id, header)
	if err != nil {
		return err
	}

	others := 0
	for _, other := range g.store.BySlot(slot) {
		if other != id {
			others++
		}
	}
	if others > 0 {
		g.metrics.Equivocation()
		if others >= g.config.MaxBlocksPerSlot {
			return NewValidationErrorf(DuplicateSlotEquivocation, id, "%d blocks already known for slot %v", others, slot)
		}
		g.log.Warn().
			Func(logging.Block(id, slot)).
			Int("other_blocks", others).
			Msg("equivocation: several blocks for the same slot")
	}
	return nil
}

// checkCreator checks that the creator of a block was drawn for its slot and
// that the block and its endorsements are signed.
func (g *BlockGraph) checkCreator(id dag.Identifier, header *dag.Header) error {
	slot := header.Slot
	entitled, err := g.selector.EntitledCreator(slot)
	if err != nil {
		return NewValidationErrorf(NotEntitled, id, "no draw for slot %v: %w", slot, err)
	}
	if creator := header.CreatorAddress(); creator != entitled {
		return NewValidationErrorf(NotEntitled, id, "creator %v is not the drawn creator %v", creator, entitled)
	}

	valid, err := header.VerifySignature()
	if err != nil || !valid {
		return NewValidationErrorf(BadSignature, id, "invalid creator signature (%v)", err)
	}
	for _, e := range header.Endorsements {
		valid, err := e.VerifySignature()
		if err != nil || !valid {
			return NewValidationErrorf(BadSignature, id, "invalid signature of endorsement %d (%v)", e.Index, err)
		}
	}
	return nil
}

// checkBody runs the checks on the operations of a block.
func (g *BlockGraph) checkBody(id dag.Identifier, block *dag.Block) error {
	if !block.Valid() {
		return NewValidationErrorf(InvalidOperations, id, "operations do not match the merkle root")
	}
	if len(block.Operations) > g.config.MaxOperationsPerBlock {
		return NewValidationErrorf(InvalidOperations, id, "%d operations exceed the limit of %d",
			len(block.Operations), g.config.MaxOperationsPerBlock)
	}

	period := block.Header.Slot.Period
	keys := make(map[dag.OperationKey]struct{}, len(block.Operations))
	for _, op := range block.Operations {
		key := op.Key()
		if _, ok := keys[key]; ok {
			return NewValidationErrorf(InvalidOperations, id, "operation %v included twice", key)
		}
		keys[key] = struct{}{}
		if !op.ValidAt(period, g.config.OperationValidityPeriods) {
			return NewValidationErrorf(InvalidOperations, id, "operation %v expiring at period %d is not valid at period %d",
				key, op.ExpirePeriod, period)
		}
		if _, ok := g.finalKeys[key]; ok {
			return NewValidationErrorf(InvalidOperations, id, "operation %v is already final", key)
		}
	}

	var group errgroup.Group
	group.SetLimit(runtime.NumCPU())
	for i := range block.Operations {
		op := block.Operations[i]
		group.Go(func() error {
			valid, err := op.VerifySignature()
			if err != nil || !valid {
				return fmt.Errorf("invalid signature of operation %v (%v)", op.Key(), err)
			}
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return NewValidationErrorf(InvalidOperations, id, "%w", err)
	}
	return nil
}

func (g *BlockGraph) isDependencyOverflow(id dag.Identifier, block *dag.Block) bool {
	if g.store.Count(dag.StatusWaitingForDependencies) < g.config.MaxDependencyBlocks {
		return false
	}
	for _, parentID := range block.Header.Parents {
		if !g.store.Status(parentID).InGraph() {
			return true
		}
	}
	return false
}

// place decides where a validated block goes: waiting for its slot, waiting for
// its parents, or active. When the block is rejected, the returned status is the
// discarded status to remember it with, or Unknown if it must not be remembered.
func (g *BlockGraph) place(id dag.Identifier, block *dag.Block) (dag.BlockStatus, dag.IdentifierList, error) {
	if g.current.Before(block.Header.Slot) {
		return dag.WaitingForSlot, nil, nil
	}

	var missing dag.IdentifierList
	waiting := false
	for thread, parentID := range block.Header.Parents {
		status := g.store.Status(parentID)
		switch {
		case status.Kind == dag.StatusDiscarded:
			return dag.Discarded(dag.ReasonInvalid, "parent discarded"), nil,
				NewValidationErrorf(UnknownParent, id, "parent %v in thread %d is %s", parentID, thread, status)
		case status.InGraph():
		case status.IsPending():
			waiting = true
		default:
			_, err := g.history.ByID(parentID)
			if err == nil {
				return dag.Discarded(dag.ReasonStale, "parent pruned"), nil,
					NewValidationErrorf(StaleSlot, id, "parent %v in thread %d was final and pruned", parentID, thread)
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return dag.Unknown, nil, irrecoverable.NewExceptionf("could not look up parent %v in history: %w", parentID, err)
			}
			missing = append(missing, parentID)
			waiting = true
		}
	}
	if waiting {
		return dag.WaitingForDependencies, missing, nil
	}

	err := g.checkParents(id, block)
	if err != nil {
		return dag.Discarded(dag.ReasonInvalid, err.Error()), nil, err
	}
	return dag.Active, nil, nil
}

// checkParents runs the checks requiring every parent to be in the graph.
func (g *BlockGraph) checkParents(id dag.Identifier, block *dag.Block) error {
	slot := block.Header.Slot
	parents := block.Header.Parents
	for thread, parentID := range parents {
		parent := g.info[parentID]
		if parent.slot.Thread != uint8(thread) {
			return NewValidationErrorf(MalformedHeader, id, "parent %v of thread %d lives in thread %d", parentID, thread, parent.slot.Thread)
		}
		if !parent.slot.Before(slot) {
			return NewValidationErrorf(MalformedHeader, id, "parent %v at %v does not precede %v", parentID, parent.slot, slot)
		}
	}

	// a parent must not be older than what another parent already references in its thread
	for _, parentID := range parents {
		for thread, grandparentID := range g.info[parentID].parents {
			grandparent, ok := g.info[grandparentID]
			if !ok {
				continue
			}
			if g.info[parents[thread]].slot.Period < grandparent.slot.Period {
				return NewValidationErrorf(MalformedHeader, id, "parent in thread %d is older than %v referenced by parent %v",
					thread, grandparentID, parentID)
			}
		}
	}

	for i := range parents {
		for j := i + 1; j < len(parents); j++ {
			if g.incompat.Incompatible(parents[i], parents[j]) {
				return NewValidationErrorf(IncompatibleParents, id, "parents %v and %v are incompatible", parents[i], parents[j])
			}
		}
	}

	ancestors := make(map[dag.Identifier]struct{})
	for _, parentID := range parents {
		ancestors[parentID] = struct{}{}
		for ancestorID := range g.info[parentID].ancestors {
			ancestors[ancestorID] = struct{}{}
		}
	}
	for _, op := range block.Operations {
		for other := range g.byKey[op.Key()] {
			if _, ok := ancestors[other]; ok {
				return NewValidationErrorf(InvalidOperations, id, "operation %v already included by ancestor %v", op.Key(), other)
			}
		}
	}
	return nil
}

// admitted follows up on a block stored with its placement status.
func (g *BlockGraph) admitted(id dag.Identifier, block *dag.Block, status dag.BlockStatus, missing dag.IdentifierList) error {
	switch status.Kind {
	case dag.StatusActive:
		g.activate(id, block)
		return g.resolveDependents(id)
	case dag.StatusWaitingForDependencies:
		g.need(missing)
		g.log.Debug().
			Func(logging.Block(id, block.Header.Slot)).
			Strs("missing", logging.IDs(missing)).
			Msg("block waiting for its dependencies")
	}
	return nil
}

// resolveDependents re-examines the blocks waiting for a block that just became active.
func (g *BlockGraph) resolveDependents(root dag.Identifier) error {
	queue := dag.IdentifierList{root}
	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]
		for _, childID := range g.store.AllChildren(parentID) {
			entry, ok := g.store.Get(childID)
			if !ok || entry.Status.Kind != dag.StatusWaitingForDependencies {
				continue
			}
			status, missing, err := g.place(childID, entry.Block)
			if err != nil {
				if !IsValidationError(err) {
					return err
				}
				err = g.discard(childID, g.discardStatus(status, err))
				if err != nil {
					return err
				}
				continue
			}
			if status.Kind == dag.StatusWaitingForDependencies {
				g.need(missing)
				continue
			}
			err = g.store.SetStatus(childID, status)
			if err != nil {
				return irrecoverable.NewExceptionf("could not activate block %v: %w", childID, err)
			}
			g.activate(childID, entry.Block)
			queue = append(queue, childID)
		}
	}
	return nil
}

// discardStatus is the status a pending block is discarded with when placing it failed.
func (g *BlockGraph) discardStatus(status dag.BlockStatus, err error) dag.BlockStatus {
	if status.Kind == dag.StatusDiscarded {
		return status
	}
	return dag.Discarded(dag.ReasonInvalid, err.Error())
}

// discard removes a block and every block depending on it from the graph, and
// remembers them as discarded.
func (g *BlockGraph) discard(id dag.Identifier, status dag.BlockStatus) error {
	order := dag.IdentifierList{id}
	visited := map[dag.Identifier]struct{}{id: {}}
	for i := 0; i < len(order); i++ {
		for _, childID := range g.store.AllChildren(order[i]) {
			if _, ok := visited[childID]; !ok {
				visited[childID] = struct{}{}
				order = append(order, childID)
			}
		}
	}

	for _, blockID := range order {
		entry, ok := g.store.Get(blockID)
		if !ok {
			continue
		}
		if entry.Status.Kind == dag.StatusFinal {
			return irrecoverable.NewExceptionf("final block %v descends from discarded block %v", blockID, id)
		}
		s := status
		if blockID != id {
			s = dag.Discarded(status.Reason, fmt.Sprintf("ancestor %v discarded", id))
		}
		operationIDs := entry.Block.OperationIDs()
		g.unindex(blockID)
		err := g.store.Discard(blockID, s, g.current)
		if err != nil {
			return irrecoverable.NewExceptionf("could not discard block %v: %w", blockID, err)
		}
		g.events.Discarded = append(g.events.Discarded, DiscardedBlock{
			BlockID:      blockID,
			Slot:         entry.Slot(),
			Status:       s,
			OperationIDs: operationIDs,
		})
		g.metrics.BlockDiscarded(s.Reason)
		g.log.Debug().
			Func(logging.Block(blockID, entry.Slot())).
			Str("status", s.String()).
			Msg("block discarded")
	}
	return nil
}
