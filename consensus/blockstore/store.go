package blockstore

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blockclique/blockclique-go/model/dag"
)

// Entry is a block held by the store together with its status.
type Entry struct {
	ID     dag.Identifier
	Block  *dag.Block
	Status dag.BlockStatus
	// HasBody is false for headers received ahead of their operations.
	HasBody bool
	// ReceivedAt is the current slot of the graph when the block was first seen.
	ReceivedAt dag.Slot
}

// Slot returns the slot of the block.
func (e *Entry) Slot() dag.Slot {
	return e.Block.Header.Slot
}

// DiscardRecord is what the store remembers of a discarded block, to reject replays.
type DiscardRecord struct {
	Status dag.BlockStatus
	Slot   dag.Slot
	// DiscardedAt is the current slot of the graph when the block was discarded.
	DiscardedAt dag.Slot
}

// Store is the arena owning every known block, keyed by block id. Blocks only
// reference each other through ids, any holder of an id must look the block up
// again as it may have been pruned or discarded in between.
//
// Store is not safe for concurrent use: it is exclusively owned by the graph.
type Store struct {
	threadCount uint8
	entries     map[dag.Identifier]*Entry
	// children indexes the known blocks referencing a block as parent, including
	// pending blocks waiting for a parent the store does not have yet.
	children map[dag.Identifier]map[dag.Identifier]struct{}
	bySlot   map[dag.Slot]map[dag.Identifier]struct{}
	// inGraph holds the active and final blocks of each thread.
	inGraph []map[dag.Identifier]struct{}
	tips    []dag.Identifier
	// discarded remembers discarded ids for a bounded window.
	discarded *lru.Cache[dag.Identifier, DiscardRecord]
}

// New creates an empty store remembering at most maxDiscarded discarded ids.
func New(threadCount uint8, maxDiscarded int) (*Store, error) {
	if threadCount == 0 {
		return nil, fmt.Errorf("thread count must be positive")
	}
	discarded, err := lru.New[dag.Identifier, DiscardRecord](maxDiscarded)
	if err != nil {
		return nil, fmt.Errorf("could not create discarded blocks cache: %w", err)
	}
	s := &Store{
		threadCount: threadCount,
		entries:     make(map[dag.Identifier]*Entry),
		children:    make(map[dag.Identifier]map[dag.Identifier]struct{}),
		bySlot:      make(map[dag.Slot]map[dag.Identifier]struct{}),
		inGraph:     make([]map[dag.Identifier]struct{}, threadCount),
		tips:        make([]dag.Identifier, threadCount),
		discarded:   discarded,
	}
	for thread := range s.inGraph {
		s.inGraph[thread] = make(map[dag.Identifier]struct{})
	}
	return s, nil
}

// Insert adds a block with the given initial status and returns its id. Inserting
// a block that is already stored is a no-op and returns false.
// Expected errors:
//   - ErrDiscarded if the id was discarded and is still remembered
//   - dag.ErrInvalidTransition for an initial status a block cannot start in
func (s *Store) Insert(block *dag.Block, status dag.BlockStatus, hasBody bool, at dag.Slot) (dag.Identifier, bool, error) {
	id := block.ID()
	if _, ok := s.entries[id]; ok {
		return id, false, nil
	}
	if record, ok := s.discarded.Peek(id); ok {
		return id, false, NewDiscardedErrorf(id, record, "block was discarded")
	}
	if int(block.Header.Slot.Thread) >= int(s.threadCount) {
		return id, false, fmt.Errorf("block thread %d is out of range", block.Header.Slot.Thread)
	}
	initial, err := dag.Unknown.Transition(status)
	if err != nil {
		return id, false, err
	}
	if initial.Kind == dag.StatusDiscarded {
		s.rememberDiscarded(id, initial, block.Header.Slot, at)
		return id, true, nil
	}

	entry := &Entry{
		ID:         id,
		Block:      block,
		Status:     initial,
		HasBody:    hasBody,
		ReceivedAt: at,
	}
	s.entries[id] = entry
	for _, parentID := range block.Header.Parents {
		children, ok := s.children[parentID]
		if !ok {
			children = make(map[dag.Identifier]struct{})
			s.children[parentID] = children
		}
		children[id] = struct{}{}
	}
	slotIndex, ok := s.bySlot[block.Header.Slot]
	if !ok {
		slotIndex = make(map[dag.Identifier]struct{})
		s.bySlot[block.Header.Slot] = slotIndex
	}
	slotIndex[id] = struct{}{}
	if initial.InGraph() {
		s.addToGraph(entry)
	}
	return id, true, nil
}

// AttachBody completes a block inserted from its header only.
func (s *Store) AttachBody(id dag.Identifier, operations []dag.Operation) error {
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("block %v: %w", id, ErrUnknownBlock)
	}
	entry.Block.Operations = operations
	entry.HasBody = true
	return nil
}

// Get returns the entry of a stored block.
func (s *Store) Get(id dag.Identifier) (*Entry, bool) {
	entry, ok := s.entries[id]
	return entry, ok
}

// Has returns whether a block is stored.
func (s *Store) Has(id dag.Identifier) bool {
	_, ok := s.entries[id]
	return ok
}

// Status returns the status of a block: from its entry if stored, from the
// discarded records otherwise. Blocks the store knows nothing about are Unknown.
func (s *Store) Status(id dag.Identifier) dag.BlockStatus {
	if entry, ok := s.entries[id]; ok {
		return entry.Status
	}
	if record, ok := s.discarded.Peek(id); ok {
		return record.Status
	}
	return dag.Unknown
}

// DiscardRecord returns the record of a discarded block.
func (s *Store) DiscardRecord(id dag.Identifier) (DiscardRecord, bool) {
	return s.discarded.Peek(id)
}

// SetStatus moves a stored block to a new status. Discarding goes through Discard.
// Expected errors:
//   - ErrUnknownBlock if the block is not stored
//   - dag.ErrInvalidTransition if the block life cycle forbids the change
func (s *Store) SetStatus(id dag.Identifier, status dag.BlockStatus) error {
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("block %v: %w", id, ErrUnknownBlock)
	}
	if status.Kind == dag.StatusDiscarded {
		return fmt.Errorf("discarding block %v requires Discard: %w", id, dag.ErrInvalidTransition)
	}
	next, err := entry.Status.Transition(status)
	if err != nil {
		return fmt.Errorf("block %v: %w", id, err)
	}
	wasInGraph := entry.Status.InGraph()
	entry.Status = next
	if next.InGraph() && !wasInGraph {
		s.addToGraph(entry)
	}
	return nil
}

// Discard removes a block from the arena and remembers its id with the discard
// status, so that a replay of the same block is rejected.
// Expected errors:
//   - ErrUnknownBlock if the block is not stored
//   - dag.ErrInvalidTransition if the block is final
func (s *Store) Discard(id dag.Identifier, status dag.BlockStatus, at dag.Slot) error {
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("block %v: %w", id, ErrUnknownBlock)
	}
	next, err := entry.Status.Transition(status)
	if err != nil {
		return fmt.Errorf("block %v: %w", id, err)
	}
	s.remove(entry)
	s.rememberDiscarded(id, next, entry.Slot(), at)
	return nil
}

// Remove drops a block from the arena without remembering it. It is used to
// prune final blocks that moved to the finalized history.
func (s *Store) Remove(id dag.Identifier) {
	entry, ok := s.entries[id]
	if !ok {
		return
	}
	s.remove(entry)
}

// EvictDiscardedBefore forgets discarded blocks with a slot period below the given
// period and returns how many were evicted.
func (s *Store) EvictDiscardedBefore(period uint64) int {
	evicted := 0
	for _, id := range s.discarded.Keys() {
		record, ok := s.discarded.Peek(id)
		if ok && record.Slot.Period < period {
			s.discarded.Remove(id)
			evicted++
		}
	}
	return evicted
}

// DiscardedCount returns the number of remembered discarded blocks.
func (s *Store) DiscardedCount() int {
	return s.discarded.Len()
}

// ChildrenOf returns the known children of a block living in the given thread,
// in id order.
func (s *Store) ChildrenOf(id dag.Identifier, thread uint8) dag.IdentifierList {
	children := make(dag.IdentifierList, 0)
	for childID := range s.children[id] {
		entry, ok := s.entries[childID]
		if ok && entry.Slot().Thread == thread {
			children = append(children, childID)
		}
	}
	return children.Sorted()
}

// AllChildren returns every known child of a block, in id order. The block itself
// does not need to be stored.
func (s *Store) AllChildren(id dag.Identifier) dag.IdentifierList {
	children := make(dag.IdentifierList, 0, len(s.children[id]))
	for childID := range s.children[id] {
		if _, ok := s.entries[childID]; ok {
			children = append(children, childID)
		}
	}
	return children.Sorted()
}

// LatestInThread returns the active or final block with the highest slot of a
// thread, ties broken by smallest id.
func (s *Store) LatestInThread(thread uint8) (dag.Identifier, bool) {
	if thread >= s.threadCount {
		return dag.ZeroID, false
	}
	tip := s.tips[thread]
	if tip == dag.ZeroID {
		return dag.ZeroID, false
	}
	return tip, true
}

// BySlot returns the stored blocks of a slot, in id order.
func (s *Store) BySlot(slot dag.Slot) dag.IdentifierList {
	ids := make(dag.IdentifierList, 0, len(s.bySlot[slot]))
	for id := range s.bySlot[slot] {
		ids = append(ids, id)
	}
	return ids.Sorted()
}

// ByStatus returns the ids of stored blocks with the given status kind, ordered by slot then id.
func (s *Store) ByStatus(kind dag.StatusKind) dag.IdentifierList {
	entries := make([]*Entry, 0)
	for _, entry := range s.entries {
		if entry.Status.Kind == kind {
			entries = append(entries, entry)
		}
	}
	sortEntries(entries)
	ids := make(dag.IdentifierList, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	return ids
}

// Count returns the number of stored blocks with the given status kind.
func (s *Store) Count(kind dag.StatusKind) int {
	count := 0
	for _, entry := range s.entries {
		if entry.Status.Kind == kind {
			count++
		}
	}
	return count
}

// Len returns the number of stored blocks.
func (s *Store) Len() int {
	return len(s.entries)
}

// ThreadCount returns the number of threads.
func (s *Store) ThreadCount() uint8 {
	return s.threadCount
}

func (s *Store) addToGraph(entry *Entry) {
	thread := entry.Slot().Thread
	s.inGraph[thread][entry.ID] = struct{}{}
	tip := s.tips[thread]
	if tip == dag.ZeroID || isAfter(entry, s.entries[tip]) {
		s.tips[thread] = entry.ID
	}
}

func (s *Store) remove(entry *Entry) {
	delete(s.entries, entry.ID)
	for _, parentID := range entry.Block.Header.Parents {
		children := s.children[parentID]
		delete(children, entry.ID)
		if len(children) == 0 {
			delete(s.children, parentID)
		}
	}
	// the children index of a removed block lives on until its children are
	// removed themselves, so the dependents of a discarded block can be found
	if len(s.children[entry.ID]) == 0 {
		delete(s.children, entry.ID)
	}
	slotIndex := s.bySlot[entry.Slot()]
	delete(slotIndex, entry.ID)
	if len(slotIndex) == 0 {
		delete(s.bySlot, entry.Slot())
	}

	thread := entry.Slot().Thread
	if _, ok := s.inGraph[thread][entry.ID]; !ok {
		return
	}
	delete(s.inGraph[thread], entry.ID)
	if s.tips[thread] != entry.ID {
		return
	}
	s.tips[thread] = dag.ZeroID
	for id := range s.inGraph[thread] {
		candidate := s.entries[id]
		if s.tips[thread] == dag.ZeroID || isAfter(candidate, s.entries[s.tips[thread]]) {
			s.tips[thread] = id
		}
	}
}

func (s *Store) rememberDiscarded(id dag.Identifier, status dag.BlockStatus, slot dag.Slot, at dag.Slot) {
	s.discarded.Add(id, DiscardRecord{Status: status, Slot: slot, DiscardedAt: at})
}

// isAfter orders candidate tips: higher slot first, then smaller id.
func isAfter(a, b *Entry) bool {
	cmp := a.Slot().Compare(b.Slot())
	if cmp != 0 {
		return cmp > 0
	}
	return a.ID.Less(b.ID)
}
