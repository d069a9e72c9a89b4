package graph

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/blockclique/blockclique-go/consensus/blockstore"
	"github.com/blockclique/blockclique-go/consensus/clique"
	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module"
	"github.com/blockclique/blockclique-go/storage"
	"github.com/blockclique/blockclique-go/utils/logging"
)

// blockInfo is what the graph derives from a block once it is active or final.
type blockInfo struct {
	slot    dag.Slot
	parents []dag.Identifier
	weight  uint64
	// ancestors holds the ancestors that were in the graph when the block was added.
	ancestors map[dag.Identifier]struct{}
	keys      []dag.OperationKey
}

func (b *blockInfo) descendsFrom(id dag.Identifier) bool {
	_, ok := b.ancestors[id]
	return ok
}

// Option configures a BlockGraph.
type Option func(*BlockGraph)

// WithCheckpoints sets the source of the collaborator checkpoints embedded in snapshots.
func WithCheckpoints(provider module.CheckpointProvider) Option {
	return func(g *BlockGraph) {
		g.checkpoints = provider
	}
}

// BlockGraph is the consensus core: it validates blocks into the multi-thread
// graph, selects the blockclique, promotes final blocks and prunes the rest.
//
// BlockGraph is NOT concurrency safe. All mutations must be serialized by the
// caller. Concurrent readers use the View published after every mutation.
type BlockGraph struct {
	log         zerolog.Logger
	metrics     module.GraphMetrics
	config      Config
	selector    module.Selector
	history     storage.FinalizedHistory
	checkpoints module.CheckpointProvider
	cliques     *clique.Engine

	store    *blockstore.Store
	incompat *clique.Incompatibilities
	info     map[dag.Identifier]*blockInfo
	// byKey indexes the blocks of the graph by the operation keys they consume.
	byKey map[dag.OperationKey]map[dag.Identifier]struct{}
	// finalKeys holds the keys consumed by final blocks, until their operations expire.
	finalKeys   map[dag.OperationKey]uint64
	current     dag.Slot
	latestFinal []dag.Identifier
	computed    []clique.Clique

	events Events
	view   *atomic.Pointer[View]
}

// New creates a graph whose only blocks are the final genesis blocks, one per thread.
// No errors are expected during normal operation.
func New(
	log zerolog.Logger,
	metrics module.GraphMetrics,
	config Config,
	selector module.Selector,
	history storage.FinalizedHistory,
	genesis []*dag.Block,
	opts ...Option,
) (*BlockGraph, error) {
	g := &BlockGraph{
		log:      log.With().Str("component", "block_graph").Logger(),
		metrics:  metrics,
		config:   config,
		selector: selector,
		history:  history,
		cliques:  clique.NewEngine(log, metrics, config.MaxFrontierSize, config.MaxCliques),
		view:     atomic.NewPointer[View](nil),
	}
	for _, apply := range opts {
		apply(g)
	}
	err := g.reset()
	if err != nil {
		return nil, err
	}

	if len(genesis) != int(config.ThreadCount) {
		return nil, fmt.Errorf("expected %d genesis blocks, got %d", config.ThreadCount, len(genesis))
	}
	records := make([]*storage.FinalizedBlock, 0, len(genesis))
	for thread, block := range genesis {
		if !block.Header.IsGenesis() || int(block.Header.Slot.Thread) != thread {
			return nil, fmt.Errorf("block %v at %v is not the genesis block of thread %d", block.ID(), block.Header.Slot, thread)
		}
		id, _, err := g.store.Insert(block, dag.Final, true, dag.Slot{})
		if err != nil {
			return nil, fmt.Errorf("could not insert genesis block of thread %d: %w", thread, err)
		}
		g.index(id, block)
		g.latestFinal[thread] = id
		records = append(records, finalizedRecord(id, block, dag.Slot{}))
	}
	err = g.history.StoreBatch(records)
	if err != nil {
		return nil, fmt.Errorf("could not store genesis blocks: %w", err)
	}

	err = g.refresh()
	if err != nil {
		return nil, err
	}
	g.events = Events{}
	g.publish()
	return g, nil
}

// reset replaces the graph state with an empty one.
func (g *BlockGraph) reset() error {
	store, err := blockstore.New(g.config.ThreadCount, g.config.MaxDiscardedBlocks)
	if err != nil {
		return fmt.Errorf("could not create block store: %w", err)
	}
	g.store = store
	g.incompat = clique.NewIncompatibilities()
	g.info = make(map[dag.Identifier]*blockInfo)
	g.byKey = make(map[dag.OperationKey]map[dag.Identifier]struct{})
	g.finalKeys = make(map[dag.OperationKey]uint64)
	g.current = dag.Slot{}
	g.latestFinal = make([]dag.Identifier, g.config.ThreadCount)
	g.computed = nil
	g.events = Events{}
	return nil
}

// empty returns a graph with the same collaborators and no state.
func (g *BlockGraph) empty() (*BlockGraph, error) {
	next := &BlockGraph{
		log:         g.log,
		metrics:     g.metrics,
		config:      g.config,
		selector:    g.selector,
		history:     g.history,
		checkpoints: g.checkpoints,
		cliques:     g.cliques,
		view:        g.view,
	}
	err := next.reset()
	if err != nil {
		return nil, err
	}
	return next, nil
}

// adopt takes over the state of another graph.
func (g *BlockGraph) adopt(next *BlockGraph) {
	g.store = next.store
	g.incompat = next.incompat
	g.info = next.info
	g.byKey = next.byKey
	g.finalKeys = next.finalKeys
	g.current = next.current
	g.latestFinal = next.latestFinal
	g.computed = next.computed
	g.events = next.events
}

// DrainEvents returns the events accumulated since the last call.
func (g *BlockGraph) DrainEvents() Events {
	events := g.events
	g.events = Events{}
	return events
}

// View returns the latest published view of the graph. It is safe for concurrent use.
func (g *BlockGraph) View() *View {
	return g.view.Load()
}

// CurrentSlot returns the latest slot the graph was ticked to.
func (g *BlockGraph) CurrentSlot() dag.Slot {
	return g.current
}

// Status returns the status of a block. Final blocks pruned from memory are
// found in the finalized history.
func (g *BlockGraph) Status(id dag.Identifier) dag.BlockStatus {
	return g.View().Status(id)
}

// BestParents returns, per thread, the tip of the blockclique: the parents a new
// block must reference.
func (g *BlockGraph) BestParents() dag.IdentifierList {
	return g.View().BestParents()
}

// Blockclique returns the non-final blocks of the blockclique, in id order.
func (g *BlockGraph) Blockclique() dag.IdentifierList {
	return g.View().Blockclique()
}

// LatestFinal returns the latest final block of each thread, indexed by thread.
func (g *BlockGraph) LatestFinal() dag.IdentifierList {
	return g.View().LatestFinal()
}

// FinalizedRange returns the final blocks of a thread with from <= period <= to.
func (g *BlockGraph) FinalizedRange(thread uint8, from uint64, to uint64) ([]*storage.FinalizedBlock, error) {
	if thread >= g.config.ThreadCount {
		return nil, fmt.Errorf("thread %d is out of range", thread)
	}
	return g.history.Range(thread, from, to)
}

// index derives the graph data of a block entering the graph as active or final.
func (g *BlockGraph) index(id dag.Identifier, block *dag.Block) *blockInfo {
	info := &blockInfo{
		slot:      block.Header.Slot,
		parents:   block.Header.Parents,
		weight:    g.weight(block.Header),
		ancestors: make(map[dag.Identifier]struct{}),
		keys:      make([]dag.OperationKey, 0, len(block.Operations)),
	}
	for _, parentID := range block.Header.Parents {
		parent, ok := g.info[parentID]
		if !ok {
			continue
		}
		info.ancestors[parentID] = struct{}{}
		for ancestorID := range parent.ancestors {
			if _, ok := g.info[ancestorID]; ok {
				info.ancestors[ancestorID] = struct{}{}
			}
		}
	}
	for _, op := range block.Operations {
		key := op.Key()
		info.keys = append(info.keys, key)
		blocks, ok := g.byKey[key]
		if !ok {
			blocks = make(map[dag.Identifier]struct{})
			g.byKey[key] = blocks
		}
		blocks[id] = struct{}{}
	}
	g.info[id] = info
	return info
}

// unindex drops the graph data of a block leaving the graph.
func (g *BlockGraph) unindex(id dag.Identifier) {
	info, ok := g.info[id]
	if !ok {
		return
	}
	for _, key := range info.keys {
		delete(g.byKey[key], id)
		if len(g.byKey[key]) == 0 {
			delete(g.byKey, key)
		}
	}
	g.incompat.Remove(id)
	delete(g.info, id)
}

// weight is the stake of the creator plus the stake of every distinct endorser.
func (g *BlockGraph) weight(header *dag.Header) uint64 {
	weight := g.selector.Stake(header.CreatorAddress())
	endorsers := make(map[dag.Address]struct{}, len(header.Endorsements))
	for _, e := range header.Endorsements {
		address := e.EndorserAddress()
		if _, ok := endorsers[address]; ok {
			continue
		}
		endorsers[address] = struct{}{}
		weight += g.selector.Stake(address)
	}
	return weight
}

func (g *BlockGraph) weightOf(id dag.Identifier) uint64 {
	info, ok := g.info[id]
	if !ok {
		return 0
	}
	return info.weight
}

// descendants returns the blocks of the graph descending from a block.
func (g *BlockGraph) descendants(id dag.Identifier) dag.IdentifierList {
	var result dag.IdentifierList
	visited := map[dag.Identifier]struct{}{id: {}}
	queue := dag.IdentifierList{id}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, childID := range g.store.AllChildren(next) {
			if _, ok := visited[childID]; ok {
				continue
			}
			visited[childID] = struct{}{}
			if _, ok := g.info[childID]; !ok {
				continue
			}
			result = append(result, childID)
			queue = append(queue, childID)
		}
	}
	return result
}

// conflicts returns the blocks of the graph a new block is incompatible with:
// the incompatibilities of its parents, the other children of its parent in its
// own thread and the blocks consuming the same operation keys, together with
// all their descendants.
func (g *BlockGraph) conflicts(id dag.Identifier, block *dag.Block, info *blockInfo) map[dag.Identifier]struct{} {
	result := make(map[dag.Identifier]struct{})
	for _, parentID := range block.Header.Parents {
		for _, other := range g.incompat.Of(parentID) {
			result[other] = struct{}{}
		}
	}

	direct := make(map[dag.Identifier]struct{})
	thread := block.Header.Slot.Thread
	for _, sibling := range g.store.ChildrenOf(block.Header.Parents[thread], thread) {
		if _, ok := g.info[sibling]; ok && sibling != id {
			direct[sibling] = struct{}{}
		}
	}
	for _, key := range info.keys {
		for other := range g.byKey[key] {
			if other != id && !info.descendsFrom(other) {
				direct[other] = struct{}{}
			}
		}
	}
	for other := range direct {
		result[other] = struct{}{}
		for _, descendant := range g.descendants(other) {
			result[descendant] = struct{}{}
		}
	}
	delete(result, id)
	return result
}

// activate adds a block to the graph as active.
func (g *BlockGraph) activate(id dag.Identifier, block *dag.Block) {
	info := g.index(id, block)
	for other := range g.conflicts(id, block, info) {
		g.incompat.Add(id, other)
	}
	g.events.Added = append(g.events.Added, AddedBlock{BlockID: id, Slot: info.slot})
	g.log.Debug().
		Func(logging.Block(id, info.slot)).
		Int("incompatibilities", g.incompat.Degree(id)).
		Msg("block added to the graph")
}

// need records missing blocks to fetch.
func (g *BlockGraph) need(missing dag.IdentifierList) {
	for _, id := range missing {
		if !g.events.NeedBlocks.Contains(id) {
			g.events.NeedBlocks = append(g.events.NeedBlocks, id)
		}
	}
}

func (g *BlockGraph) latestFinalSlot(thread uint8) dag.Slot {
	return g.info[g.latestFinal[thread]].slot
}

func finalizedRecord(id dag.Identifier, block *dag.Block, at dag.Slot) *storage.FinalizedBlock {
	return &storage.FinalizedBlock{
		BlockID:      id,
		Slot:         block.Header.Slot,
		Parents:      block.Header.Parents,
		Creator:      block.Header.CreatorAddress(),
		OperationIDs: block.OperationIDs(),
		FinalizedAt:  at,
	}
}
