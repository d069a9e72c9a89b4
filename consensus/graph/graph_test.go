package graph

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/metrics"
	"github.com/blockclique/blockclique-go/module/selection"
	bstorage "github.com/blockclique/blockclique-go/storage/badger"
	"github.com/blockclique/blockclique-go/utils/unittest"
)

// harness drives a graph whose blocks are all created by a single key with unit stake.
type harness struct {
	t       require.TestingT
	sk      *crypto.PrivateKey
	genesis []*dag.Block
	config  Config
	graph   *BlockGraph
}

func testConfig(threadCount uint8) Config {
	config := DefaultConfig()
	config.ThreadCount = threadCount
	config.FinalityThreshold = 5
	config.MaxFrontierSize = 64
	return config
}

func newHarness(t testing.TB, config Config) *harness {
	sk := unittest.PrivateKeyFixture(t)
	return newHarnessWith(t, config, sk, dag.Genesis(config.ThreadCount, sk))
}

// newHarnessWith creates a graph sharing the creator and genesis blocks of another harness.
func newHarnessWith(t testing.TB, config Config, sk *crypto.PrivateKey, genesis []*dag.Block) *harness {
	db := unittest.InMemoryBadgerDB(t)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return newHarnessOn(t, db, config, sk, genesis)
}

// newHarnessOn creates a graph writing its finalized history to db.
func newHarnessOn(t require.TestingT, db *badger.DB, config Config, sk *crypto.PrivateKey, genesis []*dag.Block) *harness {
	history := bstorage.NewHistory(metrics.NewNoopCollector(), db, 100)
	selector := selection.NewUniform(1, unittest.AddressOf(sk))

	g, err := New(unittest.Logger(), metrics.NewNoopCollector(), config, selector, history, genesis)
	require.NoError(t, err)
	return &harness{
		t:       t,
		sk:      sk,
		genesis: genesis,
		config:  config,
		graph:   g,
	}
}

func (h *harness) tick(slot dag.Slot) {
	require.NoError(h.t, h.graph.Tick(slot))
}

// block creates a block of the slot on top of the given parents.
func (h *harness) block(slot dag.Slot, parents dag.IdentifierList, options ...func(*dag.Block)) *dag.Block {
	return unittest.BlockFixture(h.sk, slot, parents, options...)
}

// extend creates a block of the slot on top of the current best parents.
func (h *harness) extend(slot dag.Slot, options ...func(*dag.Block)) *dag.Block {
	return h.block(slot, h.graph.BestParents(), options...)
}

func (h *harness) submit(block *dag.Block) dag.Identifier {
	id, err := h.graph.Submit(block)
	require.NoError(h.t, err)
	return id
}

// run ticks to every slot from the first slot of period from to the last slot
// of period to, extending the best parents at each slot.
func (h *harness) run(from, to uint64) []*dag.Block {
	var blocks []*dag.Block
	for period := from; period <= to; period++ {
		for thread := uint8(0); thread < h.config.ThreadCount; thread++ {
			slot := dag.NewSlot(period, thread)
			h.tick(slot)
			block := h.extend(slot)
			h.submit(block)
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func (h *harness) status(block *dag.Block) dag.BlockStatus {
	return h.graph.Status(block.ID())
}

func (h *harness) requireStatus(kind dag.StatusKind, blocks ...*dag.Block) {
	for _, block := range blocks {
		require.Equal(h.t, kind, h.status(block).Kind, "block at %v is %s", block.Header.Slot, h.status(block))
	}
}

func requireValidationKind(t require.TestingT, err error, kind ValidationKind) {
	require.Error(t, err)
	actual, ok := ValidationKindOf(err)
	require.True(t, ok, "not a validation error: %v", err)
	require.Equal(t, kind, actual, err.Error())
}

func TestGenesis(t *testing.T) {
	h := newHarness(t, testConfig(4))

	assert.Equal(t, unittest.IDsOf(h.genesis...), h.graph.LatestFinal())
	assert.Equal(t, unittest.IDsOf(h.genesis...), h.graph.BestParents())
	assert.Empty(t, h.graph.Blockclique())
	h.requireStatus(dag.StatusFinal, h.genesis...)
	assert.True(t, h.graph.DrainEvents().Empty())

	final, err := h.graph.FinalizedRange(2, 0, 10)
	require.NoError(t, err)
	require.Len(t, final, 1)
	assert.Equal(t, h.genesis[2].ID(), final[0].BlockID)

	_, err = New(unittest.Logger(), metrics.NewNoopCollector(), h.config, selection.NewUniform(1), nil, h.genesis[:2])
	assert.Error(t, err)
}

// TestFinalization submits conflict-free blocks for periods 1 to 5 on both
// threads: the blocks of periods 1 and 2 become final, the later ones stay active.
func TestFinalization(t *testing.T) {
	h := newHarness(t, testConfig(2))
	blocks := h.run(1, 5)

	h.requireStatus(dag.StatusFinal, blocks[:4]...)
	h.requireStatus(dag.StatusActive, blocks[4:]...)
	assert.Equal(t, unittest.IDsOf(blocks[2], blocks[3]), h.graph.LatestFinal())
	assert.Equal(t, unittest.IDsOf(blocks[8], blocks[9]), h.graph.BestParents())
	assert.ElementsMatch(t, unittest.IDsOf(blocks[4:]...), h.graph.Blockclique())

	// older final blocks left memory but remain in the finalized history
	view := h.graph.View()
	assert.Equal(t, unittest.IDsOf(blocks[2], blocks[3]), unittest.IDsOf(view.FinalBlocks()...))
	assert.Equal(t, unittest.IDsOf(blocks[4:]...), unittest.IDsOf(view.ActiveBlocks()...))
	final, err := h.graph.FinalizedRange(0, 0, 5)
	require.NoError(t, err)
	require.Len(t, final, 3)
	assert.Equal(t, h.genesis[0].ID(), final[0].BlockID)
	assert.Equal(t, blocks[0].ID(), final[1].BlockID)
	assert.Equal(t, blocks[2].ID(), final[2].BlockID)

	var added, finalized dag.IdentifierList
	events := h.graph.DrainEvents()
	for _, a := range events.Added {
		added = append(added, a.BlockID)
	}
	for _, f := range events.Finalized {
		finalized = append(finalized, f.BlockID)
	}
	assert.Equal(t, unittest.IDsOf(blocks...), added)
	assert.Equal(t, unittest.IDsOf(blocks[:4]...), finalized, "finalized in slot order")
	assert.Empty(t, events.Discarded)
	assert.NotNil(t, events.CliqueChanged)
	assert.True(t, h.graph.DrainEvents().Empty())
}

// TestEquivocation submits two blocks for the same slot by the entitled creator.
// Both are active and incompatible until the branch of one of them becomes
// final, which discards the other.
func TestEquivocation(t *testing.T) {
	config := testConfig(2)
	config.FinalityThreshold = 3
	h := newHarness(t, config)
	blocks := h.run(1, 2)

	slot := dag.NewSlot(3, 0)
	h.tick(slot)
	parents := h.graph.BestParents()
	a := h.block(slot, parents, unittest.WithPayloadNonce(h.sk, 1, 5))
	b := h.block(slot, parents, unittest.WithPayloadNonce(h.sk, 2, 5))
	h.submit(a)
	h.submit(b)

	h.requireStatus(dag.StatusActive, a, b)
	assert.True(t, h.graph.incompat.Incompatible(a.ID(), b.ID()))
	require.Len(t, h.graph.View().Cliques(), 2)

	// a third block for the slot is one too many
	c := h.block(slot, parents, unittest.WithPayloadNonce(h.sk, 3, 5))
	_, err := h.graph.Submit(c)
	requireValidationKind(t, err, DuplicateSlotEquivocation)

	h.tick(dag.NewSlot(3, 1))
	a1 := h.block(dag.NewSlot(3, 1), dag.IdentifierList{a.ID(), blocks[3].ID()})
	h.submit(a1)
	assert.True(t, h.graph.incompat.Incompatible(a1.ID(), b.ID()), "incompatibility is inherited")

	var branch []*dag.Block
	for _, slot := range []dag.Slot{dag.NewSlot(4, 0), dag.NewSlot(4, 1)} {
		h.tick(slot)
		block := h.extend(slot)
		h.submit(block)
		branch = append(branch, block)
	}
	h.requireStatus(dag.StatusActive, a, b)

	h.tick(dag.NewSlot(5, 0))
	h.submit(h.extend(dag.NewSlot(5, 0)))

	h.requireStatus(dag.StatusFinal, a)
	status := h.status(b)
	assert.Equal(t, dag.StatusDiscarded, status.Kind)
	assert.Equal(t, dag.ReasonSupersededByFinal, status.Reason)
	h.requireStatus(dag.StatusActive, append(branch, a1)...)

	events := h.graph.DrainEvents()
	var discarded *DiscardedBlock
	for i := range events.Discarded {
		if events.Discarded[i].BlockID == b.ID() {
			discarded = &events.Discarded[i]
		}
	}
	require.NotNil(t, discarded)
	assert.Equal(t, b.OperationIDs(), discarded.OperationIDs)

	// the discarded block cannot come back
	_, err = h.graph.Submit(b)
	requireValidationKind(t, err, AlreadyDiscarded)
}

// TestTruncatedCliques grows two equally heavy branches from an equivocation.
// When the enumeration of maximal cliques is cut short, the enumerated cliques
// neither finalize nor discard anything.
func TestTruncatedCliques(t *testing.T) {
	cases := []struct {
		name       string
		maxCliques int
		cliques    int
	}{
		{name: "complete", maxCliques: 1000, cliques: 2},
		{name: "truncated", maxCliques: 1, cliques: 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			config := testConfig(2)
			config.FinalityThreshold = 3
			config.MaxCliques = c.maxCliques
			h := newHarness(t, config)
			blocks := h.run(1, 2)
			h.graph.DrainEvents()

			slot := dag.NewSlot(3, 0)
			h.tick(slot)
			parents := h.graph.BestParents()
			a := h.block(slot, parents, unittest.WithPayloadNonce(h.sk, 1, 5))
			b := h.block(slot, parents, unittest.WithPayloadNonce(h.sk, 2, 5))
			h.submit(a)
			h.submit(b)

			branches := [][]*dag.Block{{a}, {b}}
			tips := []dag.IdentifierList{{a.ID(), blocks[3].ID()}, {b.ID(), blocks[3].ID()}}
			for period := uint64(3); period <= 8; period++ {
				for thread := uint8(0); thread < 2; thread++ {
					if period == 3 && thread == 0 {
						continue
					}
					slot := dag.NewSlot(period, thread)
					h.tick(slot)
					for i := range branches {
						block := h.block(slot, tips[i])
						h.submit(block)
						tips[i][thread] = block.ID()
						branches[i] = append(branches[i], block)
					}
				}
			}

			assert.Len(t, h.graph.View().Cliques(), c.cliques)
			for _, branch := range branches {
				h.requireStatus(dag.StatusActive, branch...)
			}
			assert.Empty(t, h.graph.DrainEvents().Discarded)
		})
	}
}

// TestDependencyTimeout submits a block whose parent in thread 2 is unknown.
func TestDependencyTimeout(t *testing.T) {
	config := testConfig(3)
	config.DependencyTimeoutPeriods = 2
	h := newHarness(t, config)

	missing := unittest.IdentifierFixture()
	h.tick(dag.NewSlot(1, 0))
	block := h.block(dag.NewSlot(1, 0), dag.IdentifierList{h.genesis[0].ID(), h.genesis[1].ID(), missing})
	h.submit(block)

	h.requireStatus(dag.StatusWaitingForDependencies, block)
	events := h.graph.DrainEvents()
	assert.Equal(t, dag.IdentifierList{missing}, events.NeedBlocks)
	assert.Empty(t, events.Added)

	h.tick(dag.NewSlot(2, 2))
	h.requireStatus(dag.StatusWaitingForDependencies, block)

	h.tick(dag.NewSlot(3, 0))
	status := h.status(block)
	assert.Equal(t, dag.StatusDiscarded, status.Kind)
	assert.Equal(t, dag.ReasonTimeout, status.Reason)
	events = h.graph.DrainEvents()
	require.Len(t, events.Discarded, 1)
	assert.Equal(t, block.ID(), events.Discarded[0].BlockID)

	// children of the discarded block are rejected
	child := h.block(dag.NewSlot(3, 1), dag.IdentifierList{block.ID(), h.genesis[1].ID(), h.genesis[2].ID()})
	h.tick(dag.NewSlot(3, 1))
	_, err := h.graph.Submit(child)
	requireValidationKind(t, err, UnknownParent)
	assert.Equal(t, dag.StatusDiscarded, h.status(child).Kind)
}

// TestMissingParentArrives submits a child before its parent.
func TestMissingParentArrives(t *testing.T) {
	h := newHarness(t, testConfig(2))
	h.tick(dag.NewSlot(1, 1))
	parent := h.block(dag.NewSlot(1, 0), unittest.IDsOf(h.genesis...))
	child := h.block(dag.NewSlot(1, 1), dag.IdentifierList{parent.ID(), h.genesis[1].ID()})
	grandchild := h.block(dag.NewSlot(1, 1), dag.IdentifierList{parent.ID(), child.ID()})

	h.submit(child)
	h.requireStatus(dag.StatusWaitingForDependencies, child)
	assert.Equal(t, dag.IdentifierList{parent.ID()}, h.graph.DrainEvents().NeedBlocks)

	h.submit(parent)
	h.requireStatus(dag.StatusActive, parent, child)
	assert.Equal(t, unittest.IDsOf(parent, child), h.graph.BestParents())

	events := h.graph.DrainEvents()
	require.Len(t, events.Added, 2)
	assert.Equal(t, parent.ID(), events.Added[0].BlockID)
	assert.Equal(t, child.ID(), events.Added[1].BlockID)

	// the grandchild lives in the slot of its own parent
	_, err := h.graph.Submit(grandchild)
	require.Error(t, err)
}

// TestFutureBlock holds a block until its slot starts.
func TestFutureBlock(t *testing.T) {
	h := newHarness(t, testConfig(2))
	h.tick(dag.NewSlot(1, 0))

	block := h.block(dag.NewSlot(2, 0), unittest.IDsOf(h.genesis...))
	h.submit(block)
	h.requireStatus(dag.StatusWaitingForSlot, block)
	assert.Equal(t, unittest.IDsOf(h.genesis...), h.graph.BestParents())

	h.tick(dag.NewSlot(1, 1))
	h.requireStatus(dag.StatusWaitingForSlot, block)
	h.tick(dag.NewSlot(2, 0))
	h.requireStatus(dag.StatusActive, block)
	assert.Equal(t, block.ID(), h.graph.BestParents()[0])

	// ticks never go back in time
	h.tick(dag.NewSlot(1, 0))
	assert.Equal(t, dag.NewSlot(2, 0), h.graph.CurrentSlot())
}

// TestHeaderThenBody submits the header of a block ahead of its body.
func TestHeaderThenBody(t *testing.T) {
	config := testConfig(2)
	config.DependencyTimeoutPeriods = 1
	h := newHarness(t, config)
	h.tick(dag.NewSlot(1, 0))

	block := h.block(dag.NewSlot(1, 0), unittest.IDsOf(h.genesis...), unittest.WithPayloadNonce(h.sk, 1, 5))
	id, needBody, err := h.graph.SubmitHeader(block.Header)
	require.NoError(t, err)
	assert.Equal(t, block.ID(), id)
	assert.True(t, needBody)
	h.requireStatus(dag.StatusIncoming, block)

	_, needBody, err = h.graph.SubmitHeader(block.Header)
	require.NoError(t, err)
	assert.True(t, needBody)

	// a body not matching the header is rejected, the header stays
	wrong := &dag.Block{Header: block.Header, Operations: []dag.Operation{unittest.OperationFixture(h.sk, 2, 5)}}
	_, err = h.graph.Submit(wrong)
	requireValidationKind(t, err, InvalidOperations)
	h.requireStatus(dag.StatusIncoming, block)

	h.submit(block)
	h.requireStatus(dag.StatusActive, block)
	_, needBody, err = h.graph.SubmitHeader(block.Header)
	require.NoError(t, err)
	assert.False(t, needBody)

	// a header whose body never comes times out
	other := h.block(dag.NewSlot(1, 1), dag.IdentifierList{block.ID(), h.genesis[1].ID()})
	h.tick(dag.NewSlot(1, 1))
	_, _, err = h.graph.SubmitHeader(other.Header)
	require.NoError(t, err)
	h.tick(dag.NewSlot(2, 1))
	status := h.status(other)
	assert.Equal(t, dag.StatusDiscarded, status.Kind)
	assert.Equal(t, dag.ReasonTimeout, status.Reason)
}

// TestOperationConflict checks that blocks of different threads spending the
// same operation key are incompatible, and that an operation cannot be reused
// by a descendant.
func TestOperationConflict(t *testing.T) {
	h := newHarness(t, testConfig(2))
	op := unittest.OperationFixture(h.sk, 7, 5)

	h.tick(dag.NewSlot(1, 1))
	left := h.block(dag.NewSlot(1, 0), unittest.IDsOf(h.genesis...), unittest.WithOperations(op))
	right := h.block(dag.NewSlot(1, 1), unittest.IDsOf(h.genesis...), unittest.WithOperations(op))
	h.submit(left)
	h.submit(right)

	h.requireStatus(dag.StatusActive, left, right)
	assert.True(t, h.graph.incompat.Incompatible(left.ID(), right.ID()))
	cliques := h.graph.View().Cliques()
	require.Len(t, cliques, 2)
	assert.Len(t, cliques[0].Blocks, 1)

	h.tick(dag.NewSlot(2, 0))
	reuse := h.block(dag.NewSlot(2, 0), dag.IdentifierList{left.ID(), h.genesis[1].ID()}, unittest.WithOperations(op))
	_, err := h.graph.Submit(reuse)
	requireValidationKind(t, err, InvalidOperations)

	incompatible := h.block(dag.NewSlot(2, 0), dag.IdentifierList{left.ID(), right.ID()})
	_, err = h.graph.Submit(incompatible)
	requireValidationKind(t, err, IncompatibleParents)
	assert.Equal(t, dag.ReasonInvalid, h.status(incompatible).Reason)
}
