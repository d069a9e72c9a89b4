package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/utils/unittest"
)

// TestFinalityInvariants feeds random traffic with forks, equivocations and
// conflicting operations to a graph and checks the finality invariants after
// every slot.
func TestFinalityInvariants(t *testing.T) {
	sk := unittest.PrivateKeyFixture(t)
	config := testConfig(2)
	config.FinalityThreshold = 3
	genesis := dag.Genesis(config.ThreadCount, sk)

	rapid.Check(t, func(rt *rapid.T) {
		db := unittest.InMemoryBadgerDB(t)
		defer db.Close()
		h := newHarnessOn(rt, db, config, sk, genesis)

		submitted := make(map[dag.Identifier]*dag.Block)
		for _, block := range genesis {
			submitted[block.ID()] = block
		}
		everFinal := make(map[dag.Identifier]struct{})

		periods := rapid.IntRange(2, 10).Draw(rt, "periods")
		previous := h.graph.BestParents()
		for period := uint64(1); period <= uint64(periods); period++ {
			for thread := uint8(0); thread < config.ThreadCount; thread++ {
				slot := dag.NewSlot(period, thread)
				h.tick(slot)
				best := h.graph.BestParents()

				count := rapid.IntRange(0, 2).Draw(rt, "blocks")
				for i := 0; i < count; i++ {
					parents := best
					if rapid.Bool().Draw(rt, "fork") {
						parents = previous
					}
					nonce := uint64(rapid.IntRange(1, 2*periods).Draw(rt, "nonce"))
					block := h.block(slot, parents, unittest.WithPayloadNonce(sk, nonce, period+uint64(rapid.IntRange(0, 3).Draw(rt, "validity"))))
					_, err := h.graph.Submit(block)
					if err != nil && !IsValidationError(err) {
						rt.Fatalf("unexpected error: %v", err)
					}
					submitted[block.ID()] = block
				}
				previous = best

				checkInvariants(rt, h, submitted, everFinal)
			}
		}
	})
}

func checkInvariants(t *rapid.T, h *harness, submitted map[dag.Identifier]*dag.Block, everFinal map[dag.Identifier]struct{}) {
	g := h.graph
	view := g.View()

	// final blocks never change status
	for id := range everFinal {
		require.Equal(t, dag.StatusFinal, view.Status(id).Kind, "final block %v changed status", id)
	}

	// the final blocks of each thread form a chain whose blocks only reference final blocks
	type inclusion struct {
		period uint64
		expire uint64
	}
	keys := make(map[dag.OperationKey][]inclusion)
	latest := view.LatestFinal()
	for thread := uint8(0); thread < h.config.ThreadCount; thread++ {
		chain, err := g.FinalizedRange(thread, 0, view.CurrentSlot().Period)
		require.NoError(t, err)
		require.NotEmpty(t, chain)
		require.Equal(t, latest[thread], chain[len(chain)-1].BlockID)
		for i, record := range chain {
			everFinal[record.BlockID] = struct{}{}
			if i > 0 {
				require.Equal(t, chain[i-1].BlockID, record.Parents[thread], "final chain of thread %d is broken", thread)
			}
			for _, parentID := range record.Parents {
				require.Equal(t, dag.StatusFinal, view.Status(parentID).Kind)
			}
			block, ok := submitted[record.BlockID]
			require.True(t, ok)
			// a key may only be final twice once the first operation expired
			for _, op := range block.Operations {
				current := inclusion{period: record.Slot.Period, expire: op.ExpirePeriod}
				for _, other := range keys[op.Key()] {
					first, second := other, current
					if second.period < first.period {
						first, second = second, first
					}
					require.Less(t, first.expire, second.period, "operation %v is final twice", op.Key())
				}
				keys[op.Key()] = append(keys[op.Key()], current)
			}
		}
	}

	// no active block conflicts with a final block, the blockclique is conflict free
	for _, block := range view.ActiveBlocks() {
		for _, other := range g.incompat.Of(block.ID()) {
			require.NotEqual(t, dag.StatusFinal, view.Status(other).Kind)
		}
	}
	blockclique := view.Blockclique()
	for i := range blockclique {
		require.Equal(t, dag.StatusActive, view.Status(blockclique[i]).Kind)
		for j := i + 1; j < len(blockclique); j++ {
			require.False(t, g.incompat.Incompatible(blockclique[i], blockclique[j]))
		}
	}

	// best parents are compatible and reference each thread
	best := view.BestParents()
	require.Len(t, best, int(h.config.ThreadCount))
	for thread, id := range best {
		require.Equal(t, uint8(thread), submitted[id].Header.Slot.Thread)
		for _, other := range best[thread+1:] {
			require.False(t, g.incompat.Incompatible(id, other))
		}
	}
}

// TestArrivalOrder submits the same blocks in any order and checks that the
// graph reaches the same state.
func TestArrivalOrder(t *testing.T) {
	config := testConfig(2)
	reference := newHarness(t, config)
	blocks := reference.run(1, 6)
	last := blocks[len(blocks)-1].Header.Slot

	rapid.Check(t, func(rt *rapid.T) {
		db := unittest.InMemoryBadgerDB(t)
		defer db.Close()
		h := newHarnessOn(rt, db, config, reference.sk, reference.genesis)
		h.tick(last)

		for _, block := range rapid.Permutation(blocks).Draw(rt, "order") {
			h.submit(block)
		}

		expected, actual := reference.graph.View(), h.graph.View()
		require.Equal(rt, expected.LatestFinal(), actual.LatestFinal())
		require.Equal(rt, expected.BestParents(), actual.BestParents())
		require.Equal(rt, expected.Blockclique(), actual.Blockclique())
		for _, block := range blocks {
			require.Equal(rt, expected.Status(block.ID()), actual.Status(block.ID()))
		}
	})
}

// TestBoundedFrontier checks that honest traffic keeps a bounded number of
// blocks in memory.
func TestBoundedFrontier(t *testing.T) {
	config := testConfig(4)
	h := newHarness(t, config)
	for period := uint64(1); period <= 40; period++ {
		h.run(period, period)
		view := h.graph.View()
		require.LessOrEqual(t, len(view.ActiveBlocks()), int(config.FinalityThreshold)+int(config.ThreadCount)+1)
		require.LessOrEqual(t, len(view.FinalBlocks()), 2*int(config.ThreadCount)*int(config.KeepFinalPeriods+1))
	}
}
