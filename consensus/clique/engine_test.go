package clique

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/metrics"
	"github.com/blockclique/blockclique-go/utils/unittest"
)

type frontierRecorder struct {
	*metrics.NoopCollector
	oversized []int
}

func (r *frontierRecorder) FrontierOversized(size int) {
	r.oversized = append(r.oversized, size)
}

func newEngine(maxFrontier, maxCliques int) *Engine {
	return NewEngine(unittest.Logger(), metrics.NewNoopCollector(), maxFrontier, maxCliques)
}

func id(i int) dag.Identifier {
	return dag.Identifier{byte(i)}
}

func unitWeight(dag.Identifier) uint64 {
	return 1
}

func TestComputeEmpty(t *testing.T) {
	cliques, _ := newEngine(10, 10).Compute(nil, NewIncompatibilities(), unitWeight)
	require.Len(t, cliques, 1)
	assert.Empty(t, cliques[0].Blocks)
	assert.True(t, cliques[0].IsBlockclique)
}

func TestComputeAllCompatible(t *testing.T) {
	candidates := dag.IdentifierList{id(3), id(1), id(2)}
	cliques, _ := newEngine(10, 10).Compute(candidates, NewIncompatibilities(), unitWeight)
	require.Len(t, cliques, 1)
	assert.Equal(t, dag.IdentifierList{id(1), id(2), id(3)}, cliques[0].Blocks)
	assert.Equal(t, uint64(3), cliques[0].Weight)
}

func TestComputeFork(t *testing.T) {
	incompat := NewIncompatibilities()
	incompat.Add(id(1), id(2))
	candidates := dag.IdentifierList{id(1), id(2), id(3)}

	t.Run("weight decides", func(t *testing.T) {
		weights := map[dag.Identifier]uint64{id(1): 1, id(2): 5, id(3): 1}
		cliques, _ := newEngine(10, 10).Compute(candidates, incompat, func(b dag.Identifier) uint64 { return weights[b] })
		require.Len(t, cliques, 2)
		assert.Equal(t, dag.IdentifierList{id(2), id(3)}, cliques[0].Blocks)
		assert.Equal(t, uint64(6), cliques[0].Weight)
		assert.True(t, cliques[0].IsBlockclique)
		assert.Equal(t, dag.IdentifierList{id(1), id(3)}, cliques[1].Blocks)
		assert.False(t, cliques[1].IsBlockclique)
	})

	t.Run("ties go to the smallest ids", func(t *testing.T) {
		cliques, _ := newEngine(10, 10).Compute(candidates, incompat, unitWeight)
		require.Len(t, cliques, 2)
		assert.Equal(t, dag.IdentifierList{id(1), id(3)}, cliques[0].Blocks)
		assert.True(t, cliques[0].Contains(id(3)))
		assert.False(t, cliques[0].Contains(id(2)))
	})
}

func TestComputePath(t *testing.T) {
	// 1 - 2 - 3 incompatible along the path: {1, 3} and {2}
	incompat := NewIncompatibilities()
	incompat.Add(id(1), id(2))
	incompat.Add(id(2), id(3))

	cliques, _ := newEngine(10, 10).Compute(dag.IdentifierList{id(1), id(2), id(3)}, incompat, unitWeight)
	require.Len(t, cliques, 2)
	assert.Equal(t, dag.IdentifierList{id(1), id(3)}, cliques[0].Blocks)
	assert.Equal(t, dag.IdentifierList{id(2)}, cliques[1].Blocks)
}

func TestComputeIgnoresEdgesOutsideCandidates(t *testing.T) {
	incompat := NewIncompatibilities()
	incompat.Add(id(1), id(9))

	cliques, _ := newEngine(10, 10).Compute(dag.IdentifierList{id(1), id(2)}, incompat, unitWeight)
	require.Len(t, cliques, 1)
	assert.Equal(t, dag.IdentifierList{id(1), id(2)}, cliques[0].Blocks)
}

func TestComputeTruncated(t *testing.T) {
	incompat := NewIncompatibilities()
	incompat.Add(id(1), id(2))
	incompat.Add(id(2), id(3))
	incompat.Add(id(1), id(3))

	cliques, truncated := newEngine(10, 2).Compute(dag.IdentifierList{id(1), id(2), id(3)}, incompat, unitWeight)
	assert.Len(t, cliques, 2)
	assert.True(t, truncated)

	cliques, truncated = newEngine(10, 3).Compute(dag.IdentifierList{id(1), id(2), id(3)}, incompat, unitWeight)
	assert.Len(t, cliques, 3)
	assert.False(t, truncated)
}

func TestFrontierWarning(t *testing.T) {
	recorder := &frontierRecorder{NoopCollector: metrics.NewNoopCollector()}
	engine := NewEngine(unittest.Logger(), recorder, 2, 10)

	engine.Compute(dag.IdentifierList{id(1), id(2)}, NewIncompatibilities(), unitWeight)
	assert.Empty(t, recorder.oversized)

	engine.Compute(dag.IdentifierList{id(1), id(2), id(3)}, NewIncompatibilities(), unitWeight)
	assert.Equal(t, []int{3}, recorder.oversized)
}

func TestIncompatibilities(t *testing.T) {
	incompat := NewIncompatibilities()
	incompat.Add(id(1), id(2))
	incompat.Add(id(1), id(3))
	incompat.Add(id(4), id(4))

	assert.True(t, incompat.Incompatible(id(2), id(1)))
	assert.False(t, incompat.Incompatible(id(2), id(3)))
	assert.Equal(t, dag.IdentifierList{id(2), id(3)}, incompat.Of(id(1)))
	assert.Equal(t, 0, incompat.Degree(id(4)))

	incompat.Remove(id(1))
	assert.False(t, incompat.Incompatible(id(2), id(1)))
	assert.Equal(t, 0, incompat.Len())
}

// TestComputeProperties checks on random compatibility graphs that the result is
// exactly the set of maximal cliques, ranked the same way whatever the order
// in which candidates are given.
func TestComputeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 10).Draw(t, "n")
		candidates := make(dag.IdentifierList, 0, n)
		weights := make(map[dag.Identifier]uint64)
		for i := 0; i < n; i++ {
			candidates = append(candidates, id(i+1))
			weights[id(i+1)] = uint64(rapid.IntRange(0, 3).Draw(t, "weight"))
		}
		incompat := NewIncompatibilities()
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rapid.Bool().Draw(t, "edge") {
					incompat.Add(candidates[i], candidates[j])
				}
			}
		}
		weight := func(b dag.Identifier) uint64 { return weights[b] }

		engine := newEngine(100, 1000)
		cliques, _ := engine.Compute(candidates, incompat, weight)

		shuffled := rapid.Permutation(candidates).Draw(t, "shuffled")
		again, _ := engine.Compute(shuffled, incompat, weight)
		if len(again) != len(cliques) {
			t.Fatalf("clique count depends on candidate order: %d != %d", len(again), len(cliques))
		}
		for i := range cliques {
			if compareConcatenation(cliques[i].Blocks, again[i].Blocks) != 0 || cliques[i].Weight != again[i].Weight {
				t.Fatalf("clique %d depends on candidate order", i)
			}
		}

		for i, c := range cliques {
			if c.IsBlockclique != (i == 0) {
				t.Fatalf("blockclique flag wrong on clique %d", i)
			}
			if i > 0 && better(c, cliques[i-1]) {
				t.Fatalf("cliques %d and %d out of order", i-1, i)
			}
			for _, a := range c.Blocks {
				for _, b := range c.Blocks {
					if incompat.Incompatible(a, b) {
						t.Fatalf("clique %d contains incompatible blocks", i)
					}
				}
			}
		}

		expected := bruteForceMaximalCliques(candidates, incompat)
		if n == 0 {
			expected = 1
		}
		if len(cliques) != expected {
			t.Fatalf("expected %d maximal cliques, got %d", expected, len(cliques))
		}
	})
}

func bruteForceMaximalCliques(candidates dag.IdentifierList, incompat *Incompatibilities) int {
	n := len(candidates)
	isClique := func(mask int) bool {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if mask&(1<<i) != 0 && mask&(1<<j) != 0 && incompat.Incompatible(candidates[i], candidates[j]) {
					return false
				}
			}
		}
		return true
	}
	count := 0
	for mask := 1; mask < 1<<n; mask++ {
		if !isClique(mask) {
			continue
		}
		maximal := true
		for k := 0; k < n; k++ {
			if mask&(1<<k) == 0 && isClique(mask|1<<k) {
				maximal = false
				break
			}
		}
		if maximal {
			count++
		}
	}
	return count
}
