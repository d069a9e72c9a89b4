package clique

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module"
)

// Engine computes the maximal cliques of compatible blocks over the non-final frontier.
type Engine struct {
	log             zerolog.Logger
	metrics         module.GraphMetrics
	maxFrontierSize int
	maxCliques      int
}

// NewEngine creates a clique engine. The enumeration stops after maxCliques cliques,
// and a frontier larger than maxFrontierSize raises a liveness warning.
func NewEngine(log zerolog.Logger, metrics module.GraphMetrics, maxFrontierSize int, maxCliques int) *Engine {
	return &Engine{
		log:             log.With().Str("component", "clique_engine").Logger(),
		metrics:         metrics,
		maxFrontierSize: maxFrontierSize,
		maxCliques:      maxCliques,
	}
}

// Compute returns the maximal cliques of the compatibility graph over the candidates,
// best first, the first one flagged as blockclique. The result only depends on the
// candidate set, the relation and the weights, not on the order of the candidates.
// There is always at least one clique, possibly empty. The returned flag is set
// when the enumeration stopped at maxCliques: the cliques are then only a subset
// of the maximal cliques.
func (e *Engine) Compute(candidates dag.IdentifierList, incompat *Incompatibilities, weight WeightFunc) ([]Clique, bool) {
	start := time.Now()
	defer func() {
		e.metrics.CliqueComputationDuration(time.Since(start))
	}()

	if len(candidates) > e.maxFrontierSize {
		e.log.Warn().
			Int("frontier_size", len(candidates)).
			Int("max_frontier_size", e.maxFrontierSize).
			Msg("non-final frontier exceeds its bound, finalization is not keeping up")
		e.metrics.FrontierOversized(len(candidates))
	}

	sorted := dedup(candidates.Sorted())

	// blocks compatible with every other candidate belong to every clique
	var universal, contested dag.IdentifierList
	for _, id := range sorted {
		if hasIncompatibility(id, sorted, incompat) {
			contested = append(contested, id)
		} else {
			universal = append(universal, id)
		}
	}

	var cliques []Clique
	truncated := false
	if len(contested) == 0 {
		cliques = []Clique{{Blocks: universal}}
	} else {
		var members [][]int
		members, truncated = e.enumerate(contested, incompat)
		if truncated {
			e.log.Error().
				Int("contested_blocks", len(contested)).
				Int("max_cliques", e.maxCliques).
				Msg("clique enumeration truncated")
		}
		cliques = make([]Clique, 0, len(members))
		for _, m := range members {
			blocks := make(dag.IdentifierList, 0, len(m)+len(universal))
			blocks = append(blocks, universal...)
			for _, i := range m {
				blocks = append(blocks, contested[i])
			}
			cliques = append(cliques, Clique{Blocks: blocks.Sorted()})
		}
	}

	for i := range cliques {
		for _, id := range cliques[i].Blocks {
			cliques[i].Weight += weight(id)
		}
	}
	Select(cliques)
	return cliques, truncated
}

// enumerate runs Bron–Kerbosch with pivoting over the compatibility graph of the
// contested blocks and returns each maximal clique as ascending indices.
func (e *Engine) enumerate(contested dag.IdentifierList, incompat *Incompatibilities) ([][]int, bool) {
	n := len(contested)
	neighbors := make([]bitset, n)
	for i := range contested {
		neighbors[i] = newBitset(n)
		for j := range contested {
			if i != j && !incompat.Incompatible(contested[i], contested[j]) {
				neighbors[i].set(j)
			}
		}
	}

	all := newBitset(n)
	for i := 0; i < n; i++ {
		all.set(i)
	}

	var result [][]int
	truncated := false
	var expand func(r []int, p, x bitset)
	expand = func(r []int, p, x bitset) {
		if truncated {
			return
		}
		if p.empty() && x.empty() {
			if len(result) >= e.maxCliques {
				truncated = true
				return
			}
			clique := make([]int, len(r))
			copy(clique, r)
			sort.Ints(clique)
			result = append(result, clique)
			return
		}

		// the pivot maximizes the candidates it lets us skip, first index on ties
		pivot, best := -1, -1
		for _, u := range p.or(x).members() {
			if c := p.andCount(neighbors[u]); c > best {
				pivot, best = u, c
			}
		}

		p = p.clone()
		x = x.clone()
		for _, v := range p.andNot(neighbors[pivot]).members() {
			expand(append(r, v), p.and(neighbors[v]), x.and(neighbors[v]))
			p.clear(v)
			x.set(v)
		}
	}
	expand(nil, all, newBitset(n))
	return result, truncated
}

func hasIncompatibility(id dag.Identifier, candidates dag.IdentifierList, incompat *Incompatibilities) bool {
	if incompat.Degree(id) == 0 {
		return false
	}
	for _, other := range candidates {
		if incompat.Incompatible(id, other) {
			return true
		}
	}
	return false
}

func dedup(sorted dag.IdentifierList) dag.IdentifierList {
	out := sorted[:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			out = append(out, id)
		}
	}
	return out
}
