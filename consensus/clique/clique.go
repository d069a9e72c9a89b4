package clique

import (
	"bytes"
	"sort"

	"github.com/blockclique/blockclique-go/model/dag"
)

// Clique is a maximal set of mutually compatible blocks.
type Clique struct {
	Blocks        dag.IdentifierList // sorted by id
	Weight        uint64
	IsBlockclique bool
}

// Contains returns whether the clique contains the block.
func (c Clique) Contains(id dag.Identifier) bool {
	i := sort.Search(len(c.Blocks), func(i int) bool {
		return !c.Blocks[i].Less(id)
	})
	return i < len(c.Blocks) && c.Blocks[i] == id
}

// WeightFunc returns the fitness weight of a block.
type WeightFunc func(dag.Identifier) uint64

// better reports whether clique a ranks before b: higher weight first, then the
// lexicographically smallest concatenation of sorted member ids.
func better(a, b Clique) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return compareConcatenation(a.Blocks, b.Blocks) < 0
}

// compareConcatenation compares the concatenations of two sorted id lists.
// All ids have the same length, so this is an element-wise comparison where a
// strict prefix ranks first.
func compareConcatenation(a, b dag.IdentifierList) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if cmp := bytes.Compare(a[i][:], b[i][:]); cmp != 0 {
			return cmp
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Select orders cliques from best to worst, flags the best one as the blockclique
// and returns its index, which is always 0 for a non-empty input.
func Select(cliques []Clique) int {
	if len(cliques) == 0 {
		return -1
	}
	sort.SliceStable(cliques, func(i, j int) bool {
		return better(cliques[i], cliques[j])
	})
	for i := range cliques {
		cliques[i].IsBlockclique = i == 0
	}
	return 0
}
