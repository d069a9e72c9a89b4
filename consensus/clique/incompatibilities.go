package clique

import (
	"github.com/blockclique/blockclique-go/model/dag"
)

// Incompatibilities is the symmetric incompatibility relation between blocks.
// Two blocks are compatible iff no edge joins them.
type Incompatibilities struct {
	adjacency map[dag.Identifier]map[dag.Identifier]struct{}
}

// NewIncompatibilities creates an empty relation.
func NewIncompatibilities() *Incompatibilities {
	return &Incompatibilities{adjacency: make(map[dag.Identifier]map[dag.Identifier]struct{})}
}

// Add records that a and b are incompatible. A block is never incompatible with itself.
func (in *Incompatibilities) Add(a, b dag.Identifier) {
	if a == b {
		return
	}
	in.link(a, b)
	in.link(b, a)
}

func (in *Incompatibilities) link(from, to dag.Identifier) {
	set, ok := in.adjacency[from]
	if !ok {
		set = make(map[dag.Identifier]struct{})
		in.adjacency[from] = set
	}
	set[to] = struct{}{}
}

// Incompatible returns whether a and b are incompatible.
func (in *Incompatibilities) Incompatible(a, b dag.Identifier) bool {
	_, ok := in.adjacency[a][b]
	return ok
}

// Of returns the blocks incompatible with a, in id order.
func (in *Incompatibilities) Of(a dag.Identifier) dag.IdentifierList {
	list := make(dag.IdentifierList, 0, len(in.adjacency[a]))
	for b := range in.adjacency[a] {
		list = append(list, b)
	}
	return list.Sorted()
}

// Degree returns the number of blocks incompatible with a.
func (in *Incompatibilities) Degree(a dag.Identifier) int {
	return len(in.adjacency[a])
}

// Remove drops a block and all its edges.
func (in *Incompatibilities) Remove(a dag.Identifier) {
	for b := range in.adjacency[a] {
		delete(in.adjacency[b], a)
		if len(in.adjacency[b]) == 0 {
			delete(in.adjacency, b)
		}
	}
	delete(in.adjacency, a)
}

// Len returns the number of blocks with at least one incompatibility.
func (in *Incompatibilities) Len() int {
	return len(in.adjacency)
}
