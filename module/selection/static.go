package selection

import (
	"errors"
	"sort"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module"
)

// ErrNoCreators is returned by a selector without any staked address.
var ErrNoCreators = errors.New("no staked creators")

// Static is a fixed stake distribution drawing creators in turn, ordered by address.
// It stands in for the proof-of-stake draw on test and development networks.
type Static struct {
	creators []dag.Address
	stakes   map[dag.Address]uint64
}

var _ module.Selector = (*Static)(nil)

// NewStatic creates a selector over the given stakes. Addresses with zero stake are never drawn.
func NewStatic(stakes map[dag.Address]uint64) *Static {
	s := &Static{stakes: make(map[dag.Address]uint64, len(stakes))}
	for addr, stake := range stakes {
		if stake == 0 {
			continue
		}
		s.stakes[addr] = stake
		s.creators = append(s.creators, addr)
	}
	sort.Slice(s.creators, func(i, j int) bool {
		return dag.Identifier(s.creators[i]).Less(dag.Identifier(s.creators[j]))
	})
	return s
}

// NewUniform creates a selector giving the same stake to every address.
func NewUniform(stake uint64, addresses ...dag.Address) *Static {
	stakes := make(map[dag.Address]uint64, len(addresses))
	for _, addr := range addresses {
		stakes[addr] = stake
	}
	return NewStatic(stakes)
}

// EntitledCreator returns the creator of the slot: creators take turns by slot index.
func (s *Static) EntitledCreator(slot dag.Slot) (dag.Address, error) {
	if len(s.creators) == 0 {
		return dag.Address{}, ErrNoCreators
	}
	// the thread is mixed in so that each creator gets a share of every thread
	index := slot.Period + uint64(slot.Thread)
	return s.creators[index%uint64(len(s.creators))], nil
}

// Stake returns the stake of an address.
func (s *Static) Stake(address dag.Address) uint64 {
	return s.stakes[address]
}

// TotalStake returns the sum of all stakes.
func (s *Static) TotalStake() uint64 {
	var total uint64
	for _, stake := range s.stakes {
		total += stake
	}
	return total
}
