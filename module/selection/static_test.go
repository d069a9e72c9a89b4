package selection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module/selection"
	"github.com/blockclique/blockclique-go/utils/unittest"
)

func TestStaticSelector(t *testing.T) {
	keys := unittest.PrivateKeyFixtures(t, 3)
	a, b, c := unittest.AddressOf(keys[0]), unittest.AddressOf(keys[1]), unittest.AddressOf(keys[2])
	s := selection.NewStatic(map[dag.Address]uint64{a: 5, b: 3, c: 0})

	assert.Equal(t, uint64(5), s.Stake(a))
	assert.Equal(t, uint64(0), s.Stake(c))
	assert.Equal(t, uint64(8), s.TotalStake())

	drawn := make(map[dag.Address]int)
	for period := uint64(1); period <= 10; period++ {
		for thread := uint8(0); thread < 2; thread++ {
			creator, err := s.EntitledCreator(dag.NewSlot(period, thread))
			require.NoError(t, err)
			drawn[creator]++
		}
	}
	assert.Equal(t, 10, drawn[a])
	assert.Equal(t, 10, drawn[b])
	assert.Zero(t, drawn[c])

	// the draw is a pure function of the slot
	first, _ := s.EntitledCreator(dag.NewSlot(7, 1))
	again, _ := selection.NewUniform(1, b, a).EntitledCreator(dag.NewSlot(7, 1))
	assert.Equal(t, first, again)

	_, err := selection.NewStatic(nil).EntitledCreator(dag.NewSlot(1, 0))
	assert.ErrorIs(t, err, selection.ErrNoCreators)
}
