package dag_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/model/dag"
)

func TestTimeslots(t *testing.T) {
	genesis := time.Unix(1_700_000_000, 0)
	ts, err := dag.NewTimeslots(4, 16*time.Second, genesis)
	require.NoError(t, err)

	t.Run("slot timestamps", func(t *testing.T) {
		assert.Equal(t, genesis, ts.SlotTimestamp(dag.NewSlot(0, 0)))
		assert.Equal(t, genesis.Add(4*time.Second), ts.SlotTimestamp(dag.NewSlot(0, 1)))
		assert.Equal(t, genesis.Add(16*time.Second+12*time.Second), ts.SlotTimestamp(dag.NewSlot(1, 3)))
	})

	t.Run("slot at", func(t *testing.T) {
		slot, err := ts.SlotAt(genesis.Add(17 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, dag.NewSlot(1, 0), slot)

		slot, err = ts.SlotAt(genesis.Add(20 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, dag.NewSlot(1, 1), slot)

		_, err = ts.SlotAt(genesis.Add(-time.Second))
		assert.ErrorIs(t, err, dag.ErrBeforeGenesis)
	})

	t.Run("next slot", func(t *testing.T) {
		assert.Equal(t, dag.NewSlot(1, 1), ts.NextSlotAt(genesis.Add(17*time.Second)))
		assert.Equal(t, dag.NewSlot(0, 0), ts.NextSlotAt(genesis.Add(-time.Hour)))

		next, wait := ts.UntilNextSlot(genesis.Add(17 * time.Second))
		assert.Equal(t, dag.NewSlot(1, 1), next)
		assert.Equal(t, 3*time.Second, wait)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		_, err := dag.NewTimeslots(0, time.Second, genesis)
		assert.Error(t, err)
		_, err = dag.NewTimeslots(3, 16*time.Nanosecond, genesis)
		assert.Error(t, err)
	})
}
