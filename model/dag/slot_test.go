package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/blockclique/blockclique-go/model/dag"
)

func TestSlotOrder(t *testing.T) {
	assert.True(t, dag.NewSlot(1, 5).Before(dag.NewSlot(2, 0)))
	assert.True(t, dag.NewSlot(2, 0).Before(dag.NewSlot(2, 1)))
	assert.False(t, dag.NewSlot(2, 1).Before(dag.NewSlot(2, 1)))
	assert.Equal(t, 0, dag.NewSlot(3, 3).Compare(dag.NewSlot(3, 3)))
	assert.Equal(t, 1, dag.NewSlot(3, 0).Compare(dag.NewSlot(2, 31)))
}

func TestSlotNextPrev(t *testing.T) {
	assert.Equal(t, dag.NewSlot(0, 1), dag.NewSlot(0, 0).Next(2))
	assert.Equal(t, dag.NewSlot(1, 0), dag.NewSlot(0, 1).Next(2))

	prev, ok := dag.NewSlot(1, 0).Prev(2)
	assert.True(t, ok)
	assert.Equal(t, dag.NewSlot(0, 1), prev)

	_, ok = dag.NewSlot(0, 0).Prev(2)
	assert.False(t, ok)
}

// TestSlotIndex checks that slot arithmetic and slot order agree for any thread count.
func TestSlotIndex(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		threads := uint8(rapid.IntRange(1, 64).Draw(t, "threads"))
		a := dag.NewSlot(rapid.Uint64Range(0, 1<<40).Draw(t, "periodA"), uint8(rapid.IntRange(0, int(threads)-1).Draw(t, "threadA")))
		b := dag.NewSlot(rapid.Uint64Range(0, 1<<40).Draw(t, "periodB"), uint8(rapid.IntRange(0, int(threads)-1).Draw(t, "threadB")))

		if a.Before(b) != (a.Index(threads) < b.Index(threads)) {
			t.Fatalf("order mismatch for %v and %v", a, b)
		}
		if dag.SlotFromIndex(a.Index(threads), threads) != a {
			t.Fatalf("index round trip failed for %v", a)
		}
		if next := a.Next(threads); next.Index(threads) != a.Index(threads)+1 {
			t.Fatalf("next of %v is %v", a, next)
		}
	})
}
