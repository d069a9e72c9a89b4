package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/model/dag"
)

func TestStatusTransitions(t *testing.T) {
	valid := []struct {
		from, to dag.BlockStatus
	}{
		{dag.Unknown, dag.Incoming},
		{dag.Unknown, dag.Final},
		{dag.Incoming, dag.WaitingForSlot},
		{dag.Incoming, dag.WaitingForDependencies},
		{dag.Incoming, dag.Active},
		{dag.WaitingForSlot, dag.WaitingForDependencies},
		{dag.WaitingForSlot, dag.Active},
		{dag.WaitingForDependencies, dag.Active},
		{dag.WaitingForDependencies, dag.Discarded(dag.ReasonTimeout, "")},
		{dag.Active, dag.Final},
		{dag.Active, dag.Discarded(dag.ReasonSupersededByFinal, "")},
	}
	for _, c := range valid {
		next, err := c.from.Transition(c.to)
		require.NoError(t, err, "%s -> %s", c.from, c.to)
		assert.Equal(t, c.to, next)
	}

	invalid := []struct {
		from, to dag.BlockStatus
	}{
		{dag.Final, dag.Active},
		{dag.Final, dag.Discarded(dag.ReasonStale, "")},
		{dag.Discarded(dag.ReasonStale, ""), dag.Active},
		{dag.Active, dag.WaitingForDependencies},
		{dag.WaitingForDependencies, dag.WaitingForSlot},
		{dag.Incoming, dag.Final},
		{dag.Active, dag.Discarded(dag.ReasonNone, "")},
	}
	for _, c := range invalid {
		next, err := c.from.Transition(c.to)
		assert.ErrorIs(t, err, dag.ErrInvalidTransition, "%s -> %s", c.from, c.to)
		assert.Equal(t, c.from, next)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "active", dag.Active.String())
	assert.Equal(t, "discarded(timeout)", dag.Discarded(dag.ReasonTimeout, "").String())
	assert.Equal(t, "discarded(invalid: bad root)", dag.Discarded(dag.ReasonInvalid, "bad root").String())
	assert.True(t, dag.Final.IsTerminal())
	assert.True(t, dag.WaitingForSlot.IsPending())
	assert.False(t, dag.Active.IsPending())
}
