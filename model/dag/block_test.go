package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/model/dag"
)

func TestHeaderID(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	genesis := dag.Genesis(2, sk)
	require.Len(t, genesis, 2)
	assert.NotEqual(t, genesis[0].ID(), genesis[1].ID())

	header := dag.Header{
		Slot:    dag.NewSlot(1, 0),
		Parents: []dag.Identifier{genesis[0].ID(), genesis[1].ID()},
		Creator: sk.PublicKey(),
	}
	block := &dag.Block{Header: &header}
	block.SetOperations(nil)
	header.Sign(sk)

	t.Run("signature does not change the id", func(t *testing.T) {
		unsigned := header
		unsigned.Signature = nil
		assert.Equal(t, unsigned.ID(), header.ID())
	})

	t.Run("signature verifies", func(t *testing.T) {
		ok, err := header.VerifySignature()
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("content changes the id", func(t *testing.T) {
		other := header
		other.Slot = dag.NewSlot(2, 0)
		assert.NotEqual(t, header.ID(), other.ID())

		ok, err := other.VerifySignature()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("identifier text form", func(t *testing.T) {
		id := header.ID()
		parsed, err := dag.IdentifierFromString(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

func TestOperations(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	op := dag.Operation{Sender: sk.PublicKey(), Nonce: 7, Fee: 1, ExpirePeriod: 10, Payload: []byte("transfer")}
	op.Sign(sk)

	ok, err := op.VerifySignature()
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, dag.OperationKey{Sender: dag.AddressFromPublicKey(sk.PublicKey()), Nonce: 7}, op.Key())

	assert.True(t, op.ValidAt(5, 10))
	assert.True(t, op.ValidAt(10, 10))
	assert.False(t, op.ValidAt(11, 10))
	assert.False(t, op.ValidAt(5, 2))

	header := dag.Header{Slot: dag.NewSlot(1, 0)}
	block := &dag.Block{Header: &header}
	block.SetOperations([]dag.Operation{op})
	assert.True(t, block.Valid())

	block.Operations = nil
	assert.False(t, block.Valid())
}
