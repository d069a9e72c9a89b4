package unittest

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/model/dag"
)

func IdentifierFixture() dag.Identifier {
	var id dag.Identifier
	_, _ = rand.Read(id[:])
	return id
}

func IdentifierListFixture(n int) dag.IdentifierList {
	list := make(dag.IdentifierList, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, IdentifierFixture())
	}
	return list
}

// OperationFixture creates an operation signed by sk.
func OperationFixture(sk *crypto.PrivateKey, nonce uint64, expirePeriod uint64) dag.Operation {
	op := dag.Operation{
		Sender:       sk.PublicKey(),
		Nonce:        nonce,
		Fee:          1,
		ExpirePeriod: expirePeriod,
		Payload:      []byte{byte(nonce)},
	}
	op.Sign(sk)
	return op
}

// EndorsementFixture creates an endorsement of a block, signed by sk.
func EndorsementFixture(sk *crypto.PrivateKey, slot dag.Slot, index uint32, endorsed dag.Identifier) dag.Endorsement {
	e := dag.Endorsement{
		Slot:          slot,
		Index:         index,
		EndorsedBlock: endorsed,
		Endorser:      sk.PublicKey(),
	}
	e.Sign(sk)
	return e
}

// BlockFixture creates a block of the slot on top of parents, signed by sk.
func BlockFixture(sk *crypto.PrivateKey, slot dag.Slot, parents []dag.Identifier, options ...func(*dag.Block)) *dag.Block {
	header := dag.Header{
		Slot:    slot,
		Parents: append([]dag.Identifier(nil), parents...),
		Creator: sk.PublicKey(),
	}
	block := &dag.Block{Header: &header}
	block.SetOperations(nil)
	for _, apply := range options {
		apply(block)
	}
	header.Sign(sk)
	return block
}

// WithOperations sets the operations of a block fixture.
func WithOperations(ops ...dag.Operation) func(*dag.Block) {
	return func(block *dag.Block) {
		block.SetOperations(ops)
	}
}

// WithEndorsements sets the endorsements of a block fixture.
func WithEndorsements(endorsements ...dag.Endorsement) func(*dag.Block) {
	return func(block *dag.Block) {
		block.Header.Endorsements = endorsements
	}
}

// WithPayloadNonce makes otherwise identical block fixtures distinct.
func WithPayloadNonce(sk *crypto.PrivateKey, nonce uint64, expirePeriod uint64) func(*dag.Block) {
	return WithOperations(OperationFixture(sk, nonce, expirePeriod))
}

// GenesisFixture creates the genesis blocks of a graph.
func GenesisFixture(t testing.TB, threadCount uint8) []*dag.Block {
	genesis := dag.Genesis(threadCount, PrivateKeyFixture(t))
	require.Len(t, genesis, int(threadCount))
	return genesis
}

// IDsOf returns the ids of blocks.
func IDsOf(blocks ...*dag.Block) dag.IdentifierList {
	ids := make(dag.IdentifierList, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.ID())
	}
	return ids
}
