package dag

import (
	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/crypto/hash"
)

// Genesis creates the parentless genesis blocks, one per thread at period 0.
// They are final from the start and never go through validation.
func Genesis(threadCount uint8, sk *crypto.PrivateKey) []*Block {
	blocks := make([]*Block, 0, threadCount)
	for thread := uint8(0); thread < threadCount; thread++ {
		header := Header{
			Slot:                Slot{Period: 0, Thread: thread},
			OperationMerkleRoot: MerkleRoot(nil),
		}
		if sk != nil {
			header.Creator = sk.PublicKey()
			header.Sign(sk)
		}
		blocks = append(blocks, &Block{Header: &header})
	}
	return blocks
}

// Block includes the header and the operations it carries.
type Block struct {
	Header     *Header
	Operations []Operation
}

// SetOperations sets the operations and updates the merkle root of the header.
func (b *Block) SetOperations(ops []Operation) {
	b.Operations = ops
	b.Header.OperationMerkleRoot = MerkleRoot(ops)
}

// Valid checks that the header commits to the operations of the block.
func (b Block) Valid() bool {
	return b.Header.OperationMerkleRoot == MerkleRoot(b.Operations)
}

// ID returns the ID of the header.
func (b Block) ID() Identifier {
	return b.Header.ID()
}

// OperationIDs returns the ids of the operations of the block, in block order.
func (b Block) OperationIDs() IdentifierList {
	ids := make(IdentifierList, 0, len(b.Operations))
	for _, op := range b.Operations {
		ids = append(ids, op.ID())
	}
	return ids
}

// MerkleRoot commits to an ordered list of operations: the hash of their concatenated ids.
func MerkleRoot(ops []Operation) Identifier {
	parts := make([][]byte, 0, len(ops))
	for _, op := range ops {
		id := op.ID()
		parts = append(parts, id[:])
	}
	return Identifier(hash.Sum256(parts...))
}
