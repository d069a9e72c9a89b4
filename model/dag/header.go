package dag

import (
	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/model/encoding"
)

// Header contains all meta-data for a block. Parents holds exactly one block
// per thread, indexed by thread, except for genesis blocks which have none.
type Header struct {
	Slot                Slot
	Parents             []Identifier
	OperationMerkleRoot Identifier
	Endorsements        []Endorsement
	Creator             crypto.PublicKey
	Signature           crypto.Signature
}

// Body returns the immutable part of the block header.
func (h Header) Body() interface{} {
	return struct {
		Slot                Slot
		Parents             []Identifier
		OperationMerkleRoot Identifier
		Endorsements        []Endorsement
		Creator             crypto.PublicKey
	}{
		Slot:                h.Slot,
		Parents:             h.Parents,
		OperationMerkleRoot: h.OperationMerkleRoot,
		Endorsements:        h.Endorsements,
		Creator:             h.Creator,
	}
}

// ID returns a unique ID to singularly identify the header and its block
// within the graph.
func (h Header) ID() Identifier {
	return MakeID(h.Body())
}

// CreatorAddress returns the address of the block creator.
func (h Header) CreatorAddress() Address {
	return AddressFromPublicKey(h.Creator)
}

// IsGenesis returns true for the parentless blocks of period 0.
func (h Header) IsGenesis() bool {
	return h.Slot.Period == 0 && len(h.Parents) == 0
}

// ParentInThread returns the parent of the header in the given thread.
func (h Header) ParentInThread(thread uint8) (Identifier, bool) {
	if int(thread) >= len(h.Parents) {
		return ZeroID, false
	}
	return h.Parents[thread], true
}

// Sign sets the creator signature of the header.
func (h *Header) Sign(sk *crypto.PrivateKey) {
	h.Signature = sk.Sign(signingDigest(encoding.BlockHeaderTag, h.ID()))
}

// VerifySignature checks the creator signature.
func (h Header) VerifySignature() (bool, error) {
	return h.Creator.Verify(h.Signature, signingDigest(encoding.BlockHeaderTag, h.ID()))
}
