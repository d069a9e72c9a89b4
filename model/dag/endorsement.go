package dag

import (
	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/model/encoding"
)

// Endorsement is a vote for one of the parents of the block carrying it. Every
// distinct endorser adds their stake to the weight of the block.
type Endorsement struct {
	Slot          Slot
	Index         uint32
	EndorsedBlock Identifier
	Endorser      crypto.PublicKey
	Signature     crypto.Signature
}

// Body returns the signed content of the endorsement.
func (e Endorsement) Body() interface{} {
	return struct {
		Slot          Slot
		Index         uint32
		EndorsedBlock Identifier
		Endorser      crypto.PublicKey
	}{
		Slot:          e.Slot,
		Index:         e.Index,
		EndorsedBlock: e.EndorsedBlock,
		Endorser:      e.Endorser,
	}
}

// ID returns the hash of the unsigned endorsement content.
func (e Endorsement) ID() Identifier {
	return MakeID(e.Body())
}

// EndorserAddress returns the address of the endorser.
func (e Endorsement) EndorserAddress() Address {
	return AddressFromPublicKey(e.Endorser)
}

// Sign sets the signature of the endorsement.
func (e *Endorsement) Sign(sk *crypto.PrivateKey) {
	e.Signature = sk.Sign(signingDigest(encoding.EndorsementTag, e.ID()))
}

// VerifySignature checks the endorser signature.
func (e Endorsement) VerifySignature() (bool, error) {
	return e.Endorser.Verify(e.Signature, signingDigest(encoding.EndorsementTag, e.ID()))
}
