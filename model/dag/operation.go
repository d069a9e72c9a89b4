package dag

import (
	"fmt"

	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/crypto/hash"
	"github.com/blockclique/blockclique-go/model/encoding"
)

// Operation is a signed state change submitted by an account. The graph only
// looks at the sender, nonce and expiry: the payload is opaque to consensus.
type Operation struct {
	Sender       crypto.PublicKey
	Nonce        uint64
	Fee          uint64
	ExpirePeriod uint64
	Payload      []byte
	Signature    crypto.Signature
}

// OperationKey identifies the resource an operation consumes. Two operations
// with the same key conflict: at most one of them may ever be final.
type OperationKey struct {
	Sender Address
	Nonce  uint64
}

func (k OperationKey) String() string {
	return fmt.Sprintf("%s/%d", k.Sender, k.Nonce)
}

// Body returns the signed content of the operation.
func (o Operation) Body() interface{} {
	return struct {
		Sender       crypto.PublicKey
		Nonce        uint64
		Fee          uint64
		ExpirePeriod uint64
		Payload      []byte
	}{
		Sender:       o.Sender,
		Nonce:        o.Nonce,
		Fee:          o.Fee,
		ExpirePeriod: o.ExpirePeriod,
		Payload:      o.Payload,
	}
}

// ID returns the hash of the unsigned operation content.
func (o Operation) ID() Identifier {
	return MakeID(o.Body())
}

// SenderAddress returns the address of the operation sender.
func (o Operation) SenderAddress() Address {
	return AddressFromPublicKey(o.Sender)
}

// Key returns the conflict key of the operation.
func (o Operation) Key() OperationKey {
	return OperationKey{Sender: o.SenderAddress(), Nonce: o.Nonce}
}

// ValidAt checks whether the operation may be included in a block of the given period.
func (o Operation) ValidAt(period uint64, validityPeriods uint64) bool {
	if o.ExpirePeriod < period {
		return false
	}
	return o.ExpirePeriod-period <= validityPeriods
}

// Sign sets the signature of the operation.
func (o *Operation) Sign(sk *crypto.PrivateKey) {
	o.Signature = sk.Sign(signingDigest(encoding.OperationTag, o.ID()))
}

// VerifySignature checks the sender signature.
func (o Operation) VerifySignature() (bool, error) {
	return o.Sender.Verify(o.Signature, signingDigest(encoding.OperationTag, o.ID()))
}

// AddressFromPublicKey derives the account address of a key.
func AddressFromPublicKey(pk crypto.PublicKey) Address {
	return Address(hash.Sum256(pk[:]))
}

func signingDigest(tag string, id Identifier) []byte {
	digest := hash.Sum256([]byte(tag), id[:])
	return digest[:]
}
