package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey is the compressed form of a secp256k1 public key. Using a fixed size
// array keeps keys comparable and usable as map keys.
type PublicKey [PubKeyLenECDSA_SECp256k1]byte

// GeneratePrivateKey generates a fresh key from the system randomness source.
func GeneratePrivateKey() (*PrivateKey, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate secp256k1 key: %w", err)
	}
	return &PrivateKey{key: sk}, nil
}

// DecodePrivateKey decodes a raw 32 bytes scalar into a private key.
func DecodePrivateKey(b []byte) (*PrivateKey, error) {
	if len(b) != PrKeyLenECDSA_SECp256k1 {
		return nil, invalidInputsErrorf("the input length has to be %d, got %d", PrKeyLenECDSA_SECp256k1, len(b))
	}
	sk, _ := btcec.PrivKeyFromBytes(b)
	return &PrivateKey{key: sk}, nil
}

// DecodePrivateKeyHex decodes a hex encoded private key.
func DecodePrivateKeyHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, invalidInputsErrorf("private key is not valid hex: %v", err)
	}
	return DecodePrivateKey(b)
}

// Algorithm returns the signing algorithm of the key.
func (sk *PrivateKey) Algorithm() SigningAlgorithm {
	return ECDSA_SECp256k1
}

// Encode returns the raw scalar.
func (sk *PrivateKey) Encode() []byte {
	return sk.key.Serialize()
}

// PublicKey returns the compressed public key matching sk.
func (sk *PrivateKey) PublicKey() PublicKey {
	var pk PublicKey
	copy(pk[:], sk.key.PubKey().SerializeCompressed())
	return pk
}

// Sign signs a 32 bytes digest. Signatures are deterministic (RFC6979).
func (sk *PrivateKey) Sign(digest []byte) Signature {
	return ecdsa.Sign(sk.key, digest).Serialize()
}

// Verify checks sig against the digest. A malformed key or signature results
// in an invalidInputsError, a well-formed but wrong signature returns false.
func (pk PublicKey) Verify(sig Signature, digest []byte) (bool, error) {
	key, err := btcec.ParsePubKey(pk[:])
	if err != nil {
		return false, invalidInputsErrorf("invalid public key: %v", err)
	}
	s, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, invalidInputsErrorf("invalid signature encoding: %v", err)
	}
	return s.Verify(digest, key), nil
}

// String returns the hex representation of the key.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}
