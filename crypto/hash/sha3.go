package hash

import (
	"bytes"
	"hash"

	"golang.org/x/crypto/sha3"
)

// HashLen is the length of a SHA3-256 digest in bytes.
const HashLen = 32

// Hash is the output of a hasher.
type Hash []byte

// Equal checks if a hash is equal to a given hash
func (h Hash) Equal(input Hash) bool {
	return bytes.Equal(h, input)
}

// Hasher wraps a SHA3-256 state.
type Hasher struct {
	hash.Hash
}

// NewSHA3_256 returns a new instance of SHA3-256 hasher
func NewSHA3_256() *Hasher {
	return &Hasher{Hash: sha3.New256()}
}

// ComputeHash calculates and returns the SHA3-256 output of input byte array.
// It does not reset the state to allow further writing.
func (s *Hasher) ComputeHash(data []byte) Hash {
	s.Reset()
	_, _ = s.Write(data)
	return s.Sum(nil)
}

// SumHash returns the SHA3-256 output of everything written so far.
func (s *Hasher) SumHash() Hash {
	return s.Sum(nil)
}

// Sum256 is a shortcut returning the fixed size SHA3-256 digest of the concatenated inputs.
func Sum256(data ...[]byte) [HashLen]byte {
	h := sha3.New256()
	for _, d := range data {
		_, _ = h.Write(d)
	}
	var out [HashLen]byte
	copy(out[:], h.Sum(nil))
	return out
}
