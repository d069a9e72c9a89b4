package unittest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/crypto"
	"github.com/blockclique/blockclique-go/model/dag"
)

// PrivateKeyFixture generates a fresh signing key.
func PrivateKeyFixture(t testing.TB) *crypto.PrivateKey {
	sk, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return sk
}

// PrivateKeyFixtures generates n fresh signing keys.
func PrivateKeyFixtures(t testing.TB, n int) []*crypto.PrivateKey {
	keys := make([]*crypto.PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, PrivateKeyFixture(t))
	}
	return keys
}

// AddressOf returns the account address of a key.
func AddressOf(sk *crypto.PrivateKey) dag.Address {
	return dag.AddressFromPublicKey(sk.PublicKey())
}
