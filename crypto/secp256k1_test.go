package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockclique/blockclique-go/crypto/hash"
)

func TestSignVerify(t *testing.T) {
	sk, err := GeneratePrivateKey()
	require.NoError(t, err)
	pk := sk.PublicKey()

	digest := hash.Sum256([]byte("block header"))
	sig := sk.Sign(digest[:])

	t.Run("valid signature", func(t *testing.T) {
		ok, err := pk.Verify(sig, digest[:])
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("signatures are deterministic", func(t *testing.T) {
		assert.Equal(t, sig, sk.Sign(digest[:]))
	})

	t.Run("other digest", func(t *testing.T) {
		other := hash.Sum256([]byte("other header"))
		ok, err := pk.Verify(sig, other[:])
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other key", func(t *testing.T) {
		sk2, err := GeneratePrivateKey()
		require.NoError(t, err)
		ok, err := sk2.PublicKey().Verify(sig, digest[:])
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed signature", func(t *testing.T) {
		_, err := pk.Verify(Signature{0x01, 0x02}, digest[:])
		require.Error(t, err)
		assert.True(t, IsInvalidInputsError(err))
	})

	t.Run("malformed key", func(t *testing.T) {
		var bad PublicKey
		_, err := bad.Verify(sig, digest[:])
		require.Error(t, err)
		assert.True(t, IsInvalidInputsError(err))
	})
}

func TestDecodePrivateKey(t *testing.T) {
	sk, err := GeneratePrivateKey()
	require.NoError(t, err)

	decoded, err := DecodePrivateKey(sk.Encode())
	require.NoError(t, err)
	assert.Equal(t, sk.PublicKey(), decoded.PublicKey())

	_, err = DecodePrivateKey([]byte{1, 2, 3})
	assert.True(t, IsInvalidInputsError(err))

	_, err = DecodePrivateKeyHex("zz")
	assert.True(t, IsInvalidInputsError(err))
}
