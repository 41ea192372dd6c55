package seal

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelab/memvault/pkg/errors"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "short text", plaintext: []byte("hello")},
		{name: "empty payload", plaintext: []byte{}},
		{name: "binary payload", plaintext: []byte{0x00, 0xff, 0x10, 0x80}},
		{name: "larger payload", plaintext: bytes.Repeat([]byte("memvault "), 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Encrypt(key, tt.plaintext)
			require.NoError(t, err)

			plaintext, err := Decrypt(key, blob)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, plaintext)
		})
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key1 := testKey(t)
	key2 := testKey(t)

	blob, err := Encrypt(key1, []byte("sensitive"))
	require.NoError(t, err)

	plaintext, err := Decrypt(key2, blob)
	assert.Nil(t, plaintext)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestDecryptTamperedBlobFails(t *testing.T) {
	key := testKey(t)

	blob, err := Encrypt(key, []byte("sensitive"))
	require.NoError(t, err)

	// Flip one ciphertext bit.
	tampered := make(Blob, len(blob))
	copy(tampered, blob)
	tampered[len(tampered)-1] ^= 0x01

	plaintext, err := Decrypt(key, tampered)
	assert.Nil(t, plaintext)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestDecryptTruncatedBlobFails(t *testing.T) {
	key := testKey(t)

	plaintext, err := Decrypt(key, Blob{0x01, 0x02})
	assert.Nil(t, plaintext)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestNoncesAreFreshPerCall(t *testing.T) {
	key := testKey(t)

	blob1, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	blob2, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)

	// Same key and plaintext must still produce distinct blobs.
	assert.NotEqual(t, blob1, blob2)
	assert.NotEqual(t, blob1[:NonceSize], blob2[:NonceSize])
}

func TestEncryptRejectsBadKey(t *testing.T) {
	_, err := Encrypt([]byte("short"), []byte("plaintext"))
	assert.Error(t, err)
}
