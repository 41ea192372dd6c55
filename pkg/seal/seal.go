// Package seal provides authenticated encryption for stored payloads.
//
// Blobs are AES-256-GCM sealed with a fresh random nonce per call and
// packed as nonce||ciphertext||tag. Decryption fails closed: a tag that
// does not verify surfaces errors.ErrAuthentication, never corrupted
// plaintext. Tag failure is also how a wrong key is detected; there is
// no separate "corrupted" signal.
package seal

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/kestrelab/memvault/pkg/errors"
)

// NonceSize is the GCM nonce length prepended to every blob.
const NonceSize = 12

// Blob is an opaque encrypted payload: nonce||ciphertext||tag.
type Blob []byte

// Encrypt seals plaintext under key with a fresh random nonce.
func Encrypt(key, plaintext []byte) (Blob, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}

	// Seal appends ciphertext+tag to the nonce slice, producing the
	// packed blob layout in one allocation.
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. It returns
// errors.ErrAuthentication when the tag does not verify, the key is
// wrong, or the blob is too short to contain a nonce.
func Decrypt(key []byte, blob Blob) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(blob) < aead.NonceSize() {
		return nil, errors.Wrap(errors.ErrAuthentication, "blob truncated")
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.ErrAuthentication
	}
	return plaintext, nil
}

func newAEAD(key []byte) (stdcipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "invalid encryption key")
	}
	return stdcipher.NewGCM(block)
}
