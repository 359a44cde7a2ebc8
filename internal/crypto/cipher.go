package crypto

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealedBox is the output of Seal: the nonce it drew and ciphertext||tag.
type SealedBox struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts and authenticates plaintext under key, binding aad.
// A fresh random nonce is generated for every call.
func Seal(key, plaintext, aad []byte) (SealedBox, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return SealedBox{}, err
	}

	nonce, err := GenerateRandomBytes(NonceSize)
	if err != nil {
		return SealedBox{}, err
	}

	return SealedBox{
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, aad),
	}, nil
}

// Open authenticates and decrypts box under key. Any alteration of the nonce,
// ciphertext, tag or aad yields ErrIntegrityFailure and no plaintext.
func Open(key []byte, box SealedBox, aad []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(box.Nonce) != NonceSize || len(box.Ciphertext) < TagSize {
		return nil, ErrIntegrityFailure
	}

	plaintext, err := aead.Open(nil, box.Nonce, box.Ciphertext, aad)
	if err != nil {
		return nil, ErrIntegrityFailure
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	return chacha20poly1305.NewX(key)
}
