package crypto

import "errors"

var (
	// ErrInvalidKeySize is returned when a key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidSalt is returned when a salt is not SaltSize bytes.
	ErrInvalidSalt = errors.New("invalid salt")

	// ErrWeakKDF is returned when the KDF work factor is below MinIterations.
	ErrWeakKDF = errors.New("kdf work factor below minimum")

	// ErrInvalidCredential is returned when a credential is not a short
	// numeric string.
	ErrInvalidCredential = errors.New("credential must be 4 to 12 digits")

	// ErrIntegrityFailure is returned whenever authenticated decryption fails.
	// It never says which part of the input was altered.
	ErrIntegrityFailure = errors.New("integrity check failed")

	// ErrKeyUnwrap is returned alongside ErrIntegrityFailure when a wrapped
	// file key fails to authenticate under the given master key.
	ErrKeyUnwrap = errors.New("file key cannot be unwrapped")

	// ErrTamperedDocument is returned alongside ErrIntegrityFailure when the
	// file key unwrapped but the document body did not authenticate.
	ErrTamperedDocument = errors.New("document corrupted or tampered")
)
