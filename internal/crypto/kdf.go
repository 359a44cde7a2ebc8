package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// KDFParams holds the PBKDF2 work factor. It is persisted implicitly through
// configuration; salts live in the credential record.
type KDFParams struct {
	Iterations int
}

// DefaultKDFParams returns the default work factor.
func DefaultKDFParams() KDFParams {
	return KDFParams{Iterations: DefaultIterations}
}

// NewKDFParams validates a configured work factor. The factor can only be
// raised above MinIterations, never lowered below it.
func NewKDFParams(iterations int) (KDFParams, error) {
	if iterations < MinIterations {
		return KDFParams{}, fmt.Errorf("%w: got %d, want >= %d", ErrWeakKDF, iterations, MinIterations)
	}
	return KDFParams{Iterations: iterations}, nil
}

// DeriveMasterKey derives the 256-bit master key from the primary credential.
// The result is deterministic for a given credential, salt and work factor.
func (p KDFParams) DeriveMasterKey(credential, salt []byte) ([]byte, error) {
	return p.derive(credential, salt, labelMasterKey)
}

// DeriveDecoyKey derives the key protecting the decoy collection from the
// duress credential. It is independent of the master key.
func (p KDFParams) DeriveDecoyKey(credential, salt []byte) ([]byte, error) {
	return p.derive(credential, salt, labelDecoyKey)
}

// derive stretches the credential with PBKDF2 and expands the result under
// label with HKDF. Intermediate material is wiped before returning.
func (p KDFParams) derive(credential, salt []byte, label string) ([]byte, error) {
	if p.Iterations < MinIterations {
		return nil, ErrWeakKDF
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSalt, len(salt), SaltSize)
	}

	stretched := pbkdf2.Key(credential, salt, p.Iterations, KeySize, sha256.New)
	defer Wipe(stretched)

	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, stretched, []byte(label)), out); err != nil {
		Wipe(out)
		return nil, fmt.Errorf("failed to expand key: %w", err)
	}
	return out, nil
}
