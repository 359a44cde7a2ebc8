package crypto

import "golang.org/x/crypto/chacha20poly1305"

const (
	// KeySize is the size of every symmetric key in the hierarchy (256 bits).
	KeySize = chacha20poly1305.KeySize
	// SaltSize is the size of KDF and commitment salts (128 bits).
	SaltSize = 16
	// NonceSize is the size of an XChaCha20-Poly1305 nonce.
	NonceSize = chacha20poly1305.NonceSizeX
	// TagSize is the size of the Poly1305 authentication tag.
	TagSize = chacha20poly1305.Overhead

	// MinIterations is the lowest PBKDF2 work factor accepted.
	MinIterations = 100_000
	// DefaultIterations is used when no work factor is configured.
	DefaultIterations = 210_000

	// MinCredentialLength and MaxCredentialLength bound a numeric credential.
	MinCredentialLength = 4
	MaxCredentialLength = 12
)

// Domain separation labels. Changing any of them invalidates existing vaults.
const (
	labelMasterKey  = "vaultx:master-key:v1"
	labelDecoyKey   = "vaultx:decoy-key:v1"
	labelCommitment = "vaultx:credential-commitment:v1"

	aadWrappedKey   = "vaultx:fek:v1"
	aadDocumentBody = "vaultx:body:v1"
)

// CipherSuite names the algorithms used, for display and diagnostics.
const CipherSuite = "PBKDF2-HMAC-SHA256:HKDF-SHA256:XChaCha20-Poly1305"
