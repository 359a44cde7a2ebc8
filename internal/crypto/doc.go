// Package crypto implements the key hierarchy of the vault.
//
// # Key Hierarchy
//
// The hierarchy is a strict chain, each link produced only from the previous one:
//
//	credential + salt  --PBKDF2/HKDF-->  master key
//	master key         --XChaCha20-Poly1305-->  wrapped FEK (one per document)
//	FEK                --XChaCha20-Poly1305-->  document body
//
// A [FileKey] can only be obtained from [GenerateFileKey] or [UnwrapFileKey],
// and a document body can only be opened through a FileKey, so a body can
// never be decrypted without the wrap layer having authenticated first.
//
// # Derivations
//
// Credential commitments, master keys and decoy keys all use PBKDF2-HMAC-SHA256
// with at least [MinIterations] rounds, followed by an HKDF-SHA256 expansion
// under a per-purpose label. Commitments and master keys use different salts
// as well as different labels, so observing a commitment reveals nothing
// about the master key.
//
// # Authenticated Encryption
//
// [Seal] always draws a fresh 192-bit nonce from crypto/rand and returns it in
// the [SealedBox]; callers cannot supply a nonce. [Open] fails closed with
// [ErrIntegrityFailure] whatever part of the box was altered.
package crypto
