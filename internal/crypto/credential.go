package crypto

import "crypto/subtle"

// ValidateCredential checks that credential is a short numeric string.
func ValidateCredential(credential []byte) error {
	if len(credential) < MinCredentialLength || len(credential) > MaxCredentialLength {
		return ErrInvalidCredential
	}
	for _, c := range credential {
		if c < '0' || c > '9' {
			return ErrInvalidCredential
		}
	}
	return nil
}

// HashCredential computes the verification commitment for credential.
// salt must differ from the master key salt.
func (p KDFParams) HashCredential(credential, salt []byte) ([]byte, error) {
	return p.derive(credential, salt, labelCommitment)
}

// VerifyCredential reports whether credential matches commitment.
//
// It never returns an error: a malformed salt or commitment is a mismatch.
// The full derivation runs in every case and the comparison does not exit
// early, so the running time does not depend on the credential value or on
// how close it came to matching.
func (p KDFParams) VerifyCredential(credential, salt, commitment []byte) bool {
	wellFormed := subtle.ConstantTimeEq(int32(len(salt)), SaltSize) &
		subtle.ConstantTimeEq(int32(len(commitment)), KeySize)

	s := make([]byte, SaltSize)
	subtle.ConstantTimeCopy(wellFormed, s, pad(salt, SaltSize))

	candidate, err := p.derive(credential, s, labelCommitment)
	if err != nil {
		return false
	}
	defer Wipe(candidate)

	match := subtle.ConstantTimeCompare(candidate, pad(commitment, KeySize))
	return match&wellFormed == 1
}

// pad returns b truncated or zero-extended to n bytes.
func pad(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, b)
	return out
}
