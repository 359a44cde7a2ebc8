package domain

import "time"

// CredentialRecord is the only persisted authentication state of a vault.
// It never holds a plaintext credential or a derived key.
type CredentialRecord struct {
	UserID                string    `json:"user_id"`
	PrimaryHash           []byte    `json:"primary_hash"`
	PrimarySalt           []byte    `json:"primary_salt"`
	DuressHash            []byte    `json:"duress_hash"`
	DuressSalt            []byte    `json:"duress_salt"`
	MasterKeySalt         []byte    `json:"master_key_salt"`
	DecoyKeySalt          []byte    `json:"decoy_key_salt"`
	KDFIterations         int       `json:"kdf_iterations"`
	BiometricEnabled      bool      `json:"biometric_enabled"`
	DecoyBiometricEnabled bool      `json:"decoy_biometric_enabled"`
	SetupComplete         bool      `json:"setup_complete"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Clone returns a deep copy so cached records are never shared.
func (r *CredentialRecord) Clone() *CredentialRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.PrimaryHash = append([]byte(nil), r.PrimaryHash...)
	c.PrimarySalt = append([]byte(nil), r.PrimarySalt...)
	c.DuressHash = append([]byte(nil), r.DuressHash...)
	c.DuressSalt = append([]byte(nil), r.DuressSalt...)
	c.MasterKeySalt = append([]byte(nil), r.MasterKeySalt...)
	c.DecoyKeySalt = append([]byte(nil), r.DecoyKeySalt...)
	return &c
}

// KeySalt returns the salt of the key protecting collection c. Records
// written before the decoy key had its own salt fall back to the master key
// salt.
func (r *CredentialRecord) KeySalt(c Collection) []byte {
	if c == CollectionDecoy && len(r.DecoyKeySalt) > 0 {
		return r.DecoyKeySalt
	}
	return r.MasterKeySalt
}

// Commitments returns the salt and hash of the credential that opens
// collection c, followed by those of the other credential.
func (r *CredentialRecord) Commitments(c Collection) (ownSalt, ownHash, otherSalt, otherHash []byte) {
	if c == CollectionDecoy {
		return r.DuressSalt, r.DuressHash, r.PrimarySalt, r.PrimaryHash
	}
	return r.PrimarySalt, r.PrimaryHash, r.DuressSalt, r.DuressHash
}

// SetCredential replaces the commitment and key salt of the credential that
// opens collection c.
func (r *CredentialRecord) SetCredential(c Collection, salt, hash, keySalt []byte) {
	if c == CollectionDecoy {
		r.DuressSalt, r.DuressHash, r.DecoyKeySalt = salt, hash, keySalt
		return
	}
	r.PrimarySalt, r.PrimaryHash, r.MasterKeySalt = salt, hash, keySalt
}

// Biometric reports the biometric flag of collection c.
func (r *CredentialRecord) Biometric(c Collection) bool {
	if c == CollectionDecoy {
		return r.DecoyBiometricEnabled
	}
	return r.BiometricEnabled
}

// SetBiometric sets the biometric flag of collection c.
func (r *CredentialRecord) SetBiometric(c Collection, enabled bool) {
	if c == CollectionDecoy {
		r.DecoyBiometricEnabled = enabled
		return
	}
	r.BiometricEnabled = enabled
}
