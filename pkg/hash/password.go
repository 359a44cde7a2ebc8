// Package hash handles account passwords for the identity provider. Vault
// credentials never pass through here.
package hash

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12

	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d bytes", MaxPasswordLength)
)

var (
	dummyOnce sync.Once
	dummyHash []byte
)

func Hash(password string) (string, error) {
	switch {
	case len(password) < MinPasswordLength:
		return "", ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return "", ErrPasswordTooLong
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedBytes), nil
}

func Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// CompareDummy spends the same work as Compare against a fixed hash and
// always fails. Sign-in calls it for unknown emails so response time does not
// reveal which accounts exist.
func CompareDummy(password string) error {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("vaultx-dummy-password"), bcryptCost)
	})
	if err := bcrypt.CompareHashAndPassword(dummyHash, []byte(password)); err == nil {
		return errors.New("dummy hash matched")
	}
	return bcrypt.ErrMismatchedHashAndPassword
}
