package session

import "errors"

var (
	// ErrStateViolation is returned when an operation is attempted in a state
	// that does not permit it. Correct callers never see it.
	ErrStateViolation = errors.New("operation not permitted in current session state")

	// ErrAuthenticationFailed is returned when a credential matches neither
	// commitment. It carries no hint of which one came closer.
	ErrAuthenticationFailed = errors.New("cannot unlock")

	// ErrUnlockInProgress is returned when an unlock or rekey is already
	// running on this session.
	ErrUnlockInProgress = errors.New("unlock already in progress")

	// ErrAlreadySetUp is returned by Setup when a completed record exists.
	ErrAlreadySetUp = errors.New("vault already set up")

	// ErrCredentialsMustDiffer is returned when the primary and duress
	// credentials would be equal.
	ErrCredentialsMustDiffer = errors.New("primary and duress credentials must differ")

	// ErrCorruptRecord is returned when the stored credential record cannot
	// be decoded.
	ErrCorruptRecord = errors.New("credential record corrupt")
)
