package vault

import "errors"

var (
	ErrCoolingDown          = errors.New("too many failed attempts, try again later")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrBiometricUnavailable = errors.New("biometric gate not enabled")
	ErrNotSignedIn          = errors.New("not signed in")
)

// retryable is implemented by storage errors that may succeed on retry.
type retryable interface {
	Retryable() bool
}

func isRetryable(err error) bool {
	var r retryable
	return errors.As(err, &r) && r.Retryable()
}
