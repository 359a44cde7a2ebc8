package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("storage failure")
	// ErrUnauthorized indicates a missing, invalid or expired token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotSignedIn is returned when a token is needed but none is held.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrInvalidPath is returned for blob paths not of the form user/shard.
	ErrInvalidPath = errors.New("invalid blob path")
	// ErrBlobTooLarge is returned when the server sends more than the
	// configured maximum blob size.
	ErrBlobTooLarge = errors.New("blob exceeds maximum size")
)

// APIError is an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	return e.StatusCode == http.StatusUnauthorized && target == ErrUnauthorized
}

// StorageError is a failed blob store call. It never carries the blob path.
type StorageError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *StorageError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("storage %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStorage}
	}
	return []error{ErrStorage, e.Err}
}

// Retryable reports whether the call may succeed if repeated: transport
// failures and 408, 429 and 5xx gateway/availability statuses. Local
// rejections never are.
func (e *StorageError) Retryable() bool {
	if e.StatusCode == 0 {
		switch {
		case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded),
			errors.Is(e.Err, ErrInvalidPath), errors.Is(e.Err, ErrBlobTooLarge):
			return false
		}
		return true
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func storageError(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &StorageError{Op: op, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &StorageError{Op: op, Err: err}
}
