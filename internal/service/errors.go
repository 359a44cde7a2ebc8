package service

import "errors"

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")

	ErrForbidden    = errors.New("blob belongs to another user")
	ErrInvalidPath  = errors.New("invalid blob path")
	ErrBlobNotFound = errors.New("blob not found")
	ErrBlobExists   = errors.New("blob already exists")
	ErrBlobTooLarge = errors.New("blob too large")
	ErrEmptyBlob    = errors.New("blob is empty")
)
