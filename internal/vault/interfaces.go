package vault

import (
	"context"

	"vaultx/internal/domain"
)

// BlobStore is the untrusted opaque blob store. Paths have the form
// {sessionUserId}/{shardId}.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, paths []string) error
}

// MetadataStore persists vault metadata in ordinary local storage. Load
// returns nil, nil when nothing is stored for the user.
type MetadataStore interface {
	Load(userID string) (*domain.VaultMetadata, error)
	Save(userID string, metadata *domain.VaultMetadata) error
	Delete(userID string) error
}

// IdentityProvider verifies account identity. It carries no vault secret.
// GetSession returns nil, nil when no session exists.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, secret string) (*domain.SessionUser, error)
	GetSession(ctx context.Context) (*domain.SessionUser, error)
	SignOut(ctx context.Context) error
}

// BiometricGate is an optional presence check. It never sees key material.
type BiometricGate interface {
	Authenticate(ctx context.Context, prompt string) (bool, error)
}
