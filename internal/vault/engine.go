// Package vault is the client engine. It routes every document operation to
// the collection selected by the live session, runs the upload and download
// pipelines against the opaque blob store, and carries credential changes
// through to the wrapped file keys.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vaultx/internal/domain"
	"vaultx/internal/session"
	"vaultx/internal/shard"

	"github.com/rs/zerolog"
)

type Config struct {
	ShardCount     int
	MaxAttempts    int
	CooldownPeriod time.Duration
	Retry          RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		ShardCount:     shard.DefaultCount,
		MaxAttempts:    5,
		CooldownPeriod: 30 * time.Second,
		Retry:          DefaultRetryPolicy(),
	}
}

// Collaborators are the external services the engine drives. Biometric may
// be nil.
type Collaborators struct {
	Identity  IdentityProvider
	Blobs     BlobStore
	Metadata  MetadataStore
	Biometric BiometricGate
}

type Engine struct {
	session    *session.Session
	identity   IdentityProvider
	blobs      BlobStore
	metadata   MetadataStore
	biometric  BiometricGate
	cooldown   *Cooldown
	retry      RetryPolicy
	shardCount int
	log        zerolog.Logger

	// metaMu serializes metadata read-modify-write. It is always taken after
	// any session lock, never before.
	metaMu sync.Mutex
}

func NewEngine(sess *session.Session, c Collaborators, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if cfg.ShardCount < 1 || cfg.ShardCount > shard.MaxCount {
		return nil, fmt.Errorf("%w: %d", shard.ErrInvalidCount, cfg.ShardCount)
	}

	return &Engine{
		session:    sess,
		identity:   c.Identity,
		blobs:      c.Blobs,
		metadata:   c.Metadata,
		biometric:  c.Biometric,
		cooldown:   NewCooldown(cfg.MaxAttempts, cfg.CooldownPeriod),
		retry:      cfg.Retry,
		shardCount: cfg.ShardCount,
		log:        logger.With().Str("component", "vault").Logger(),
	}, nil
}

func (e *Engine) State() session.State {
	return e.session.State()
}

// SignIn verifies the account with the identity provider and opens the
// session for that identity.
func (e *Engine) SignIn(ctx context.Context, email, secret string) (session.State, error) {
	user, err := e.identity.SignIn(ctx, email, secret)
	if err != nil {
		return e.session.State(), fmt.Errorf("sign in failed: %w", err)
	}
	return e.session.Authenticate(user)
}

// Resume opens the session for an identity the provider still holds.
func (e *Engine) Resume(ctx context.Context) (session.State, error) {
	user, err := e.identity.GetSession(ctx)
	if err != nil {
		return e.session.State(), fmt.Errorf("failed to get session: %w", err)
	}
	if user == nil {
		return e.session.State(), ErrNotSignedIn
	}
	return e.session.Authenticate(user)
}

// Setup creates the credential record on first use.
func (e *Engine) Setup(primary, duress []byte) error {
	return e.session.Setup(primary, duress)
}

// Unlock opens the real or the decoy vault. Both outcomes return nil.
func (e *Engine) Unlock(credential []byte) error {
	if err := e.cooldown.Check(); err != nil {
		return err
	}
	return e.countAttempt(e.session.Unlock(credential))
}

// Lock locks an unlocked session.
func (e *Engine) Lock() {
	e.session.Lock(session.LockExplicit)
}

// Background locks the session when the application leaves the foreground.
func (e *Engine) Background() {
	e.session.Lock(session.LockBackground)
}

// SignOut wipes any held key, forgets the cached record and signs out of the
// identity provider.
func (e *Engine) SignOut(ctx context.Context) error {
	e.session.SignOut()
	if err := e.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("identity sign out failed: %w", err)
	}
	return nil
}

// countAttempt feeds the outcome of a credential check into the cool-down.
func (e *Engine) countAttempt(err error) error {
	switch {
	case err == nil:
		e.cooldown.Success()
	case errors.Is(err, session.ErrAuthenticationFailed):
		e.cooldown.Failure()
	}
	return err
}

func (e *Engine) currentUser() (*domain.SessionUser, error) {
	user := e.session.User()
	if user == nil {
		return nil, session.ErrStateViolation
	}
	return user, nil
}

func (e *Engine) loadMetadata(userID string) (*domain.VaultMetadata, error) {
	e.metaMu.Lock()
	defer e.metaMu.Unlock()
	return e.loadMetadataLocked(userID)
}

func (e *Engine) loadMetadataLocked(userID string) (*domain.VaultMetadata, error) {
	m, err := e.metadata.Load(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	if m == nil {
		m = &domain.VaultMetadata{}
	}
	return m, nil
}

// commit applies mutate to the stored metadata and saves it.
func (e *Engine) commit(userID string, mutate func(m *domain.VaultMetadata) error) error {
	e.metaMu.Lock()
	defer e.metaMu.Unlock()

	m, err := e.loadMetadataLocked(userID)
	if err != nil {
		return err
	}
	if err := mutate(m); err != nil {
		return err
	}
	if err := e.metadata.Save(userID, m); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func blobPath(userID, shardID string) string {
	return userID + "/" + shardID
}
