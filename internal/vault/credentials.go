package vault

import (
	"context"
	"fmt"

	"vaultx/internal/crypto"
	"vaultx/internal/domain"
)

// ChangeCredential replaces the credential that opened the live session.
// Every wrapped file key of its collection moves to the new key; document
// bodies and shards are untouched.
func (e *Engine) ChangeCredential(current, next []byte) error {
	user, err := e.currentUser()
	if err != nil {
		return err
	}
	if err := e.cooldown.Check(); err != nil {
		return err
	}

	err = e.session.Rekey(current, next, func(c domain.Collection, oldKey, newKey []byte) error {
		return e.commit(user.ID, func(m *domain.VaultMetadata) error {
			rewrapped, err := rewrapAll(m.Records(c), oldKey, newKey)
			if err != nil {
				return err
			}
			m.Set(c, rewrapped)
			return nil
		})
	})
	return e.countAttempt(err)
}

// rewrapAll returns copies of docs with their file keys moved from oldKey to
// newKey. docs is not modified.
func rewrapAll(docs []*domain.DocumentRecord, oldKey, newKey []byte) ([]*domain.DocumentRecord, error) {
	out := make([]*domain.DocumentRecord, len(docs))
	for i, d := range docs {
		wrapped, err := crypto.RewrapFileKey(crypto.SealedBox{Nonce: d.FEKWrapIV, Ciphertext: d.WrappedFEK}, oldKey, newKey)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrap document key: %w", err)
		}
		c := *d
		c.WrappedFEK = wrapped.Ciphertext
		c.FEKWrapIV = wrapped.Nonce
		out[i] = &c
	}
	return out, nil
}

// ChangeDuressCredential replaces the duress credential. The decoy collection
// stays readable only under the old duress credential, so it is emptied of
// records; its shards are deleted. From the decoy vault the change is checked
// and reported the same way but the collection is left as it is.
func (e *Engine) ChangeDuressCredential(ctx context.Context, primary, next []byte) error {
	user, err := e.currentUser()
	if err != nil {
		return err
	}
	lease, err := e.session.Current()
	if err != nil {
		return err
	}
	if err := e.cooldown.Check(); err != nil {
		return err
	}
	if err := e.countAttempt(e.session.ChangeDuress(lease, primary, next)); err != nil {
		return err
	}
	if lease.Collection == domain.CollectionDecoy {
		return nil
	}

	var paths []string
	err = e.commit(user.ID, func(m *domain.VaultMetadata) error {
		paths = shardPaths(user.ID, m.DecoyDocuments)
		m.DecoyDocuments = nil
		return nil
	})
	if err != nil {
		return err
	}
	return e.deletePaths(ctx, paths)
}

// SetBiometricEnabled persists the biometric convenience flag.
func (e *Engine) SetBiometricEnabled(enabled bool) error {
	return e.session.SetBiometric(enabled)
}

// ConfirmPresence asks the biometric gate for a presence check. It only
// substitutes for re-typing a credential in the surrounding flow.
func (e *Engine) ConfirmPresence(ctx context.Context, prompt string) (bool, error) {
	if e.biometric == nil || !e.session.BiometricEnabled() {
		return false, ErrBiometricUnavailable
	}
	ok, err := e.biometric.Authenticate(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("biometric check failed: %w", err)
	}
	return ok, nil
}

// DeleteAccountData deletes every shard of both collections, the metadata and
// the credential record, then signs out. From the decoy vault only the decoy
// collection is deleted; the real collection and the credential record stay.
func (e *Engine) DeleteAccountData(ctx context.Context) error {
	user, err := e.currentUser()
	if err != nil {
		return err
	}
	lease, err := e.session.Current()
	if err != nil {
		return err
	}

	m, err := e.loadMetadata(user.ID)
	if err != nil {
		return err
	}
	paths := shardPaths(user.ID, m.DecoyDocuments)
	if lease.Collection == domain.CollectionReal {
		paths = append(shardPaths(user.ID, m.Documents), paths...)
	}
	if err := e.deletePaths(ctx, paths); err != nil {
		return err
	}

	if lease.Collection == domain.CollectionReal {
		e.metaMu.Lock()
		err = e.metadata.Delete(user.ID)
		e.metaMu.Unlock()
	} else {
		err = e.commit(user.ID, func(m *domain.VaultMetadata) error {
			m.Set(domain.CollectionDecoy, nil)
			return nil
		})
	}
	if err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}

	if err := e.session.DeleteRecord(lease); err != nil {
		return err
	}
	if err := e.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("identity sign out failed: %w", err)
	}

	e.log.Info().Msg("account data deleted")
	return nil
}

func (e *Engine) deletePaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		return e.blobs.Delete(ctx, paths)
	})
	if err != nil {
		return fmt.Errorf("failed to delete shards: %w", err)
	}
	return nil
}

func shardPaths(userID string, docs []*domain.DocumentRecord) []string {
	var paths []string
	for _, d := range docs {
		for _, ref := range d.ShardRefs {
			paths = append(paths, blobPath(userID, ref.ShardID))
		}
	}
	return paths
}
