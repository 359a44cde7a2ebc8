package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"vaultx/internal/crypto"
	"vaultx/internal/domain"
	"vaultx/internal/session"
	"vaultx/internal/shard"

	"github.com/google/uuid"
)

const cleanupTimeout = 30 * time.Second

// Stage is one step of the document pipeline.
type Stage string

const (
	StageRead     Stage = "read"
	StageEncrypt  Stage = "encrypt"
	StageShard    Stage = "shard"
	StageTransfer Stage = "transfer"
	StageDone     Stage = "done"
)

// Progress reports pipeline progress. Done and Total count shards during
// StageTransfer and are zero otherwise.
type Progress struct {
	Stage Stage
	Done  int
	Total int
}

type ProgressFunc func(Progress)

func (f ProgressFunc) report(stage Stage, done, total int) {
	if f != nil {
		f(Progress{Stage: stage, Done: done, Total: total})
	}
}

// DocumentInfo is the displayable part of a document record.
type DocumentInfo struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

func infoOf(d *domain.DocumentRecord) DocumentInfo {
	return DocumentInfo{
		ID:          d.ID,
		DisplayName: d.DisplayName,
		MimeType:    d.MimeType,
		Size:        d.Size,
		CreatedAt:   d.CreatedAt,
	}
}

// Upload reads, encrypts, shards and stores a document in the collection of
// the live session. If any shard fails to store, or ctx is cancelled, or the
// session changes before the record is committed, every stored shard of the
// document is deleted before the error is returned.
func (e *Engine) Upload(ctx context.Context, name, mimeType string, r io.Reader, progress ProgressFunc) (*DocumentInfo, error) {
	user, err := e.currentUser()
	if err != nil {
		return nil, err
	}
	if _, err := e.session.Current(); err != nil {
		return nil, err
	}

	progress.report(StageRead, 0, 0)
	plaintext, err := io.ReadAll(r)
	defer crypto.Wipe(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress.report(StageEncrypt, 0, 0)
	var (
		sealed *crypto.EncryptedDocument
		lease  session.Lease
	)
	err = e.session.WithKey(func(key []byte, l session.Lease) error {
		var err error
		sealed, err = crypto.EncryptDocument(plaintext, key)
		lease = l
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress.report(StageShard, 0, 0)
	shards, err := shard.Split(sealed.Body.Ciphertext, e.shardCount)
	if err != nil {
		return nil, err
	}

	stored := make([]string, 0, len(shards))
	for i, s := range shards {
		if err := ctx.Err(); err != nil {
			return nil, e.compensate(ctx, stored, err)
		}
		progress.report(StageTransfer, i, len(shards))

		// A failed Put may still have stored the shard.
		path := blobPath(user.ID, s.ID)
		stored = append(stored, path)
		if err := e.blobs.Put(ctx, path, s.Data); err != nil {
			return nil, e.compensate(ctx, stored, fmt.Errorf("failed to store shard: %w", err))
		}
	}
	progress.report(StageTransfer, len(shards), len(shards))

	record := &domain.DocumentRecord{
		ID:          uuid.NewString(),
		DisplayName: name,
		MimeType:    mimeType,
		Size:        int64(len(plaintext)),
		CreatedAt:   time.Now(),
		WrappedFEK:  sealed.WrappedKey.Ciphertext,
		FEKWrapIV:   sealed.WrappedKey.Nonce,
		DataIV:      sealed.Body.Nonce,
		ShardRefs:   shard.Refs(shards),
	}

	err = e.session.Hold(lease, func() error {
		return e.commit(user.ID, func(m *domain.VaultMetadata) error {
			m.Add(lease.Collection, record)
			return nil
		})
	})
	if err != nil {
		return nil, e.compensate(ctx, stored, err)
	}

	progress.report(StageDone, 0, 0)
	info := infoOf(record)
	return &info, nil
}

// compensate deletes the shards of a failed upload and returns cause, joined
// with any cleanup failure. Paths that were never stored are ignored by the
// blob store.
func (e *Engine) compensate(ctx context.Context, paths []string, cause error) error {
	if len(paths) == 0 {
		return cause
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	err := e.retry.Do(cleanupCtx, func(ctx context.Context) error {
		return e.blobs.Delete(ctx, paths)
	})
	if err != nil {
		e.log.Error().Err(err).Int("shards", len(paths)).Msg("failed to clean up partial upload")
		return errors.Join(cause, fmt.Errorf("failed to clean up shards: %w", err))
	}

	e.log.Warn().Int("shards", len(paths)).Msg("partial upload cleaned up")
	return cause
}

// Download fetches, reassembles and opens a document from the collection of
// the live session. Each shard is retried on its own; if any shard stays
// unavailable the result is shard.ErrIncompleteFragmentSet. A payload that
// fails authentication is shard.ErrCorruptFragmentSet.
func (e *Engine) Download(ctx context.Context, id string) ([]byte, *DocumentInfo, error) {
	user, err := e.currentUser()
	if err != nil {
		return nil, nil, err
	}
	lease, err := e.session.Current()
	if err != nil {
		return nil, nil, err
	}

	m, err := e.loadMetadata(user.ID)
	if err != nil {
		return nil, nil, err
	}
	record := m.Find(lease.Collection, id)
	if record == nil {
		return nil, nil, ErrDocumentNotFound
	}

	shards := make([]shard.Shard, 0, len(record.ShardRefs))
	var failures []error
	for _, ref := range record.ShardRefs {
		var data []byte
		err := e.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			data, err = e.blobs.Get(ctx, blobPath(user.ID, ref.ShardID))
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			failures = append(failures, err)
			continue
		}
		shards = append(shards, shard.Shard{ID: ref.ShardID, Index: ref.Index, Data: data})
	}
	if len(failures) > 0 {
		return nil, nil, fmt.Errorf("%w: %d of %d shards unavailable: %w",
			shard.ErrIncompleteFragmentSet, len(failures), len(record.ShardRefs), errors.Join(failures...))
	}

	payload, err := shard.Reassemble(shards, len(record.ShardRefs))
	if err != nil {
		return nil, nil, err
	}

	body := crypto.SealedBox{Nonce: record.DataIV, Ciphertext: payload}
	wrapped := crypto.SealedBox{Nonce: record.FEKWrapIV, Ciphertext: record.WrappedFEK}

	var plaintext []byte
	err = e.session.WithKey(func(key []byte, l session.Lease) error {
		if l != lease {
			return session.ErrStateViolation
		}
		var err error
		plaintext, err = crypto.DecryptDocument(body, wrapped, key)
		return err
	})
	if errors.Is(err, crypto.ErrTamperedDocument) {
		return nil, nil, fmt.Errorf("%w: %w", shard.ErrCorruptFragmentSet, err)
	}
	if err != nil {
		return nil, nil, err
	}

	info := infoOf(record)
	return plaintext, &info, nil
}

// Delete removes a document's record from the collection of the live session
// and then its shards from the blob store. Shard deletion outlives ctx
// cancellation and a lock.
func (e *Engine) Delete(ctx context.Context, id string) error {
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
	record := m.Find(lease.Collection, id)
	if record == nil {
		return ErrDocumentNotFound
	}

	err = e.session.Hold(lease, func() error {
		return e.commit(user.ID, func(m *domain.VaultMetadata) error {
			if m.Remove(lease.Collection, id) == nil {
				return ErrDocumentNotFound
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	paths := shardPaths(user.ID, []*domain.DocumentRecord{record})
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	err = e.retry.Do(cleanupCtx, func(ctx context.Context) error {
		return e.blobs.Delete(ctx, paths)
	})
	if err != nil {
		e.log.Error().Err(err).Int("shards", len(paths)).Msg("failed to delete shards of removed document")
		return fmt.Errorf("failed to delete shards: %w", err)
	}
	return nil
}

// List returns the documents of the collection of the live session.
func (e *Engine) List() ([]DocumentInfo, error) {
	user, err := e.currentUser()
	if err != nil {
		return nil, err
	}
	lease, err := e.session.Current()
	if err != nil {
		return nil, err
	}

	m, err := e.loadMetadata(user.ID)
	if err != nil {
		return nil, err
	}

	records := m.Records(lease.Collection)
	docs := make([]DocumentInfo, 0, len(records))
	for _, d := range records {
		docs = append(docs, infoOf(d))
	}
	return docs, nil
}
