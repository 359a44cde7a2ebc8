package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"vaultx/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

const blobAttachment = "data"

// BlobRepository stores opaque shard bytes as CouchDB attachments. The
// metadata document records only the owner, the shard id and the size.
type BlobRepository interface {
	Put(ctx context.Context, userID, shardID string, data []byte) (*domain.Blob, error)
	Get(ctx context.Context, userID, shardID string) ([]byte, error)
	Delete(ctx context.Context, userID string, shardIDs []string) (int, error)
}

type blobRepository struct {
	client *kivik.Client
	dbName string
}

func NewBlobRepository(client *kivik.Client, dbName string) BlobRepository {
	return &blobRepository{
		client: client,
		dbName: dbName,
	}
}

type blobDocument struct {
	Type string `json:"type"`
	domain.Blob
}

func blobDocID(userID, shardID string) string {
	return fmt.Sprintf("blob:%s/%s", userID, shardID)
}

func (r *blobRepository) Put(ctx context.Context, userID, shardID string, data []byte) (*domain.Blob, error) {
	db := r.client.DB(r.dbName)
	docID := blobDocID(userID, shardID)

	blob := domain.Blob{
		UserID:    userID,
		ShardID:   shardID,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}

	rev, err := db.Put(ctx, docID, blobDocument{Type: "blob", Blob: blob})
	if err != nil {
		if isConflict(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create blob document: %w", err)
	}

	_, err = db.PutAttachment(ctx, docID, &kivik.Attachment{
		Filename:    blobAttachment,
		ContentType: "application/octet-stream",
		Content:     io.NopCloser(bytes.NewReader(data)),
	}, kivik.Rev(rev))
	if err != nil {
		// A metadata document without content would read as a missing shard.
		if _, delErr := db.Delete(ctx, docID, rev); delErr != nil {
			return nil, fmt.Errorf("failed to store blob content: %w (cleanup: %v)", err, delErr)
		}
		return nil, fmt.Errorf("failed to store blob content: %w", err)
	}

	return &blob, nil
}

func (r *blobRepository) Get(ctx context.Context, userID, shardID string) ([]byte, error) {
	db := r.client.DB(r.dbName)

	att, err := db.GetAttachment(ctx, blobDocID(userID, shardID), blobAttachment)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	defer att.Content.Close()

	data, err := io.ReadAll(att.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	return data, nil
}

// Delete removes the listed shards of one user. Shards that are already gone
// are skipped; the count covers only documents actually deleted.
func (r *blobRepository) Delete(ctx context.Context, userID string, shardIDs []string) (int, error) {
	db := r.client.DB(r.dbName)

	deleted := 0
	for _, shardID := range shardIDs {
		docID := blobDocID(userID, shardID)

		rev, err := db.GetRev(ctx, docID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return deleted, fmt.Errorf("failed to read blob revision: %w", err)
		}

		if _, err := db.Delete(ctx, docID, rev); err != nil {
			if isNotFound(err) {
				continue
			}
			return deleted, fmt.Errorf("failed to delete blob: %w", err)
		}
		deleted++
	}

	return deleted, nil
}
