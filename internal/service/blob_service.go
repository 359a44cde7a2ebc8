package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vaultx/internal/domain"
	"vaultx/internal/repository"

	"github.com/google/uuid"
)

// BlobService is the server side of shard storage. Every path is namespaced
// by the owner's user ID and a caller may only touch its own namespace.
type BlobService struct {
	blobRepo    repository.BlobRepository
	maxBlobSize int64
}

func NewBlobService(blobRepo repository.BlobRepository, maxBlobSize int64) *BlobService {
	return &BlobService{
		blobRepo:    blobRepo,
		maxBlobSize: maxBlobSize,
	}
}

func (s *BlobService) MaxBlobSize() int64 {
	return s.maxBlobSize
}

func (s *BlobService) Put(ctx context.Context, callerID, ownerID, shardID string, data []byte) (*domain.Blob, error) {
	if err := s.authorize(callerID, ownerID, shardID); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyBlob
	}
	if int64(len(data)) > s.maxBlobSize {
		return nil, ErrBlobTooLarge
	}

	blob, err := s.blobRepo.Put(ctx, ownerID, shardID, data)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrBlobExists
		}
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}
	return blob, nil
}

func (s *BlobService) Get(ctx context.Context, callerID, ownerID, shardID string) ([]byte, error) {
	if err := s.authorize(callerID, ownerID, shardID); err != nil {
		return nil, err
	}

	data, err := s.blobRepo.Get(ctx, ownerID, shardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return data, nil
}

// Delete removes every listed "userID/shardID" path. All paths are checked
// before anything is deleted, so one foreign path rejects the whole batch.
func (s *BlobService) Delete(ctx context.Context, callerID string, paths []string) (int, error) {
	shardIDs := make([]string, 0, len(paths))
	for _, p := range paths {
		ownerID, shardID, ok := strings.Cut(p, "/")
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		if err := s.authorize(callerID, ownerID, shardID); err != nil {
			return 0, err
		}
		shardIDs = append(shardIDs, shardID)
	}

	deleted, err := s.blobRepo.Delete(ctx, callerID, shardIDs)
	if err != nil {
		return deleted, fmt.Errorf("failed to delete blobs: %w", err)
	}
	return deleted, nil
}

func (s *BlobService) authorize(callerID, ownerID, shardID string) error {
	if ownerID == "" {
		return ErrInvalidPath
	}
	if _, err := uuid.Parse(shardID); err != nil {
		return fmt.Errorf("%w: shard id %q", ErrInvalidPath, shardID)
	}
	if callerID == "" || callerID != ownerID {
		return ErrForbidden
	}
	return nil
}
