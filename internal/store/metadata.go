package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"vaultx/internal/domain"
)

// FileMetadataStore keeps one JSON metadata file per user.
type FileMetadataStore struct {
	dir string
}

func NewFileMetadataStore(dir string) (*FileMetadataStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &FileMetadataStore{dir: dir}, nil
}

// Load returns nil, nil when no metadata is stored for userID.
func (s *FileMetadataStore) Load(userID string) (*domain.VaultMetadata, error) {
	path, err := s.path(userID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m domain.VaultMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &m, nil
}

func (s *FileMetadataStore) Save(userID string, m *domain.VaultMetadata) error {
	path, err := s.path(userID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := atomicWriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func (s *FileMetadataStore) Delete(userID string) error {
	path, err := s.path(userID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

func (s *FileMetadataStore) path(userID string) (string, error) {
	name, err := fileName("metadata-" + userID + ".json")
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}
