package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSecureStore keeps small secrets as owner-only files under a private
// directory. Load returns nil, nil for a missing key.
type FileSecureStore struct {
	dir string
}

func NewFileSecureStore(dir string) (*FileSecureStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &FileSecureStore{dir: dir}, nil
}

func (s *FileSecureStore) Save(key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write secure item: %w", err)
	}
	return nil
}

func (s *FileSecureStore) Load(key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secure item: %w", err)
	}
	return data, nil
}

func (s *FileSecureStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete secure item: %w", err)
	}
	return nil
}

func (s *FileSecureStore) path(key string) (string, error) {
	name, err := fileName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}
