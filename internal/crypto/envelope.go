package crypto

import "fmt"

// FileKey is a per-document File Encryption Key (FEK).
type FileKey struct {
	b []byte
}

// GenerateFileKey returns a fresh random FEK.
func GenerateFileKey() (*FileKey, error) {
	b, err := GenerateRandomBytes(KeySize)
	if err != nil {
		return nil, err
	}
	return &FileKey{b: b}, nil
}

// UnwrapFileKey opens a wrapped FEK with the master key.
func UnwrapFileKey(masterKey []byte, wrapped SealedBox) (*FileKey, error) {
	b, err := Open(masterKey, wrapped, []byte(aadWrappedKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnwrap, err)
	}
	if len(b) != KeySize {
		Wipe(b)
		return nil, fmt.Errorf("%w: %w", ErrKeyUnwrap, ErrIntegrityFailure)
	}
	return &FileKey{b: b}, nil
}

// Wrap encrypts the FEK under the master key.
func (k *FileKey) Wrap(masterKey []byte) (SealedBox, error) {
	return Seal(masterKey, k.b, []byte(aadWrappedKey))
}

// SealBody encrypts a document body under the FEK.
func (k *FileKey) SealBody(plaintext []byte) (SealedBox, error) {
	return Seal(k.b, plaintext, []byte(aadDocumentBody))
}

// OpenBody decrypts a document body sealed under the FEK.
func (k *FileKey) OpenBody(body SealedBox) ([]byte, error) {
	plaintext, err := Open(k.b, body, []byte(aadDocumentBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTamperedDocument, err)
	}
	return plaintext, nil
}

// Destroy wipes the key. The FileKey is unusable afterwards.
func (k *FileKey) Destroy() {
	if k == nil {
		return
	}
	Wipe(k.b)
	k.b = nil
}

// EncryptedDocument is the output of EncryptDocument.
type EncryptedDocument struct {
	Body       SealedBox
	WrappedKey SealedBox
}

// EncryptDocument seals plaintext under a fresh FEK and wraps that FEK under
// masterKey. The FEK is wiped before returning.
func EncryptDocument(plaintext, masterKey []byte) (*EncryptedDocument, error) {
	fek, err := GenerateFileKey()
	if err != nil {
		return nil, err
	}
	defer fek.Destroy()

	body, err := fek.SealBody(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to seal body: %w", err)
	}

	wrapped, err := fek.Wrap(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap file key: %w", err)
	}

	return &EncryptedDocument{Body: body, WrappedKey: wrapped}, nil
}

// DecryptDocument unwraps the FEK and then opens the body. If the wrap layer
// fails the body is never touched.
func DecryptDocument(body, wrappedKey SealedBox, masterKey []byte) ([]byte, error) {
	fek, err := UnwrapFileKey(masterKey, wrappedKey)
	if err != nil {
		return nil, err
	}
	defer fek.Destroy()

	return fek.OpenBody(body)
}

// RewrapFileKey moves a wrapped FEK from oldKey to newKey. The document body
// is unaffected.
func RewrapFileKey(wrapped SealedBox, oldKey, newKey []byte) (SealedBox, error) {
	fek, err := UnwrapFileKey(oldKey, wrapped)
	if err != nil {
		return SealedBox{}, err
	}
	defer fek.Destroy()

	return fek.Wrap(newKey)
}
