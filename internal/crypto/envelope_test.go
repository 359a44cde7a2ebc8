package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecryptDocument_RoundTrip(t *testing.T) {
	docs := map[string][]byte{
		"empty":  {},
		"text":   []byte("quarterly report"),
		"binary": bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 4096),
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			master := mustKey(t)

			enc, err := EncryptDocument(doc, master)
			if err != nil {
				t.Fatalf("EncryptDocument() error = %v", err)
			}

			got, err := DecryptDocument(enc.Body, enc.WrappedKey, master)
			if err != nil {
				t.Fatalf("DecryptDocument() error = %v", err)
			}
			if !bytes.Equal(got, doc) {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestEncryptDocument_FreshFileKeys(t *testing.T) {
	master := mustKey(t)
	doc := []byte("same document")

	a, _ := EncryptDocument(doc, master)
	b, _ := EncryptDocument(doc, master)

	if bytes.Equal(a.Body.Ciphertext, b.Body.Ciphertext) {
		t.Error("two encryptions of the same document produced the same body")
	}

	// A's FEK must not open B's body.
	fekA, err := UnwrapFileKey(master, a.WrappedKey)
	if err != nil {
		t.Fatal(err)
	}
	defer fekA.Destroy()
	if _, err := fekA.OpenBody(b.Body); !errors.Is(err, ErrIntegrityFailure) {
		t.Errorf("expected ErrIntegrityFailure, got %v", err)
	}
}

func TestDecryptDocument_BitFlips(t *testing.T) {
	master := mustKey(t)
	enc, err := EncryptDocument([]byte("top secret"), master)
	if err != nil {
		t.Fatal(err)
	}

	// Every single-bit flip in the body or the wrapped key must fail closed.
	for i := 0; i < len(enc.Body.Ciphertext)*8; i++ {
		body := SealedBox{Nonce: enc.Body.Nonce, Ciphertext: append([]byte(nil), enc.Body.Ciphertext...)}
		body.Ciphertext[i/8] ^= 1 << (i % 8)

		pt, err := DecryptDocument(body, enc.WrappedKey, master)
		if !errors.Is(err, ErrTamperedDocument) || !errors.Is(err, ErrIntegrityFailure) || pt != nil {
			t.Fatalf("body bit %d: got (%v, %v), want tampered failure", i, pt, err)
		}
	}

	for i := 0; i < len(enc.WrappedKey.Ciphertext)*8; i++ {
		wrapped := SealedBox{Nonce: enc.WrappedKey.Nonce, Ciphertext: append([]byte(nil), enc.WrappedKey.Ciphertext...)}
		wrapped.Ciphertext[i/8] ^= 1 << (i % 8)

		pt, err := DecryptDocument(enc.Body, wrapped, master)
		if !errors.Is(err, ErrKeyUnwrap) || !errors.Is(err, ErrIntegrityFailure) || pt != nil {
			t.Fatalf("wrapped key bit %d: got (%v, %v), want unwrap failure", i, pt, err)
		}
	}
}

func TestDecryptDocument_WrongMasterKey(t *testing.T) {
	enc, _ := EncryptDocument([]byte("doc"), mustKey(t))

	_, err := DecryptDocument(enc.Body, enc.WrappedKey, mustKey(t))
	if !errors.Is(err, ErrKeyUnwrap) {
		t.Errorf("expected ErrKeyUnwrap, got %v", err)
	}
	if errors.Is(err, ErrTamperedDocument) {
		t.Error("body must not be attempted when unwrap fails")
	}
}

func TestRewrapFileKey(t *testing.T) {
	oldKey, newKey := mustKey(t), mustKey(t)
	doc := []byte("rotate me")
	enc, _ := EncryptDocument(doc, oldKey)

	rewrapped, err := RewrapFileKey(enc.WrappedKey, oldKey, newKey)
	if err != nil {
		t.Fatalf("RewrapFileKey() error = %v", err)
	}

	got, err := DecryptDocument(enc.Body, rewrapped, newKey)
	if err != nil {
		t.Fatalf("DecryptDocument() after rewrap error = %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Error("rewrapped document mismatch")
	}

	if _, err := DecryptDocument(enc.Body, rewrapped, oldKey); !errors.Is(err, ErrKeyUnwrap) {
		t.Errorf("old key should no longer unwrap, got %v", err)
	}
}

func TestFileKey_Destroy(t *testing.T) {
	fek, err := GenerateFileKey()
	if err != nil {
		t.Fatal(err)
	}
	backing := fek.b

	fek.Destroy()

	if fek.b != nil {
		t.Error("FileKey still references key bytes after Destroy")
	}
	for i, v := range backing {
		if v != 0 {
			t.Fatalf("byte %d not wiped", i)
		}
	}

	var nilKey *FileKey
	nilKey.Destroy()
}
