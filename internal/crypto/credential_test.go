package crypto

import (
	"errors"
	"testing"
)

func TestValidateCredential(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		wantErr    bool
	}{
		{"six digits", "482913", false},
		{"minimum length", "0000", false},
		{"maximum length", "123456789012", false},
		{"too short", "123", true},
		{"too long", "1234567890123", true},
		{"letters", "12ab56", true},
		{"space", "123 56", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredential([]byte(tt.credential))
			if tt.wantErr && !errors.Is(err, ErrInvalidCredential) {
				t.Errorf("expected ErrInvalidCredential, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error = %v", err)
			}
		})
	}
}

func TestVerifyCredential(t *testing.T) {
	salt := mustSalt(t)
	commitment, err := testParams.HashCredential([]byte("482913"), salt)
	if err != nil {
		t.Fatalf("HashCredential() error = %v", err)
	}

	tests := []struct {
		name       string
		credential string
		salt       []byte
		commitment []byte
		want       bool
	}{
		{"correct credential", "482913", salt, commitment, true},
		{"wrong credential", "482914", salt, commitment, false},
		{"prefix of credential", "48291", salt, commitment, false},
		{"wrong salt", "482913", mustSalt(t), commitment, false},
		{"truncated salt", "482913", salt[:8], commitment, false},
		{"nil salt", "482913", nil, commitment, false},
		{"truncated commitment", "482913", salt, commitment[:16], false},
		{"empty commitment", "482913", salt, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testParams.VerifyCredential([]byte(tt.credential), tt.salt, tt.commitment); got != tt.want {
				t.Errorf("VerifyCredential() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashCredential_SaltedOutputs(t *testing.T) {
	h1, _ := testParams.HashCredential([]byte("001122"), mustSalt(t))
	h2, _ := testParams.HashCredential([]byte("001122"), mustSalt(t))

	if string(h1) == string(h2) {
		t.Error("HashCredential() should differ across salts")
	}
}
