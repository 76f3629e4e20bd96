package security

import (
	"bytes"
	"testing"
)

func TestNewBox(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{
			name:    "valid 32-byte key",
			key:     make([]byte, 32),
			wantErr: false,
		},
		{
			name:    "invalid short key",
			key:     make([]byte, 16),
			wantErr: true,
		},
		{
			name:    "invalid long key",
			key:     make([]byte, 64),
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     []byte{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := NewBox(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBox() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && box == nil {
				t.Error("NewBox() returned nil without error")
			}
		})
	}
}

func TestNewBoxFromSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{
			name:    "valid secret",
			secret:  "bootstrap-secret-for-cell-a",
			wantErr: false,
		},
		{
			name:    "empty secret",
			secret:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := NewBoxFromSecret(tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBoxFromSecret() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && box == nil {
				t.Error("NewBoxFromSecret() returned nil without error")
			}
		})
	}
}

func TestSealOpenRoundtrip(t *testing.T) {
	box, err := NewBoxFromSecret("test-bootstrap-secret")
	if err != nil {
		t.Fatalf("Failed to create box: %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{
			name:      "simple string",
			plaintext: []byte("hello world"),
		},
		{
			name:      "credential json",
			plaintext: []byte(`{"aws_access_key_id":"AKIAEXAMPLEONLY12","aws_secret_access_key":"secret"}`),
		},
		{
			name:      "binary data",
			plaintext: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD},
		},
		{
			name:      "large data",
			plaintext: bytes.Repeat([]byte("test"), 1000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := box.Seal(tt.plaintext)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if bytes.Equal(sealed, tt.plaintext) {
				t.Error("Seal() returned plaintext unchanged")
			}

			opened, err := box.Open(sealed)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(opened, tt.plaintext) {
				t.Errorf("Open() = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestSealEmptyData(t *testing.T) {
	box, _ := NewBoxFromSecret("test-bootstrap-secret")
	if _, err := box.Seal(nil); err == nil {
		t.Error("Seal(nil) expected error, got nil")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	box, _ := NewBoxFromSecret("test-bootstrap-secret")

	tests := []struct {
		name       string
		ciphertext []byte
	}{
		{
			name:       "empty",
			ciphertext: nil,
		},
		{
			name:       "shorter than nonce",
			ciphertext: []byte{0x01, 0x02, 0x03},
		},
		{
			name:       "corrupted blob",
			ciphertext: bytes.Repeat([]byte{0xAB}, 64),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := box.Open(tt.ciphertext); err == nil {
				t.Error("Open() expected error, got nil")
			}
		})
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	box1, _ := NewBoxFromSecret("secret-one")
	box2, _ := NewBoxFromSecret("secret-two")

	sealed, err := box1.Seal([]byte("cross-node data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if _, err := box2.Open(sealed); err == nil {
		t.Error("Open() with wrong key expected error, got nil")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey("shared-bootstrap-secret")
	k2 := DeriveKey("shared-bootstrap-secret")
	k3 := DeriveKey("different-secret")

	if len(k1) != 32 {
		t.Errorf("DeriveKey() length = %d, want 32", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveKey() not deterministic for the same seed")
	}
	if bytes.Equal(k1, k3) {
		t.Error("DeriveKey() returned the same key for different seeds")
	}
}

func TestSealProducesUniqueNonces(t *testing.T) {
	box, _ := NewBoxFromSecret("test-bootstrap-secret")
	plaintext := []byte("same input")

	s1, err := box.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	s2, err := box.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if bytes.Equal(s1, s2) {
		t.Error("two Seal() calls produced identical ciphertexts")
	}
}
