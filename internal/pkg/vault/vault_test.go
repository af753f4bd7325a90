package vault

import (
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNew_RejectsBadKeys(t *testing.T) {
	cases := []string{
		"",
		"not-base64!!!",
		base64.StdEncoding.EncodeToString([]byte("short")),
		base64.StdEncoding.EncodeToString(make([]byte, 64)),
	}
	for _, key := range cases {
		if _, err := New(key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	cases := []string{
		"",
		"warez-password",
		"MK_TEST_XXXXXXXXXXXXXXXXXXXX",
		"unicode ключ çãracters",
		string(make([]byte, 4096)),
	}
	for _, plaintext := range cases {
		blob, err := v.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		got, err := v.Decrypt(blob)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	first, err := v.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := v.Encrypt("same-plaintext")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct blobs for repeated plaintext")
	}
}

func TestDecrypt_TamperedTagFails(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	blob, err := v.Encrypt("monnify-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatalf("decode blob: %v", err)
	}
	// Flip one bit inside the tag region (bytes 12..27).
	raw[12] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := v.Decrypt(tampered); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	v1, err := New(testKey(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	otherKey := make([]byte, 32)
	for i := range otherKey {
		otherKey[i] = byte(255 - i)
	}
	v2, err := New(base64.StdEncoding.EncodeToString(otherKey))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	blob, err := v1.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := v2.Decrypt(blob); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestDecrypt_MalformedBlob(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	for _, blob := range []string{"%%%", "", base64.StdEncoding.EncodeToString(make([]byte, 10))} {
		if _, err := v.Decrypt(blob); !errors.Is(err, ErrMalformedBlob) {
			t.Errorf("blob %q: expected ErrMalformedBlob, got %v", blob, err)
		}
	}
}
