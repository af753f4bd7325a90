package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrInvalidKey means the configured key is missing or not 32 bytes.
	ErrInvalidKey = errors.New("vault: encryption key must be base64-encoded 32 bytes")
	// ErrIntegrity means the blob failed authentication: tampered data or a
	// rotated key. Callers must surface this, never treat it as an empty value.
	ErrIntegrity = errors.New("vault: ciphertext integrity check failed")
	// ErrMalformedBlob means the blob is not valid base64 or is too short.
	ErrMalformedBlob = errors.New("vault: malformed ciphertext blob")
)

// Vault encrypts provider credentials at rest with AES-256-GCM.
// Stored blob layout: nonce (12 bytes) || tag (16 bytes) || ciphertext,
// base64-encoded as one opaque string.
//
// The key is process-wide configuration loaded once at startup. Rotating it
// invalidates every previously encrypted blob; there is no re-wrap path here.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault from a base64-encoded 32-byte key.
func New(encodedKey string) (*Vault, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil || len(key) != keySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt encrypts plaintext with a fresh random nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce generation: %w", err)
	}

	// Seal appends the tag after the ciphertext; the stored layout keeps the
	// tag up front, so split and reorder.
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, nonceSize+tagSize+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt decrypts a blob produced by Encrypt. Returns ErrIntegrity when the
// authentication tag does not verify.
func (v *Vault) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedBlob
	}
	if len(blob) < nonceSize+tagSize {
		return "", ErrMalformedBlob
	}

	nonce := blob[:nonceSize]
	tag := blob[nonceSize : nonceSize+tagSize]
	ciphertext := blob[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}
