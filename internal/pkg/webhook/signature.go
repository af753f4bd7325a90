package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidSignature means the signature header was absent or did not match
// the HMAC of the raw payload. Handlers must discard the request before any
// business logic touches the body.
var ErrInvalidSignature = errors.New("webhook: invalid signature")

// Verify checks a hex-encoded HMAC-SHA256 signature over the exact raw
// payload bytes. The comparison is constant-time.
func Verify(rawPayload []byte, signatureHex, secret string) error {
	if secret == "" || signatureHex == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawPayload)
	expected := mac.Sum(nil)

	given, err := hex.DecodeString(signatureHex)
	if err != nil {
		return ErrInvalidSignature
	}

	if !hmac.Equal(given, expected) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the hex-encoded HMAC-SHA256 of the payload. Used when
// registering webhooks and in tests.
func Sign(rawPayload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawPayload)
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateSecret derives a fresh webhook secret from a seed plus 32 random
// bytes. The seed ties the secret to its tenant without being recoverable.
func GenerateSecret(seed string) (string, error) {
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("webhook: secret generation: %w", err)
	}
	sum := sha256.Sum256([]byte(seed + ":" + hex.EncodeToString(random)))
	return hex.EncodeToString(sum[:]), nil
}
