package webhook

import (
	"errors"
	"testing"
)

func TestVerify_ValidSignature(t *testing.T) {
	payload := []byte(`{"eventType":"transaction.successful","eventData":{"paymentReference":"ref-1"}}`)
	secret := "tenant-webhook-secret"

	sig := Sign(payload, secret)
	if err := Verify(payload, sig, secret); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerify_MutatedBodyFails(t *testing.T) {
	payload := []byte(`{"amount":500}`)
	secret := "s3cret"
	sig := Sign(payload, secret)

	// Any mutation after signing must fail, including semantically
	// equivalent JSON with different bytes.
	mutated := [][]byte{
		[]byte(`{"amount":5000}`),
		[]byte(`{"amount": 500}`),
		[]byte(`{"amount":500} `),
	}
	for _, body := range mutated {
		if err := Verify(body, sig, secret); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("body %q: expected ErrInvalidSignature, got %v", body, err)
		}
	}
}

func TestVerify_MissingInputs(t *testing.T) {
	payload := []byte(`{}`)
	sig := Sign(payload, "secret")

	if err := Verify(payload, "", "secret"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("missing signature: expected ErrInvalidSignature, got %v", err)
	}
	if err := Verify(payload, sig, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("missing secret: expected ErrInvalidSignature, got %v", err)
	}
	if err := Verify(payload, "zz-not-hex", "secret"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("non-hex signature: expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_WrongSecretFails(t *testing.T) {
	payload := []byte(`{"ok":true}`)
	sig := Sign(payload, "old-secret")
	if err := Verify(payload, sig, "rotated-secret"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestGenerateSecret_UniquePerCall(t *testing.T) {
	first, err := GenerateSecret("tenant-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GenerateSecret("tenant-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first == second {
		t.Fatal("expected unique secrets for the same seed")
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}
