package signature

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// generateTestEntity builds a throwaway OpenPGP entity for exercising the verification path,
// mirroring how a provider would generate and announce a signing key.
func generateTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Test Advisory Provider", "", "provider@example.com", nil)
	if err != nil {
		t.Fatalf("failed to generate test entity: %v", err)
	}
	return entity
}

func armorPublicKey(t *testing.T, entity *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("failed to open armor writer: %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("failed to serialize public key: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close armor writer: %v", err)
	}
	return buf.Bytes()
}

func detachedSign(t *testing.T, entity *openpgp.Entity, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, entity, bytes.NewReader(payload), nil); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return buf.Bytes()
}

func fingerprintOf(entity *openpgp.Entity) string {
	return fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)
}

func TestParseArmoredKeyMatchingFingerprint(t *testing.T) {
	entity := generateTestEntity(t)
	armored := armorPublicKey(t, entity)

	key, err := ParseArmoredKey(armored, fingerprintOf(entity))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Fingerprint != fingerprintOf(entity) {
		t.Fatalf("got fingerprint %q, want %q", key.Fingerprint, fingerprintOf(entity))
	}
}

func TestParseArmoredKeyMismatchedFingerprintFails(t *testing.T) {
	entity := generateTestEntity(t)
	armored := armorPublicKey(t, entity)

	_, err := ParseArmoredKey(armored, "0000000000000000000000000000000000000000")
	if err == nil {
		t.Fatal("expected a fingerprint mismatch error")
	}
}

func TestVerifyDetachedValidSignature(t *testing.T) {
	entity := generateTestEntity(t)
	payload := []byte(`{"document":"advisory"}`)
	sig := detachedSign(t, entity, payload)

	key, err := ParseArmoredKey(armorPublicKey(t, entity), fingerprintOf(entity))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ring := NewKeyRing(key)

	result, err := VerifyDetached(ring, payload, sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatal("expected a valid signature")
	}
	if result.SignerID != key.Fingerprint {
		t.Fatalf("got signer %q, want %q", result.SignerID, key.Fingerprint)
	}
}

func TestVerifyDetachedUnknownSignerFails(t *testing.T) {
	signer := generateTestEntity(t)
	other := generateTestEntity(t)
	payload := []byte("advisory contents")
	sig := detachedSign(t, signer, payload)

	otherKey, err := ParseArmoredKey(armorPublicKey(t, other), fingerprintOf(other))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ring := NewKeyRing(otherKey)

	result, err := VerifyDetached(ring, payload, sig)
	if err == nil {
		t.Fatal("expected an unknown-signer error")
	}
	if result.Valid {
		t.Fatal("expected an invalid result")
	}
}

func TestVerifyDetachedMismatchedPayloadFails(t *testing.T) {
	entity := generateTestEntity(t)
	sig := detachedSign(t, entity, []byte("original contents"))

	key, err := ParseArmoredKey(armorPublicKey(t, entity), fingerprintOf(entity))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ring := NewKeyRing(key)

	result, err := VerifyDetached(ring, []byte("tampered contents"), sig)
	if err == nil {
		t.Fatal("expected a verification error for tampered payload")
	}
	if result.Valid {
		t.Fatal("expected an invalid result")
	}
}

func TestEvaluateMissingPolicy(t *testing.T) {
	if err := Strict.EvaluateMissing(); err != ErrSignatureMissing {
		t.Fatalf("expected ErrSignatureMissing under strict policy, got %v", err)
	}
	if err := Lenient.EvaluateMissing(); err != nil {
		t.Fatalf("expected nil under lenient policy, got %v", err)
	}
}
