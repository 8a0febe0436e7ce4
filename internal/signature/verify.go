package signature

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// Result is the outcome of a signature verification attempt.
type Result struct {
	Valid    bool
	SignerID string // hex fingerprint of the key that verified, empty if Valid is false
}

// VerifyDetached checks an ASCII-armored detached signature over payload against the keys in
// ring. A signature verifies if and only if exactly one candidate key produces a valid
// signature, per spec §4.7. Unknown signer, malformed signature, and mismatched payload all
// report Valid=false with a descriptive error rather than panicking.
func VerifyDetached(ring KeyRing, payload, armoredSignature []byte) (Result, error) {
	if len(ring.keys) == 0 {
		return Result{}, errors.New("signature: no keys loaded to verify against")
	}

	block, err := armor.Decode(bytes.NewReader(armoredSignature))
	if err != nil {
		return Result{}, fmt.Errorf("signature: decode armor: %w", err)
	}
	if block.Type != openpgp.SignatureType {
		return Result{}, fmt.Errorf("signature: expected a signature block, got %q", block.Type)
	}

	signer, err := openpgp.CheckDetachedSignature(ring.entityList(), bytes.NewReader(payload), block.Body, nil)
	if err != nil {
		return Result{Valid: false}, fmt.Errorf("signature: verification failed: %w", err)
	}
	if signer == nil {
		return Result{Valid: false}, errors.New("signature: verification produced no signer")
	}

	return Result{
		Valid:    true,
		SignerID: fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint),
	}, nil
}

// Policy governs how the validation stage treats a document with no detached signature.
type Policy int

const (
	// Strict rejects any document lacking a signature.
	Strict Policy = iota
	// Lenient accepts a missing signature, surfacing it as unvalidated rather than invalid.
	Lenient
)

// ErrSignatureMissing is returned by EvaluateMissing under Strict policy.
var ErrSignatureMissing = errors.New("signature: missing, rejected by strict policy")

// EvaluateMissing applies p to a document with no signature: Strict returns
// ErrSignatureMissing, Lenient returns nil (accept, unvalidated).
func (p Policy) EvaluateMissing() error {
	if p == Strict {
		return ErrSignatureMissing
	}
	return nil
}
