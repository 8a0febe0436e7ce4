// Package signature verifies detached OpenPGP signatures against a set of announced public
// keys, grounded in github.com/ProtonMail/go-crypto/openpgp — the pure-Go OpenPGP
// implementation pulled into this corpus indirectly via driftlessaf-go-driftlessaf's
// sigstore/cosign dependency chain, and used directly (via its gopenpgp wrapper) by the
// greenbone CSAF downloader reference for exactly this purpose.
package signature

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// Key is a parsed, fingerprint-verified OpenPGP public key, cached for the lifetime of a run.
// Armored retains the original ASCII-armored bytes, so a caller that both verifies and mirrors
// a key (the store visitor) doesn't have to re-fetch or re-serialize it.
type Key struct {
	Fingerprint string
	Armored     []byte
	entity      *openpgp.Entity
}

// ParseArmoredKey parses an ASCII-armored OpenPGP public key and confirms its fingerprint
// matches wantFingerprint (case-insensitive hex), per spec §4.7's "fetch and parse... verify
// the fingerprint matches before returning".
func ParseArmoredKey(armored []byte, wantFingerprint string) (Key, error) {
	block, err := armor.Decode(bytes.NewReader(armored))
	if err != nil {
		return Key{}, fmt.Errorf("signature: decode armor: %w", err)
	}
	if block.Type != openpgp.PublicKeyType {
		return Key{}, fmt.Errorf("signature: expected a public key block, got %q", block.Type)
	}

	entities, err := openpgp.ReadKeyRing(block.Body)
	if err != nil {
		return Key{}, fmt.Errorf("signature: read key ring: %w", err)
	}
	if len(entities) != 1 {
		return Key{}, fmt.Errorf("signature: expected exactly one key, got %d", len(entities))
	}
	entity := entities[0]

	got := strings.ToUpper(fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint))
	want := strings.ToUpper(strings.ReplaceAll(wantFingerprint, " ", ""))
	if got != want {
		return Key{}, fmt.Errorf("signature: fingerprint mismatch: key material is %s, announced as %s", got, want)
	}

	return Key{Fingerprint: got, Armored: armored, entity: entity}, nil
}

// KeyRing is the set of keys loaded for a provider, read-only once built (spec §5: "the key
// set is read-only after load").
type KeyRing struct {
	keys []Key
}

// NewKeyRing builds a read-only keyring from the given keys.
func NewKeyRing(keys ...Key) KeyRing {
	return KeyRing{keys: keys}
}

// entityList returns the underlying openpgp entities, for use with openpgp.CheckDetachedSignature.
func (k KeyRing) entityList() openpgp.EntityList {
	list := make(openpgp.EntityList, 0, len(k.keys))
	for _, key := range k.keys {
		list = append(list, key.entity)
	}
	return list
}
