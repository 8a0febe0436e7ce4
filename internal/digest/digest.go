// Package digest computes SHA-256/SHA-512 digests of a document body while it streams
// through, so the retrieval stage never has to read a response twice. It is grounded in
// the teacher's internal/stream.TeeToStore best-effort tee pattern, generalized from
// tee-to-a-file to tee-to-a-hash, and in the original Rust sbom/src/source/http.rs
// DataProcessor, which hashes while decoding.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
)

// Algorithm names one of the two digest algorithms this package supports.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

func newHash(alg Algorithm) hash.Hash {
	switch alg {
	case SHA512:
		return sha512.New()
	default:
		return sha256.New()
	}
}

// TeeReader wraps an io.Reader, accumulating one or more digests over every byte read
// from it. Callers read through Reader as usual; Sum(alg) is only meaningful once the
// underlying reader has been fully consumed.
type TeeReader struct {
	reader io.Reader
	hashes map[Algorithm]hash.Hash
}

// NewTeeReader wraps r, computing a running digest for each of algs as bytes pass through.
func NewTeeReader(r io.Reader, algs ...Algorithm) *TeeReader {
	hashes := make(map[Algorithm]hash.Hash, len(algs))
	writers := make([]io.Writer, 0, len(algs))
	for _, alg := range algs {
		h := newHash(alg)
		hashes[alg] = h
		writers = append(writers, h)
	}
	return &TeeReader{
		reader: io.TeeReader(r, io.MultiWriter(writers...)),
		hashes: hashes,
	}
}

// Read implements io.Reader, feeding every byte read to the configured hashes.
func (t *TeeReader) Read(p []byte) (int, error) {
	return t.reader.Read(p)
}

// Sum returns the running digest for alg. It returns nil if alg was not requested at
// construction time.
func (t *TeeReader) Sum(alg Algorithm) []byte {
	h, ok := t.hashes[alg]
	if !ok {
		return nil
	}
	return h.Sum(nil)
}

// Compute hashes the full contents of data for alg in one shot, for sidecar-expected-digest
// comparisons where the document is already buffered.
func Compute(alg Algorithm, data []byte) []byte {
	h := newHash(alg)
	h.Write(data)
	return h.Sum(nil)
}

// DecodeHex parses a hex-encoded digest, as found in .sha256/.sha512 sidecar files. It
// tolerates a single trailing newline and surrounding whitespace, and accepts the
// "sha256sum"-style "<hex>  <filename>" line by taking only the first field.
func DecodeHex(sidecar []byte) ([]byte, error) {
	field := firstField(sidecar)
	return hex.DecodeString(field)
}

func firstField(b []byte) string {
	start := 0
	for start < len(b) && isSpace(b[start]) {
		start++
	}
	end := start
	for end < len(b) && !isSpace(b[end]) {
		end++
	}
	return string(b[start:end])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
