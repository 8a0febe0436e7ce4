package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/distwalker/walker/internal/model"
)

const metadataDir = "metadata"

// percentEncode encodes every non-alphanumeric byte of s, matching spec §6: "Distribution
// directories are named by percent-encoding every non-alphanumeric byte of the distribution
// URL." This is stricter than url.QueryEscape (which leaves '-', '_', '.', '~' untouched), so
// it is hand-rolled rather than reusing net/url's escaper.
func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// distributionDir returns the directory name for a distribution rooted at distURL, relative
// to the mirror base.
func distributionDir(distURL string) string {
	base := distURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return percentEncode(base)
}

// relativePath computes a document's path within its distribution directory: the document URL
// with the distribution base prefix stripped (spec §8 S6).
func relativePath(distURL, docURL string) string {
	base := distURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if strings.HasPrefix(docURL, base) {
		return strings.TrimPrefix(docURL, base)
	}
	// Fall back to the URL path's final segment when the document URL isn't a simple child of
	// the distribution base (e.g. a ROLIE entry served from a different host).
	if u, err := url.Parse(docURL); err == nil {
		return filepath.Base(u.Path)
	}
	return filepath.Base(docURL)
}

// Writer writes a mirror tree rooted at Base, matching the layout FileSource reads (spec §6).
type Writer struct {
	Base string
}

// NewWriter builds a Writer rooted at base.
func NewWriter(base string) *Writer {
	return &Writer{Base: base}
}

// WriteProviderMetadata writes the provider metadata to metadata/provider-metadata.json as JSON
// re-serialized from the parsed ProviderMetadata. The upstream bytes are not kept verbatim:
// fields the model does not carry are dropped and key order follows the struct.
func (w *Writer) WriteProviderMetadata(metadata model.ProviderMetadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return wrap("marshal provider metadata", err)
	}
	dst := filepath.Join(w.Base, metadataDir, "provider-metadata.json")
	return wrap("write provider metadata", atomicWriteBytes(dst, data))
}

// WriteKey writes an ASCII-armored public key to metadata/keys/<fingerprint-hex>.txt.
func (w *Writer) WriteKey(fingerprint string, armored []byte) error {
	dst := filepath.Join(w.Base, metadataDir, "keys", strings.ToLower(fingerprint)+".txt")
	return wrap("write key", atomicWriteBytes(dst, armored))
}

// PrepareDistributions creates the distribution directories for every distribution in
// metadata up front, mirroring original_source's prepare_distributions.
func (w *Writer) PrepareDistributions(metadata model.ProviderMetadata) error {
	for _, dist := range metadata.Distributions {
		switch {
		case dist.IsDirectory():
			if err := os.MkdirAll(filepath.Join(w.Base, distributionDir(dist.DirectoryURL)), 0o755); err != nil {
				return wrap("create distribution directory", err)
			}
		case dist.Rolie != nil:
			for _, feed := range dist.Rolie.Feeds {
				if err := os.MkdirAll(filepath.Join(w.Base, distributionDir(feed.URL)), 0o755); err != nil {
					return wrap("create distribution directory", err)
				}
			}
		}
	}
	return nil
}

// documentPath returns the on-disk path for a document under its distribution directory;
// sidecar paths are formed by appending their extension to it.
func (w *Writer) documentPath(discovered model.DiscoveredDocument) string {
	rel := relativePath(discovered.Context.URL(), discovered.URL)
	return filepath.Join(w.Base, distributionDir(discovered.Context.URL()), filepath.FromSlash(rel))
}

// retrievalMeta is the JSON shape of a document's .meta.json sidecar.
type retrievalMeta struct {
	ETag             string    `json:"etag,omitempty"`
	LastModification time.Time `json:"last_modification,omitempty"`
}

// WriteDocument writes a retrieved document's bytes and its sidecars (signature, digests,
// retrieval metadata) to the mirror.
func (w *Writer) WriteDocument(doc model.RetrievedDocument) error {
	dst := w.documentPath(doc.Discovered)

	if err := atomicWriteBytes(dst, doc.Data); err != nil {
		return wrap("write document", err)
	}
	if len(doc.Signature) > 0 {
		if err := atomicWriteBytes(dst+".asc", doc.Signature); err != nil {
			return wrap("write signature sidecar", err)
		}
	}
	if doc.SHA256 != nil {
		line := fmt.Sprintf("%x  %s\n", doc.SHA256.Expected, filepath.Base(dst))
		if err := atomicWriteBytes(dst+".sha256", []byte(line)); err != nil {
			return wrap("write sha256 sidecar", err)
		}
	}
	if doc.SHA512 != nil {
		line := fmt.Sprintf("%x  %s\n", doc.SHA512.Expected, filepath.Base(dst))
		if err := atomicWriteBytes(dst+".sha512", []byte(line)); err != nil {
			return wrap("write sha512 sidecar", err)
		}
	}

	meta := retrievalMeta{ETag: doc.Metadata.ETag, LastModification: doc.Metadata.LastModification}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return wrap("marshal retrieval metadata", err)
	}
	if err := atomicWriteBytes(dst+".meta.json", metaJSON); err != nil {
		return wrap("write retrieval metadata sidecar", err)
	}
	return nil
}

// errorSidecar is the JSON shape of a document's .errors sidecar (spec §6/§4.6).
type errorSidecar struct {
	StatusCode int `json:"status_code"`
}

// WriteError records an allowed client error as a <name>.errors sidecar instead of the
// document body, per spec §4.6.
func (w *Writer) WriteError(discovered model.DiscoveredDocument, statusCode int) error {
	dst := w.documentPath(discovered)
	data, err := json.Marshal(errorSidecar{StatusCode: statusCode})
	if err != nil {
		return wrap("marshal error sidecar", err)
	}
	return wrap("write error sidecar", atomicWriteBytes(dst+".errors", data))
}
