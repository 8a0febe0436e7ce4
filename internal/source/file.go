package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/distwalker/walker/internal/digest"
	"github.com/distwalker/walker/internal/model"
	"github.com/distwalker/walker/internal/signature"
)

// sidecarExtensions lists the suffixes FileSource skips while walking for candidate documents,
// matching the mirror layout StoreVisitor writes (spec §4.3/§6).
var sidecarExtensions = []string{".asc", ".sha256", ".sha512", ".errors", ".meta.json"}

func isSidecar(path string) bool {
	for _, ext := range sidecarExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// FileSource reads a directory tree written by the store visitor, serving it as a Source in
// its own right — spec §8 property 6, "the mirror is a source". Grounded in the teacher's
// internal/cache/fs.go FSStore, generalized from a single-key Get/Head pair to a directory
// walk over many documents.
type FileSource struct {
	base  string
	since time.Time
}

// NewFileSource builds a FileSource rooted at base.
func NewFileSource(base string, since time.Time) *FileSource {
	return &FileSource{base: base, since: since}
}

// LoadMetadata reads metadata/provider-metadata.json from the mirror.
func (s *FileSource) LoadMetadata(_ context.Context) (model.ProviderMetadata, error) {
	path := filepath.Join(s.base, "metadata", "provider-metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ProviderMetadata{}, fmt.Errorf("source: read mirrored provider metadata: %w", err)
	}
	var metadata model.ProviderMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return model.ProviderMetadata{}, fmt.Errorf("source: parse mirrored provider metadata: %w", err)
	}
	return metadata, nil
}

// LoadIndex walks the mirror directory tree, skipping sidecar files and the metadata
// directory, producing one DiscoveredDocument per candidate file.
func (s *FileSource) LoadIndex(_ context.Context, metadata model.ProviderMetadata) ([]model.DiscoveredDocument, error) {
	metadataDir := filepath.Join(s.base, "metadata")
	var docs []model.DiscoveredDocument

	err := filepath.WalkDir(s.base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == metadataDir {
				return filepath.SkipDir
			}
			return nil
		}
		if isSidecar(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(s.base, path)
		if err != nil {
			return err
		}
		distDir, docRel := splitDistributionDir(rel)

		metaPath := path + ".meta.json"
		modified := info.ModTime()
		if metaData, err := os.ReadFile(metaPath); err == nil {
			var m struct {
				LastModification time.Time `json:"last_modification"`
			}
			if json.Unmarshal(metaData, &m) == nil && !m.LastModification.IsZero() {
				modified = m.LastModification
			}
		}
		if !s.since.IsZero() && modified.Before(s.since) {
			return nil
		}

		docs = append(docs, model.DiscoveredDocument{
			Context:      model.NewDistributionContext(s.base, distDir),
			URL:          filepath.ToSlash(filepath.Join(distDir, docRel)),
			Modified:     modified,
			DigestURL:    path + ".sha256",
			SignatureURL: path + ".asc",
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: walk mirror: %w", err)
	}
	return docs, nil
}

// splitDistributionDir splits a mirror-relative path into its top-level distribution
// directory and the path of the document within it.
func splitDistributionDir(rel string) (distDir, docRel string) {
	parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
	if len(parts) != 2 {
		return "", rel
	}
	return parts[0], parts[1]
}

// LoadDocument reads a document and its sidecars from disk.
func (s *FileSource) LoadDocument(_ context.Context, discovered model.DiscoveredDocument) (model.RetrievedDocument, error) {
	path := filepath.Join(s.base, filepath.FromSlash(discovered.URL))
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RetrievedDocument{}, fmt.Errorf("source: read mirrored document: %w", err)
	}

	retrieved := model.RetrievedDocument{Discovered: discovered, Data: data}

	if sig, err := os.ReadFile(path + ".asc"); err == nil {
		retrieved.Signature = sig
	}
	if sidecar, err := os.ReadFile(path + ".sha256"); err == nil {
		retrieved.SHA256 = buildRetrievedDigest(digest.SHA256, sidecar, digest.Compute(digest.SHA256, data))
	}
	if sidecar, err := os.ReadFile(path + ".sha512"); err == nil {
		retrieved.SHA512 = buildRetrievedDigest(digest.SHA512, sidecar, digest.Compute(digest.SHA512, data))
	}
	if metaData, err := os.ReadFile(path + ".meta.json"); err == nil {
		var m struct {
			ETag             string    `json:"etag"`
			LastModification time.Time `json:"last_modification"`
		}
		if json.Unmarshal(metaData, &m) == nil {
			retrieved.Metadata = model.RetrievalMetadata{ETag: m.ETag, LastModification: m.LastModification}
		}
	}

	return retrieved, nil
}

// LoadPublicKey reads an ASCII-armored key from metadata/keys/<fingerprint>.txt.
func (s *FileSource) LoadPublicKey(_ context.Context, key model.Key) (signature.Key, error) {
	path := filepath.Join(s.base, "metadata", "keys", strings.ToLower(key.Fingerprint)+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return signature.Key{}, fmt.Errorf("source: read mirrored key: %w", err)
	}
	return signature.ParseArmoredKey(data, key.Fingerprint)
}
