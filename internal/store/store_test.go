package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/distwalker/walker/internal/model"
)

func TestPercentEncodeMatchesSpecExample(t *testing.T) {
	got := percentEncode("https://example.com/advisories/")
	want := "https%3A%2F%2Fexample%2Ecom%2Fadvisories%2F"
	if got != want {
		t.Fatalf("percentEncode = %q, want %q", got, want)
	}
}

func TestAtomicWriteBytesIsAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "file.txt")

	if err := atomicWriteBytes(dst, []byte("hello")); err != nil {
		t.Fatalf("atomicWriteBytes: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "file.txt" {
			t.Fatalf("unexpected leftover entry %q, temp file not cleaned up", e.Name())
		}
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("content = %q, want %q", got, "hello")
	}
}

func TestWriteDocumentWritesAllSidecars(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	distCtx := model.NewDistributionContext("https://example.test/provider-metadata.json", "https://example.test/advisories/")
	discovered := model.DiscoveredDocument{Context: distCtx, URL: "https://example.test/advisories/doc.json"}
	doc := model.RetrievedDocument{
		Discovered: discovered,
		Data:       []byte(`{"id":"doc"}`),
		Signature:  []byte("-----BEGIN PGP SIGNATURE-----\n...\n-----END PGP SIGNATURE-----"),
		SHA256:     &model.RetrievedDigest{Expected: []byte{0x01, 0x02}},
		Metadata:   model.RetrievalMetadata{ETag: `"abc"`, LastModification: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	if err := w.WriteDocument(doc); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}

	base := filepath.Join(dir, distributionDir(distCtx.URL()), "doc.json")
	for _, suffix := range []string{"", ".asc", ".sha256", ".meta.json"} {
		if _, err := os.Stat(base + suffix); err != nil {
			t.Fatalf("expected %s to exist: %v", base+suffix, err)
		}
	}
	if _, err := os.Stat(base + ".sha512"); !os.IsNotExist(err) {
		t.Fatalf("expected no .sha512 sidecar when SHA512 is nil, stat err = %v", err)
	}

	var meta retrievalMeta
	metaData, err := os.ReadFile(base + ".meta.json")
	if err != nil {
		t.Fatalf("read .meta.json: %v", err)
	}
	if err := json.Unmarshal(metaData, &meta); err != nil {
		t.Fatalf("unmarshal .meta.json: %v", err)
	}
	if meta.ETag != `"abc"` {
		t.Fatalf("meta.ETag = %q, want %q", meta.ETag, `"abc"`)
	}
}

func TestWriteErrorWritesStatusCodeSidecar(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	distCtx := model.NewDistributionContext("https://example.test/provider-metadata.json", "https://example.test/advisories/")
	discovered := model.DiscoveredDocument{Context: distCtx, URL: "https://example.test/advisories/missing.json"}

	if err := w.WriteError(discovered, 404); err != nil {
		t.Fatalf("WriteError: %v", err)
	}

	path := filepath.Join(dir, distributionDir(distCtx.URL()), "missing.json.errors")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"status_code":404}` {
		t.Fatalf("sidecar content = %q, want %q", data, `{"status_code":404}`)
	}
}

func TestPrepareDistributionsCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	metadata := model.ProviderMetadata{Distributions: []model.Distribution{
		{DirectoryURL: "https://example.test/advisories/"},
		{Rolie: &model.Rolie{Feeds: []model.RolieFeed{{URL: "https://example.test/feed.json"}}}},
	}}

	if err := w.PrepareDistributions(metadata); err != nil {
		t.Fatalf("PrepareDistributions: %v", err)
	}

	for _, distURL := range []string{"https://example.test/advisories/", "https://example.test/feed.json"} {
		if _, err := os.Stat(filepath.Join(dir, distributionDir(distURL))); err != nil {
			t.Fatalf("expected distribution directory for %s: %v", distURL, err)
		}
	}
}

func TestWriteKeySkipsNothingWhenArmoredPresent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if err := w.WriteKey("ABCDEF0123456789", []byte("armored-key-bytes")); err != nil {
		t.Fatalf("WriteKey: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "metadata", "keys", "abcdef0123456789.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "armored-key-bytes" {
		t.Fatalf("content = %q, want %q", got, "armored-key-bytes")
	}
}
