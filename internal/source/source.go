// Package source abstracts over where documents come from: a live HTTP provider
// (HttpSource) or a previously mirrored filesystem tree (FileSource). Both satisfy the same
// small capability interface so the walker and visitor chain are source-agnostic, grounded in
// the teacher's cache.Store/cache.Redirector interface-segregation style
// (internal/cache/cache.go).
package source

import (
	"context"

	"github.com/distwalker/walker/internal/model"
	"github.com/distwalker/walker/internal/signature"
)

// Source is the capability surface the Walker drives a provider or mirror through.
type Source interface {
	// LoadMetadata fetches and parses provider metadata, or reads it from a mirror.
	LoadMetadata(ctx context.Context) (model.ProviderMetadata, error)
	// LoadIndex enumerates documents across all of metadata's distributions.
	LoadIndex(ctx context.Context, metadata model.ProviderMetadata) ([]model.DiscoveredDocument, error)
	// LoadDocument fetches a document's bytes, signature, and digest sidecars.
	LoadDocument(ctx context.Context, discovered model.DiscoveredDocument) (model.RetrievedDocument, error)
}

// KeySource is a second capability bound: sources that can also serve announced public keys,
// so mirrors can serve keys from disk without a network round-trip.
type KeySource interface {
	LoadPublicKey(ctx context.Context, key model.Key) (signature.Key, error)
}
