// Package visitor implements the typed pipeline stages (Discover → Retrieve → Validate →
// Store/Send), composed by wrapping: an outer visitor holds an inner one as a struct field,
// exactly as original_source/csaf/src/visitors/store.rs's StoreVisitor is generic over
// S: Source and wraps nothing further. Go's lack of generic methods and default type
// parameters is worked around by keeping the chain shallow: three concrete stages rather than
// an arbitrarily deep generic chain (spec §9).
package visitor

import (
	"context"
	"fmt"

	"github.com/distwalker/walker/internal/model"
	"github.com/distwalker/walker/internal/source"
)

// RetrievalError wraps a source.LoadDocument failure, carrying the DiscoveredDocument so a
// downstream visitor (the store visitor, specifically) can write error provenance correctly,
// per spec §9's "Error aggregation" design note.
type RetrievalError struct {
	Discovered model.DiscoveredDocument
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for %s: %v", e.Discovered.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// RetrievingVisitor is the chain's first stage: Input = DiscoveredDocument. It obtains a
// RetrievedDocument via the source and forwards the result (success or *RetrievalError) to its
// inner visitor.
type RetrievingVisitor[S source.Source] struct {
	Source S
	Inner  RetrievedVisitor[S]
}

// RetrievedVisitor consumes retrieval results, forwarding ValidatedDocuments or propagating
// errors, per spec §4.5.
type RetrievedVisitor[S source.Source] interface {
	VisitContext(ctx context.Context, s S, metadata model.ProviderMetadata) error
	VisitDocument(ctx context.Context, result Result[model.RetrievedDocument]) error
}

// Result carries either a successfully produced value or the typed error that replaced it,
// mirroring the Rust source's Result<Input, Err> per-document outcome.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether this result carries a usable value.
func (r Result[T]) Ok() bool { return r.Err == nil }

// Run drives one discovered document through retrieval and into the inner visitor.
func (v RetrievingVisitor[S]) Run(ctx context.Context, discovered model.DiscoveredDocument) error {
	retrieved, err := v.Source.LoadDocument(ctx, discovered)
	if err != nil {
		return v.Inner.VisitDocument(ctx, Result[model.RetrievedDocument]{
			Err: &RetrievalError{Discovered: discovered, Err: err},
		})
	}
	return v.Inner.VisitDocument(ctx, Result[model.RetrievedDocument]{Value: retrieved})
}
