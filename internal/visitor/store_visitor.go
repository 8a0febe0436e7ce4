package visitor

import (
	"context"

	"github.com/distwalker/walker/internal/fetcher"
	"github.com/distwalker/walker/internal/model"
	"github.com/distwalker/walker/internal/source"
	"github.com/distwalker/walker/internal/store"
)

// AllowedClientErrors is the set of 4xx status codes treated as non-fatal per document (spec
// §4.6), implemented as a map[int]struct{} following the teacher's map[string]struct{} idiom
// for hopByHopHeaders in internal/proxy/proxy.go.
type AllowedClientErrors map[int]struct{}

// AllowMissing is sugar for {404}, per spec §4.6.
func AllowMissing() AllowedClientErrors {
	return AllowedClientErrors{404: {}}
}

// Contains reports whether status is in the allowed set.
func (a AllowedClientErrors) Contains(status int) bool {
	_, ok := a[status]
	return ok
}

// StoreVisitor writes retrieved or validated documents to a mirror (spec §4.5), so the mirror
// can later be read back as a FileSource (spec §8 property 6). It is used both as a leaf
// RetrievedVisitor and as a leaf ValidatedVisitor, selected by which stage it's wired after.
type StoreVisitor struct {
	Writer              *store.Writer
	AllowedClientErrors AllowedClientErrors
}

// visitContext writes the provider metadata, prepares distribution directories, and persists
// any announced keys, exactly as original_source's StoreVisitor.visit_context does.
func (v StoreVisitor) visitContext(metadata model.ProviderMetadata, loadKey func(model.Key) ([]byte, error)) error {
	if err := v.Writer.WriteProviderMetadata(metadata); err != nil {
		return err
	}
	if err := v.Writer.PrepareDistributions(metadata); err != nil {
		return err
	}
	for _, key := range metadata.Keys {
		armored, err := loadKey(key)
		if err != nil {
			return err
		}
		if len(armored) == 0 {
			continue
		}
		if err := v.Writer.WriteKey(key.Fingerprint, armored); err != nil {
			return err
		}
	}
	return nil
}

// clientErrorStatus extracts a client-error status code from err, looking through both the
// fetcher's and a RetrievalError's wrapped chain.
func clientErrorStatus(err error) (int, bool) {
	if re, ok := err.(*RetrievalError); ok {
		return clientErrorStatus(re.Err)
	}
	return fetcher.ClientError(err)
}

// StoreRetrievedVisitor is StoreVisitor wired as a leaf RetrievedVisitor[S]: it stores
// RetrievedDocuments directly, without a validation stage in between.
type StoreRetrievedVisitor[S source.Source] struct {
	StoreVisitor
	KeySource func(S) source.KeySource // optional; nil when the source has no key-serving capability
}

// VisitContext implements RetrievedVisitor[S].
func (v StoreRetrievedVisitor[S]) VisitContext(_ context.Context, s S, metadata model.ProviderMetadata) error {
	loadKey := func(key model.Key) ([]byte, error) {
		return loadKeyArmored(s, v.KeySource, key)
	}
	return v.visitContext(metadata, loadKey)
}

// VisitDocument implements RetrievedVisitor[S]: a successful retrieval is stored verbatim; a
// retrieval failure with an allowed client-error status is recorded as a <name>.errors
// sidecar and the walk continues; any other error propagates.
func (v StoreRetrievedVisitor[S]) VisitDocument(_ context.Context, result Result[model.RetrievedDocument]) error {
	if result.Ok() {
		return v.Writer.WriteDocument(result.Value)
	}
	if status, ok := clientErrorStatus(result.Err); ok && v.AllowedClientErrors.Contains(status) {
		re := result.Err.(*RetrievalError)
		return v.Writer.WriteError(re.Discovered, status)
	}
	return result.Err
}

// StoreValidatedVisitor is StoreVisitor wired as a leaf ValidatedVisitor[S]: it stores the
// retrieved payload of a ValidatedDocument, after digest/signature checks have passed.
type StoreValidatedVisitor[S source.Source] struct {
	StoreVisitor
	KeySource func(S) source.KeySource
}

// VisitContext implements ValidatedVisitor[S].
func (v StoreValidatedVisitor[S]) VisitContext(_ context.Context, s S, metadata model.ProviderMetadata) error {
	loadKey := func(key model.Key) ([]byte, error) {
		return loadKeyArmored(s, v.KeySource, key)
	}
	return v.visitContext(metadata, loadKey)
}

// VisitDocument implements ValidatedVisitor[S]. result.Err arrives here either as a
// *ValidationError (a digest/signature failure) or, forwarded unchanged from the retrieval
// stage by ValidationVisitor.VisitDocument, as a *RetrievalError — both must be checked against
// AllowedClientErrors so an allowed status writes a <name>.errors sidecar in either case.
func (v StoreValidatedVisitor[S]) VisitDocument(_ context.Context, result Result[model.ValidatedDocument]) error {
	if !result.Ok() {
		discovered, ok := discoveredFrom(result.Err)
		if ok {
			if status, ok := clientErrorStatus(result.Err); ok && v.AllowedClientErrors.Contains(status) {
				return v.Writer.WriteError(discovered, status)
			}
		}
		return result.Err
	}
	return v.Writer.WriteDocument(result.Value.Retrieved)
}

// discoveredFrom recovers the DiscoveredDocument from whichever typed error carries it.
func discoveredFrom(err error) (model.DiscoveredDocument, bool) {
	switch e := err.(type) {
	case *RetrievalError:
		return e.Discovered, true
	case *ValidationError:
		return e.Discovered, true
	default:
		return model.DiscoveredDocument{}, false
	}
}

func loadKeyArmored[S source.Source](s S, keySourceOf func(S) source.KeySource, key model.Key) ([]byte, error) {
	if keySourceOf == nil {
		return nil, nil
	}
	ks := keySourceOf(s)
	if ks == nil {
		return nil, nil
	}
	parsed, err := ks.LoadPublicKey(context.Background(), key)
	if err != nil {
		return nil, err
	}
	return parsed.Armored, nil
}
