package visitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/distwalker/walker/internal/model"
	"github.com/distwalker/walker/internal/signature"
	"github.com/distwalker/walker/internal/source"
)

// ValidatedVisitor consumes validation results.
type ValidatedVisitor[S source.Source] interface {
	VisitContext(ctx context.Context, s S, metadata model.ProviderMetadata) error
	VisitDocument(ctx context.Context, result Result[model.ValidatedDocument]) error
}

// ValidationError wraps a digest mismatch or signature failure, per spec §7's Integrity /
// SignatureMissing / SignatureInvalid / UnknownSigner taxonomy.
type ValidationError struct {
	Discovered model.DiscoveredDocument
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %v", e.Discovered.URL, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrIntegrity is wrapped by ValidationError when a streamed digest doesn't match its sidecar.
var ErrIntegrity = errors.New("validation: expected digest does not match actual digest")

// ValidationVisitor is the chain's second stage: Input = RetrievedDocument. It verifies
// streaming digest equality (spec §4.2: comparison happens here, not in the fetcher) and the
// detached signature against the provided KeyRing (spec §4.7), then forwards a
// ValidatedDocument or ValidationError to its inner visitor.
type ValidationVisitor[S source.Source] struct {
	Keys   signature.KeyRing
	Policy signature.Policy
	Inner  ValidatedVisitor[S]
}

// VisitContext passes the metadata straight through to the inner visitor.
func (v ValidationVisitor[S]) VisitContext(ctx context.Context, s S, metadata model.ProviderMetadata) error {
	return v.Inner.VisitContext(ctx, s, metadata)
}

// VisitDocument implements RetrievedVisitor[S], making ValidationVisitor chainable directly
// after a RetrievingVisitor.
func (v ValidationVisitor[S]) VisitDocument(ctx context.Context, result Result[model.RetrievedDocument]) error {
	if !result.Ok() {
		return v.Inner.VisitDocument(ctx, Result[model.ValidatedDocument]{Err: result.Err})
	}

	retrieved := result.Value
	if err := checkDigests(retrieved); err != nil {
		return v.Inner.VisitDocument(ctx, Result[model.ValidatedDocument]{
			Err: &ValidationError{Discovered: retrieved.Discovered, Err: err},
		})
	}

	validated, err := v.checkSignature(retrieved)
	if err != nil {
		return v.Inner.VisitDocument(ctx, Result[model.ValidatedDocument]{
			Err: &ValidationError{Discovered: retrieved.Discovered, Err: err},
		})
	}
	return v.Inner.VisitDocument(ctx, Result[model.ValidatedDocument]{Value: validated})
}

func checkDigests(retrieved model.RetrievedDocument) error {
	if retrieved.SHA256 != nil && !retrieved.SHA256.Matches() {
		return fmt.Errorf("%w (sha256)", ErrIntegrity)
	}
	if retrieved.SHA512 != nil && !retrieved.SHA512.Matches() {
		return fmt.Errorf("%w (sha512)", ErrIntegrity)
	}
	return nil
}

func (v ValidationVisitor[S]) checkSignature(retrieved model.RetrievedDocument) (model.ValidatedDocument, error) {
	if len(retrieved.Signature) == 0 {
		if err := v.Policy.EvaluateMissing(); err != nil {
			return model.ValidatedDocument{}, err
		}
		return model.ValidatedDocument{Retrieved: retrieved}, nil
	}

	result, err := signature.VerifyDetached(v.Keys, retrieved.Data, retrieved.Signature)
	if err != nil {
		return model.ValidatedDocument{}, err
	}
	return model.ValidatedDocument{
		Retrieved:      retrieved,
		SignerKeyID:    result.SignerID,
		SignatureValid: result.Valid,
	}, nil
}
