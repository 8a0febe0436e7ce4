package visitor

import (
	"context"

	"github.com/distwalker/walker/internal/fetcher"
	"github.com/distwalker/walker/internal/model"
	"github.com/distwalker/walker/internal/source"
	"github.com/distwalker/walker/internal/store"
)

// SendVisitor is a leaf RetrievedVisitor[S]: it re-emits a retrieved document's bytes to a
// configured Sink (spec §4.5/§6), retrying on transport/5xx/429 and treating other 4xx as
// permanent — the sink implementation (store.HTTPSink or store.S3Sink) owns that policy.
type SendVisitor[S source.Source] struct {
	Sink                store.Sink
	AllowedClientErrors AllowedClientErrors
}

// VisitContext is a no-op: SendVisitor has no provider-level setup to perform.
func (v SendVisitor[S]) VisitContext(_ context.Context, _ S, _ model.ProviderMetadata) error {
	return nil
}

// VisitDocument sends a successfully retrieved document's bytes to the sink; a retrieval
// failure with an allowed client-error status is swallowed (nothing to send), matching the
// store visitor's allowed-error handling; any other error propagates.
func (v SendVisitor[S]) VisitDocument(ctx context.Context, result Result[model.RetrievedDocument]) error {
	if !result.Ok() {
		if status, ok := clientErrorStatus(result.Err); ok && v.AllowedClientErrors.Contains(status) {
			return nil
		}
		return result.Err
	}
	doc := result.Value
	if err := v.Sink.Send(ctx, doc.Discovered.URL, doc.Data); err != nil {
		if status, ok := fetcher.ClientError(err); ok && v.AllowedClientErrors.Contains(status) {
			return nil
		}
		return err
	}
	return nil
}
