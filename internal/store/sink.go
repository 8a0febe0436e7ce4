package store

import "context"

// Sink is a remote target SendVisitor can re-emit documents to, mirroring the teacher's
// cache.Store/cache.Redirector interface-segregation style: each concrete backend (HTTP POST,
// S3) implements this one small surface rather than a shared fat interface.
type Sink interface {
	// Send delivers a document's raw bytes under name (SendVisitor passes the document's full
	// URL). A non-nil error's Kind-equivalent classification is left to the
	// caller, which inspects *fetcher.Error via errors.As for HTTP-backed sinks.
	Send(ctx context.Context, name string, data []byte) error
}
