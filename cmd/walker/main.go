package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/distwalker/walker/internal/config"
	"github.com/distwalker/walker/internal/fetcher"
	"github.com/distwalker/walker/internal/model"
	"github.com/distwalker/walker/internal/signature"
	"github.com/distwalker/walker/internal/source"
	"github.com/distwalker/walker/internal/store"
	"github.com/distwalker/walker/internal/visitor"
	"github.com/distwalker/walker/internal/walker"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("walk failed", "error", err)
		os.Exit(1)
	}
	slog.Info("walk complete")
}

func run(ctx context.Context, cfg config.Config) error {
	if cfg.ProviderURL == "" {
		return fmt.Errorf("PROVIDER_URL is required")
	}

	switch cfg.SourceMode {
	case "http":
		return runHTTP(ctx, cfg)
	case "file":
		return runFile(ctx, cfg)
	default:
		return fmt.Errorf("unknown SOURCE_MODE: %q", cfg.SourceMode)
	}
}

func runHTTP(ctx context.Context, cfg config.Config) error {
	f := newFetcher(cfg)
	src := source.NewHttpSource(f, cfg.ProviderURL, source.HttpOptions{Since: cfg.Since})

	metadata, err := src.LoadMetadata(ctx)
	if err != nil {
		return fmt.Errorf("load provider metadata: %w", err)
	}

	ring, err := loadKeyRing(ctx, src, metadata.Keys)
	if err != nil {
		return fmt.Errorf("load public keys: %w", err)
	}

	w, err := buildWalker[*source.HttpSource](cfg, src, func(s *source.HttpSource) source.KeySource { return s }, ring)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func runFile(ctx context.Context, cfg config.Config) error {
	src := source.NewFileSource(cfg.ProviderURL, cfg.Since)

	metadata, err := src.LoadMetadata(ctx)
	if err != nil {
		return fmt.Errorf("load mirrored provider metadata: %w", err)
	}

	ring, err := loadKeyRing(ctx, src, metadata.Keys)
	if err != nil {
		return fmt.Errorf("load mirrored public keys: %w", err)
	}

	w, err := buildWalker[*source.FileSource](cfg, src, func(s *source.FileSource) source.KeySource { return s }, ring)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func newFetcher(cfg config.Config) *fetcher.Fetcher {
	options := fetcher.Options{
		Timeout:           cfg.FetchTimeout,
		Retries:           cfg.FetchRetries,
		DefaultRetryAfter: cfg.DefaultRetryAfter,
	}
	if cfg.RateLimitPerSec > 0 {
		options.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1)
	}
	return fetcher.New(options)
}

// loadKeyRing fetches and fingerprint-verifies every announced public key up front, so the
// ValidationVisitor's KeyRing is complete before any document is visited. Its callers load the
// metadata once to obtain the announced keys, and Walker.Run loads it again, so an HttpSource
// run issues a second cheap GET for it; in exchange Walker's own contract
// (load_metadata -> load_index -> filter -> visit) stays unchanged, rather than threading a
// pre-fetched ProviderMetadata through Walker's API.
func loadKeyRing(ctx context.Context, ks source.KeySource, keys []model.Key) (signature.KeyRing, error) {
	parsed := make([]signature.Key, 0, len(keys))
	for _, key := range keys {
		k, err := ks.LoadPublicKey(ctx, key)
		if err != nil {
			return signature.KeyRing{}, fmt.Errorf("key %s: %w", key.Fingerprint, err)
		}
		parsed = append(parsed, k)
	}
	return signature.NewKeyRing(parsed...), nil
}

// buildWalker wires the visitor chain for source type S and returns a ready-to-run Walker.
// Per spec §4.5, SendVisitor operates directly on RetrievedDocument (no validation stage), so
// a configured SinkURL selects a Retrieve->Send chain instead of the default
// Retrieve->Validate->Store-to-mirror chain; the two modes are mutually exclusive per run.
func buildWalker[S source.Source](cfg config.Config, src S, keySourceOf func(S) source.KeySource, ring signature.KeyRing) (*walker.Walker[S], error) {
	allowed := visitor.AllowedClientErrors{}
	for _, code := range cfg.AllowedClientErrors {
		allowed[code] = struct{}{}
	}

	outer, err := buildOuterVisitor[S](cfg, allowed, keySourceOf, ring)
	if err != nil {
		return nil, err
	}

	return &walker.Walker[S]{
		Source:      src,
		Visitor:     outer,
		Concurrency: cfg.Concurrency,
		Filters: walker.Filters{
			IgnoreDistributions: cfg.IgnoreDistributions,
			OnlyPrefixes:        cfg.OnlyPrefixes,
			IgnorePrefixes:      cfg.IgnorePrefixes,
		},
	}, nil
}

func buildOuterVisitor[S source.Source](cfg config.Config, allowed visitor.AllowedClientErrors, keySourceOf func(S) source.KeySource, ring signature.KeyRing) (visitor.RetrievedVisitor[S], error) {
	if cfg.SinkURL != "" {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("build sink: %w", err)
		}
		return visitor.SendVisitor[S]{Sink: sink, AllowedClientErrors: allowed}, nil
	}

	policy := signature.Strict
	if strings.EqualFold(cfg.SignaturePolicy, "lenient") {
		policy = signature.Lenient
	}
	storeLeaf := visitor.StoreValidatedVisitor[S]{
		StoreVisitor: visitor.StoreVisitor{Writer: store.NewWriter(cfg.MirrorBase), AllowedClientErrors: allowed},
		KeySource:    keySourceOf,
	}
	return visitor.ValidationVisitor[S]{Keys: ring, Policy: policy, Inner: storeLeaf}, nil
}

func newSink(cfg config.Config) (store.Sink, error) {
	if strings.HasPrefix(cfg.SinkURL, "s3://") {
		rest := strings.TrimPrefix(cfg.SinkURL, "s3://")
		bucket, prefix, _ := strings.Cut(rest, "/")
		return store.NewS3Sink(context.Background(), bucket, prefix, cfg.S3ForcePathStyle)
	}
	client := &http.Client{Timeout: cfg.FetchTimeout}
	return store.NewHTTPSink(client, cfg.SinkURL, nil, fetcher.Options{
		Timeout:           cfg.FetchTimeout,
		Retries:           cfg.FetchRetries,
		DefaultRetryAfter: cfg.DefaultRetryAfter,
	}), nil
}
