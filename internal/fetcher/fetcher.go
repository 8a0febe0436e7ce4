// Package fetcher provides an HTTP client with retry, exponential backoff, and
// Retry-After-aware rate-limit handling, generalized from the teacher's
// internal/proxy upstream client and grounded in the original Rust fetcher
// (common/src/fetcher/mod.rs in original_source).
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// Options configures a Fetcher.
type Options struct {
	Timeout           time.Duration
	Retries           int           // additive to the initial attempt
	DefaultRetryAfter time.Duration // used when a 429 doesn't carry a Retry-After header
	Limiter           *rate.Limiter // optional client-side pacing; nil disables it
}

// DefaultOptions returns the teacher-scale defaults: a 30s timeout, 5 retries, and a 10s
// default retry-after, matching original_source/common/src/fetcher/mod.rs's FetcherOptions.
func DefaultOptions() Options {
	return Options{
		Timeout:           30 * time.Second,
		Retries:           5,
		DefaultRetryAfter: 10 * time.Second,
	}
}

// Fetcher performs GET requests with retry/backoff and 429 handling.
type Fetcher struct {
	client  *http.Client
	options Options
}

// New builds a Fetcher from options, configuring its transport for HTTP/2 over TLS.
func New(options Options) *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	// Client-side HTTP/2 negotiation, mirroring the teacher's server-side h2c setup
	// (main.go) but applied to outbound connections instead of inbound ones.
	_ = http2.ConfigureTransport(transport)

	return &Fetcher{
		client: &http.Client{
			Timeout:   options.Timeout,
			Transport: transport,
		},
		options: options,
	}
}

// WithClient builds a Fetcher around an already-constructed *http.Client, for tests that need
// to swap in an httptest server's client.
func WithClient(client *http.Client, options Options) *Fetcher {
	return &Fetcher{client: client, options: options}
}

// Processor consumes a successful (2xx) HTTP response and produces a typed result.
type Processor[T any] interface {
	Process(ctx context.Context, resp *http.Response) (T, error)
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc[T any] func(ctx context.Context, resp *http.Response) (T, error)

// Process implements Processor.
func (f ProcessorFunc[T]) Process(ctx context.Context, resp *http.Response) (T, error) {
	return f(ctx, resp)
}

// StringProcessor reads the full body as a UTF-8 string.
type StringProcessor struct{}

// Process implements Processor[string].
func (StringProcessor) Process(_ context.Context, resp *http.Response) (string, error) {
	data, err := io.ReadAll(resp.Body)
	return string(data), err
}

// BytesProcessor reads the full body as a byte slice.
type BytesProcessor struct{}

// Process implements Processor[[]byte].
func (BytesProcessor) Process(_ context.Context, resp *http.Response) ([]byte, error) {
	return io.ReadAll(resp.Body)
}

// Retry runs attempt up to options.Retries additional times on top of the first call,
// sharing the exponential-backoff and Retry-After-aware waiting every caller against the CSAF
// provider needs: FetchProcessed uses it for GETs, and store.HTTPSink uses it for the Send
// sink's POSTs (spec §4.5/§6), so the two retry policies can never drift apart. attempt should
// return a *Error on failure so Retry can classify retryability; any other error type is
// treated as permanent.
func Retry[T any](ctx context.Context, options Options, label string, attempt func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := options.Retries + 1
	backoff := 200 * time.Millisecond
	const maxBackoff = 30 * time.Second

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := backoff
			if wait > maxBackoff {
				wait = maxBackoff
			}
			if rlErr, ok := lastErr.(*Error); ok && rlErr.Kind == KindRateLimited && rlErr.RetryAfter > wait {
				slog.Info("rate limited, extending wait", "from", wait, "to", rlErr.RetryAfter)
				wait = rlErr.RetryAfter
			}
			if err := sleepContext(ctx, wait); err != nil {
				return zero, err
			}
			backoff *= 2
		}

		if options.Limiter != nil {
			if err := options.Limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		result, err := attempt(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		fe, isFetchErr := err.(*Error)
		if !isFetchErr || !fe.Kind.retryable() {
			return zero, err
		}
		slog.Info("attempt failed, will retry", "label", label, "attempt", i+1, "error", err)
	}
	return zero, lastErr
}

// FetchProcessed performs a GET to url, retrying on transport/5xx/429 failures up to
// f.options.Retries additional attempts, and hands the successful response to proc.
// A 404 is surfaced as a *Error{Kind: KindClientError, StatusCode: 404} and is never retried,
// matching spec §4.1's "declared non-optional" path.
func FetchProcessed[T any](ctx context.Context, f *Fetcher, url string, proc Processor[T]) (T, error) {
	return Retry(ctx, f.options, url, func(ctx context.Context) (T, error) {
		return fetchOnce(ctx, f, url, proc)
	})
}

// Fetch performs a GET to url expecting a non-optional typed result: a 404 is surfaced as
// a ClientError, not translated to an empty value.
func Fetch[T any](ctx context.Context, f *Fetcher, url string, proc Processor[T]) (T, error) {
	slog.Debug("fetching", "url", url)
	return FetchProcessed(ctx, f, url, proc)
}

// FetchOptional performs a GET to url where a 404 response is not an error: it yields
// (nil, nil) without retrying, matching spec §4.1's "declared Optional<T>" path.
func FetchOptional[T any](ctx context.Context, f *Fetcher, url string, proc Processor[T]) (*T, error) {
	slog.Debug("fetching (optional)", "url", url)
	result, err := FetchProcessed(ctx, f, url, proc)
	if err != nil {
		if status, ok := ClientError(err); ok && status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// fetchOnce performs a single GET attempt: issue the request, classify the status code, and
// hand a 2xx response to the processor. It never retries — FetchProcessed owns the retry loop.
func fetchOnce[T any](ctx context.Context, f *Fetcher, url string, proc Processor[T]) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, &Error{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, &Error{Kind: KindTimeout, Err: ctxErr}
		}
		return zero, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	slog.Debug("response", "url", url, "status", resp.StatusCode)

	if fe := classifyStatus(resp, f.options.DefaultRetryAfter); fe != nil {
		// Drain so the connection can be reused even on error paths.
		_, _ = io.Copy(io.Discard, resp.Body)
		return zero, fe
	}

	result, err := proc.Process(ctx, resp)
	if err != nil {
		return zero, &Error{Kind: KindTransport, Err: err}
	}
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classifyStatus maps a response status code to a *Error, or nil for 2xx.
func classifyStatus(resp *http.Response, defaultRetryAfter time.Duration) *Error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := RetryAfterDuration(resp.Header.Get("Retry-After"), time.Now(), defaultRetryAfter)
		return &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode, RetryAfter: wait}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &Error{Kind: KindClientError, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return &Error{Kind: KindServerError, StatusCode: resp.StatusCode}
	default:
		return &Error{Kind: KindUnexpectedStatus, StatusCode: resp.StatusCode}
	}
}
