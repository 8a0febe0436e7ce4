package store

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/distwalker/walker/internal/fetcher"
)

// HTTPSink POSTs document bytes to a configured URL, per spec §6's "Send sink: POST <url>,
// body = document bytes". Customize lets callers add headers (e.g. auth) before the request is
// sent, matching spec §6's "caller-supplied request customizer". Retry/backoff is
// internal/fetcher's own policy, shared via fetcher.Retry (4xx permanent, 5xx/429/transport
// retried), since SendVisitor's contract (spec §4.5) is identical to the GET fetcher's.
type HTTPSink struct {
	client    *http.Client
	url       string
	customize func(*http.Request)
	options   fetcher.Options
}

// NewHTTPSink builds a sink that POSTs to url with the given retry/backoff options.
func NewHTTPSink(client *http.Client, url string, customize func(*http.Request), options fetcher.Options) *HTTPSink {
	return &HTTPSink{client: client, url: url, customize: customize, options: options}
}

// Send POSTs data to the sink's URL, retrying on transport/5xx/429 failures up to
// options.Retries additional attempts; any other 4xx is permanent.
func (s *HTTPSink) Send(ctx context.Context, name string, data []byte) error {
	_, err := fetcher.Retry[struct{}](ctx, s.options, s.url, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.post(ctx, name, data)
	})
	return err
}

func (s *HTTPSink) post(ctx context.Context, name string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return &fetcher.Error{Kind: fetcher.KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Document-Name", name)
	if s.customize != nil {
		s.customize(req)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &fetcher.Error{Kind: fetcher.KindTransport, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		defaultWait := s.options.DefaultRetryAfter
		if defaultWait <= 0 {
			defaultWait = 10 * time.Second
		}
		wait := fetcher.RetryAfterDuration(resp.Header.Get("Retry-After"), time.Now(), defaultWait)
		return &fetcher.Error{Kind: fetcher.KindRateLimited, StatusCode: resp.StatusCode, RetryAfter: wait}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &fetcher.Error{Kind: fetcher.KindClientError, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &fetcher.Error{Kind: fetcher.KindServerError, StatusCode: resp.StatusCode}
	default:
		return &fetcher.Error{Kind: fetcher.KindUnexpectedStatus, StatusCode: resp.StatusCode}
	}
}
