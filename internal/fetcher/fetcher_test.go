package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(t *testing.T, srv *httptest.Server, opts Options) *Fetcher {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	return WithClient(srv.Client(), opts)
}

// S1: 200 "Hello, World!" returns that string.
func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Hello, World!"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, Options{Retries: 2})
	got, err := Fetch[string](context.Background(), f, srv.URL, StringProcessor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello, World!" {
		t.Fatalf("got %q, want %q", got, "Hello, World!")
	}
}

// Property 1: 404 is not retried; ClientError surfaces for non-optional fetches.
func TestFetch404NotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, Options{Retries: 5})
	_, err := Fetch[string](context.Background(), f, srv.URL, StringProcessor{})
	if err == nil {
		t.Fatal("expected an error")
	}
	status, ok := ClientError(err)
	if !ok || status != http.StatusNotFound {
		t.Fatalf("expected ClientError(404), got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", got)
	}
}

// Property 1 (optional path): 404 on an Optional fetch yields (nil, nil) without retry.
func TestFetchOptional404(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, Options{Retries: 5})
	got, err := FetchOptional[string](context.Background(), f, srv.URL, StringProcessor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", *got)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", n)
	}
}

// S2 / Property 2: 429 with Retry-After: 1 waits at least 1s before the next attempt.
func TestFetch429WithRetryAfterSeconds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, Options{Retries: 2, DefaultRetryAfter: 10 * time.Second})
	start := time.Now()
	got, err := Fetch[string](context.Background(), f, srv.URL, StringProcessor{})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("got %q, want %q", got, "ok")
	}
	if elapsed < time.Second {
		t.Fatalf("expected to wait at least 1s, waited %s", elapsed)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", n)
	}
}

// S3 / Property 3: 429 without a header uses the configured default.
func TestFetch429DefaultRetryAfter(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, Options{Retries: 2, DefaultRetryAfter: 1500 * time.Millisecond})
	start := time.Now()
	_, err := Fetch[string](context.Background(), f, srv.URL, StringProcessor{})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed < 1500*time.Millisecond {
		t.Fatalf("expected to wait at least default (1.5s), waited %s", elapsed)
	}
	if elapsed > 4*time.Second {
		t.Fatalf("waited suspiciously long: %s", elapsed)
	}
}

// S4 / Property 4 (partial): 500 twice then 200 succeeds after 3 attempts.
func TestFetch5xxRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Success"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, Options{Retries: 5})
	got, err := Fetch[string](context.Background(), f, srv.URL, StringProcessor{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Success" {
		t.Fatalf("got %q, want %q", got, "Success")
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", n)
	}
}

// S5 / Property 4 (exhaustion): with retries=2, a permanently-5xx endpoint gets exactly 3 attempts.
func TestFetch5xxExhaustsRetries(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, Options{Retries: 2})
	_, err := Fetch[string](context.Background(), f, srv.URL, StringProcessor{})
	if err == nil {
		t.Fatal("expected an error")
	}
	var fe *Error
	if e, ok := err.(*Error); ok {
		fe = e
	}
	if fe == nil || fe.Kind != KindServerError {
		t.Fatalf("expected KindServerError, got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("expected exactly 3 attempts (N+1), got %d", n)
	}
}

func TestOtherClientErrorsNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, Options{Retries: 5})
	_, err := Fetch[string](context.Background(), f, srv.URL, StringProcessor{})
	status, ok := ClientError(err)
	if !ok || status != http.StatusForbidden {
		t.Fatalf("expected ClientError(403), got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", n)
	}
}

func TestRetryAfterDurationParsing(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		header  string
		want    time.Duration
	}{
		{"delta seconds", "5", 5 * time.Second},
		{"empty uses default", "", 2 * time.Second},
		{"garbage uses default", "not-a-date", 2 * time.Second},
		{"future http-date", now.Add(3 * time.Second).Format(http.TimeFormat), 3 * time.Second},
		{"past http-date clamps to zero", now.Add(-3 * time.Second).Format(http.TimeFormat), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RetryAfterDuration(tc.header, now, 2*time.Second)
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseRetryAfterDeltaSeconds(t *testing.T) {
	for _, s := range []string{"0", "1", "120"} {
		want, _ := strconv.ParseUint(s, 10, 64)
		dur, _, isDuration, ok := parseRetryAfter(s)
		if !ok || !isDuration {
			t.Fatalf("expected delta-seconds parse for %q", s)
		}
		if dur != time.Duration(want)*time.Second {
			t.Fatalf("got %s, want %ds", dur, want)
		}
	}
}
