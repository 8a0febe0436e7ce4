// Package config reads the walker's run parameters from the environment, following the
// teacher's envOr/parseLogLevel pattern (internal/config/config.go in
// danielloader-oci-pull-through), generalized from a proxy server's listen/cache knobs to a
// one-shot retrieval run's source/filter/sink knobs.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// AWS SDK environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_REGION,
// AWS_ENDPOINT_URL) are read directly by the SDK's default credential chain and do not appear
// in this struct.

// Config holds one walker run's parameters.
type Config struct {
	ProviderURL string // root provider-metadata.json URL, or a mirror directory when SourceMode == "file"
	SourceMode  string // "http" or "file"
	MirrorBase  string // local directory the store visitor writes into

	Since time.Time

	SignaturePolicy string // "strict" or "lenient"

	IgnoreDistributions []string
	OnlyPrefixes         []string
	IgnorePrefixes       []string
	AllowedClientErrors  []int

	SinkURL string // "" disables sending; "https://..." POSTs, "s3://bucket/prefix" archives

	FetchTimeout     time.Duration
	FetchRetries     int
	DefaultRetryAfter time.Duration
	RateLimitPerSec  float64 // 0 disables client-side pacing

	Concurrency int

	S3ForcePathStyle bool

	LogLevel slog.Level
}

// Load reads a Config from the process environment.
func Load() Config {
	timeout, _ := strconv.Atoi(envOr("FETCH_TIMEOUT_SECONDS", "30"))
	retries, _ := strconv.Atoi(envOr("FETCH_RETRIES", "5"))
	defaultRetryAfter, _ := strconv.Atoi(envOr("DEFAULT_RETRY_AFTER_SECONDS", "10"))
	rateLimit, _ := strconv.ParseFloat(envOr("RATE_LIMIT_PER_SECOND", "0"), 64)
	concurrency, _ := strconv.Atoi(envOr("CONCURRENCY", "1"))

	var since time.Time
	if raw := os.Getenv("SINCE"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		}
	}

	return Config{
		ProviderURL:          os.Getenv("PROVIDER_URL"),
		SourceMode:           envOr("SOURCE_MODE", "http"),
		MirrorBase:           envOr("MIRROR_BASE", "/data/mirror"),
		Since:                since,
		SignaturePolicy:      envOr("SIGNATURE_POLICY", "strict"),
		IgnoreDistributions:  splitList(os.Getenv("IGNORE_DISTRIBUTIONS")),
		OnlyPrefixes:         splitList(os.Getenv("ONLY_PREFIXES")),
		IgnorePrefixes:       splitList(os.Getenv("IGNORE_PREFIXES")),
		AllowedClientErrors:  splitInts(os.Getenv("ALLOWED_CLIENT_ERRORS")),
		SinkURL:              os.Getenv("SINK_URL"),
		FetchTimeout:         time.Duration(timeout) * time.Second,
		FetchRetries:         retries,
		DefaultRetryAfter:    time.Duration(defaultRetryAfter) * time.Second,
		RateLimitPerSec:      rateLimit,
		Concurrency:          concurrency,
		S3ForcePathStyle:     envOr("S3_FORCE_PATH_STYLE", "false") == "true",
		LogLevel:             parseLogLevel(envOr("LOG_LEVEL", "info")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitInts(raw string) []int {
	var out []int
	for _, s := range splitList(raw) {
		if n, err := strconv.Atoi(s); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
