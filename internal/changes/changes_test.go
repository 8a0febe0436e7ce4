package changes

import (
	"strings"
	"testing"
	"time"
)

func TestParseCSV(t *testing.T) {
	input := "2021/cve-2021-1234.json,2021-06-01T00:00:00Z\n2021/cve-2021-5678.json,2021-07-15T12:30:00Z\n"
	entries, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Path != "2021/cve-2021-1234.json" {
		t.Fatalf("got path %q", entries[0].Path)
	}
	want := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	if !entries[0].Modified.Equal(want) {
		t.Fatalf("got modified %s, want %s", entries[0].Modified, want)
	}
}

func TestParseCSVUnparseableTimestampFails(t *testing.T) {
	input := "2021/cve-2021-1234.json,not-a-timestamp\n"
	if _, err := ParseCSV(strings.NewReader(input)); err == nil {
		t.Fatal("expected an error for an unparseable timestamp")
	}
}

func TestParseCSVWrongFieldCountFails(t *testing.T) {
	input := "2021/cve-2021-1234.json\n"
	if _, err := ParseCSV(strings.NewReader(input)); err == nil {
		t.Fatal("expected an error for a malformed row")
	}
}

func TestParseCSVEmpty(t *testing.T) {
	entries, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

const rolieSample = `{
  "feed": {
    "id": "csaf-feed-tlp-white",
    "entry": [
      {
        "id": "2021-1234",
        "updated": "2021-06-01T00:00:00Z",
        "link": [
          {"rel": "self", "href": "https://example.com/2021/cve-2021-1234.json"},
          {"rel": "hash", "href": "https://example.com/2021/cve-2021-1234.json.sha256"},
          {"rel": "signature", "href": "https://example.com/2021/cve-2021-1234.json.asc"}
        ]
      },
      {
        "id": "2021-5678",
        "published": "2021-07-15T12:30:00Z",
        "content": {"src": "https://example.com/2021/cve-2021-5678.json"}
      }
    ]
  }
}`

func TestParseRolie(t *testing.T) {
	entries, err := ParseRolie(strings.NewReader(rolieSample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.URL != "https://example.com/2021/cve-2021-1234.json" {
		t.Fatalf("got url %q", first.URL)
	}
	if first.DigestURL != "https://example.com/2021/cve-2021-1234.json.sha256" {
		t.Fatalf("got digest url %q", first.DigestURL)
	}
	if first.SignatureURL != "https://example.com/2021/cve-2021-1234.json.asc" {
		t.Fatalf("got signature url %q", first.SignatureURL)
	}

	second := entries[1]
	if second.URL != "https://example.com/2021/cve-2021-5678.json" {
		t.Fatalf("got url %q (expected content.src fallback)", second.URL)
	}
	wantPublished := time.Date(2021, 7, 15, 12, 30, 0, 0, time.UTC)
	if !second.Modified.Equal(wantPublished) {
		t.Fatalf("got modified %s, want %s (expected published fallback)", second.Modified, wantPublished)
	}
}

func TestParseRolieSkipsEntryWithoutURL(t *testing.T) {
	input := `{"feed":{"entry":[{"id":"x","updated":"2021-01-01T00:00:00Z"}]}}`
	entries, err := ParseRolie(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestSinceFilterZeroKeepsEverything(t *testing.T) {
	keep := SinceFilter(time.Time{})
	if !keep(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("zero since should keep everything")
	}
}

func TestSinceFilterExcludesOlder(t *testing.T) {
	since := time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)
	keep := SinceFilter(since)
	if keep(since.Add(-time.Hour)) {
		t.Fatal("expected documents older than since to be excluded")
	}
	if !keep(since) {
		t.Fatal("expected documents exactly at since to be kept")
	}
	if !keep(since.Add(time.Hour)) {
		t.Fatal("expected documents newer than since to be kept")
	}
}
