package changes

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// rolieFeedDocument is the root of a ROLIE JSON feed document, as fetched from one of a
// provider's distribution.rolie.feeds[].url entries.
type rolieFeedDocument struct {
	Feed struct {
		Entries []rolieEntry `json:"entry"`
	} `json:"feed"`
}

type rolieEntry struct {
	ID        string      `json:"id"`
	Updated   time.Time   `json:"updated"`
	Published time.Time   `json:"published"`
	Links     []rolieLink `json:"link"`
	Content   *struct {
		Src string `json:"src"`
	} `json:"content,omitempty"`
}

type rolieLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// FeedEntry is one enumerated document out of a ROLIE feed: its absolute URL, modification
// time, and any sidecar URLs announced via "hash"/"signature" link relations.
type FeedEntry struct {
	URL          string
	Modified     time.Time
	DigestURL    string
	SignatureURL string
}

// ParseRolie parses a ROLIE JSON feed document, extracting one FeedEntry per feed entry. The
// document URL is taken from the entry's "self" link relation, falling back to content.src;
// an entry lacking either is skipped. Sidecar URLs come from "hash" and "signature" link
// relations, when present.
func ParseRolie(r io.Reader) ([]FeedEntry, error) {
	var doc rolieFeedDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("rolie feed: %w", err)
	}

	entries := make([]FeedEntry, 0, len(doc.Feed.Entries))
	for _, e := range doc.Feed.Entries {
		fe := FeedEntry{Modified: e.Updated}
		if fe.Modified.IsZero() {
			fe.Modified = e.Published
		}
		for _, l := range e.Links {
			switch l.Rel {
			case "self":
				fe.URL = l.Href
			case "hash":
				if fe.DigestURL == "" {
					fe.DigestURL = l.Href
				}
			case "signature":
				fe.SignatureURL = l.Href
			}
		}
		if fe.URL == "" && e.Content != nil {
			fe.URL = e.Content.Src
		}
		if fe.URL == "" {
			continue
		}
		entries = append(entries, fe)
	}
	return entries, nil
}
