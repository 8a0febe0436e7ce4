// Package model holds the data types shared across the fetch/discover/validate/store pipeline.
package model

import "net/url"

// Publisher identifies the organization behind a provider.
type Publisher struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Namespace string `json:"namespace"`
	Contact   string `json:"contact_details,omitempty"`
}

// Key is an announced OpenPGP public key: a fingerprint plus the URL it can be fetched from.
type Key struct {
	Fingerprint string `json:"fingerprint"`
	URL         string `json:"url"`
}

// RolieFeed is one JSON feed within a ROLIE distribution.
type RolieFeed struct {
	URL string `json:"url"`
}

// Rolie is the ROLIE-shaped half of a Distribution.
type Rolie struct {
	Feeds []RolieFeed `json:"feeds"`
}

// Distribution is either a directory distribution (DirectoryURL set) or a ROLIE
// distribution (Rolie set). Exactly one of the two must be non-nil/non-empty.
type Distribution struct {
	DirectoryURL string `json:"directory_url,omitempty"`
	Rolie        *Rolie `json:"rolie,omitempty"`
}

// IsDirectory reports whether this distribution is the directory/change-feed shape.
func (d Distribution) IsDirectory() bool {
	return d.DirectoryURL != ""
}

// CanonicalURL returns the URL that identifies this distribution for filtering purposes:
// the directory URL for directory distributions, or the first feed URL for ROLIE ones.
func (d Distribution) CanonicalURL() string {
	if d.DirectoryURL != "" {
		return d.DirectoryURL
	}
	if d.Rolie != nil && len(d.Rolie.Feeds) > 0 {
		return d.Rolie.Feeds[0].URL
	}
	return ""
}

// ProviderMetadata is the root document of a provider.
type ProviderMetadata struct {
	CanonicalURL  string         `json:"canonical_url"`
	Publisher     Publisher      `json:"publisher"`
	Distributions []Distribution `json:"distributions"`
	Keys          []Key          `json:"public_openpgp_keys,omitempty"`
}

// Validate checks the invariants from the data model: every distribution URL is absolute,
// and exactly one shape is present per distribution.
func (p ProviderMetadata) Validate() error {
	for i, dist := range p.Distributions {
		switch {
		case dist.DirectoryURL != "" && dist.Rolie != nil:
			return &ValidationError{Index: i, Reason: "distribution has both a directory_url and a rolie feed"}
		case dist.DirectoryURL == "" && dist.Rolie == nil:
			return &ValidationError{Index: i, Reason: "distribution has neither a directory_url nor a rolie feed"}
		case dist.DirectoryURL != "":
			if !isAbsolute(dist.DirectoryURL) {
				return &ValidationError{Index: i, Reason: "directory_url is not absolute: " + dist.DirectoryURL}
			}
		case dist.Rolie != nil:
			for _, f := range dist.Rolie.Feeds {
				if !isAbsolute(f.URL) {
					return &ValidationError{Index: i, Reason: "rolie feed url is not absolute: " + f.URL}
				}
			}
		}
	}
	return nil
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs()
}

// ValidationError reports a provider-metadata invariant violation.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
