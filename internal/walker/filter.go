package walker

import (
	"net/url"
	"strings"

	"github.com/distwalker/walker/internal/model"
)

// Filters narrows the documents a Walker hands to its visitor chain, applied in order per
// document — any rule that fails drops the document (spec §4.4).
type Filters struct {
	// IgnoreDistributions drops every document whose distribution URL is in this set: the
	// directory URL for a directory distribution, or for a ROLIE distribution the URL of the
	// feed the document was listed in (not only the distribution's first feed).
	IgnoreDistributions []string
	// OnlyPrefixes, if non-empty, requires a document's URL path to start with at least one
	// of these prefixes.
	OnlyPrefixes []string
	// IgnorePrefixes drops a document whose URL path starts with any of these prefixes.
	IgnorePrefixes []string
}

// keep reports whether discovered survives all filter rules. distributionURL is the URL of the
// distribution (or ROLIE feed) discovered was found under, supplied by the caller since
// DiscoveredDocument only carries an opaque DistributionContext.
func (f Filters) keep(discovered model.DiscoveredDocument, distributionURL string) bool {
	for _, ignored := range f.IgnoreDistributions {
		if ignored == distributionURL {
			return false
		}
	}

	path := urlPath(discovered.URL)

	if len(f.OnlyPrefixes) > 0 {
		matched := false
		for _, prefix := range f.OnlyPrefixes {
			if strings.HasPrefix(path, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, prefix := range f.IgnorePrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}

	return true
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
