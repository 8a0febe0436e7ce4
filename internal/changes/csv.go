// Package changes enumerates the documents of a distribution: the CSV change feed used by
// directory distributions, and the ROLIE JSON feed used by ROLIE distributions. Grounded in
// original_source's csaf/src/visitors/store.rs (rolie feed traversal) and
// sbom/src/source/http.rs (ChangeSource::retrieve), and in the teacher's config-parsing style
// for tolerant, line-oriented stdlib parsing.
package changes

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// Entry is one row of a change feed: a document path (relative to the distribution base) and
// the time it was last modified.
type Entry struct {
	Path     string
	Modified time.Time
}

// ParseCSV parses a change feed in the "path,iso8601-timestamp" shape, no header row, as
// served at "<distribution>/changes.csv" (spec §6). Any unparseable line is a fatal error, per
// spec §7's "malformed ... change feed — fatal" rule.
func ParseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var entries []Entry
	line := 0
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("change feed: line %d: %w", line, err)
		}
		modified, err := time.Parse(time.RFC3339, strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("change feed: line %d: invalid timestamp %q: %w", line, record[1], err)
		}
		entries = append(entries, Entry{Path: strings.TrimSpace(record[0]), Modified: modified})
	}
	return entries, nil
}
