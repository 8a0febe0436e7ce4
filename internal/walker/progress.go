package walker

// Progress is the abstract progress sink a Walker reports discovery counts to (spec §4.4:
// "an abstract progress sink (count, label) consumed at discovery time"). Implementations may
// log, update a terminal spinner, or emit metrics; a nil Walker.Progress disables reporting.
type Progress interface {
	// Report is called after filtering, once per distribution, with the number of that
	// distribution's documents that survived and a label identifying the distribution.
	Report(count int, label string)
}

// NopProgress discards all reports.
type NopProgress struct{}

// Report implements Progress.
func (NopProgress) Report(int, string) {}
