package domain

// LoaderStats tallies unit classifications for one sync target.
//
// Invariant: every unit id discovered during a run appears in exactly one
// of Added, Updated or Skipped; every previously known unit id that was
// neither re-seen nor recorded in Failed is classified Removed.
type LoaderStats struct {
	// Added holds ids seen for the first time.
	Added []string

	// Updated holds ids whose change signal moved forward.
	Updated []string

	// Skipped holds ids whose stored signal is still current. A skipped
	// unit must not cause any write to the vector store.
	Skipped []string

	// Removed holds previously known ids not re-seen this run.
	Removed []string

	// Failed holds ids whose fetch failed mid-run. Failed units are
	// excluded from removal: a fetch failure never deletes index state.
	Failed []string
}

// Discovered returns the number of units seen this run.
func (s *LoaderStats) Discovered() int {
	return len(s.Added) + len(s.Updated) + len(s.Skipped)
}

// ReportKind discriminates progress report values.
type ReportKind int

const (
	// ReportUpdate is emitted once per completed target with its stats.
	ReportUpdate ReportKind = iota

	// ReportRemoved is emitted per orphaned unit with its deleted-row count.
	ReportRemoved

	// ReportError is emitted when a target fails outright.
	ReportError
)

// Report is one progress value delivered to the caller-supplied sink.
type Report struct {
	Kind ReportKind

	// Target labels the target kind ("page", "database", "website", "channel").
	Target TargetKind

	// ID is the target or removed unit id.
	ID string

	// Stats holds the classification tally for ReportUpdate.
	Stats LoaderStats

	// Amount is the deleted-row count for ReportRemoved.
	Amount int

	// Err carries the failure description for ReportError.
	Err string
}

// ProgressFunc receives progress reports during a sync run. It may be nil.
// Implementations must not block: the sync engine calls it inline between
// targets and does not buffer.
type ProgressFunc func(Report)

// Emit invokes the callback if it is non-nil.
func (f ProgressFunc) Emit(r Report) {
	if f != nil {
		f(r)
	}
}
