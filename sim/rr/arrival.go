package rr

import "sort"

// ArrivalSource holds the initial process tuples of a run, ordered by arrival.
// Processes arriving at the same time keep their input order.
type ArrivalSource struct {
	specs []ProcessSpec
}

// NewArrivalSource copies and stably sorts specs by arrival time.
func NewArrivalSource(specs []ProcessSpec) *ArrivalSource {
	sorted := make([]ProcessSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Arrival < sorted[j].Arrival
	})
	return &ArrivalSource{specs: sorted}
}

// Len returns the number of processes in the source.
func (a *ArrivalSource) Len() int {
	return len(a.specs)
}

// Specs returns a copy of the sorted process tuples.
func (a *ArrivalSource) Specs() []ProcessSpec {
	out := make([]ProcessSpec, len(a.specs))
	copy(out, a.specs)
	return out
}

// Due returns the specs from cursor from onward that have arrived by time t,
// and the cursor to resume from. Specs are sorted, so the scan stops at the
// first later arrival. The returned slice aliases internal storage and must
// not be modified.
func (a *ArrivalSource) Due(from int, t int64) ([]ProcessSpec, int) {
	i := from
	for i < len(a.specs) && a.specs[i].Arrival <= t {
		i++
	}
	return a.specs[from:i], i
}

// MaxArrival returns the latest arrival time, or 0 for an empty source.
func (a *ArrivalSource) MaxArrival() int64 {
	if len(a.specs) == 0 {
		return 0
	}
	return a.specs[len(a.specs)-1].Arrival
}
