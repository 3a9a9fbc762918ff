package trace

// Summary aggregates statistics from an event log.
type Summary struct {
	Total          int
	KindCounts     map[Kind]int
	UniqueSubjects int
}

// Summarize computes aggregate statistics from a Log.
// Safe for nil or empty logs (returns zero-value fields).
func Summarize(l *Log) *Summary {
	summary := &Summary{
		KindCounts: make(map[Kind]int),
	}
	if l == nil {
		return summary
	}

	subjects := make(map[string]struct{})
	for _, r := range l.records {
		summary.Total++
		summary.KindCounts[r.Kind]++
		if r.Subject != "" {
			subjects[r.Subject] = struct{}{}
		}
	}
	summary.UniqueSubjects = len(subjects)

	return summary
}
