package rr

import (
	"fmt"
	"strings"
)

// recordExecution notes that process id ran during [t, t+1). The last segment
// is extended when it belongs to id and ends at t; otherwise a new one opens.
func recordExecution(segments []Segment, id string, t int64) []Segment {
	if n := len(segments); n > 0 {
		last := &segments[n-1]
		if last.ID == id && last.End == t {
			last.End = t + 1
			return segments
		}
	}
	return append(segments, Segment{ID: id, Start: t, End: t + 1})
}

// Busy returns the total CPU time covered by segments.
func Busy(segments []Segment) int64 {
	var total int64
	for _, s := range segments {
		total += s.Duration()
	}
	return total
}

// ExecutedBy returns the CPU time each process received, keyed by id.
func ExecutedBy(segments []Segment) map[string]int64 {
	out := make(map[string]int64)
	for _, s := range segments {
		out[s.ID] += s.Duration()
	}
	return out
}

// Makespan returns the latest segment end, or 0 when nothing ran.
func Makespan(segments []Segment) int64 {
	var end int64
	for _, s := range segments {
		end = max(end, s.End)
	}
	return end
}

// Timeline renders segments as a one-line Gantt chart, e.g. "|P1 0-2|P2 2-4|".
// Gaps where the CPU sat idle are shown as "idle".
func Timeline(segments []Segment) string {
	if len(segments) == 0 {
		return "|"
	}
	var sb strings.Builder
	sb.WriteString("|")
	var cursor int64
	for _, s := range segments {
		if s.Start > cursor {
			fmt.Fprintf(&sb, "idle %d-%d|", cursor, s.Start)
		}
		fmt.Fprintf(&sb, "%s %d-%d|", s.ID, s.Start, s.End)
		cursor = s.End
	}
	return sb.String()
}
