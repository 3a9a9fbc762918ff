// Derives per-process and aggregate scheduling metrics from a finished Gantt history:
// completion, turnaround, waiting and response times.

package rr

import (
	"fmt"
	"io"
	"math"
)

// Row holds the metrics of a single process.
type Row struct {
	ID         string `json:"id"`
	Arrival    int64  `json:"arrival"`
	Burst      int64  `json:"burst"`
	Completion int64  `json:"completion"` // max segment end; 0 if the process never ran
	Turnaround int64  `json:"turnaround"` // Completion - Arrival
	Waiting    int64  `json:"waiting"`    // Turnaround - Burst
	Response   int64  `json:"response"`   // first dispatch - Arrival; -1 if the process never ran
	Finished   bool   `json:"finished"`   // executed time equals Burst
}

// Report aggregates metrics across all processes of a run.
// Averages are kept at full precision; use Round2 for display.
type Report struct {
	Rows          []Row   `json:"rows"`
	AvgWaiting    float64 `json:"avg_waiting"`
	AvgTurnaround float64 `json:"avg_turnaround"`
	AvgResponse   float64 `json:"avg_response"` // over processes that were dispatched at least once
	Makespan      int64   `json:"makespan"`
	BusyTime      int64   `json:"busy_time"`
	Utilization   float64 `json:"utilization"` // BusyTime / Makespan
}

// ComputeMetrics derives the report from segments for the given processes.
// Rows follow the order of specs. It is a pure function of its inputs.
func ComputeMetrics(segments []Segment, specs []ProcessSpec) Report {
	completion := make(map[string]int64, len(specs))
	firstStart := make(map[string]int64, len(specs))
	for _, s := range segments {
		if s.End > completion[s.ID] {
			completion[s.ID] = s.End
		}
		if start, ok := firstStart[s.ID]; !ok || s.Start < start {
			firstStart[s.ID] = s.Start
		}
	}
	executed := ExecutedBy(segments)

	report := Report{
		Rows:     make([]Row, 0, len(specs)),
		Makespan: Makespan(segments),
		BusyTime: Busy(segments),
	}
	var totalWT, totalTAT, totalRT int64
	var started int
	for _, p := range specs {
		ct := completion[p.ID]
		tat := ct - p.Arrival
		row := Row{
			ID:         p.ID,
			Arrival:    p.Arrival,
			Burst:      p.Burst,
			Completion: ct,
			Turnaround: tat,
			Waiting:    tat - p.Burst,
			Response:   -1,
			Finished:   executed[p.ID] == p.Burst,
		}
		if start, ok := firstStart[p.ID]; ok {
			row.Response = start - p.Arrival
		}
		report.Rows = append(report.Rows, row)
		totalWT += row.Waiting
		totalTAT += row.Turnaround
		if row.Response >= 0 {
			totalRT += row.Response
			started++
		}
	}
	if n := len(report.Rows); n > 0 {
		report.AvgWaiting = float64(totalWT) / float64(n)
		report.AvgTurnaround = float64(totalTAT) / float64(n)
	}
	if started > 0 {
		report.AvgResponse = float64(totalRT) / float64(started)
	}
	if report.Makespan > 0 {
		report.Utilization = float64(report.BusyTime) / float64(report.Makespan)
	}
	return report
}

// Round2 rounds v to two decimal places for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Print writes the metrics table and averages to w.
func (r Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Round-Robin Metrics ===")
	fmt.Fprintf(w, "%-8s %8s %6s %11s %11s %8s\n", "Process", "Arrival", "Burst", "Completion", "Turnaround", "Waiting")
	for _, row := range r.Rows {
		fmt.Fprintf(w, "%-8s %8d %6d %11d %11d %8d\n",
			row.ID, row.Arrival, row.Burst, row.Completion, row.Turnaround, row.Waiting)
	}
	fmt.Fprintf(w, "Avg WT               : %.2f\n", Round2(r.AvgWaiting))
	fmt.Fprintf(w, "Avg TAT              : %.2f\n", Round2(r.AvgTurnaround))
	fmt.Fprintf(w, "Avg Response         : %.2f\n", Round2(r.AvgResponse))
	fmt.Fprintf(w, "CPU Utilization      : %.2f%%\n", Round2(r.Utilization*100))
}
