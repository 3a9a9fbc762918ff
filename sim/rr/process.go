// Defines the process and Gantt segment types used by the Round-Robin engine.

package rr

import "fmt"

// ProcessSpec is one validated input row: a process id with its arrival and burst times.
type ProcessSpec struct {
	ID      string `yaml:"id" json:"id"`
	Arrival int64  `yaml:"arrival" json:"arrival"`
	Burst   int64  `yaml:"burst" json:"burst"`
}

// Process is the runtime view of a process once it has been admitted.
type Process struct {
	ID          string `json:"id"`
	Arrival     int64  `json:"arrival"`
	Burst       int64  `json:"burst"`
	Remaining   int64  `json:"remaining"`    // CPU time still needed; 0 means completed
	QuantumLeft int64  `json:"quantum_left"` // ticks left in the current time slice
}

func newProcess(spec ProcessSpec) Process {
	return Process{
		ID:        spec.ID,
		Arrival:   spec.Arrival,
		Burst:     spec.Burst,
		Remaining: spec.Burst,
	}
}

// This method returns a human-readable string representation of a Process.
func (p Process) String() string {
	return fmt.Sprintf("%s(rem=%d, q=%d)", p.ID, p.Remaining, p.QuantumLeft)
}

// Segment is a contiguous interval [Start, End) during which one process held the CPU.
type Segment struct {
	ID    string `json:"id"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// Duration returns End - Start.
func (s Segment) Duration() int64 {
	return s.End - s.Start
}
