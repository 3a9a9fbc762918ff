// Package trace provides event-log recording for the scheduling and deadlock engines.
// This package has no dependencies on sim/ or its sub-packages; it stores pure data types.
package trace

// Kind classifies a logged engine event.
type Kind string

// Round-Robin engine events.
const (
	KindArrival  Kind = "arrival"
	KindDispatch Kind = "dispatch"
	KindPreempt  Kind = "preempt"
	KindComplete Kind = "complete"
)

// Resource graph events. The string values double as the log line prefix.
const (
	KindAddProcess     Kind = "add-process"
	KindAddResource    Kind = "add-resource"
	KindRejected       Kind = "rejected"
	KindAllocate       Kind = "alloc"
	KindAllocateFailed Kind = "alloc-failed"
	KindRequest        Kind = "req"
	KindRequestDup     Kind = "req-dup"
	KindRequestFailed  Kind = "req-failed"
	KindCancel         Kind = "cancel"
	KindRelease        Kind = "rel"
	KindReleaseNoop    Kind = "rel-noop"
	KindGrant          Kind = "grant"
	KindNoop           Kind = "no-op"
	KindDetect         Kind = "detect"
)

// Record captures a single engine event.
type Record struct {
	Clock   int64  // simulated time (RR) or operation sequence number (deadlock)
	Kind    Kind
	Subject string // id the event is about; empty when it covers several
	Message string // rendered log line
}

// String returns the rendered log line.
func (r Record) String() string {
	return r.Message
}
