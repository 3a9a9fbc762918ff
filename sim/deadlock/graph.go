// Implements the resource-allocation graph: processes, resources, the
// allocation map (resource -> holder) and the ordered set of pending requests.

package deadlock

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/osviz/osviz/sim/trace"
)

// Request is a pending (process, resource) pair: the process waits for the resource.
type Request struct {
	Process  string `yaml:"process" json:"process"`
	Resource string `yaml:"resource" json:"resource"`
}

// ResourceGraph holds allocation edges (resource -> process) and request
// edges (process -> resource). Mutating operations never fail: an operation
// that cannot apply leaves the graph unchanged and logs a diagnostic.
type ResourceGraph struct {
	processes []string
	procIndex map[string]int
	resources []string
	resIndex  map[string]int
	holder    map[string]string // resource -> holding process; absent when unheld
	requests  []Request         // insertion order, unique pairs
	log       trace.Log
	seq       int64 // operation counter, used as the log clock
}

// NewResourceGraph returns an empty graph.
func NewResourceGraph() *ResourceGraph {
	return &ResourceGraph{
		procIndex: make(map[string]int),
		resIndex:  make(map[string]int),
		holder:    make(map[string]string),
	}
}

func (g *ResourceGraph) logf(kind trace.Kind, subject, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logrus.Debug(msg)
	g.log.Append(trace.Record{Clock: g.seq, Kind: kind, Subject: subject, Message: msg})
}

func (g *ResourceGraph) hasProcess(id string) bool {
	_, ok := g.procIndex[id]
	return ok
}

func (g *ResourceGraph) hasResource(id string) bool {
	_, ok := g.resIndex[id]
	return ok
}

func (g *ResourceGraph) requestIndex(process, resource string) int {
	for i, r := range g.requests {
		if r.Process == process && r.Resource == resource {
			return i
		}
	}
	return -1
}

func (g *ResourceGraph) removeRequestAt(i int) {
	g.requests = append(g.requests[:i:i], g.requests[i+1:]...)
}

// AddProcess registers a process. Empty or duplicate ids are rejected.
func (g *ResourceGraph) AddProcess(id string) bool {
	g.seq++
	if id == "" || g.hasProcess(id) {
		g.logf(trace.KindRejected, id, "rejected: process %q is empty or already exists", id)
		return false
	}
	g.procIndex[id] = len(g.processes)
	g.processes = append(g.processes, id)
	g.logf(trace.KindAddProcess, id, "add-process: %s", id)
	return true
}

// AddResource registers an unheld resource. Empty or duplicate ids are rejected.
func (g *ResourceGraph) AddResource(id string) bool {
	g.seq++
	if id == "" || g.hasResource(id) {
		g.logf(trace.KindRejected, id, "rejected: resource %q is empty or already exists", id)
		return false
	}
	g.resIndex[id] = len(g.resources)
	g.resources = append(g.resources, id)
	g.logf(trace.KindAddResource, id, "add-resource: %s", id)
	return true
}

// Allocate gives resource to process if the resource is unheld. A pending
// request for the same pair is considered fulfilled and removed.
func (g *ResourceGraph) Allocate(resource, process string) bool {
	g.seq++
	switch {
	case !g.hasResource(resource):
		g.logf(trace.KindAllocateFailed, resource, "alloc-failed: unknown resource %s", resource)
		return false
	case !g.hasProcess(process):
		g.logf(trace.KindAllocateFailed, resource, "alloc-failed: unknown process %s", process)
		return false
	}
	if h, held := g.holder[resource]; held {
		g.logf(trace.KindAllocateFailed, resource, "alloc-failed: %s busy (held by %s)", resource, h)
		return false
	}
	g.holder[resource] = process
	if i := g.requestIndex(process, resource); i >= 0 {
		g.removeRequestAt(i)
	}
	g.logf(trace.KindAllocate, resource, "alloc: %s -> %s", resource, process)
	return true
}

// Request records that process waits for resource. Idempotent: a pair that
// is already pending is left as is.
func (g *ResourceGraph) Request(process, resource string) bool {
	g.seq++
	if !g.hasProcess(process) || !g.hasResource(resource) {
		g.logf(trace.KindRequestFailed, process, "req-failed: unknown process %s or resource %s", process, resource)
		return false
	}
	if g.requestIndex(process, resource) >= 0 {
		g.logf(trace.KindRequestDup, process, "req-dup: %s -> %s already pending", process, resource)
		return false
	}
	g.requests = append(g.requests, Request{Process: process, Resource: resource})
	g.logf(trace.KindRequest, process, "req: %s -> %s", process, resource)
	return true
}

// CancelRequest withdraws a pending request. Unknown pairs are a logged no-op.
func (g *ResourceGraph) CancelRequest(process, resource string) bool {
	g.seq++
	i := g.requestIndex(process, resource)
	if i < 0 {
		g.logf(trace.KindNoop, process, "no-op: no pending request %s -> %s", process, resource)
		return false
	}
	g.removeRequestAt(i)
	g.logf(trace.KindCancel, process, "cancel: %s -> %s", process, resource)
	return true
}

// Release frees resource from its holder. Releasing an unheld resource is a logged no-op.
func (g *ResourceGraph) Release(resource string) bool {
	g.seq++
	h, held := g.holder[resource]
	if !held {
		g.logf(trace.KindReleaseNoop, resource, "rel-noop: %s not held", resource)
		return false
	}
	delete(g.holder, resource)
	g.logf(trace.KindRelease, resource, "rel: %s from %s", resource, h)
	return true
}

// GrantStep grants the first pending request, in insertion order, whose
// resource is free. At most one request is granted per call.
func (g *ResourceGraph) GrantStep() (Request, bool) {
	g.seq++
	for i, r := range g.requests {
		if _, held := g.holder[r.Resource]; held {
			continue
		}
		g.holder[r.Resource] = r.Process
		g.removeRequestAt(i)
		g.logf(trace.KindGrant, r.Resource, "grant: %s -> %s", r.Resource, r.Process)
		return r, true
	}
	g.logf(trace.KindNoop, "", "no-op: all requested resources busy")
	return Request{}, false
}

// Holder returns the process holding resource, if any.
func (g *ResourceGraph) Holder(resource string) (string, bool) {
	h, ok := g.holder[resource]
	return h, ok
}

// Processes returns process ids in registration order.
func (g *ResourceGraph) Processes() []string {
	return append([]string(nil), g.processes...)
}

// Resources returns resource ids in registration order.
func (g *ResourceGraph) Resources() []string {
	return append([]string(nil), g.resources...)
}

// Allocation returns every resource mapped to its holder; unheld resources map to "".
func (g *ResourceGraph) Allocation() map[string]string {
	out := make(map[string]string, len(g.resources))
	for _, r := range g.resources {
		out[r] = g.holder[r]
	}
	return out
}

// Requests returns pending requests in insertion order.
func (g *ResourceGraph) Requests() []Request {
	return append([]Request(nil), g.requests...)
}

// Log returns the graph's event log.
func (g *ResourceGraph) Log() *trace.Log {
	return &g.log
}
