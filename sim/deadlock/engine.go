package deadlock

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/osviz/osviz/sim"
	"github.com/osviz/osviz/sim/trace"
)

var _ sim.Stepper = (*Engine)(nil)

// Snapshot is the observable engine state handed to presentation code.
type Snapshot struct {
	Processes    []string          `json:"processes"`
	Resources    []string          `json:"resources"`
	Allocation   map[string]string `json:"allocation"` // resource -> holder; "" when unheld
	Requests     []Request         `json:"requests"`
	WaitForEdges []Edge            `json:"wait_for_edges"`
	Deadlocked   []string          `json:"deadlocked"`
	EventLog     []string          `json:"event_log"`
	Paused       bool              `json:"paused"`
}

// Engine wraps a ResourceGraph with the run controls the driver needs.
// Every method is atomic with respect to the others.
type Engine struct {
	mu       sync.Mutex
	scenario Scenario
	graph    *ResourceGraph
	paused   bool
}

// NewEngine validates the scenario and builds its initial graph.
// Scripted operations are not applied; see RunScript.
func NewEngine(s Scenario) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("configuring deadlock engine: %w", err)
	}
	logrus.Infof("Deadlock engine configured: %d processes, %d resources, %d pending requests",
		len(s.Processes), len(s.Resources), len(s.Requests))
	s = s.clone()
	return &Engine{scenario: s, graph: s.build()}, nil
}

// AddProcess registers a process.
func (e *Engine) AddProcess(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.AddProcess(id)
}

// AddResource registers a resource.
func (e *Engine) AddResource(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.AddResource(id)
}

// Allocate gives an unheld resource to process.
func (e *Engine) Allocate(resource, process string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Allocate(resource, process)
}

// Request records that process waits for resource.
func (e *Engine) Request(process, resource string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Request(process, resource)
}

// CancelRequest withdraws a pending request.
func (e *Engine) CancelRequest(process, resource string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.CancelRequest(process, resource)
}

// Release frees a held resource.
func (e *Engine) Release(resource string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Release(resource)
}

// GrantStep grants at most one pending request, first come first served.
func (e *Engine) GrantStep() (Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.GrantStep()
}

// Step performs one GrantStep for the driver. It returns false when nothing
// could be granted, which ends a driven run.
func (e *Engine) Step() bool {
	_, granted := e.GrantStep()
	return granted
}

// WaitForEdges returns the current wait-for projection.
func (e *Engine) WaitForEdges() []Edge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.ProjectWaitFor()
}

// DetectDeadlock returns the processes on any wait-for cycle.
func (e *Engine) DetectDeadlock() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.DetectDeadlock()
}

// Apply performs a single scripted operation and reports whether it changed the graph.
// A detect operation only records its finding in the event log.
func (e *Engine) Apply(op Operation) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.graph
	switch op.Op {
	case OpAddProcess:
		return g.AddProcess(op.Process)
	case OpAddResource:
		return g.AddResource(op.Resource)
	case OpAllocate:
		return g.Allocate(op.Resource, op.Process)
	case OpRequest:
		return g.Request(op.Process, op.Resource)
	case OpCancel:
		return g.CancelRequest(op.Process, op.Resource)
	case OpRelease:
		return g.Release(op.Resource)
	case OpGrant:
		_, granted := g.GrantStep()
		return granted
	case OpDetect:
		g.seq++
		if d := g.DetectDeadlock(); len(d) > 0 {
			g.logf(trace.KindDetect, "", "detect: deadlock among %s", strings.Join(d, ", "))
		} else {
			g.logf(trace.KindDetect, "", "detect: no deadlock")
		}
		return false
	default:
		g.seq++
		g.logf(trace.KindNoop, "", "no-op: unknown operation %q", op.Op)
		return false
	}
}

// RunScript applies the scenario's operations in order.
func (e *Engine) RunScript() {
	for _, op := range e.scenario.Operations {
		e.Apply(op)
	}
}

// Pause marks the run as paused. The driver stops issuing steps until Resume.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume clears the paused flag.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// Paused reports whether the run is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Reset discards every change and rebuilds the graph from the scenario.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph = e.scenario.build()
	e.paused = false
	logrus.Info("Deadlock engine reset")
}

// Snapshot returns the observable state, including a fresh wait-for
// projection and deadlock check.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.graph
	return Snapshot{
		Processes:    g.Processes(),
		Resources:    g.Resources(),
		Allocation:   g.Allocation(),
		Requests:     g.Requests(),
		WaitForEdges: g.ProjectWaitFor(),
		Deadlocked:   g.DetectDeadlock(),
		EventLog:     g.log.Lines(),
		Paused:       e.paused,
	}
}

// Summary aggregates the event log.
func (e *Engine) Summary() *trace.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return trace.Summarize(&e.graph.log)
}
