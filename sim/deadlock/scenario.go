package deadlock

import (
	"context"
	"fmt"

	"github.com/osviz/osviz/internal/source"
)

// OpKind names a scripted graph operation.
type OpKind string

const (
	OpAddProcess  OpKind = "add-process"
	OpAddResource OpKind = "add-resource"
	OpAllocate    OpKind = "allocate"
	OpRequest     OpKind = "request"
	OpCancel      OpKind = "cancel"
	OpRelease     OpKind = "release"
	OpGrant       OpKind = "grant"
	OpDetect      OpKind = "detect"
)

// validOps is the set of recognized operation names, with the ids each one needs.
var validOps = map[OpKind]struct{ process, resource bool }{
	OpAddProcess:  {process: true},
	OpAddResource: {resource: true},
	OpAllocate:    {process: true, resource: true},
	OpRequest:     {process: true, resource: true},
	OpCancel:      {process: true, resource: true},
	OpRelease:     {resource: true},
	OpGrant:       {},
	OpDetect:      {},
}

// Operation is one scripted step applied after the initial graph is built.
type Operation struct {
	Op       OpKind `yaml:"op"`
	Process  string `yaml:"process,omitempty"`
	Resource string `yaml:"resource,omitempty"`
}

// Scenario is the initial resource-allocation graph plus an optional script.
// Loadable from a YAML file.
type Scenario struct {
	Processes  []string          `yaml:"processes"`
	Resources  []string          `yaml:"resources"`
	Allocation map[string]string `yaml:"allocation"` // resource -> holding process; "" = unheld
	Requests   []Request         `yaml:"requests"`
	Operations []Operation       `yaml:"operations,omitempty"`
	Speed      float64           `yaml:"speed,omitempty"` // pacing hint for the driver; never affects results
}

// DefaultScenario returns the classic two-process deadlock: P1 holds R1 and
// waits for R2, P2 holds R2 and waits for R1. P3 is idle.
func DefaultScenario() Scenario {
	return Scenario{
		Processes:  []string{"P1", "P2", "P3"},
		Resources:  []string{"R1", "R2"},
		Allocation: map[string]string{"R1": "P1", "R2": "P2"},
		Requests:   []Request{{Process: "P1", Resource: "R2"}, {Process: "P2", Resource: "R1"}},
		Speed:      1,
	}
}

// Validate checks that every id is non-empty, unique and referenced consistently.
func (s Scenario) Validate() error {
	procs := make(map[string]bool, len(s.Processes))
	for _, p := range s.Processes {
		if p == "" {
			return fmt.Errorf("process id must not be empty")
		}
		if procs[p] {
			return fmt.Errorf("process %q: duplicate id", p)
		}
		procs[p] = true
	}
	res := make(map[string]bool, len(s.Resources))
	for _, r := range s.Resources {
		if r == "" {
			return fmt.Errorf("resource id must not be empty")
		}
		if res[r] {
			return fmt.Errorf("resource %q: duplicate id", r)
		}
		res[r] = true
	}
	for r, p := range s.Allocation {
		if !res[r] {
			return fmt.Errorf("allocation: unknown resource %q", r)
		}
		if p != "" && !procs[p] {
			return fmt.Errorf("allocation of %q: unknown process %q", r, p)
		}
	}
	seen := make(map[Request]bool, len(s.Requests))
	for _, q := range s.Requests {
		if !procs[q.Process] {
			return fmt.Errorf("request %s -> %s: unknown process", q.Process, q.Resource)
		}
		if !res[q.Resource] {
			return fmt.Errorf("request %s -> %s: unknown resource", q.Process, q.Resource)
		}
		if seen[q] {
			return fmt.Errorf("request %s -> %s: duplicate pair", q.Process, q.Resource)
		}
		seen[q] = true
	}
	for i, op := range s.Operations {
		need, ok := validOps[op.Op]
		if !ok {
			return fmt.Errorf("operation %d: unknown op %q", i, op.Op)
		}
		if need.process && op.Process == "" {
			return fmt.Errorf("operation %d (%s): process is required", i, op.Op)
		}
		if need.resource && op.Resource == "" {
			return fmt.Errorf("operation %d (%s): resource is required", i, op.Op)
		}
	}
	return nil
}

// LoadScenario reads a YAML scenario from location (a path or URL) and validates it.
func LoadScenario(ctx context.Context, location string) (Scenario, error) {
	var s Scenario
	if err := source.LoadYAML(ctx, location, &s); err != nil {
		return Scenario{}, fmt.Errorf("loading deadlock scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("invalid deadlock scenario %s: %w", location, err)
	}
	return s, nil
}

func (s Scenario) clone() Scenario {
	c := s
	c.Processes = append([]string(nil), s.Processes...)
	c.Resources = append([]string(nil), s.Resources...)
	c.Requests = append([]Request(nil), s.Requests...)
	c.Operations = append([]Operation(nil), s.Operations...)
	c.Allocation = make(map[string]string, len(s.Allocation))
	for r, p := range s.Allocation {
		c.Allocation[r] = p
	}
	return c
}

// build constructs the initial graph silently: setup is not part of the event log.
func (s Scenario) build() *ResourceGraph {
	g := NewResourceGraph()
	for _, p := range s.Processes {
		g.procIndex[p] = len(g.processes)
		g.processes = append(g.processes, p)
	}
	for _, r := range s.Resources {
		g.resIndex[r] = len(g.resources)
		g.resources = append(g.resources, r)
		if p, ok := s.Allocation[r]; ok && p != "" {
			g.holder[r] = p
		}
	}
	g.requests = append(g.requests, s.Requests...)
	return g
}
