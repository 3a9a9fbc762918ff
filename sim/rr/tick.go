package rr

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osviz/osviz/sim/trace"
)

// State is the complete Round-Robin engine state at a tick boundary.
// Step never mutates its input; each tick produces a fresh State.
type State struct {
	Quantum  int64
	Arrivals *ArrivalSource // immutable per run, shared between states

	Time    int64
	Running *Process
	Ready   ReadyQueue
	// Pending holds processes preempted during the previous tick. They rejoin
	// the ready queue after that tick's arrivals.
	Pending  []Process
	Segments []Segment
	Log      trace.Log
	Halted   bool

	next int // cursor into Arrivals: first process not yet admitted
}

// NewState returns the initial state for cfg. cfg must already be validated.
func NewState(cfg Config) State {
	return State{
		Quantum:  cfg.Quantum,
		Arrivals: NewArrivalSource(cfg.Processes),
	}
}

func (s State) clone() State {
	c := s
	if s.Running != nil {
		r := *s.Running
		c.Running = &r
	}
	c.Ready = s.Ready.clone()
	c.Pending = append([]Process(nil), s.Pending...)
	c.Segments = append([]Segment(nil), s.Segments...)
	c.Log = s.Log.Clone()
	return c
}

// Idle reports whether no process holds the CPU.
func (s State) Idle() bool {
	return s.Running == nil
}

// Step advances the simulation by one time unit and returns the new state.
// A halted state is returned unchanged.
func Step(s State) State {
	if s.Halted {
		return s
	}
	n := s.clone()
	t := n.Time

	// 1) admit arrivals for this tick, in arrival-list order
	due, next := n.Arrivals.Due(n.next, t)
	n.next = next
	if len(due) > 0 {
		ids := make([]string, len(due))
		for i, spec := range due {
			n.Ready.Enqueue(newProcess(spec))
			ids[i] = spec.ID
		}
		subject := ""
		if len(ids) == 1 {
			subject = ids[0]
		}
		n.logf(t, trace.KindArrival, subject, "t=%d: arrived -> %s", t, strings.Join(ids, ", "))
	}

	// 2) processes preempted last tick queue up behind this tick's arrivals
	for _, p := range n.Pending {
		n.Ready.Enqueue(p)
	}
	n.Pending = nil

	// 3) dispatch if the CPU is idle
	if n.Idle() {
		if p, ok := n.Ready.Dequeue(); ok {
			p.QuantumLeft = min(n.Quantum, p.Remaining)
			n.Running = &p
			n.logf(t, trace.KindDispatch, p.ID, "t=%d: %s dispatched to CPU (RR)", t, p.ID)
		}
	}

	// 4) execute one unit
	if n.Running != nil {
		run := n.Running
		run.Remaining--
		run.QuantumLeft--
		n.Segments = recordExecution(n.Segments, run.ID, t)

		switch {
		case run.Remaining == 0:
			n.logf(t+1, trace.KindComplete, run.ID, "t=%d: %s completed", t+1, run.ID)
			n.Running = nil
		case run.QuantumLeft == 0:
			n.Pending = append(n.Pending, *run)
			n.logf(t+1, trace.KindPreempt, run.ID, "t=%d: %s time slice over -> requeued (deferred)", t+1, run.ID)
			n.Running = nil
		}
	} else {
		logrus.Debugf("[tick %04d] CPU idle", t)
	}

	// 5) advance time
	n.Time = t + 1

	// 6) halt once every arrival is in and nothing is left to run
	if n.Time > n.Arrivals.MaxArrival() && n.Idle() && n.Ready.Len() == 0 && len(n.Pending) == 0 {
		n.Halted = true
		logrus.Debugf("[tick %04d] simulation halted", n.Time)
	}
	return n
}

func (s *State) logf(clock int64, kind trace.Kind, subject, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logrus.Debug(msg)
	s.Log.Append(trace.Record{Clock: clock, Kind: kind, Subject: subject, Message: msg})
}
