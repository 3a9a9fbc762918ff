package rr

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/osviz/osviz/sim"
	"github.com/osviz/osviz/sim/trace"
)

var _ sim.Stepper = (*Engine)(nil)

// Snapshot is the observable engine state handed to presentation code.
type Snapshot struct {
	Time       int64     `json:"time"`
	Running    *Process  `json:"running"` // nil when the CPU is idle
	ReadyQueue []Process `json:"ready_queue"`
	Pending    []Process `json:"pending"`
	Segments   []Segment `json:"segments"`
	EventLog   []string  `json:"event_log"`
	Halted     bool      `json:"halted"`
	Paused     bool      `json:"paused"`
}

// Engine drives a Round-Robin run. Every method is atomic with respect to
// the others: a tick either happens entirely or not at all.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	paused bool
}

// NewEngine validates cfg and returns an engine positioned at time 0.
// Invalid input refuses to start.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuring round-robin engine: %w", err)
	}
	cfg.Processes = append([]ProcessSpec(nil), cfg.Processes...)
	logrus.Infof("Round-robin engine configured: %d processes, quantum=%d", len(cfg.Processes), cfg.Quantum)
	return &Engine{cfg: cfg, state: NewState(cfg)}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.cfg
	c.Processes = append([]ProcessSpec(nil), e.cfg.Processes...)
	return c
}

// Tick advances the simulation by one time unit. It returns false once the
// run has halted; further calls are no-ops.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Halted {
		return false
	}
	e.state = Step(e.state)
	if e.state.Halted {
		logrus.Infof("[tick %04d] Round-robin run complete", e.state.Time)
	}
	return !e.state.Halted
}

// Step is Tick under the name the driver expects.
func (e *Engine) Step() bool {
	return e.Tick()
}

// RunToCompletion ticks until the run halts and returns the final simulated time.
func (e *Engine) RunToCompletion() int64 {
	for e.Tick() {
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Time
}

// Pause marks the run as paused. The driver stops issuing ticks until Resume.
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

// Done reports whether the run has halted.
func (e *Engine) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Halted
}

// Reset discards all run state and starts over from the original configuration.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = NewState(e.cfg)
	e.paused = false
	logrus.Info("Round-robin engine reset")
}

// State returns a copy of the full engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Snapshot returns the observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state.clone()
	return Snapshot{
		Time:       s.Time,
		Running:    s.Running,
		ReadyQueue: s.Ready.Items(),
		Pending:    s.Pending,
		Segments:   s.Segments,
		EventLog:   s.Log.Lines(),
		Halted:     s.Halted,
		Paused:     e.paused,
	}
}

// Metrics computes the metrics report from the current history.
func (e *Engine) Metrics() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeMetrics(e.state.Segments, e.state.Arrivals.Specs())
}

// Summary aggregates the event log.
func (e *Engine) Summary() *trace.Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return trace.Summarize(&e.state.Log)
}
