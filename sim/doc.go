// Package sim hosts the OS-concepts visualiser engines.
//
// # Reading Guide
//
// Start with these files to understand the two engines:
//   - rr/tick.go: the pure per-tick Round-Robin transition Step(State) State
//   - deadlock/graph.go: the resource allocation graph and its operations
//   - deadlock/detect.go: wait-for cycle detection over integer indices
//
// # Architecture
//
// The sim package defines the Stepper contract; implementations live in
// sub-packages:
//   - sim/rr/: Round-Robin CPU scheduling (ready queue, Gantt history, metrics)
//   - sim/deadlock/: resource graph, wait-for projection, deadlock detection
//   - sim/driver/: wall-clock pacing, pause/resume, speed, per-step tracing
//   - sim/trace/: the event log both engines append to
//
// Engines never own a clock. A Driver issues steps at a chosen speed, while
// tests and the synchronous CLI mode call Step directly.
package sim
