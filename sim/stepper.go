package sim

// Stepper is an engine that advances one discrete step at a time. Both the
// Round-Robin and the deadlock engine implement it, and sim/driver paces it.
type Stepper interface {
	// Step performs one atomic step and returns false once there is
	// nothing left to do.
	Step() bool
	Pause()
	Resume()
	Paused() bool
	// Reset discards run state and restores the initial configuration.
	Reset()
}
