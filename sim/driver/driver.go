// Package driver paces an engine with discrete steps. It owns the clock, so
// engines stay pure state machines and tests can step them synchronously.
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/osviz/osviz/sim"
)

// TickSource delivers the pacing signal between steps.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

type tickerSource struct {
	t *time.Ticker
}

func (s tickerSource) C() <-chan time.Time { return s.t.C }
func (s tickerSource) Stop()               { s.t.Stop() }

func newTickerSource(d time.Duration) TickSource {
	return tickerSource{t: time.NewTicker(d)}
}

const (
	// BaseInterval is the wall-clock time between steps at speed 1.
	BaseInterval = time.Second
	MinSpeed     = 0.5
	MaxSpeed     = 4.0
	speedStep    = 0.5
)

// ValidateSpeed checks that speed is within [MinSpeed, MaxSpeed] in steps of 0.5.
func ValidateSpeed(speed float64) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("speed must be between %.1f and %.1f, got %v", MinSpeed, MaxSpeed, speed)
	}
	if steps := speed / speedStep; steps != float64(int(steps)) {
		return fmt.Errorf("speed must be a multiple of %.1f, got %v", speedStep, speed)
	}
	return nil
}

// Option configures a Driver.
type Option func(*Driver)

// WithSpeed sets the pacing multiplier; the step interval is BaseInterval / speed.
func WithSpeed(speed float64) Option {
	return func(d *Driver) { d.speed = speed }
}

// WithMaxSteps stops a run after n steps; 0 means no limit.
func WithMaxSteps(n int) Option {
	return func(d *Driver) { d.maxSteps = n }
}

// WithTickSource replaces the wall-clock ticker, e.g. with a manual channel in tests.
func WithTickSource(f func(time.Duration) TickSource) Option {
	return func(d *Driver) { d.newTicks = f }
}

// OnStep registers a callback invoked after every step with the step number
// (1-based) and the step's result.
func OnStep(f func(n int, more bool)) Option {
	return func(d *Driver) { d.onStep = f }
}

// Driver issues steps to a Stepper at a fixed pace until it finishes, a step
// limit is reached, or the context is cancelled.
type Driver struct {
	stepper  sim.Stepper
	speed    float64
	maxSteps int
	newTicks func(time.Duration) TickSource
	onStep   func(n int, more bool)
	tracer   trace.Tracer

	// stepMu keeps Reset from landing in the middle of a step.
	stepMu sync.Mutex
	mu     sync.Mutex // guards runID and steps
	runID  string
	steps  int
}

// New returns a driver for stepper. Speed defaults to 1.
func New(stepper sim.Stepper, opts ...Option) (*Driver, error) {
	d := &Driver{
		stepper:  stepper,
		speed:    1,
		newTicks: newTickerSource,
		tracer:   otel.Tracer("github.com/osviz/osviz/sim/driver"),
		runID:    uuid.New().String(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := ValidateSpeed(d.speed); err != nil {
		return nil, err
	}
	if d.maxSteps < 0 {
		return nil, fmt.Errorf("max steps must be non-negative, got %d", d.maxSteps)
	}
	return d, nil
}

// RunID identifies the current run in logs and spans. It changes on Reset.
func (d *Driver) RunID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runID
}

// Steps returns the number of steps issued in the current run.
func (d *Driver) Steps() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.steps
}

// Interval returns the wall-clock pause between steps.
func (d *Driver) Interval() time.Duration {
	return time.Duration(float64(BaseInterval) / d.speed)
}

// Pause suspends the run between steps; a step in progress always completes.
func (d *Driver) Pause() {
	d.stepper.Pause()
	logrus.WithField("run", d.RunID()).Info("Run paused")
}

// Resume continues a paused run.
func (d *Driver) Resume() {
	d.stepper.Resume()
	logrus.WithField("run", d.RunID()).Info("Run resumed")
}

// Reset reinitialises the engine and starts a new run id. It is safe to
// call while Run is in progress; the run continues from the fresh state.
func (d *Driver) Reset() {
	d.stepMu.Lock()
	defer d.stepMu.Unlock()
	d.stepper.Reset()

	id := uuid.New().String()
	d.mu.Lock()
	d.steps = 0
	d.runID = id
	d.mu.Unlock()
	logrus.WithField("run", id).Info("Run reset")
}

// StepOnce issues a single step regardless of pause state, as a manual
// trigger would. It returns the stepper's result.
func (d *Driver) StepOnce(ctx context.Context) bool {
	_, span := d.tracer.Start(ctx, "driver.step")
	defer span.End()

	d.stepMu.Lock()
	more := d.stepper.Step()
	d.mu.Lock()
	d.steps++
	n, id := d.steps, d.runID
	d.mu.Unlock()
	d.stepMu.Unlock()

	span.SetAttributes(
		attribute.String("run.id", id),
		attribute.Int("step", n),
		attribute.Bool("more", more),
	)
	logrus.WithFields(logrus.Fields{"run": id, "step": n}).Debug("Step executed")
	if d.onStep != nil {
		d.onStep(n, more)
	}
	return more
}

func (d *Driver) limitReached() bool {
	return d.maxSteps > 0 && d.Steps() >= d.maxSteps
}

// Run steps the engine once per tick until it reports no more work, the
// step limit is reached, or ctx is cancelled. Ticks that arrive while the
// engine is paused are skipped.
func (d *Driver) Run(ctx context.Context) error {
	ctx, span := d.tracer.Start(ctx, "driver.run", trace.WithAttributes(attribute.String("run.id", d.RunID())))
	defer span.End()

	log := logrus.WithField("run", d.RunID())
	log.Infof("Run started (interval=%v)", d.Interval())

	ticks := d.newTicks(d.Interval())
	defer ticks.Stop()

	for {
		if d.limitReached() {
			log.Infof("Run stopped after %d steps (limit)", d.Steps())
			return nil
		}
		select {
		case <-ctx.Done():
			log.Infof("Run cancelled after %d steps", d.Steps())
			return ctx.Err()
		case <-ticks.C():
			if d.stepper.Paused() {
				continue
			}
			if !d.StepOnce(ctx) {
				log.Infof("Run finished after %d steps", d.Steps())
				return nil
			}
		}
	}
}

// RunImmediate steps without pacing until the engine finishes, the step
// limit is reached, or ctx is cancelled. Pause is honoured between steps.
func (d *Driver) RunImmediate(ctx context.Context) error {
	for !d.limitReached() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.stepper.Paused() {
			return nil
		}
		if !d.StepOnce(ctx) {
			return nil
		}
	}
	return nil
}
