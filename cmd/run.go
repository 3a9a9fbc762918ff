package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osviz/osviz/internal/source"
	"github.com/osviz/osviz/sim/deadlock"
	"github.com/osviz/osviz/sim/driver"
	"github.com/osviz/osviz/sim/rr"
)

// runOptions carries the settings shared by both subcommands.
type runOptions struct {
	scenario string
	speed    float64
	maxSteps int
	realtime bool
	results  string
}

// resolveSpeed picks the flag value, then the scenario's, then 1. Only a
// zero flag defers to the scenario; any other value is passed on and
// validated by the driver.
func resolveSpeed(flag, scenario float64) float64 {
	if flag != 0 {
		return flag
	}
	if scenario > 0 {
		return scenario
	}
	return 1
}

// drive runs d until the engine stops. An interrupted realtime run is not an error.
func drive(ctx context.Context, d *driver.Driver, realtime bool) error {
	var err error
	if realtime {
		err = d.Run(ctx)
	} else {
		err = d.RunImmediate(ctx)
	}
	if errors.Is(err, context.Canceled) {
		logrus.Warnf("Run %s interrupted after %d steps", d.RunID(), d.Steps())
		return nil
	}
	return err
}

// printNewLines writes the log lines past printed and returns the new count.
func printNewLines(w io.Writer, lines []string, printed int) int {
	for _, l := range lines[printed:] {
		fmt.Fprintln(w, l)
	}
	return len(lines)
}

// writeResults uploads v as indented JSON to location.
func writeResults(ctx context.Context, location string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := source.Upload(ctx, location, data); err != nil {
		return err
	}
	logrus.Infof("Results written to %s", location)
	return nil
}

// roundRobinResults is the JSON document written by --results for rr runs.
type roundRobinResults struct {
	RunID    string      `json:"run_id"`
	Config   rr.Config   `json:"config"`
	Snapshot rr.Snapshot `json:"snapshot"`
	Metrics  rr.Report   `json:"metrics"`
}

// runRoundRobin loads the scenario, drives the engine to completion (or the
// step limit) and prints the event log, the Gantt timeline and the metrics.
func runRoundRobin(ctx context.Context, opts runOptions, quantum int64, out io.Writer) error {
	cfg := rr.DefaultConfig()
	if opts.scenario != "" {
		loaded, err := rr.LoadConfig(ctx, opts.scenario)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if quantum > 0 {
		cfg.Quantum = quantum
	}
	engine, err := rr.NewEngine(cfg)
	if err != nil {
		return err
	}

	printed := 0
	d, err := driver.New(engine,
		driver.WithSpeed(resolveSpeed(opts.speed, cfg.Speed)),
		driver.WithMaxSteps(opts.maxSteps),
		driver.OnStep(func(int, bool) {
			printed = printNewLines(out, engine.Snapshot().EventLog, printed)
		}),
	)
	if err != nil {
		return err
	}
	if err := drive(ctx, d, opts.realtime); err != nil {
		return err
	}

	snap := engine.Snapshot()
	report := engine.Metrics()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Gantt                : %s\n", rr.Timeline(snap.Segments))
	if !snap.Halted {
		fmt.Fprintf(out, "Stopped at t=%d before completion\n", snap.Time)
	}
	report.Print(out)

	if opts.results != "" {
		return writeResults(ctx, opts.results, roundRobinResults{
			RunID:    d.RunID(),
			Config:   engine.Config(),
			Snapshot: snap,
			Metrics:  report,
		})
	}
	return nil
}

// deadlockResults is the JSON document written by --results for deadlock runs.
type deadlockResults struct {
	RunID    string            `json:"run_id"`
	Snapshot deadlock.Snapshot `json:"snapshot"`
}

// runDeadlock builds the scenario's graph, replays its script, grants what
// can be granted and prints the final graph with the detection result.
func runDeadlock(ctx context.Context, opts runOptions, out io.Writer) error {
	scenario := deadlock.DefaultScenario()
	if opts.scenario != "" {
		loaded, err := deadlock.LoadScenario(ctx, opts.scenario)
		if err != nil {
			return err
		}
		scenario = loaded
	}
	engine, err := deadlock.NewEngine(scenario)
	if err != nil {
		return err
	}

	engine.RunScript()
	printed := printNewLines(out, engine.Snapshot().EventLog, 0)

	d, err := driver.New(engine,
		driver.WithSpeed(resolveSpeed(opts.speed, scenario.Speed)),
		driver.WithMaxSteps(opts.maxSteps),
		driver.OnStep(func(int, bool) {
			printed = printNewLines(out, engine.Snapshot().EventLog, printed)
		}),
	)
	if err != nil {
		return err
	}
	if err := drive(ctx, d, opts.realtime); err != nil {
		return err
	}

	snap := engine.Snapshot()
	fmt.Fprintln(out)
	printGraph(out, snap)

	if opts.results != "" {
		return writeResults(ctx, opts.results, deadlockResults{RunID: d.RunID(), Snapshot: snap})
	}
	return nil
}

// printGraph writes the allocation, pending requests, wait-for edges and the
// detection result.
func printGraph(w io.Writer, snap deadlock.Snapshot) {
	fmt.Fprintln(w, "=== Resource Allocation Graph ===")
	for _, r := range snap.Resources {
		holder := snap.Allocation[r]
		if holder == "" {
			holder = "(free)"
		}
		fmt.Fprintf(w, "%-8s -> %s\n", r, holder)
	}
	requests := make([]string, 0, len(snap.Requests))
	for _, r := range snap.Requests {
		requests = append(requests, r.Process+" -> "+r.Resource)
	}
	edges := make([]string, 0, len(snap.WaitForEdges))
	for _, e := range snap.WaitForEdges {
		edges = append(edges, e.From+" -> "+e.To)
	}
	fmt.Fprintf(w, "Requests             : %s\n", orNone(requests))
	fmt.Fprintf(w, "Wait-for             : %s\n", orNone(edges))
	fmt.Fprintf(w, "Deadlocked           : %s\n", orNone(snap.Deadlocked))
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
