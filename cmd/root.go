package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osviz/osviz/sim/driver"
)

var (
	// Flags shared by every subcommand
	logLevel    string  // Log verbosity level
	speed       float64 // Pacing multiplier for realtime runs; 0 uses the scenario's value
	maxSteps    int     // Stop after this many steps; 0 means no limit
	realtime    bool    // Pace steps on the wall clock instead of running synchronously
	resultsPath string  // Location (path or URL) to write the JSON results to
	traceOut    string  // File to write OpenTelemetry step spans to

	// Flags of the rr subcommand
	rrScenario string // Location of a Round-Robin scenario YAML
	quantum    int64  // Overrides the scenario's quantum when positive

	// Flags of the deadlock subcommand
	deadlockScenario string // Location of a resource-graph scenario YAML
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "osviz",
	Short: "Step-by-step visualiser for Round-Robin scheduling and deadlock detection",
	// Run failures are reported by Execute; usage is for flag errors only.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// rrCmd runs a Round-Robin scheduling scenario
var rrCmd = &cobra.Command{
	Use:   "rr",
	Short: "Run a Round-Robin CPU scheduling scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		shutdown, err := setupTracing(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		opts := runOptions{
			scenario: rrScenario,
			speed:    speed,
			maxSteps: maxSteps,
			realtime: realtime,
			results:  resultsPath,
		}
		if err := runRoundRobin(ctx, opts, quantum, cmd.OutOrStdout()); err != nil {
			logrus.Errorf("Round-robin run failed: %v", err)
			return err
		}
		logrus.Info("Round-robin run complete.")
		return nil
	},
}

// deadlockCmd builds a resource graph, replays its script and checks for deadlock
var deadlockCmd = &cobra.Command{
	Use:   "deadlock",
	Short: "Run a resource-allocation graph scenario and detect deadlock",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		shutdown, err := setupTracing(ctx)
		if err != nil {
			return err
		}
		defer shutdown()

		opts := runOptions{
			scenario: deadlockScenario,
			speed:    speed,
			maxSteps: maxSteps,
			realtime: realtime,
			results:  resultsPath,
		}
		if err := runDeadlock(ctx, opts, cmd.OutOrStdout()); err != nil {
			logrus.Errorf("Deadlock run failed: %v", err)
			return err
		}
		logrus.Info("Deadlock run complete.")
		return nil
	},
}

// setupTracing installs the span exporter when --trace-out is set and
// returns a function flushing it. The flush runs on failed runs too.
func setupTracing(ctx context.Context) (func(), error) {
	if traceOut == "" {
		return func() {}, nil
	}
	shutdown, err := initTracing(ctx, "osviz", traceOut)
	if err != nil {
		return nil, fmt.Errorf("initialising tracing: %w", err)
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logrus.Warnf("Flushing traces: %v", err)
		}
	}, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().Float64Var(&speed, "speed", 0, "Pacing multiplier between 0.5 and 4 in steps of 0.5 (0 uses the scenario's speed)")
	rootCmd.PersistentFlags().IntVar(&maxSteps, "max-steps", 0, "Stop after this many steps (0 for no limit)")
	rootCmd.PersistentFlags().BoolVar(&realtime, "realtime", false, "Pace steps on the wall clock, "+driver.BaseInterval.String()+" per step at speed 1")
	rootCmd.PersistentFlags().StringVar(&resultsPath, "results", "", "Write JSON results to this path or URL")
	rootCmd.PersistentFlags().StringVar(&traceOut, "trace-out", "", "Write OpenTelemetry step spans to this file")

	rrCmd.Flags().StringVar(&rrScenario, "scenario", "", "Round-Robin scenario YAML path or URL (default: built-in three-process example)")
	rrCmd.Flags().Int64Var(&quantum, "quantum", 0, "Time quantum override (0 uses the scenario's quantum)")

	deadlockCmd.Flags().StringVar(&deadlockScenario, "scenario", "", "Resource-graph scenario YAML path or URL (default: built-in two-process deadlock)")

	rootCmd.AddCommand(rrCmd)
	rootCmd.AddCommand(deadlockCmd)
}
