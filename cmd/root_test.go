package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/osviz/osviz/sim/deadlock"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveSpeed(t *testing.T) {
	assert.Equal(t, 2.0, resolveSpeed(2, 0.5))
	assert.Equal(t, 0.5, resolveSpeed(0, 0.5))
	assert.Equal(t, 1.0, resolveSpeed(0, 0))
	assert.Equal(t, -1.0, resolveSpeed(-1, 2), "non-zero flag values are not replaced")
}

func TestRunRoundRobin_NegativeSpeed_Rejected(t *testing.T) {
	// GIVEN a scenario with a valid speed and a negative flag
	path := writeFile(t, "rr.yaml", "quantum: 2\nspeed: 2\nprocesses:\n  - {id: A, arrival: 0, burst: 1}\n")

	// WHEN run
	err := runRoundRobin(context.Background(), runOptions{scenario: path, speed: -1}, 0, &bytes.Buffer{})

	// THEN the flag is reported instead of silently using the scenario's speed
	assert.ErrorContains(t, err, "speed must be between")
}

// executeRoot runs the root command with args and restores the shared flag state.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		logLevel, speed, maxSteps, realtime = "error", 0, 0, false
		resultsPath, traceOut, rrScenario, quantum, deadlockScenario = "", "", "", 0, ""
		logrus.SetLevel(logrus.WarnLevel)
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExecute_FailedRun_FlushesTraces(t *testing.T) {
	// GIVEN a results location that cannot be created because its parent is a file
	dir := t.TempDir()
	blocker := writeFile(t, "blocker", "not a directory")
	results := filepath.Join(blocker, "out", "rr.json")
	spans := filepath.Join(dir, "spans.json")

	// WHEN the rr command runs with tracing enabled
	_, err := executeRoot(t, "rr", "--max-steps", "2", "--results", results, "--trace-out", spans)

	// THEN the failure is returned rather than exiting the process
	require.Error(t, err)

	// AND the spans of the steps that did run were flushed to the file
	data, readErr := os.ReadFile(spans)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `"Name":"driver.step"`)
}

func TestExecute_DeadlockCommand(t *testing.T) {
	out, err := executeRoot(t, "deadlock")

	require.NoError(t, err)
	assert.Contains(t, out, "Deadlocked           : P1, P2\n")
}

func TestExecute_InvalidLogLevel(t *testing.T) {
	_, err := executeRoot(t, "rr", "--log", "loud")
	assert.ErrorContains(t, err, "invalid log level: loud")
}

func TestRunRoundRobin_DefaultScenario(t *testing.T) {
	// GIVEN no scenario file
	var out bytes.Buffer

	// WHEN the default run executes synchronously
	err := runRoundRobin(context.Background(), runOptions{}, 0, &out)

	// THEN the event log, Gantt chart and metrics are printed
	require.NoError(t, err)
	output := out.String()
	assert.Contains(t, output, "t=0: arrived -> P1\n")
	assert.Contains(t, output, "t=2: P1 time slice over -> requeued (deferred)\n")
	assert.Contains(t, output, "Gantt                : |P1 0-2|P2 2-4|P1 4-6|P3 6-8|P2 8-9|P1 9-10|P3 10-12|")
	assert.Contains(t, output, "=== Round-Robin Metrics ===")
	assert.Contains(t, output, "Avg WT               : 4.33")
	assert.Contains(t, output, "Avg TAT              : 8.33")
	assert.NotContains(t, output, "before completion")
}

func TestRunRoundRobin_ScenarioFileAndQuantumOverride(t *testing.T) {
	// GIVEN a scenario with quantum 1, overridden to 4 on the command line
	path := writeFile(t, "rr.yaml", `
quantum: 1
processes:
  - {id: A, arrival: 0, burst: 3}
  - {id: B, arrival: 1, burst: 2}
`)
	var out bytes.Buffer

	// WHEN run
	err := runRoundRobin(context.Background(), runOptions{scenario: path}, 4, &out)

	// THEN A runs to completion before B
	require.NoError(t, err)
	assert.Contains(t, out.String(), "|A 0-3|B 3-5|")
}

func TestRunRoundRobin_MaxStepsStopsEarly(t *testing.T) {
	var out bytes.Buffer

	err := runRoundRobin(context.Background(), runOptions{maxSteps: 3}, 0, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Stopped at t=3 before completion")
}

func TestRunRoundRobin_InvalidScenario(t *testing.T) {
	path := writeFile(t, "bad.yaml", "quantum: 0\nprocesses:\n  - {id: A, arrival: 0, burst: 1}\n")

	err := runRoundRobin(context.Background(), runOptions{scenario: path}, 0, &bytes.Buffer{})

	assert.ErrorContains(t, err, "quantum must be a positive integer")
}

func TestRunRoundRobin_InvalidSpeed(t *testing.T) {
	err := runRoundRobin(context.Background(), runOptions{speed: 5}, 0, &bytes.Buffer{})
	assert.ErrorContains(t, err, "speed must be between")
}

func TestRunRoundRobin_WritesResults(t *testing.T) {
	// GIVEN a results location
	results := filepath.Join(t.TempDir(), "out", "rr.json")

	// WHEN the default run executes
	require.NoError(t, runRoundRobin(context.Background(), runOptions{results: results}, 0, &bytes.Buffer{}))

	// THEN the JSON document carries the run id, segments and metrics
	data, err := os.ReadFile(results)
	require.NoError(t, err)
	var doc struct {
		RunID    string `json:"run_id"`
		Snapshot struct {
			Time   int64 `json:"time"`
			Halted bool  `json:"halted"`
		} `json:"snapshot"`
		Metrics struct {
			Makespan int64 `json:"makespan"`
			Rows     []struct {
				ID         string `json:"id"`
				Completion int64  `json:"completion"`
			} `json:"rows"`
		} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, int64(12), doc.Snapshot.Time)
	assert.True(t, doc.Snapshot.Halted)
	assert.Equal(t, int64(12), doc.Metrics.Makespan)
	require.Len(t, doc.Metrics.Rows, 3)
	assert.Equal(t, int64(10), doc.Metrics.Rows[0].Completion)
}

func TestRunDeadlock_DefaultScenario(t *testing.T) {
	// GIVEN the built-in two-process deadlock
	var out bytes.Buffer

	// WHEN run
	err := runDeadlock(context.Background(), runOptions{}, &out)

	// THEN no grant is possible and the deadlock is reported
	require.NoError(t, err)
	output := out.String()
	assert.Contains(t, output, "no-op: all requested resources busy\n")
	assert.Contains(t, output, "R1       -> P1\n")
	assert.Contains(t, output, "Requests             : P1 -> R2, P2 -> R1\n")
	assert.Contains(t, output, "Wait-for             : P1 -> P2, P2 -> P1\n")
	assert.Contains(t, output, "Deadlocked           : P1, P2\n")
}

func TestRunDeadlock_ScriptResolvesDeadlock(t *testing.T) {
	// GIVEN a scenario whose script releases R1
	path := writeFile(t, "graph.yaml", `
processes: [P1, P2]
resources: [R1, R2]
allocation: {R1: P1, R2: P2}
requests:
  - {process: P1, resource: R2}
  - {process: P2, resource: R1}
operations:
  - {op: detect}
  - {op: release, resource: R1}
`)
	var out bytes.Buffer

	// WHEN run
	err := runDeadlock(context.Background(), runOptions{scenario: path}, &out)

	// THEN the script output precedes the grant and the graph is deadlock-free
	require.NoError(t, err)
	output := out.String()
	assert.Contains(t, output, "detect: deadlock among P1, P2\nrel: R1 from P1\ngrant: R1 -> P2\n")
	assert.Contains(t, output, "Wait-for             : P1 -> P2\n")
	assert.Contains(t, output, "Deadlocked           : none\n")
}

func TestRunDeadlock_UnknownField(t *testing.T) {
	path := writeFile(t, "graph.yaml", "processes: [P1]\nresources: [R1]\nholders: {R1: P1}\n")

	err := runDeadlock(context.Background(), runOptions{scenario: path}, &bytes.Buffer{})

	assert.ErrorContains(t, err, "holders")
}

func TestRunDeadlock_WritesResults(t *testing.T) {
	results := filepath.Join(t.TempDir(), "graph.json")

	require.NoError(t, runDeadlock(context.Background(), runOptions{results: results}, &bytes.Buffer{}))

	data, err := os.ReadFile(results)
	require.NoError(t, err)
	var doc deadlockResults
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, []string{"P1", "P2"}, doc.Snapshot.Deadlocked)
	assert.Equal(t, []deadlock.Edge{{From: "P1", To: "P2"}, {From: "P2", To: "P1"}}, doc.Snapshot.WaitForEdges)
}

func TestPrintGraph_FreeResource(t *testing.T) {
	var out bytes.Buffer
	printGraph(&out, deadlock.Snapshot{
		Resources:  []string{"R1"},
		Allocation: map[string]string{"R1": ""},
		Deadlocked: []string{},
	})
	assert.Contains(t, out.String(), "R1       -> (free)\n")
	assert.Contains(t, out.String(), "Deadlocked           : none\n")
}

func TestInitTracing_WritesStepSpans(t *testing.T) {
	// GIVEN tracing initialised to a file
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	path := filepath.Join(t.TempDir(), "spans.json")
	shutdown, err := initTracing(context.Background(), "osviz-test", path)
	require.NoError(t, err)

	// WHEN a run executes and the exporter is flushed
	require.NoError(t, runRoundRobin(context.Background(), runOptions{maxSteps: 2}, 0, &bytes.Buffer{}))
	require.NoError(t, shutdown(context.Background()))

	// THEN the file holds the driver's step spans
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name":"driver.step"`)
	assert.Contains(t, string(data), "osviz-test")
}
