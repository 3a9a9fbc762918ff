package deadlock

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewEngine_InvalidScenario_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{"duplicate process", func(s *Scenario) { s.Processes = append(s.Processes, "P1") }, "duplicate id"},
		{"empty resource", func(s *Scenario) { s.Resources = append(s.Resources, "") }, "resource id must not be empty"},
		{"unknown holder", func(s *Scenario) { s.Allocation["R1"] = "P9" }, "unknown process"},
		{"unknown allocated resource", func(s *Scenario) { s.Allocation["R9"] = "P1" }, "unknown resource"},
		{"duplicate request", func(s *Scenario) { s.Requests = append(s.Requests, s.Requests[0]) }, "duplicate pair"},
		{"bad op", func(s *Scenario) { s.Operations = []Operation{{Op: "explode"}} }, "unknown op"},
		{"op missing resource", func(s *Scenario) { s.Operations = []Operation{{Op: OpRelease}} }, "resource is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultScenario()
			tt.mutate(&s)
			e, err := NewEngine(s)
			assert.Nil(t, e)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEngine_Snapshot_DefaultScenario(t *testing.T) {
	e, err := NewEngine(DefaultScenario())
	require.NoError(t, err)

	snap := e.Snapshot()

	assert.Equal(t, []string{"P1", "P2", "P3"}, snap.Processes)
	assert.Equal(t, map[string]string{"R1": "P1", "R2": "P2"}, snap.Allocation)
	assert.Equal(t, []Request{{Process: "P1", Resource: "R2"}, {Process: "P2", Resource: "R1"}}, snap.Requests)
	assert.Len(t, snap.WaitForEdges, 2)
	assert.Equal(t, []string{"P1", "P2"}, snap.Deadlocked)
	assert.Empty(t, snap.EventLog, "initial setup is not logged")
}

func TestEngine_Reset_RestoresScenario(t *testing.T) {
	// GIVEN an engine whose graph has been changed
	e, err := NewEngine(DefaultScenario())
	require.NoError(t, err)
	e.Release("R1")
	e.AddProcess("P4")
	e.Pause()

	// WHEN reset
	e.Reset()

	// THEN the original graph is back with an empty log
	snap := e.Snapshot()
	assert.Equal(t, []string{"P1", "P2", "P3"}, snap.Processes)
	assert.Equal(t, "P1", snap.Allocation["R1"])
	assert.Empty(t, snap.EventLog)
	assert.False(t, snap.Paused)
}

func TestEngine_Scenario_NotAliased(t *testing.T) {
	s := DefaultScenario()
	e, err := NewEngine(s)
	require.NoError(t, err)

	s.Allocation["R1"] = "P3"
	e.Reset()

	assert.Equal(t, "P1", e.Snapshot().Allocation["R1"])
}

func TestEngine_Step_GrantsUntilBlocked(t *testing.T) {
	// GIVEN P3 waiting on free R3 and P1/P2 deadlocked
	s := DefaultScenario()
	s.Resources = append(s.Resources, "R3")
	s.Requests = append(s.Requests, Request{Process: "P3", Resource: "R3"})
	e, err := NewEngine(s)
	require.NoError(t, err)

	// WHEN stepped
	assert.True(t, e.Step(), "first step grants R3 to P3")
	assert.False(t, e.Step(), "second step finds nothing grantable")

	// THEN the log shows one grant and one no-op
	assert.Equal(t, []string{"grant: R3 -> P3", "no-op: all requested resources busy"}, e.Snapshot().EventLog)
}

func TestEngine_Apply_ScriptResolvesDeadlock(t *testing.T) {
	// GIVEN the default deadlock and a script that breaks it
	s := DefaultScenario()
	s.Operations = []Operation{
		{Op: OpDetect},
		{Op: OpRelease, Resource: "R1"},
		{Op: OpGrant},
		{Op: OpDetect},
		{Op: OpAddProcess, Process: "P4"},
		{Op: OpAddResource, Resource: "R3"},
		{Op: OpAllocate, Resource: "R3", Process: "P4"},
		{Op: OpRequest, Process: "P3", Resource: "R3"},
		{Op: OpCancel, Process: "P3", Resource: "R3"},
	}
	e, err := NewEngine(s)
	require.NoError(t, err)

	// WHEN the script runs
	e.RunScript()

	// THEN each operation left its trace in order
	want := []string{
		"detect: deadlock among P1, P2",
		"rel: R1 from P1",
		"grant: R1 -> P2",
		"detect: no deadlock",
		"add-process: P4",
		"add-resource: R3",
		"alloc: R3 -> P4",
		"req: P3 -> R3",
		"cancel: P3 -> R3",
	}
	snap := e.Snapshot()
	assert.Equal(t, want, snap.EventLog)
	assert.Empty(t, snap.Deadlocked)
	assert.Equal(t, "P2", snap.Allocation["R1"])

	summary := e.Summary()
	assert.Equal(t, 2, summary.KindCounts["detect"])
}

func TestEngine_PauseResume(t *testing.T) {
	e, err := NewEngine(DefaultScenario())
	require.NoError(t, err)
	e.Pause()
	assert.True(t, e.Paused())
	e.Resume()
	assert.False(t, e.Paused())
}

func TestLoadScenario_ValidYAML(t *testing.T) {
	path := writeTempYAML(t, `
processes: [P1, P2]
resources: [R1, R2]
allocation:
  R1: P1
  R2: ""
requests:
  - process: P2
    resource: R1
operations:
  - op: release
    resource: R1
  - op: grant
`)
	s, err := LoadScenario(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, s.Processes)
	assert.Equal(t, "P1", s.Allocation["R1"])
	assert.Len(t, s.Operations, 2)

	e, err := NewEngine(s)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"R1": "P1", "R2": ""}, e.Snapshot().Allocation)

	e.RunScript()
	assert.Equal(t, "P2", e.Snapshot().Allocation["R1"])
}

func TestLoadScenario_UnknownField_Rejected(t *testing.T) {
	path := writeTempYAML(t, "processes: [P1]\nresorces: [R1]\n")
	_, err := LoadScenario(context.Background(), path)
	assert.Error(t, err)
}
