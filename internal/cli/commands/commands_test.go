package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cutflow/internal/cli/config"
	"github.com/leapstack-labs/cutflow/internal/state"
	"github.com/leapstack-labs/cutflow/internal/testutil"
	"github.com/leapstack-labs/cutflow/pkg/core"

	_ "github.com/leapstack-labs/cutflow/pkg/frame/duckdb"
)

const eventsJSON = `{"Energy": 18.2, "NHits": 1}
{"Energy": 18.7, "NHits": 3}
{"Energy": 19.4, "NHits": 2}
{"Energy": 19.9, "NHits": 5}
{"Energy": 20.5, "NHits": 4}
{"Energy": 21.3, "NHits": 6}
`

// fixture writes an event file and an analysis document using it.
type fixture struct {
	dir      string
	analysis string
	outDir   string
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "events.json")
	require.NoError(t, os.WriteFile(input, []byte(eventsJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "detector.yaml"), []byte("detector_id: 7\n"), 0o600))

	f := &fixture{dir: dir, outDir: filepath.Join(dir, "out")}
	f.analysis = filepath.Join(dir, "analysis.yaml")
	body := `input_file: ` + input + `
library_file: builtin
tree_name: T
output_dir: ` + f.outDir + `
detector_config: detector.yaml
new_columns:
  - name: E2
    expression: Energy * 2
cuts:
  - Energy>18.5
  - NHits>=3
hist_params:
  - style: histogram
    name: energy_det_detector_id_placeholder
    column: Energy
    bins: 50
    min: 18
    max: 21
  - style: histogram
    name: doubled
    column: E2
    bins: 10
    min: 36
    max: 44
`
	require.NoError(t, os.WriteFile(f.analysis, []byte(body), 0o600))

	f.cfg = config.Default()
	f.cfg.StatePath = filepath.Join(dir, "state", "runs.db")
	return f
}

func runCommand(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	ctx := config.NewContext(context.Background(), cfg, testutil.NewTestLogger(t))
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
	}{
		{name: "release", version: "0.1.0", wantOut: []string{"cutflow v0.1.0", "commit abc123"}},
		{name: "dev", version: "dev", wantOut: []string{"cutflow vdev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, NewVersionCommand(tt.version, "abc123", "today"), config.Default())
			require.NoError(t, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewRunCommand(), "run <analysis.yaml>", []string{"detector", "report", "no-save", "parallel", "watch", "no-history"}},
		{NewResolveCommand(), "resolve <analysis.yaml>", []string{"detector"}},
		{NewHistoryCommand(), "history [run-id]", []string{"limit"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			for _, name := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(name), "flag %q should exist", name)
			}
		})
	}

	run := NewRunCommand()
	for short, long := range map[string]string{"r": "report", "n": "no-save", "p": "parallel"} {
		flag := run.Flags().ShorthandLookup(short)
		require.NotNil(t, flag, "shorthand -%s", short)
		assert.Equal(t, long, flag.Name)
	}
}

func TestResolveCommand(t *testing.T) {
	f := newFixture(t)

	out, err := runCommand(t, NewResolveCommand(), f.cfg, f.analysis)
	require.NoError(t, err)
	assert.Contains(t, out, "name: energy_det_7")
	assert.Contains(t, out, "detector_id: 7")
	assert.NotContains(t, out, "placeholder")
}

func TestResolveCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	noTree := filepath.Join(dir, "no_tree.yaml")
	require.NoError(t, os.WriteFile(noTree, []byte("input_file: x.json\nlibrary_file: builtin\ndetector:\n  detector_id: 1\n"), 0o600))

	tests := []struct {
		name      string
		args      []string
		errSubstr string
	}{
		{"missing file", []string{filepath.Join(dir, "missing.yaml")}, "missing.yaml"},
		{"missing tree_name", []string{noTree}, "tree_name"},
		{"no args", nil, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, NewResolveCommand(), config.Default(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestRunCommand_ReportAndSave(t *testing.T) {
	f := newFixture(t)

	out, err := runCommand(t, NewRunCommand(), f.cfg, f.analysis, "--report")
	require.NoError(t, err)

	assert.Contains(t, out, "Cut_1")
	assert.Contains(t, out, "Energy>18.5")
	assert.Contains(t, out, "Cut_2")
	assert.Less(t, strings.Index(out, "Cut_1"), strings.Index(out, "Cut_2"))
	assert.Contains(t, out, "saved ")

	data, err := os.ReadFile(filepath.Join(f.outDir, "energy_det_7.json"))
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "histogram", saved["kind"])
	assert.FileExists(t, filepath.Join(f.outDir, "doubled.json"))

	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(f.cfg.StatePath))
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, "7", runs[0].DetectorID)
	assert.Equal(t, f.analysis, runs[0].ConfigPath)
	assert.NotEmpty(t, runs[0].ConfigHash)

	cuts, err := store.GetCuts(ctx, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, cuts, 2)
	assert.Equal(t, core.CutRecord{Position: 1, Label: "Cut_1", Predicate: "Energy>18.5", Pass: 5, All: 6}, stripRunID(cuts[0]))
	assert.Equal(t, core.CutRecord{Position: 2, Label: "Cut_2", Predicate: "NHits>=3", Pass: 4, All: 5}, stripRunID(cuts[1]))

	aggs, err := store.GetAggregations(ctx, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, int64(4), aggs[0].Entries)
	assert.NotEmpty(t, aggs[0].OutputPath)
}

func stripRunID(c core.CutRecord) core.CutRecord {
	c.RunID = ""
	return c
}

func TestRunCommand_NoSaveNoHistory(t *testing.T) {
	f := newFixture(t)

	out, err := runCommand(t, NewRunCommand(), f.cfg, f.analysis, "-n", "--no-history")
	require.NoError(t, err)
	assert.NotContains(t, out, "saved ")
	assert.NotContains(t, out, "Cut_1", "report is opt-in")

	assert.NoDirExists(t, f.outDir)
	assert.NoFileExists(t, f.cfg.StatePath)
}

func TestRunCommand_HistoryDisabledInConfig(t *testing.T) {
	f := newFixture(t)
	f.cfg.History = false

	_, err := runCommand(t, NewRunCommand(), f.cfg, f.analysis, "--no-save")
	require.NoError(t, err)
	assert.NoFileExists(t, f.cfg.StatePath)
}

func TestRunCommand_FailedRunIsRecorded(t *testing.T) {
	f := newFixture(t)
	bad := filepath.Join(f.dir, "bad.yaml")
	body := "input_file: " + filepath.Join(f.dir, "events.json") + `
library_file: builtin
tree_name: T
detector:
  detector_id: 2
cuts:
  - NoSuchColumn > 1
`
	require.NoError(t, os.WriteFile(bad, []byte(body), 0o600))

	_, err := runCommand(t, NewRunCommand(), f.cfg, bad, "--no-save")
	require.Error(t, err)

	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(f.cfg.StatePath))
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.RunStatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestRunCommand_UnknownEngine(t *testing.T) {
	f := newFixture(t)
	f.cfg.Engine.Type = "spark"

	_, err := runCommand(t, NewRunCommand(), f.cfg, f.analysis, "--no-history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown engine type "spark"`)
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t)

	out, err := runCommand(t, NewHistoryCommand(), f.cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	_, err = runCommand(t, NewRunCommand(), f.cfg, f.analysis, "--report", "--no-save")
	require.NoError(t, err)
	_, err = runCommand(t, NewRunCommand(), f.cfg, f.analysis, "--no-save")
	require.NoError(t, err)

	out, err = runCommand(t, NewHistoryCommand(), f.cfg, "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "completed"))

	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(f.cfg.StatePath))
	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Only the --report run has cut accounting.
	var reported string
	for _, r := range runs {
		cuts, err := store.GetCuts(context.Background(), r.ID)
		require.NoError(t, err)
		if len(cuts) > 0 {
			reported = r.ID
		}
	}
	require.NoError(t, store.Close())
	require.NotEmpty(t, reported)

	out, err = runCommand(t, NewHistoryCommand(), f.cfg, reported)
	require.NoError(t, err)
	assert.Contains(t, out, reported)
	assert.Contains(t, out, "NHits>=3")
	assert.Contains(t, out, "energy_det_7")

	_, err = runCommand(t, NewHistoryCommand(), f.cfg, "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestWatchLoop(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "analysis.yaml")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("a: 1\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	ran := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, []string{watched}, 20*time.Millisecond, func() []string {
			runs.Add(1)
			ran <- struct{}{}
			return []string{watched}
		}, testutil.NewTestLogger(t))
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load(), "unrelated file must not trigger a run")

	require.NoError(t, os.WriteFile(watched, []byte("a: 2\n"), 0o600))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("watched change did not trigger a run")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}

func TestWatchedFiles(t *testing.T) {
	assert.Equal(t, []string{"a.yaml"}, watchedFiles("a.yaml", nil, nil))
}
