package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cutflow/internal/testutil"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("log-level", "", "")
	flags.Bool("no-color", false, "")
	flags.String("database", "", "")
	flags.String("state", "", "")
	return flags
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "cutflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("", newFlags())
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.True(t, cfg.History)
	assert.False(t, cfg.NoColor)
	assert.Equal(t, DefaultEngine, cfg.Engine.Type)
	assert.Empty(t, cfg.Engine.Path, "engine defaults to in-memory")
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `log_level: debug
no_color: true
history: false
state_path: history/runs.db
engine:
  type: duckdb
  path: data/analysis.duckdb
  settings:
    threads: "2"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.NoColor)
	assert.False(t, cfg.History)
	assert.Equal(t, filepath.Join(dir, "history/runs.db"), cfg.StatePath)
	assert.Equal(t, filepath.Join(dir, "data/analysis.duckdb"), cfg.Engine.Path)
	assert.Equal(t, map[string]string{"threads": "2"}, cfg.Engine.Settings)
}

func TestLoad_FindsConfigUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "log_level: warn\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
}

func TestLoad_Precedence(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		flags     []string
		wantLevel string
		wantColor bool
	}{
		{
			name:      "file only",
			wantLevel: "warn",
		},
		{
			name:      "env overrides file",
			env:       map[string]string{"CUTFLOW_LOG_LEVEL": "error"},
			wantLevel: "error",
		},
		{
			name:      "flag overrides env",
			env:       map[string]string{"CUTFLOW_LOG_LEVEL": "error"},
			flags:     []string{"--log-level", "debug"},
			wantLevel: "debug",
		},
		{
			name:      "unchanged flag keeps file value",
			flags:     []string{"--no-color"},
			wantLevel: "warn",
			wantColor: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "log_level: warn\n")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			flags := newFlags()
			require.NoError(t, flags.Parse(tt.flags))

			cfg, err := Load(path, flags)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, cfg.LogLevel)
			assert.Equal(t, tt.wantColor, cfg.NoColor)
		})
	}
}

func TestLoad_NestedEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	t.Setenv("CUTFLOW_ENGINE__TYPE", "duckdb")
	t.Setenv("CUTFLOW_ENGINE__PATH", ":memory:")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Engine.Type)
	assert.Equal(t, ":memory:", cfg.Engine.Path)
}

func TestLoad_PathFlags(t *testing.T) {
	cfgDir := t.TempDir()
	path := writeConfig(t, cfgDir, "state_path: from-file.db\n")
	cwd := t.TempDir()
	t.Chdir(cwd)

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--state", "runs.db", "--database", "events.duckdb"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	// Flag paths are relative to the working directory, not the file.
	assert.Equal(t, filepath.Join(cwd, "runs.db"), cfg.StatePath)
	assert.Equal(t, filepath.Join(cwd, "events.duckdb"), cfg.Engine.Path)
	assert.Equal(t, "events.duckdb", cfg.Database)
}

func TestLoad_MemoryDatabase(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "database: \":memory:\"\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Engine.Path)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errSubstr string
	}{
		{"bad log level", "log_level: loud\n", "invalid log_level"},
		{"empty engine", "engine:\n  type: \"\"\n", "engine.type is required"},
		{"history without state", "state_path: \"\"\n", "state_path is required"},
		{"malformed yaml", "log_level: [unclosed\n", "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Default(), FromContext(ctx))
	assert.NotNil(t, GetLogger(ctx))

	cfg := &Config{LogLevel: "debug"}
	logger := testutil.NewTestLogger(t)
	ctx = NewContext(ctx, cfg, logger)
	assert.Same(t, cfg, FromContext(ctx))
	assert.Same(t, logger, GetLogger(ctx))
}

func TestLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "WARNING"
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, "WARN", level.String())
}
