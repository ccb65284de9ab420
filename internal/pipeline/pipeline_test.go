package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cutflow/internal/analysis"
	"github.com/leapstack-labs/cutflow/internal/columns"
	"github.com/leapstack-labs/cutflow/internal/library"
	"github.com/leapstack-labs/cutflow/internal/testutil"
	"github.com/leapstack-labs/cutflow/pkg/core"
	"github.com/leapstack-labs/cutflow/pkg/hist"
)

func baseDoc() core.Document {
	return core.Document{
		"input_file":   "events_detector_id_placeholder.parquet",
		"library_file": library.BuiltinLibrary,
		"tree_name":    "T",
		"detector":     map[string]any{"detector_id": 9},
		"cuts":         []any{"Energy>18.5", "NHits>=3"},
		"hist_params": []any{
			map[string]any{"style": "histogram", "name": "energy", "column": "Energy", "bins": 50, "min": 18, "max": 21},
		},
	}
}

func resolve(t *testing.T, doc core.Document) *analysis.Resolved {
	t.Helper()
	res, err := analysis.NewResolver(testutil.NewTestLogger(t)).Resolve(doc, nil)
	require.NoError(t, err)
	return res
}

func TestRun_Scenario(t *testing.T) {
	engine := testutil.NewFakeEngine("Energy", "NHits")
	engine.Rows = 6
	engine.Pass["Cut_1"] = 5
	engine.Pass["Cut_2"] = 4

	p, err := New(resolve(t, baseDoc()), Options{Logger: testutil.NewTestLogger(t), Runtime: engine})
	require.NoError(t, err)
	assert.Equal(t, StageResolved, p.Stage())

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageAggregated, p.Stage())

	opens := engine.CallsOf("open")
	require.Len(t, opens, 1)
	assert.Equal(t, "events_9.parquet", opens[0].Name)
	assert.Equal(t, "T", opens[0].Arg)

	require.Len(t, res.Aggregations, 1)
	assert.Equal(t, hist.KindHistogram, res.Aggregations[0].Kind())
	require.Len(t, res.Cuts, 2)
	assert.Equal(t, "Cut_1", res.Cuts[0].Label)
	assert.Equal(t, "Cut_2", res.Cuts[1].Label)

	report, err := res.Report(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Cuts, 2)
	assert.Equal(t, "Energy>18.5", report.Cuts[0].Predicate)
	assert.Equal(t, "NHits>=3", report.Cuts[1].Predicate)
	assert.Equal(t, int64(5), report.Cuts[1].All)
	assert.Equal(t, StageReported, p.Stage())
}

func TestRun_StagesAreOneWay(t *testing.T) {
	doc := baseDoc()
	doc["output_dir"] = t.TempDir()
	engine := testutil.NewFakeEngine("Energy", "NHits")

	p, err := New(resolve(t, doc), Options{Logger: testutil.NewTestLogger(t), Runtime: engine})
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, ErrStageOrder)

	artifacts, err := res.Save()
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.FileExists(t, artifacts[0].Path)
	assert.Equal(t, StageSaved, p.Stage())

	_, err = res.Report(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageReported, stageErr.Stage)
	assert.ErrorIs(t, err, ErrStageOrder)
}

func TestRun_ColumnsInOrder(t *testing.T) {
	doc := baseDoc()
	doc["new_columns"] = []any{
		map[string]any{"name": "E2", "expression": "Energy * Energy"},
		map[string]any{"name": "off", "expression": "1", "init": false},
	}
	doc["user_functions"] = []any{
		map[string]any{"language": "C++", "new_column": "maxHit", "callable": "findMaxInRVec", "args": []any{map[string]any{"value": "Hits"}}},
		map[string]any{"new_column": "first", "args": []any{map[string]any{"value": "Hits"}, map[string]any{"value": "0"}}},
	}
	engine := testutil.NewFakeEngine("Energy", "NHits", "Hits")

	p, err := New(resolve(t, doc), Options{Logger: testutil.NewTestLogger(t), Runtime: engine})
	require.NoError(t, err)
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Energy", "NHits", "Hits", "E2", "maxHit", "first"}, res.Frame.ColumnNames())
	assert.Empty(t, res.Undefined)
	require.Len(t, engine.Declared(), 1)

	var ops []string
	for _, c := range engine.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"open", "define", "declare", "define", "define", "filter", "filter", "histogram"}, ops)
}

func TestRun_UndefinedColumnFailsCut(t *testing.T) {
	doc := baseDoc()
	doc["user_functions"] = []any{
		map[string]any{"language": "native", "new_column": "maxHit", "callable": "noSuchFunction", "args": []any{map[string]any{"value": "Hits"}}},
	}
	doc["cuts"] = []any{"Energy > 18.5", "maxHit > 2"}

	logger, logs := testutil.NewCaptureLogger()
	engine := testutil.NewFakeEngine("Energy", "NHits", "Hits")
	p, err := New(resolve(t, doc), Options{Logger: logger, Runtime: engine})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageFiltered, stageErr.Stage)
	var undefErr *columns.UndefinedError
	require.ErrorAs(t, err, &undefErr)
	assert.Equal(t, []string{"maxHit"}, undefErr.Columns)
	assert.True(t, logs.Has(slog.LevelWarn, "user function left undefined"))
	assert.Zero(t, logs.Count(slog.LevelError))
	assert.Empty(t, engine.CallsOf("histogram"))
}

func TestRun_FailedRedefinitionKeepsExistingColumn(t *testing.T) {
	doc := baseDoc()
	doc["new_columns"] = []any{
		map[string]any{"name": "Energy", "expression": "Energy * 2"},
	}
	doc["user_functions"] = []any{
		map[string]any{"language": "native", "new_column": "NHits", "callable": "noSuchFunction", "args": []any{map[string]any{"value": "Hits"}}},
	}

	logger, logs := testutil.NewCaptureLogger()
	engine := testutil.NewFakeEngine("Energy", "NHits", "Hits")
	p, err := New(resolve(t, doc), Options{Logger: logger, Runtime: engine})
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Undefined)
	require.Len(t, res.Cuts, 2)
	require.Len(t, res.Aggregations, 1)
	assert.Len(t, engine.CallsOf("filter"), 2)
	var skipped []string
	for _, e := range logs.Entries() {
		if strings.Contains(e.Message, "left undefined") {
			assert.Equal(t, slog.LevelWarn, e.Level)
			skipped = append(skipped, e.Message)
		}
	}
	assert.Equal(t, []string{"column left undefined", "user function left undefined"}, skipped)
	assert.Zero(t, logs.Count(slog.LevelError))
}

func TestRun_UndefinedColumnSkipsAggregation(t *testing.T) {
	doc := baseDoc()
	doc["user_functions"] = []any{
		map[string]any{"language": "fortran", "new_column": "maxHit", "callable": "findMaxInRVec", "args": []any{map[string]any{"value": "Hits"}}},
	}
	doc["hist_params"] = []any{
		map[string]any{"style": "histogram", "name": "energy", "column": "Energy", "bins": 5, "min": 18, "max": 21},
		map[string]any{"style": "histogram", "name": "maxhit", "column": "maxHit", "bins": 5, "min": 0, "max": 10},
	}

	logger, logs := testutil.NewCaptureLogger()
	p, err := New(resolve(t, doc), Options{Logger: logger, Runtime: testutil.NewFakeEngine("Energy", "NHits", "Hits")})
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"maxHit"}, res.Undefined)
	require.Len(t, res.Aggregations, 1)
	assert.Equal(t, "energy", res.Aggregations[0].AggregationName())
	assert.True(t, logs.Has(slog.LevelWarn, "aggregation skipped"))
	assert.True(t, logs.Has(slog.LevelWarn, "undefined columns"))
}

func TestNew_LibraryErrors(t *testing.T) {
	twoStructs := filepath.Join(t.TempDir(), "lib.star")
	require.NoError(t, os.WriteFile(twoStructs, []byte("a = struct(f = len)\nb = struct(g = len)\n"), 0o600))

	tests := []struct {
		name string
		lib  string
	}{
		{name: "unsupported format", lib: "helpers.py"},
		{name: "ambiguous library", lib: twoStructs},
		{name: "missing file", lib: filepath.Join(t.TempDir(), "missing.star")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := baseDoc()
			doc["library_file"] = tt.lib
			engine := testutil.NewFakeEngine("Energy")

			_, err := New(resolve(t, doc), Options{Logger: testutil.NewTestLogger(t), Runtime: engine})
			var libErr *library.LibraryError
			require.ErrorAs(t, err, &libErr)
			assert.Empty(t, engine.Calls(), "dataset must not be opened")
		})
	}
}

func TestNew_RequiresRuntime(t *testing.T) {
	_, err := New(resolve(t, baseDoc()), Options{})
	assert.Error(t, err)

	_, err = New(nil, Options{Runtime: testutil.NewFakeEngine()})
	assert.Error(t, err)
}

func TestRun_OpenFailure(t *testing.T) {
	engine := testutil.NewFakeEngine()
	engine.OpenErr = errors.New("file not found")

	p, err := New(resolve(t, baseDoc()), Options{Logger: testutil.NewTestLogger(t), Runtime: engine})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Contains(t, stageErr.Op, "events_9.parquet")
}

type inertBackend struct{}

func (inertBackend) Name() string { return "ray" }

func TestNew_ParallelAndBackend(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	p, err := New(resolve(t, baseDoc()), Options{
		Logger:   logger,
		Runtime:  testutil.NewFakeEngine("Energy", "NHits"),
		Backend:  inertBackend{},
		Parallel: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ray", p.Backend().Name())
	assert.True(t, logs.Has(slog.LevelWarn, "parallel execution is not supported"))
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "columns-defined", StageColumnsDefined.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
