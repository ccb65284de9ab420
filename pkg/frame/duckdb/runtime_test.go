package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cutflow/pkg/frame"
	"github.com/leapstack-labs/cutflow/pkg/hist"
)

const eventsCSV = `Energy,NHits
18.2,1
18.7,3
19.4,2
19.9,5
20.5,4
21.3,6
`

func openRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := Open(context.Background(), frame.EngineConfig{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func writeEvents(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(eventsCSV), 0o600))
	return path
}

func TestRuntime_Pipeline(t *testing.T) {
	rt := openRuntime(t)
	ctx := context.Background()

	base, err := rt.Open(ctx, frame.Source{Path: writeEvents(t), Table: "T"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Energy", "NHits"}, base.ColumnNames())

	cut1, err := base.Filter(ctx, "Energy > 18.5", "Cut_1")
	require.NoError(t, err)
	cut2, err := cut1.Filter(ctx, "NHits >= 3", "Cut_2")
	require.NoError(t, err)

	b, err := hist.Uniform(50, 18, 21)
	require.NoError(t, err)
	h, err := cut2.Histogram1D(ctx, hist.HistogramModel{Name: "energy", Binning: b}, "Energy")
	require.NoError(t, err)
	assert.Equal(t, int64(4), h.TotalEntries())
	assert.Equal(t, 1.0, h.Overflow())
	assert.Equal(t, 3.0, h.Integral())
	assert.Equal(t, 1.0, h.BinContent(b.FindBin(18.7)))

	report, err := cut2.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report.Cuts, 2)
	assert.Equal(t, frame.CutResult{Label: "Cut_1", Predicate: "Energy > 18.5", Pass: 5, All: 6}, report.Cuts[0])
	assert.Equal(t, frame.CutResult{Label: "Cut_2", Predicate: "NHits >= 3", Pass: 4, All: 5}, report.Cuts[1])

	// the base frame still sees every row
	all, err := base.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), all.Total)
	assert.Empty(t, all.Cuts)
}

func TestRuntime_DefineAndProfile(t *testing.T) {
	rt := openRuntime(t)
	ctx := context.Background()

	base, err := rt.Open(ctx, frame.Source{Path: writeEvents(t)})
	require.NoError(t, err)

	require.NoError(t, rt.Declare(ctx, "CREATE OR REPLACE MACRO twice(a) AS a * 2"))
	f, err := base.Define(ctx, "E2", "twice(Energy)")
	require.NoError(t, err)
	f, err = f.Define(ctx, "Hits", "[NHits, NHits + 1]")
	require.NoError(t, err)

	_, err = f.Define(ctx, "broken", "no_such_column + 1")
	assert.Error(t, err)

	cols, err := f.ColumnsAsArrays(ctx, "E2")
	require.NoError(t, err)
	require.Len(t, cols["E2"], 6)
	assert.InDelta(t, 36.4, cols["E2"][0], 1e-9)

	b, err := hist.Variable([]float64{0, 3, 10})
	require.NoError(t, err)
	p, err := f.Profile1D(ctx, hist.ProfileModel{Name: "p", Binning: b}, "NHits", "Energy")
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.BinEntries(1))
	assert.InDelta(t, (18.2+19.4)/2, p.BinMean(1), 1e-9)

	h, err := f.Histogram1D(ctx, hist.HistogramModel{Name: "hits", Binning: b}, "Hits")
	require.NoError(t, err)
	assert.Equal(t, int64(12), h.TotalEntries())
}

func TestRuntime_RegisterManaged(t *testing.T) {
	rt := openRuntime(t)
	ctx := context.Background()

	base, err := rt.Open(ctx, frame.Source{Path: writeEvents(t)})
	require.NoError(t, err)

	err = rt.RegisterManaged(ctx, "star_sum", 2, func(args []any) (any, error) {
		return args[0].(float64) + args[1].(float64), nil
	})
	require.NoError(t, err)

	f, err := base.Define(ctx, "S", "star_sum(Energy, NHits)")
	require.NoError(t, err)

	cols, err := f.ColumnsAsArrays(ctx, "S")
	require.NoError(t, err)
	assert.InDelta(t, 19.2, cols["S"][0], 1e-9)
}

func TestRuntime_ElementAccessIsZeroBased(t *testing.T) {
	rt := openRuntime(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "sig.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"sig": [5, 9, 1], "xy": [100, 200, 300]}`+"\n"+
			`{"sig": [9, 1, 1], "xy": [100, 200, 300]}`+"\n"), 0o600))
	base, err := rt.Open(ctx, frame.Source{Path: path})
	require.NoError(t, err)

	require.NoError(t, rt.Declare(ctx,
		"CREATE OR REPLACE MACRO max_index(s) AS CASE WHEN len(s) = 0 THEN -1 ELSE list_position(s, list_max(s)) - 1 END"))
	f, err := base.Define(ctx, "hot", "max_index(sig)")
	require.NoError(t, err)
	f, err = f.Define(ctx, "hotXY", "xy[hot]")
	require.NoError(t, err)
	f, err = f.Define(ctx, "first", "xy[0]")
	require.NoError(t, err)
	f, err = f.Define(ctx, "past", "xy[3]")
	require.NoError(t, err)

	cols, err := f.ColumnsAsArrays(ctx, "hot", "hotXY", "first", "past")
	require.NoError(t, err)
	require.Len(t, cols["hot"], 2)
	assert.EqualValues(t, 1, cols["hot"][0])
	assert.EqualValues(t, 0, cols["hot"][1])
	require.Len(t, cols["hotXY"], 2)
	assert.EqualValues(t, 200, cols["hotXY"][0])
	assert.EqualValues(t, 100, cols["hotXY"][1])
	assert.EqualValues(t, 100, cols["first"][0])
	assert.Equal(t, []any{nil, nil}, cols["past"])
}
