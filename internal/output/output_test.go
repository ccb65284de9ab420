package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cutflow/internal/testutil"
	"github.com/leapstack-labs/cutflow/pkg/hist"
)

func histogram(t *testing.T, name string, values ...float64) *hist.Histogram {
	t.Helper()
	b, err := hist.Uniform(4, 0, 4)
	require.NoError(t, err)
	h := hist.NewHistogram(hist.HistogramModel{Name: name, Binning: b})
	for _, v := range values {
		h.Fill(v)
	}
	return h
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots", "run1")
	w := NewWriter(dir, testutil.NewTestLogger(t))

	b, err := hist.Variable([]float64{0, 1, 10})
	require.NoError(t, err)
	p := hist.NewProfile(hist.ProfileModel{Name: "ldf", Binning: b})
	p.Fill(0.5, 2)

	artifacts, err := w.Save([]hist.Aggregation{histogram(t, "energy", 1, 2, 2), nil, p})
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	assert.Equal(t, filepath.Join(dir, "energy.json"), artifacts[0].Path)
	assert.Equal(t, hist.KindHistogram, artifacts[0].Kind)
	assert.Equal(t, int64(3), artifacts[0].Entries)
	assert.Equal(t, filepath.Join(dir, "ldf.json"), artifacts[1].Path)

	data, err := os.ReadFile(artifacts[0].Path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "energy", doc["name"])
	assert.Equal(t, hist.KindHistogram, doc["kind"])
}

func TestSave_Recreates(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testutil.NewTestLogger(t))

	_, err := w.Save([]hist.Aggregation{histogram(t, "h", 1, 1, 1, 1)})
	require.NoError(t, err)
	_, err = w.Save([]hist.Aggregation{histogram(t, "h", 1)})
	require.NoError(t, err)

	data, err := os.ReadFile(w.Path("h"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.InDelta(t, 1.0, doc["entries"], 0)
}

func TestSave_InvalidName(t *testing.T) {
	w := NewWriter(t.TempDir(), testutil.NewTestLogger(t))
	_, err := w.Save([]hist.Aggregation{histogram(t, "../escape")})
	assert.ErrorContains(t, err, "invalid aggregation name")
}
