package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"events.parquet", FormatParquet},
		{"EVENTS.PQ", FormatParquet},
		{"data/run1.csv", FormatCSV},
		{"run.ndjson", FormatJSON},
		{"store.duckdb", FormatDatabase},
		{"tree.root", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Source{Path: tt.path}.Format())
		})
	}
}

func TestReport(t *testing.T) {
	r := NewReport(200,
		[]string{"Cut_1", "Cut_2"},
		[]string{"Energy > 18.5", "NHits >= 3"},
		[]int64{100, 25})

	assert.Equal(t, int64(200), r.Cuts[0].All)
	assert.Equal(t, int64(100), r.Cuts[1].All)
	assert.InDelta(t, 50.0, r.Cuts[0].Efficiency(), 1e-12)
	assert.InDelta(t, 25.0, r.Cuts[1].Efficiency(), 1e-12)
	assert.InDelta(t, 12.5, r.Cumulative(1), 1e-12)
	assert.Zero(t, r.Cumulative(5))

	out := r.String()
	assert.Contains(t, out, "Cut_1     : pass=100        all=200        -- eff=50.00 % cumulative eff=50.00 %")
	assert.Contains(t, out, "Cut_2     : pass=25         all=100        -- eff=25.00 % cumulative eff=12.50 %")

	var buf bytes.Buffer
	r.Render(&buf)
	assert.Contains(t, buf.String(), "Energy > 18.5")
	assert.Contains(t, buf.String(), "Cumulative %")
}

func TestEmptyReport(t *testing.T) {
	r := NewReport(0, nil, nil, nil)
	assert.Empty(t, r.String())
	assert.Zero(t, CutResult{}.Efficiency())
}
