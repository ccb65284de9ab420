package hist

import (
	"encoding/json"
	"math"
)

// HistogramModel defines a histogram before it is filled.
type HistogramModel struct {
	Name    string
	Title   string
	Binning Binning
}

// Histogram counts values per bin.
type Histogram struct {
	axis

	Name    string
	Title   string
	Binning Binning
	YRange  *Range

	counts  []float64
	entries int64

	// in-range moments
	sumW   float64
	sumWX  float64
	sumWX2 float64
}

// NewHistogram creates an empty histogram for the model.
func NewHistogram(model HistogramModel) *Histogram {
	return &Histogram{
		axis:    axis{ShowStats: true},
		Name:    model.Name,
		Title:   model.Title,
		Binning: model.Binning,
		counts:  make([]float64, model.Binning.N()+2),
	}
}

// Fill adds one value. NaN is ignored.
func (h *Histogram) Fill(x float64) {
	bin := h.Binning.FindBin(x)
	if bin < 0 {
		return
	}
	h.AddBin(bin, 1, x, x*x)
}

// AddBin merges pre-aggregated content into bin: count entries whose values
// sum to sumX and whose squares sum to sumX2.
func (h *Histogram) AddBin(bin int, count int64, sumX, sumX2 float64) {
	if bin < 0 || bin >= len(h.counts) {
		return
	}
	h.counts[bin] += float64(count)
	h.entries += count
	if bin >= 1 && bin <= h.Binning.N() {
		h.sumW += float64(count)
		h.sumWX += sumX
		h.sumWX2 += sumX2
	}
}

// AggregationName implements Aggregation.
func (h *Histogram) AggregationName() string { return h.Name }

// Kind implements Aggregation.
func (h *Histogram) Kind() string { return KindHistogram }

// TotalEntries returns the number of fills, under- and overflow included.
func (h *Histogram) TotalEntries() int64 { return h.entries }

// BinContent returns the count in bin i (0 and N+1 are under/overflow).
func (h *Histogram) BinContent(i int) float64 {
	if i < 0 || i >= len(h.counts) {
		return 0
	}
	return h.counts[i]
}

// Underflow returns the underflow count.
func (h *Histogram) Underflow() float64 { return h.counts[0] }

// Overflow returns the overflow count.
func (h *Histogram) Overflow() float64 { return h.counts[len(h.counts)-1] }

// Integral returns the sum of the in-range bins.
func (h *Histogram) Integral() float64 { return h.sumW }

// Mean returns the mean of the in-range values.
func (h *Histogram) Mean() float64 {
	if h.sumW == 0 {
		return 0
	}
	return h.sumWX / h.sumW
}

// StdDev returns the standard deviation of the in-range values.
func (h *Histogram) StdDev() float64 {
	if h.sumW == 0 {
		return 0
	}
	mean := h.Mean()
	return math.Sqrt(math.Abs(h.sumWX2/h.sumW - mean*mean))
}

// SetYRange restricts the displayed Y axis.
func (h *Histogram) SetYRange(lo, hi float64) {
	h.YRange = &Range{Min: lo, Max: hi}
}

type histogramJSON struct {
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	XTitle    string    `json:"x_title,omitempty"`
	YTitle    string    `json:"y_title,omitempty"`
	ShowStats bool      `json:"show_stats"`
	YRange    *Range    `json:"y_range,omitempty"`
	Edges     []float64 `json:"edges"`
	Counts    []float64 `json:"counts"`
	Underflow float64   `json:"underflow"`
	Overflow  float64   `json:"overflow"`
	Entries   int64     `json:"entries"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
}

// MarshalJSON encodes the histogram with in-range counts and its statistics.
func (h *Histogram) MarshalJSON() ([]byte, error) {
	n := h.Binning.N()
	return json.Marshal(histogramJSON{
		Kind:      KindHistogram,
		Name:      h.Name,
		Title:     h.Title,
		XTitle:    h.XTitle,
		YTitle:    h.YTitle,
		ShowStats: h.ShowStats,
		YRange:    h.YRange,
		Edges:     h.Binning.Edges(),
		Counts:    append([]float64(nil), h.counts[1:n+1]...),
		Underflow: h.Underflow(),
		Overflow:  h.Overflow(),
		Entries:   h.entries,
		Mean:      h.Mean(),
		StdDev:    h.StdDev(),
	})
}
