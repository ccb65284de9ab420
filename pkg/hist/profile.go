package hist

import (
	"encoding/json"
	"math"
	"strings"
)

// ErrorMode selects how profile bin errors are computed.
type ErrorMode int

// Profile error modes, named after their option letters.
const (
	ErrorOnMean     ErrorMode = iota // ""  spread / sqrt(N)
	ErrorSpread                      // "s" spread
	ErrorSpreadInt                   // "i" spread / sqrt(N), integer-valued y
	ErrorBinomialG                   // "g" 1 / sqrt(N)
)

// ParseErrorMode reads the error mode from a profile option string.
func ParseErrorMode(options string) ErrorMode {
	o := strings.ToLower(options)
	switch {
	case strings.Contains(o, "s"):
		return ErrorSpread
	case strings.Contains(o, "i"):
		return ErrorSpreadInt
	case strings.Contains(o, "g"):
		return ErrorBinomialG
	}
	return ErrorOnMean
}

// ProfileModel defines a profile before it is filled.
type ProfileModel struct {
	Name    string
	Title   string
	Binning Binning
	Options string
}

// Profile records the mean of y in bins of x.
type Profile struct {
	axis

	Name    string
	Title   string
	Binning Binning
	Options string

	entries []float64
	sumY    []float64
	sumY2   []float64
	total   int64
}

// NewProfile creates an empty profile for the model.
func NewProfile(model ProfileModel) *Profile {
	n := model.Binning.N() + 2
	return &Profile{
		axis:    axis{ShowStats: true},
		Name:    model.Name,
		Title:   model.Title,
		Binning: model.Binning,
		Options: model.Options,
		entries: make([]float64, n),
		sumY:    make([]float64, n),
		sumY2:   make([]float64, n),
	}
}

// Fill adds one (x, y) pair. Pairs with NaN are ignored.
func (p *Profile) Fill(x, y float64) {
	if math.IsNaN(y) {
		return
	}
	bin := p.Binning.FindBin(x)
	if bin < 0 {
		return
	}
	p.AddBin(bin, 1, y, y*y)
}

// AddBin merges pre-aggregated content into bin.
func (p *Profile) AddBin(bin int, count int64, sumY, sumY2 float64) {
	if bin < 0 || bin >= len(p.entries) {
		return
	}
	p.entries[bin] += float64(count)
	p.sumY[bin] += sumY
	p.sumY2[bin] += sumY2
	p.total += count
}

// AggregationName implements Aggregation.
func (p *Profile) AggregationName() string { return p.Name }

// Kind implements Aggregation.
func (p *Profile) Kind() string { return KindProfile }

// TotalEntries returns the number of fills, under- and overflow included.
func (p *Profile) TotalEntries() int64 { return p.total }

// BinEntries returns the number of fills in bin i.
func (p *Profile) BinEntries(i int) float64 {
	if i < 0 || i >= len(p.entries) {
		return 0
	}
	return p.entries[i]
}

// BinMean returns the mean y in bin i, 0 for empty bins.
func (p *Profile) BinMean(i int) float64 {
	n := p.BinEntries(i)
	if n == 0 {
		return 0
	}
	return p.sumY[i] / n
}

// BinSpread returns the standard deviation of y in bin i.
func (p *Profile) BinSpread(i int) float64 {
	n := p.BinEntries(i)
	if n == 0 {
		return 0
	}
	mean := p.sumY[i] / n
	return math.Sqrt(math.Abs(p.sumY2[i]/n - mean*mean))
}

// BinError returns the error of bin i according to the profile options.
func (p *Profile) BinError(i int) float64 {
	n := p.BinEntries(i)
	if n == 0 {
		return 0
	}
	spread := p.BinSpread(i)
	switch ParseErrorMode(p.Options) {
	case ErrorSpread:
		return spread
	case ErrorSpreadInt:
		if spread == 0 {
			return 1 / math.Sqrt(12*n)
		}
		return spread / math.Sqrt(n)
	case ErrorBinomialG:
		return 1 / math.Sqrt(n)
	default:
		return spread / math.Sqrt(n)
	}
}

type profileBinJSON struct {
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
	Entries float64 `json:"entries"`
	Mean    float64 `json:"mean"`
	Error   float64 `json:"error"`
}

type profileJSON struct {
	Kind      string           `json:"kind"`
	Name      string           `json:"name"`
	Title     string           `json:"title"`
	XTitle    string           `json:"x_title,omitempty"`
	YTitle    string           `json:"y_title,omitempty"`
	Options   string           `json:"options,omitempty"`
	ShowStats bool             `json:"show_stats"`
	Entries   int64            `json:"entries"`
	Bins      []profileBinJSON `json:"bins"`
}

// MarshalJSON encodes the in-range bins with their means and errors.
func (p *Profile) MarshalJSON() ([]byte, error) {
	edges := p.Binning.Edges()
	bins := make([]profileBinJSON, p.Binning.N())
	for i := range bins {
		bins[i] = profileBinJSON{
			Low:     edges[i],
			High:    edges[i+1],
			Entries: p.BinEntries(i + 1),
			Mean:    p.BinMean(i + 1),
			Error:   p.BinError(i + 1),
		}
	}
	return json.Marshal(profileJSON{
		Kind:      KindProfile,
		Name:      p.Name,
		Title:     p.Title,
		XTitle:    p.XTitle,
		YTitle:    p.YTitle,
		Options:   p.Options,
		ShowStats: p.ShowStats,
		Entries:   p.total,
		Bins:      bins,
	})
}
