package hist

// Aggregation kinds.
const (
	KindHistogram = "histogram"
	KindProfile   = "profile_plot"
)

// Aggregation is a named summary produced from a dataset.
type Aggregation interface {
	AggregationName() string
	Kind() string
	TotalEntries() int64
	SetAxisTitles(x, y string)
	SetShowStats(show bool)
}

// Range is a closed display interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// axis holds the presentation attributes shared by all aggregations.
type axis struct {
	XTitle    string
	YTitle    string
	ShowStats bool
}

func (a *axis) SetAxisTitles(x, y string) {
	a.XTitle = x
	a.YTitle = y
}

func (a *axis) SetShowStats(show bool) {
	a.ShowStats = show
}
