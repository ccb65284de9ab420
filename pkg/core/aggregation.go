package core

// Aggregation styles.
const (
	StyleHistogram = "histogram"
	StyleProfile   = "profile_plot"
)

// AggregationSpec is one entry of hist_params. Which fields apply depends on
// Style: histograms use Column/Bins/Min/Max, profiles use XColumn/YColumn and
// either XBinEdges or XBins/XMin/XMax.
type AggregationSpec struct {
	Style string `mapstructure:"style"`
	Name  string `mapstructure:"name"`
	Title string `mapstructure:"title"`

	// histogram
	Column     string    `mapstructure:"column"`
	Bins       int       `mapstructure:"bins"`
	Min        float64   `mapstructure:"min"`
	Max        float64   `mapstructure:"max"`
	YRangeUser []float64 `mapstructure:"y_range_user"`

	// profile_plot
	XColumn   string    `mapstructure:"x_column"`
	YColumn   string    `mapstructure:"y_column"`
	Options   string    `mapstructure:"options"`
	XBins     int       `mapstructure:"x_bins"`
	XMin      float64   `mapstructure:"x_min"`
	XMax      float64   `mapstructure:"x_max"`
	XBinEdges []float64 `mapstructure:"x_bin_edges"`

	XTitle    string `mapstructure:"x_title"`
	YTitle    string `mapstructure:"y_title"`
	ShowStats *bool  `mapstructure:"show_stats"`
}

// StatsShown reports whether the statistics box stays visible. It is shown
// unless show_stats is explicitly false.
func (a AggregationSpec) StatsShown() bool {
	return a.ShowStats == nil || *a.ShowStats
}

// Columns returns the dataset columns the aggregation reads.
func (a AggregationSpec) Columns() []string {
	switch a.Style {
	case StyleHistogram:
		return []string{a.Column}
	case StyleProfile:
		return []string{a.XColumn, a.YColumn}
	}
	return nil
}
