package core

// DefaultOutputDir is used when output_dir is not configured.
const DefaultOutputDir = "."

// AnalysisConfig is the typed view of a resolved analysis document.
type AnalysisConfig struct {
	InputFile     string            `mapstructure:"input_file"`
	LibraryFile   string            `mapstructure:"library_file"`
	TreeName      string            `mapstructure:"tree_name"`
	OutputDir     string            `mapstructure:"output_dir"`
	Detector      map[string]any    `mapstructure:"detector"`
	NewColumns    []ColumnDef       `mapstructure:"new_columns"`
	UserFunctions []UserFunction    `mapstructure:"user_functions"`
	Cuts          []string          `mapstructure:"cuts"`
	Aggregations  []AggregationSpec `mapstructure:"hist_params"`
}
