package core

// ColumnDef declares a derived column: a name and the engine expression that
// computes it.
type ColumnDef struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`

	// Init set to false declares the column but skips its definition.
	Init *bool `mapstructure:"init"`
}

// Enabled reports whether the column should be defined. Only an explicit
// init: false disables it.
func (c ColumnDef) Enabled() bool {
	return c.Init == nil || *c.Init
}
