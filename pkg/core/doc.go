// Package core defines the shared language of cutflow.
//
// This package contains:
//   - Configuration documents and their typed views (Document, AnalysisConfig)
//   - Pipeline specs (ColumnDef, UserFunction, Cut, AggregationSpec)
//   - Run history entities (Run, CutRecord, AggregationRecord)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
