package core

import "time"

// RunStatus represents the status of an analysis run.
type RunStatus string

// Run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded execution of an analysis.
type Run struct {
	ID          string
	ConfigPath  string
	ConfigHash  string
	DetectorID  string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// CutRecord stores the pass-through accounting of one cut.
type CutRecord struct {
	RunID     string
	Position  int
	Label     string
	Predicate string
	Pass      int64
	All       int64
}

// AggregationRecord stores one produced aggregation.
type AggregationRecord struct {
	RunID      string
	Name       string
	Style      string
	Entries    int64
	OutputPath string
}
