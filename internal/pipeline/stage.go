package pipeline

import (
	"errors"
	"fmt"
)

// Stage is the position of a run in its one-way lifecycle.
type Stage int

// Lifecycle stages in order. Reported and Saved are optional.
const (
	StageUnresolved Stage = iota
	StageResolved
	StageColumnsDefined
	StageFiltered
	StageAggregated
	StageReported
	StageSaved
)

func (s Stage) String() string {
	switch s {
	case StageUnresolved:
		return "unresolved"
	case StageResolved:
		return "resolved"
	case StageColumnsDefined:
		return "columns-defined"
	case StageFiltered:
		return "filtered"
	case StageAggregated:
		return "aggregated"
	case StageReported:
		return "reported"
	case StageSaved:
		return "saved"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ErrStageOrder is returned when a run would re-enter a stage it has passed.
var ErrStageOrder = errors.New("stage already passed")

// StageError reports a failure while moving into Stage.
type StageError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("pipeline %s: %s: %v", e.Stage, e.Op, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
