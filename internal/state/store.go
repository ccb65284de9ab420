// Package state records analysis runs in SQLite: one row per run plus the
// efficiency of every cut and the aggregations produced.
package state

import (
	"context"

	"github.com/leapstack-labs/cutflow/pkg/core"
)

// Store is the run history.
type Store interface {
	CreateRun(ctx context.Context, configPath, configHash, detectorID string) (*core.Run, error)
	CompleteRun(ctx context.Context, id string, status core.RunStatus, errMsg string) error
	SaveCuts(ctx context.Context, runID string, cuts []core.CutRecord) error
	SaveAggregations(ctx context.Context, runID string, aggs []core.AggregationRecord) error
	GetRun(ctx context.Context, id string) (*core.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*core.Run, error)
	GetCuts(ctx context.Context, runID string) ([]core.CutRecord, error)
	GetAggregations(ctx context.Context, runID string) ([]core.AggregationRecord, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
