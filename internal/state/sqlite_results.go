package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/cutflow/pkg/core"
)

// SaveCuts stores the cut accounting of a run, replacing earlier rows.
func (s *SQLiteStore) SaveCuts(ctx context.Context, runID string, cuts []core.CutRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cut_results WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear cuts: %w", err)
		}
		for _, c := range cuts {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO cut_results (run_id, position, label, predicate, pass, total) VALUES (?, ?, ?, ?, ?, ?)`,
				runID, c.Position, c.Label, c.Predicate, c.Pass, c.All,
			)
			if err != nil {
				return fmt.Errorf("failed to save cut %s: %w", c.Label, err)
			}
		}
		s.logger.Debug("cuts saved", slog.String("run", runID), slog.Int("count", len(cuts)))
		return nil
	})
}

// SaveAggregations stores the aggregations of a run, replacing earlier rows.
func (s *SQLiteStore) SaveAggregations(ctx context.Context, runID string, aggs []core.AggregationRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM aggregation_results WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear aggregations: %w", err)
		}
		for _, a := range aggs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO aggregation_results (run_id, name, style, entries, output_path) VALUES (?, ?, ?, ?, ?)`,
				runID, a.Name, a.Style, a.Entries, a.OutputPath,
			)
			if err != nil {
				return fmt.Errorf("failed to save aggregation %s: %w", a.Name, err)
			}
		}
		s.logger.Debug("aggregations saved", slog.String("run", runID), slog.Int("count", len(aggs)))
		return nil
	})
}

// GetCuts returns the cut accounting of a run in application order.
func (s *SQLiteStore) GetCuts(ctx context.Context, runID string) ([]core.CutRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, label, predicate, pass, total FROM cut_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cuts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.CutRecord
	for rows.Next() {
		c := core.CutRecord{RunID: runID}
		if err := rows.Scan(&c.Position, &c.Label, &c.Predicate, &c.Pass, &c.All); err != nil {
			return nil, fmt.Errorf("failed to scan cut: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetAggregations returns the aggregations of a run ordered by name.
func (s *SQLiteStore) GetAggregations(ctx context.Context, runID string) ([]core.AggregationRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, style, entries, output_path FROM aggregation_results WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.AggregationRecord
	for rows.Next() {
		a := core.AggregationRecord{RunID: runID}
		if err := rows.Scan(&a.Name, &a.Style, &a.Entries, &a.OutputPath); err != nil {
			return nil, fmt.Errorf("failed to scan aggregation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
