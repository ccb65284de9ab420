// Package cuts applies the ordered selection of an analysis to a frame.
package cuts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/cutflow/internal/columns"
	"github.com/leapstack-labs/cutflow/internal/logging"
	"github.com/leapstack-labs/cutflow/pkg/core"
	"github.com/leapstack-labs/cutflow/pkg/frame"
)

// Chain applies cuts in order, labelling them Cut_1..Cut_N.
type Chain struct {
	columns *columns.Engine
	logger  *slog.Logger
}

// NewChain creates a chain that refuses predicates over columns cols marks
// undefined. cols may be nil.
func NewChain(cols *columns.Engine, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{columns: cols, logger: logging.Component(logger, "cuts")}
}

// ApplyAll filters f by every predicate in order and returns the final frame
// with the applied cuts. Any failure aborts the chain; no cut is skipped.
func (c *Chain) ApplyAll(ctx context.Context, f frame.Frame, predicates []string) (frame.Frame, []core.Cut, error) {
	cuts := make([]core.Cut, 0, len(predicates))
	for i, pred := range predicates {
		cut := core.NewCut(i+1, pred)

		if strings.TrimSpace(pred) == "" {
			return nil, nil, fmt.Errorf("%s: empty predicate", cut.Label)
		}
		if c.columns != nil {
			if err := c.columns.CheckDefined("cut "+cut.Label, c.columns.ReferencedIn(pred)...); err != nil {
				return nil, nil, err
			}
		}

		next, err := f.Filter(ctx, cut.Predicate, cut.Label)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply %s (%s): %w", cut.Label, pred, err)
		}
		c.logger.Debug("cut applied", "label", cut.Label, "predicate", pred)

		f = next
		cuts = append(cuts, cut)
	}
	c.logger.Info("cuts applied", "count", len(cuts))
	return f, cuts, nil
}
