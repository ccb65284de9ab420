package duckdb

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/cutflow/pkg/frame"
)

func init() {
	frame.Register(Name, func(ctx context.Context, cfg frame.EngineConfig, logger *slog.Logger) (frame.Runtime, error) {
		rt, err := Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return rt, nil
	})
}
