package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/cutflow/internal/logging"
)

// Validate checks if the configuration is valid. Whether the engine type is
// registered is checked when the runtime is opened.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if strings.TrimSpace(c.Engine.Type) == "" {
		return fmt.Errorf("engine.type is required")
	}
	if strings.TrimSpace(c.StatePath) == "" && c.History {
		return fmt.Errorf("state_path is required when history is enabled\nHint: set state_path or pass --no-history")
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() (slog.Level, error) {
	return logging.ParseLevel(c.LogLevel)
}
