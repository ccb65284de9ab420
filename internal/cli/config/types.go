// Package config loads the cutflow tool settings: logging, the engine
// session and the run history store. Analysis documents are loaded by
// internal/analysis, not here.
package config

import (
	"github.com/leapstack-labs/cutflow/pkg/frame"
)

// Default values.
const (
	DefaultLogLevel  = "info"
	DefaultStateFile = ".cutflow/state.db"
	DefaultEngine    = "duckdb"
)

// Config holds all CLI configuration options.
type Config struct {
	LogLevel  string `koanf:"log_level"`
	NoColor   bool   `koanf:"no_color"`
	Database  string `koanf:"database"` // shorthand for engine.path
	StatePath string `koanf:"state_path"`
	History   bool   `koanf:"history"`

	Engine frame.EngineConfig `koanf:"engine"`

	// ConfigFile is the settings file that was read, if any.
	ConfigFile string `koanf:"-"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		StatePath: DefaultStateFile,
		History:   true,
		Engine:    frame.EngineConfig{Type: DefaultEngine},
	}
}
