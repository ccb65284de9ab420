package frame

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// EngineConfig selects and configures a Runtime implementation.
type EngineConfig struct {
	// Type is the registered engine name, e.g. "duckdb".
	Type string `mapstructure:"type"`

	// Path of the engine's own database; empty means in-memory.
	Path string `mapstructure:"path"`

	// Extensions to install and load before the first query.
	Extensions []string `mapstructure:"extensions"`

	// Settings applied at session level (e.g. threads, memory_limit).
	Settings map[string]string `mapstructure:"settings"`
}

// Factory opens a Runtime.
type Factory func(ctx context.Context, cfg EngineConfig, logger *slog.Logger) (Runtime, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an engine factory to the registry.
// Called by engine implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an engine factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// NewRuntime opens the runtime named by cfg.Type.
func NewRuntime(ctx context.Context, cfg EngineConfig, logger *slog.Logger) (Runtime, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("engine type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownEngineError{
			Type:      cfg.Type,
			Available: ListEngines(),
		}
	}
	return factory(ctx, cfg, logger)
}

// ListEngines returns all registered engine names (sorted).
func ListEngines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownEngineError is returned when an unknown engine type is requested.
type UnknownEngineError struct {
	Type      string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine type %q\nAvailable engines: %v\nHint: Check engine.type in cutflow.yaml", e.Type, e.Available)
}
