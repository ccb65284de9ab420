// Package output writes aggregations to disk, one JSON file per aggregation.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/cutflow/internal/logging"
	"github.com/leapstack-labs/cutflow/pkg/hist"
)

// Ext is the artifact file extension.
const Ext = ".json"

// Artifact is one written aggregation.
type Artifact struct {
	Name    string
	Kind    string
	Entries int64
	Path    string
}

// Writer saves aggregations under Dir, replacing existing files.
type Writer struct {
	Dir    string
	logger *slog.Logger
}

// NewWriter creates a writer for dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{Dir: dir, logger: logging.Component(logger, "output")}
}

// Path returns the artifact path for an aggregation name.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.Dir, name+Ext)
}

// Save writes every non-nil aggregation and returns what was written.
func (w *Writer) Save(aggs []hist.Aggregation) ([]Artifact, error) {
	if err := os.MkdirAll(w.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var out []Artifact
	for _, agg := range aggs {
		if agg == nil {
			continue
		}
		name := agg.AggregationName()
		if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return out, fmt.Errorf("invalid aggregation name %q", name)
		}

		data, err := json.MarshalIndent(agg, "", "  ")
		if err != nil {
			return out, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		path := w.Path(name)
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // G306: artifacts are meant to be shared
			return out, fmt.Errorf("failed to write %s: %w", path, err)
		}

		w.logger.Info("aggregation saved", "name", name, "path", path)
		out = append(out, Artifact{Name: name, Kind: agg.Kind(), Entries: agg.TotalEntries(), Path: path})
	}
	return out, nil
}
