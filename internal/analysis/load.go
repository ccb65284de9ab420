package analysis

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/leapstack-labs/cutflow/pkg/core"
)

// DetectorConfigKey names the analysis key holding the detector document path.
const DetectorConfigKey = "detector_config"

// LoadDocument parses a YAML document.
func LoadDocument(path string) (core.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return core.Document(k.Raw()), nil
}

// Documents are the two inputs of a resolution.
type Documents struct {
	AnalysisPath string
	DetectorPath string // empty when the analysis carries its detector inline
	Analysis     core.Document
	Detector     core.Document
}

// LoadDocuments loads the analysis document at path and its detector
// document. detectorOverride, when set, replaces the detector_config key.
// A detector_config path is relative to the analysis document.
func LoadDocuments(path, detectorOverride string) (*Documents, error) {
	analysisDoc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	docs := &Documents{AnalysisPath: path, Analysis: analysisDoc}

	detPath := detectorOverride
	if detPath == "" {
		if v, ok := analysisDoc[DetectorConfigKey]; ok && v != nil {
			s, ok := v.(string)
			if !ok {
				return nil, &ConfigError{Path: path, Err: fmt.Errorf("%s must be a path, got %T", DetectorConfigKey, v)}
			}
			detPath = s
			if !filepath.IsAbs(detPath) {
				detPath = filepath.Join(filepath.Dir(path), detPath)
			}
		}
	}
	if detPath == "" {
		return docs, nil
	}

	detectorDoc, err := LoadDocument(detPath)
	if err != nil {
		return nil, err
	}
	if len(detectorDoc) == 0 {
		return nil, &ConfigError{Path: detPath, Err: errors.New("empty detector document")}
	}
	docs.DetectorPath = detPath
	docs.Detector = detectorDoc
	return docs, nil
}

// Files lists the document paths, for change watching.
func (d *Documents) Files() []string {
	files := []string{d.AnalysisPath}
	if d.DetectorPath != "" {
		files = append(files, d.DetectorPath)
	}
	return files
}
