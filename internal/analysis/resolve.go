// Package analysis resolves analysis documents into runnable configurations.
//
// Resolution merges the detector document under the "detector" key, derives
// the profile fit index and the detector id, substitutes placeholder tokens
// in every string of the merged document and validates the required keys.
package analysis

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/cutflow/pkg/core"
)

// Document keys read by the resolver.
const (
	KeyInputFile       = "input_file"
	KeyLibraryFile     = "library_file"
	KeyTreeName        = "tree_name"
	KeyDetector        = "detector"
	KeyDetectorID      = "detector_id"
	KeyProfileFitIndex = "profile_fit_index"
	KeyDetectors       = "detectors"
	KeyOutputDir       = "output_dir"
)

// Placeholder tokens.
const (
	TokenProfileFitIndex = "profile_fit_index"
	TokenDetectorID      = "detector_id_placeholder"
	DetectorFieldPrefix  = "fd_"
)

// DefaultProfileFitIndex is used when neither the analysis nor a detector
// table names one.
const DefaultProfileFitIndex = 4

// Resolver turns analysis and detector documents into a Resolved config.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{logger: logger.With("component", "config")}
}

// Resolved is a validated, placeholder-free analysis configuration. It is
// read-only: accessors return copies.
type Resolved struct {
	ProfileFitIndex int
	DetectorID      string

	doc    core.Document
	cfg    core.AnalysisConfig
	tokens map[string]string
}

// Resolve merges detectorDoc into analysisDoc and resolves the result. A nil
// detectorDoc keeps whatever detector the analysis document carries. Neither
// input is modified.
func (r *Resolver) Resolve(analysisDoc, detectorDoc core.Document) (*Resolved, error) {
	doc := analysisDoc.Clone()
	if doc == nil {
		doc = core.Document{}
	}
	if detectorDoc != nil {
		doc[KeyDetector] = map[string]any(detectorDoc.Clone())
	}

	detector, _ := doc.Map(KeyDetector)
	res := &Resolved{
		DetectorID:      scalarString(detector.Get(KeyDetectorID)),
		ProfileFitIndex: r.profileFitIndex(doc, detector),
	}

	res.tokens = buildTokens(res.ProfileFitIndex, res.DetectorID, detector)
	replacer := newReplacer(res.tokens)
	for k, v := range doc {
		doc[k] = substitute(v, replacer)
	}

	if err := validate(doc, res.DetectorID); err != nil {
		r.logger.Error("configuration invalid", "key", err.Key)
		return nil, err
	}
	if s, _ := doc[KeyOutputDir].(string); s == "" {
		doc[KeyOutputDir] = core.DefaultOutputDir
	}

	if err := decode(doc, &res.cfg); err != nil {
		return nil, &ConfigError{Err: err}
	}
	res.doc = doc

	r.logger.Info("configuration validated successfully",
		"detector_id", res.DetectorID,
		"profile_fit_index", res.ProfileFitIndex)
	return res, nil
}

func (r *Resolver) profileFitIndex(doc core.Document, detector core.Document) int {
	if v, ok := doc[KeyProfileFitIndex]; ok && v != nil {
		idx, ok := toInt(v)
		if !ok {
			r.logger.Error("profile fit index is not an integer", "value", v)
			return 0
		}
		return idx
	}

	table, ok := doc[KeyDetectors]
	if !ok || table == nil {
		return DefaultProfileFitIndex
	}

	name := scalarString(detector.Get("name"))
	if name == "" {
		name = scalarString(detector.Get(KeyDetectorID))
	}
	entries, ok := table.([]any)
	if !ok {
		r.logger.Error("detector table malformed", "type", fmt.Sprintf("%T", table))
		return 0
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok || scalarString(entry["name"]) != name {
			continue
		}
		idx, ok := toInt(entry["profile"])
		if !ok {
			r.logger.Error("detector table entry has no integer profile", "detector", name)
			return 0
		}
		return idx
	}
	r.logger.Error("detector not found in detector table", "detector", name)
	return 0
}

// buildTokens maps every placeholder token to its replacement.
func buildTokens(fitIndex int, detectorID string, detector core.Document) map[string]string {
	tokens := map[string]string{
		TokenProfileFitIndex: strconv.Itoa(fitIndex),
		TokenDetectorID:      detectorID,
	}
	for k, v := range detector {
		if k == KeyDetectorID || !isScalar(v) {
			continue
		}
		tokens[DetectorFieldPrefix+k] = scalarString(v)
	}
	return tokens
}

// newReplacer substitutes all tokens in a single pass. Longer tokens are
// listed first so a token that prefixes another never wins the match.
func newReplacer(tokens map[string]string) *strings.Replacer {
	keys := slices.Collect(maps.Keys(tokens))
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, tokens[k])
	}
	return strings.NewReplacer(pairs...)
}

func substitute(v any, r *strings.Replacer) any {
	switch val := v.(type) {
	case string:
		return r.Replace(val)
	case map[string]any:
		for k, item := range val {
			val[k] = substitute(item, r)
		}
		return val
	case core.Document:
		for k, item := range val {
			val[k] = substitute(item, r)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = substitute(item, r)
		}
		return val
	default:
		return v
	}
}

func validate(doc core.Document, detectorID string) *ConfigError {
	for _, key := range []string{KeyInputFile, KeyLibraryFile, KeyTreeName} {
		if scalarString(doc[key]) == "" {
			return &ConfigError{Key: key}
		}
	}
	if detectorID == "" {
		return &ConfigError{Key: KeyDetectorID}
	}
	return nil
}

func decode(doc core.Document, out *core.AnalysisConfig) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(doc)); err != nil {
		return fmt.Errorf("failed to decode analysis document: %w", err)
	}
	return nil
}

// Doc returns a deep copy of the resolved document.
func (r *Resolved) Doc() core.Document {
	return r.doc.Clone()
}

// Config returns the typed view of the resolved document.
func (r *Resolved) Config() core.AnalysisConfig {
	return r.cfg
}

// Tokens returns the placeholder table used for substitution.
func (r *Resolved) Tokens() map[string]string {
	return maps.Clone(r.tokens)
}

// YAML renders the resolved document.
func (r *Resolved) YAML() ([]byte, error) {
	out, err := yaml.Marshal(map[string]any(r.doc))
	if err != nil {
		return nil, fmt.Errorf("failed to encode resolved document: %w", err)
	}
	return out, nil
}

// Fingerprint identifies the resolved content. Map keys are encoded in
// sorted order, so equal documents share a fingerprint.
func (r *Resolved) Fingerprint() string {
	out, err := r.YAML()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(out))
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	default:
		if isScalar(v) {
			return fmt.Sprint(val)
		}
		return ""
	}
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case uint64:
		return int(val), true
	case float64:
		if val == float64(int(val)) {
			return int(val), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n, true
		}
	}
	return 0, false
}
