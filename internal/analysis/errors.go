package analysis

import "fmt"

// ConfigError reports an analysis configuration that cannot be run: a
// required key is missing or a document could not be read.
type ConfigError struct {
	Key  string // missing key, empty for load failures
	Path string // document path, if known
	Err  error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("configuration error: %q cannot be empty", e.Key)
	case e.Path != "":
		return fmt.Sprintf("configuration error: %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
