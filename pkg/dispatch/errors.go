package dispatch

import "fmt"

// ConfigError reports a configuration problem that cannot be defaulted away:
// unreadable or invalid persisted files, or an agent referenced by the
// routing rules that has no model assignment.
type ConfigError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("configuration error: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
