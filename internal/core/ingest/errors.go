package ingest

import "fmt"

// ConfigError reports an invalid parameter at setup time. It is fatal and
// surfaced immediately; nothing is retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}
