package particle

import "fmt"

// ConfigurationError reports an option value the particle system refuses to use.
// It is returned by construction and Reconfigure; invalid values are never coerced.
type ConfigurationError struct {
	// Field is the YAML name of the offending option.
	Field string
	// Reason describes what is wrong with the value.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("particle: invalid %s: %s", e.Field, e.Reason)
}

// ResourceError wraps a renderer failure raised while creating or driving GPU resources.
type ResourceError struct {
	// Op names the operation that failed, e.g. "create grid" or "register field pipeline".
	Op string
	// Err is the underlying renderer error.
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("particle: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

func configErr(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
