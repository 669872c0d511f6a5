package vad

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("vad: invalid config")

// ConfigError describes which field failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("vad: invalid config %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidConfig so callers can use errors.Is.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configError(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}
