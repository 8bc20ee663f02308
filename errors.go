package archforest

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every *ConfigError
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError describes an invalid conversion setting
type ConfigError struct {
	Option  string
	Value   interface{}
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = e.Err.Error()
		if e.Message != "" {
			msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
	}
	if e.Value != nil {
		return fmt.Sprintf("config error for %q (value: %v): %s", e.Option, e.Value, msg)
	}
	return fmt.Sprintf("config error for %q: %s", e.Option, msg)
}

// Is reports whether target is ErrInvalidConfig
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Unwrap returns the cause of the error, if any
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(option string, value interface{}, message string, cause error) *ConfigError {
	return &ConfigError{Option: option, Value: value, Message: message, Err: cause}
}

// TreeError is the failure to convert one tree of a forest.
// The whole tree is rejected, no partial output is produced.
type TreeError struct {
	Tree int
	Err  error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("converting tree %d: %v", e.Tree, e.Err)
}

// Unwrap returns the cause of the failure
func (e *TreeError) Unwrap() error {
	return e.Err
}
