// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOutput is wrapped by ConfigurationError for encodings or
	// layouts the sink cannot play.
	ErrUnsupportedOutput = errors.New("sink: unsupported output")
	// ErrNotConfigured is wrapped by WriteError when data arrives before Configure.
	ErrNotConfigured = errors.New("sink: not configured")
)

// ConfigurationError reports a rejected OutputConfig.
type ConfigurationError struct {
	Config OutputConfig
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sink: configure %s: %v", e.Config, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InitializationError reports a failure to open the output.
type InitializationError struct {
	Config OutputConfig
	Err    error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("sink: initialize %s: %v", e.Config, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// WriteError reports a failure to write PCM to the output.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sink: write: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
