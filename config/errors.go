// SPDX-License-Identifier: EPL-2.0

package config

import "errors"

var (
	// ErrNoInput is returned when no input file is configured.
	ErrNoInput = errors.New("config: no input file")
	// ErrInvalidVolume is returned for negative volumes.
	ErrInvalidVolume = errors.New("config: volume must not be negative")
	// ErrInvalidSpeed is returned for non-positive playback speeds.
	ErrInvalidSpeed = errors.New("config: speed must be positive")
	// ErrInvalidDuration is returned for non-positive buffer, tick or progress intervals.
	ErrInvalidDuration = errors.New("config: invalid duration")
	// ErrInvalidRate is returned for negative output rates.
	ErrInvalidRate = errors.New("config: invalid output rate")
	// ErrConflictingKeys is returned when both clear keys and a license file are set.
	ErrConflictingKeys = errors.New("config: clear_keys and license_file are mutually exclusive")
)
