// SPDX-License-Identifier: EPL-2.0

package playback

import "errors"

var (
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("playback: already running")
	// ErrNotRunning is returned by commands sent after Run returned.
	ErrNotRunning = errors.New("playback: not running")
	// ErrInvalidPosition is returned for negative seek positions.
	ErrInvalidPosition = errors.New("playback: invalid position")
)
