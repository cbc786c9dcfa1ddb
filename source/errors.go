// SPDX-License-Identifier: EPL-2.0

package source

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("source: stream closed")
	// ErrNotSeekable is returned when a stream cannot seek to a non-zero position.
	ErrNotSeekable = errors.New("source: stream is not seekable")
	// ErrUnknownExtension is returned by the registry for unregistered extensions.
	ErrUnknownExtension = errors.New("source: no extractor for file extension")
	// ErrNoAudioTrack is returned when a container has no supported audio track.
	ErrNoAudioTrack = errors.New("source: no audio track")
)

// LoadError reports a failure of the loader goroutine.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("source: load failed: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
