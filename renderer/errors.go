// SPDX-License-Identifier: EPL-2.0

package renderer

import (
	"errors"
	"fmt"

	"github.com/ik5/audrender/media"
)

var (
	// ErrInvalidState is returned for lifecycle calls made in the wrong state.
	ErrInvalidState = errors.New("renderer: invalid state")
	// ErrInvalidTransition is returned for reinitialization steps out of order.
	ErrInvalidTransition = errors.New("renderer: invalid reinitialization transition")
	// ErrUnknownMessage is returned by HandleMessage for unsupported messages.
	ErrUnknownMessage = errors.New("renderer: unknown message")
	// ErrDrmSession is used when a failed session reports no cause.
	ErrDrmSession = errors.New("renderer: drm session error")
	// ErrNoFamily is returned when no decoder family supports a format.
	ErrNoFamily = errors.New("renderer: no decoder family for format")
)

// ErrorKind classifies fatal renderer errors.
type ErrorKind int

const (
	KindDecoder ErrorKind = iota
	KindSink
	KindDrm
	KindSource
)

func (k ErrorKind) String() string {
	switch k {
	case KindDecoder:
		return "decoder"
	case KindSink:
		return "sink"
	case KindDrm:
		return "drm"
	case KindSource:
		return "source"
	default:
		return "unknown"
	}
}

// Error is a fatal renderer failure. It carries the input format current when
// the failure happened. Stalls are never reported as errors.
type Error struct {
	Kind   ErrorKind
	Format *media.Format
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("renderer: %s error, format %s: %v", e.Kind, e.Format, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
