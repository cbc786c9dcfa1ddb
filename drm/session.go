// SPDX-License-Identifier: EPL-2.0

package drm

import "github.com/ik5/audrender/media"

// State is the lifecycle state of a DRM session.
type State int

const (
	StateIdle State = iota
	StateOpening
	// StateOpened means the session is open but keys are not yet usable.
	StateOpened
	StateOpenedWithKeys
	StateError
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	case StateOpenedWithKeys:
		return "opened-with-keys"
	case StateError:
		return "error"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// CryptoContext decrypts samples for a decoder. It is available once the
// session is opened, possibly before its keys are loaded.
type CryptoContext interface {
	Decrypt(buf *media.InputBuffer) error
}

// Session is a reference counted DRM session. All methods are safe to call
// from any goroutine.
type Session interface {
	State() State
	// Err reports the failure once State returns StateError.
	Err() error
	// CryptoContext returns nil until the session is opened.
	CryptoContext() CryptoContext
	// PlayClearSamplesWithoutKeys reports whether unencrypted samples may be
	// decoded before keys are available.
	PlayClearSamplesWithoutKeys() bool

	Acquire()
	Release()
}

// ReplaceSession moves a session slot from prev to next. next is acquired
// before prev is released, and identical sessions are left untouched. It returns
// the new slot value.
func ReplaceSession(prev, next Session) Session {
	if prev == next {
		return next
	}
	if next != nil {
		next.Acquire()
	}
	if prev != nil {
		prev.Release()
	}
	return next
}
