// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"fmt"

	"github.com/ik5/audrender/media"
)

// Decoder is an external codec actor exposing an input/output buffer queue.
//
// Every method is non-blocking. A nil buffer together with a nil error means the
// decoder cannot hand out a buffer right now. Failures that happen on the
// decoder's own goroutine are reported by the next Dequeue call.
type Decoder interface {
	// Name identifies the decoder implementation, e.g. "mp3".
	Name() string

	// DequeueInputBuffer returns an empty input slot, or nil if all slots are in use.
	DequeueInputBuffer() (*media.InputBuffer, error)

	// QueueInputBuffer submits the slot returned by the last DequeueInputBuffer call.
	QueueInputBuffer(buf *media.InputBuffer) error

	// DequeueOutputBuffer returns the next decoded buffer, or nil if none is ready.
	// The caller must Release it once consumed.
	DequeueOutputBuffer() (*media.OutputBuffer, error)

	// Flush discards all queued input and pending output. The next input buffer
	// starts a new, independent decode run.
	Flush()

	// Release frees the decoder. It must not be used afterwards.
	Release()
}

// Error is a decoder runtime failure.
type Error struct {
	Decoder string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decoder %s: %v", e.Decoder, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
