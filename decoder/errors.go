// SPDX-License-Identifier: EPL-2.0

package decoder

import "errors"

var (
	ErrReleased             = errors.New("decoder released")
	ErrInputAlreadyDequeued = errors.New("an input buffer is already dequeued")
	ErrUnknownInputBuffer   = errors.New("queued buffer was not the dequeued input buffer")
	ErrNoOutputFormat       = errors.New("output format not known yet")
)
