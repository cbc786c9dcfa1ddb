// SPDX-License-Identifier: EPL-2.0

package source

import (
	"context"

	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
)

// ReadResult is the outcome of a SampleStream read.
type ReadResult int

const (
	// ResultNothingRead means nothing is available right now.
	ResultNothingRead ReadResult = iota
	// ResultFormatRead means the holder was filled with a format.
	ResultFormatRead
	// ResultBufferRead means the buffer was filled with a sample or end of stream.
	ResultBufferRead
)

func (r ReadResult) String() string {
	switch r {
	case ResultNothingRead:
		return "nothing"
	case ResultFormatRead:
		return "format"
	case ResultBufferRead:
		return "buffer"
	default:
		return "unknown"
	}
}

// FormatHolder receives a format read from a SampleStream together with the
// DRM session protecting it. The session reference stays owned by the stream;
// holders that keep it must acquire their own.
type FormatHolder struct {
	Format     *media.Format
	DrmSession drm.Session
}

// Clear empties the holder.
func (h *FormatHolder) Clear() {
	h.Format = nil
	h.DrmSession = nil
}

// SampleStream supplies formats and encoded samples to a renderer. ReadData
// never blocks; errors that stop the stream are reported by MaybeThrowError.
type SampleStream interface {
	// ReadData reads the next format or sample. When formatRequired is true the
	// current format is returned even if it did not change.
	ReadData(holder *FormatHolder, buf *media.InputBuffer, formatRequired bool) ReadResult
	// IsReady reports whether ReadData would return something other than
	// ResultNothingRead.
	IsReady() bool
	MaybeThrowError() error
	// SeekTo restarts loading so that the next sample is at or before positionUs.
	// Samples before positionUs are flagged decode-only.
	SeekTo(positionUs int64) error
	Close() error
}

// Sample is one access unit produced by an extractor. Data is owned by the
// queue once handed over.
type Sample struct {
	Data       []byte
	TimeUs     int64
	Flags      media.BufferFlag
	CryptoInfo media.CryptoInfo
}

// Output receives what an extractor parses. Calls block while the queue is full
// and fail with the context error once loading is cancelled.
type Output interface {
	Format(f *media.Format) error
	Sample(s Sample) error
}

// Loader parses a container from positionUs onwards, writing formats and
// samples to out. It returns nil at end of input.
type Loader func(ctx context.Context, positionUs int64, out Output) error
