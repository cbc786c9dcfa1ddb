// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"fmt"

	"github.com/ik5/audrender/media"
)

// PositionNotSet is returned by CurrentPositionUs before the sink has a
// position.
const PositionNotSet int64 = -1 << 63

// OutputConfig describes the PCM handed to a sink.
type OutputConfig struct {
	Encoding       media.Encoding
	Channels       int
	SampleRate     int
	EncoderDelay   int
	EncoderPadding int
}

func (c OutputConfig) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %s, delay=%d, padding=%d",
		c.SampleRate, c.Channels, c.Encoding, c.EncoderDelay, c.EncoderPadding)
}

// BytesPerFrame returns the size of one interleaved frame.
func (c OutputConfig) BytesPerFrame() int {
	return c.Encoding.BytesPerSample() * c.Channels
}

// Listener receives sink events. Callbacks run on the goroutine calling into
// the sink.
type Listener interface {
	OnAudioSessionID(id int)
	// OnPositionDiscontinuity is called when the sink position jumped, so a
	// backward move of the renderer position is allowed once.
	OnPositionDiscontinuity()
	OnUnderrun(bufferSize int, bufferSizeMs int64, elapsedSinceLastFeedMs int64)
	OnSkipSilenceEnabledChanged(enabled bool)
}

// AudioSink consumes decoded PCM in timestamp order and acts as the playback
// clock. None of its methods block.
type AudioSink interface {
	SetListener(l Listener)
	SupportsOutput(channels, sampleRate int, encoding media.Encoding) bool
	Configure(cfg OutputConfig) error
	// HandleBuffer offers data presented at timeUs. It returns false when the
	// sink cannot take the buffer now; the caller retries with the same buffer.
	HandleBuffer(data []byte, timeUs int64) (bool, error)
	// HandleDiscontinuity resyncs the sink position with the next buffer.
	HandleDiscontinuity()
	// PlayToEndOfStream plays out everything handled so far. It is called
	// repeatedly until IsEnded reports true.
	PlayToEndOfStream() error
	IsEnded() bool
	HasPendingData() bool
	CurrentPositionUs(sourceEnded bool) int64

	Play()
	Pause()
	// Flush discards pending data, keeping the configuration.
	Flush()
	// Reset flushes and releases the output.
	Reset()

	SetVolume(volume float32)
	SetAudioSessionID(id int)
	SetSkipSilenceEnabled(enabled bool)
	SetPlaybackSpeed(speed float32)
	PlaybackSpeed() float32
}
