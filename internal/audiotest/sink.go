// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"fmt"

	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/sink"
)

// Handled records one buffer accepted by a FakeSink.
type Handled struct {
	Data   []byte
	TimeUs int64
}

// FakeSink is a sink.AudioSink that records every call. Position and
// readiness are set directly by tests.
type FakeSink struct {
	Listener sink.Listener

	// Configs lists every accepted configuration.
	Configs []sink.OutputConfig
	// Buffers lists every accepted buffer.
	Buffers []Handled
	// Calls lists accepted buffers ("buffer <timeUs>") and discontinuities
	// ("discontinuity") in call order.
	Calls []string
	// Offers counts HandleBuffer calls.
	Offers int
	// Reject makes HandleBuffer refuse buffers.
	Reject bool
	// ConfigureErr and HandleErr fail the matching calls.
	ConfigureErr error
	HandleErr    error

	Discontinuities int
	EndOfStreams    int
	Flushes         int
	Resets          int
	Playing         bool

	// Ended is returned by IsEnded once PlayToEndOfStream was called.
	Ended bool
	// Pending is returned by HasPendingData.
	Pending bool
	// PositionUs is returned by CurrentPositionUs.
	PositionUs int64

	Volume      float32
	SessionID   int
	SkipSilence bool
	Speed       float32
}

// NewFakeSink returns a sink whose position is not set.
func NewFakeSink() *FakeSink {
	return &FakeSink{PositionUs: sink.PositionNotSet, Speed: 1, Volume: 1}
}

func (s *FakeSink) SetListener(l sink.Listener) { s.Listener = l }

func (s *FakeSink) SupportsOutput(channels, sampleRate int, encoding media.Encoding) bool {
	return encoding == media.EncodingPCM16Bit
}

func (s *FakeSink) Configure(cfg sink.OutputConfig) error {
	if s.ConfigureErr != nil {
		return s.ConfigureErr
	}
	s.Configs = append(s.Configs, cfg)
	return nil
}

func (s *FakeSink) HandleBuffer(data []byte, timeUs int64) (bool, error) {
	s.Offers++
	if s.HandleErr != nil {
		return false, s.HandleErr
	}
	if s.Reject {
		return false, nil
	}
	s.Buffers = append(s.Buffers, Handled{Data: append([]byte(nil), data...), TimeUs: timeUs})
	s.Calls = append(s.Calls, fmt.Sprintf("buffer %d", timeUs))
	return true, nil
}

func (s *FakeSink) HandleDiscontinuity() {
	s.Discontinuities++
	s.Calls = append(s.Calls, "discontinuity")
}

func (s *FakeSink) PlayToEndOfStream() error {
	s.EndOfStreams++
	return nil
}

func (s *FakeSink) IsEnded() bool {
	return s.EndOfStreams > 0 && s.Ended
}

func (s *FakeSink) HasPendingData() bool { return s.Pending }

func (s *FakeSink) CurrentPositionUs(bool) int64 { return s.PositionUs }

func (s *FakeSink) Play()  { s.Playing = true }
func (s *FakeSink) Pause() { s.Playing = false }
func (s *FakeSink) Flush() { s.Flushes++ }
func (s *FakeSink) Reset() { s.Resets++ }

func (s *FakeSink) SetVolume(v float32)           { s.Volume = v }
func (s *FakeSink) SetAudioSessionID(id int)      { s.SessionID = id }
func (s *FakeSink) SetSkipSilenceEnabled(on bool) { s.SkipSilence = on }
func (s *FakeSink) SetPlaybackSpeed(v float32)    { s.Speed = v }
func (s *FakeSink) PlaybackSpeed() float32        { return s.Speed }

// BufferTimes returns the timestamps of the accepted buffers.
func (s *FakeSink) BufferTimes() []int64 {
	times := make([]int64, 0, len(s.Buffers))
	for _, b := range s.Buffers {
		times = append(times, b.TimeUs)
	}
	return times
}
