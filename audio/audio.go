// SPDX-License-Identifier: EPL-2.0

package audio

import "io"

// Source is a pull based PCM stream of interleaved float32 samples.
type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels count (e.g., 1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved float32 samples in [-1,1].
	// Returns number of float32 values written (not frames). When n == 0 with err == io.EOF, the stream is finished.
	ReadSamples(dst []float32) (n int, err error)

	BufSize() int

	// Close releases any resources.
	Close() error
}

// SliceSource serves samples held in memory.
type SliceSource struct {
	samples    []float32
	sampleRate int
	channels   int
	pos        int
}

// NewSliceSource wraps interleaved samples. len(samples) should be a multiple
// of channels.
func NewSliceSource(samples []float32, sampleRate, channels int) *SliceSource {
	return &SliceSource{
		samples:    samples,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (s *SliceSource) SampleRate() int { return s.sampleRate }
func (s *SliceSource) Channels() int   { return s.channels }
func (s *SliceSource) BufSize() int    { return 4096 }
func (s *SliceSource) Close() error    { return nil }

// Remaining returns the number of samples not read yet.
func (s *SliceSource) Remaining() int { return len(s.samples) - s.pos }

func (s *SliceSource) ReadSamples(dst []float32) (int, error) {
	if len(dst)%s.channels != 0 {
		return 0, ErrInvalidDstSize
	}
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}

	n := copy(dst, s.samples[s.pos:])
	n -= n % s.channels
	s.pos += n

	if s.pos >= len(s.samples) {
		return n, io.EOF
	}
	return n, nil
}
