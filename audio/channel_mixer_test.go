// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"math"
	"testing"
)

func TestChannelMixer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       []float32
		inCh     int
		outCh    int
		expected []float32
	}{
		{
			name:     "passthrough",
			in:       []float32{0.1, 0.2, 0.3, 0.4},
			inCh:     2,
			outCh:    2,
			expected: []float32{0.1, 0.2, 0.3, 0.4},
		},
		{
			name:     "stereo to mono",
			in:       []float32{0.2, 0.4, -1, 1},
			inCh:     2,
			outCh:    1,
			expected: []float32{0.3, 0},
		},
		{
			name:     "quad to mono",
			in:       []float32{0.1, 0.2, 0.3, 0.4},
			inCh:     4,
			outCh:    1,
			expected: []float32{0.25},
		},
		{
			name:     "mono to stereo",
			in:       []float32{0.5, -0.5},
			inCh:     1,
			outCh:    2,
			expected: []float32{0.5, 0.5, -0.5, -0.5},
		},
		{
			name:     "surround to stereo keeps front",
			in:       []float32{1, 2, 3, 4, 5, 6},
			inCh:     6,
			outCh:    2,
			expected: []float32{1, 2},
		},
		{
			name:     "stereo to quad pads silence",
			in:       []float32{0.1, 0.2},
			inCh:     2,
			outCh:    4,
			expected: []float32{0.1, 0.2, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewChannelMixer(NewSliceSource(tt.in, 8000, tt.inCh), tt.outCh)
			if m.Channels() != tt.outCh || m.SampleRate() != 8000 {
				t.Errorf("mixer = %d Hz %d ch, want 8000 Hz %d ch", m.SampleRate(), m.Channels(), tt.outCh)
			}

			got := readAll(t, m, 4*tt.outCh)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.expected[i])) > 1e-6 {
					t.Errorf("sample %d = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestChannelMixer_FrameCount(t *testing.T) {
	t.Parallel()

	src := tone(8000, 2, 1000, sine(8000, 440))
	got := readAll(t, NewMonoMixer(src), 333)
	if len(got) != 1000 {
		t.Errorf("mono samples = %d, want 1000", len(got))
	}
}

func TestChannelMixer_InvalidDstSize(t *testing.T) {
	t.Parallel()

	m := NewChannelMixer(tone(8000, 1, 10, constant(0)), 2)
	if _, err := m.ReadSamples(make([]float32, 3)); !errors.Is(err, ErrInvalidDstSize) {
		t.Errorf("ReadSamples() error = %v, want %v", err, ErrInvalidDstSize)
	}
}

func TestChannelMixer_EmptyBuffer(t *testing.T) {
	t.Parallel()

	m := NewMonoMixer(tone(8000, 2, 10, constant(0)))
	if n, err := m.ReadSamples(nil); n != 0 || err != nil {
		t.Errorf("ReadSamples(nil) = %d, %v, want 0, nil", n, err)
	}
}

type closeTracker struct {
	*SliceSource
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestChannelMixer_Close(t *testing.T) {
	t.Parallel()

	src := &closeTracker{SliceSource: tone(8000, 2, 10, constant(0))}
	if err := NewMonoMixer(src).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !src.closed {
		t.Error("Close() did not close the source")
	}
}

func BenchmarkChannelMixer_StereoToMono(b *testing.B) {
	samples := tone(48000, 2, 48000, sine(48000, 440)).samples
	buf := make([]float32, 4096)

	b.ReportAllocs()
	for b.Loop() {
		m := NewMonoMixer(NewSliceSource(samples, 48000, 2))
		for {
			if _, err := m.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
