// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/ik5/audrender/media"
)

// echoStream yields its encoded input as mono PCM.
type echoStream struct {
	r    io.Reader
	rate int
}

func (s *echoStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *echoStream) SampleRate() int            { return s.rate }
func (s *echoStream) Channels() int              { return 1 }

func echoOpener(rate int) StreamOpener {
	return func(r io.Reader) (PCMStream, error) {
		return &echoStream{r: r, rate: rate}, nil
	}
}

// collect reads outputs until end of stream.
func collect(t *testing.T, d Decoder) (pcm []byte, times []int64, skipped int) {
	t.Helper()

	for {
		out := nextOutput(t, d)
		skipped += out.SkippedOutputBufferCount
		if out.IsEndOfStream() {
			out.Release()
			return pcm, times, skipped
		}
		pcm = append(pcm, out.Data...)
		times = append(times, out.TimeUs)
		out.Release()
	}
}

func TestStreamDecoder_Timestamps(t *testing.T) {
	t.Parallel()

	d := NewStreamDecoder("echo", echoOpener(8000), 4, 4, 16, 4)
	defer d.Release()

	queue(t, d, []byte{1, 0, 2, 0}, 40_000, 0)
	queue(t, d, []byte{3, 0, 4, 0}, 99_999, 0)
	queue(t, d, nil, 0, media.FlagEndOfStream)

	pcm, times, _ := collect(t, d)
	if !bytes.Equal(pcm, []byte{1, 0, 2, 0, 3, 0, 4, 0}) {
		t.Errorf("PCM = % x", pcm)
	}
	// Two frames at 8000 Hz last 250us; input timestamps after the first
	// one are not used.
	if len(times) != 2 || times[0] != 40_000 || times[1] != 40_250 {
		t.Errorf("times = %v, want [40000 40250]", times)
	}
	if s, ok := d.Stream(); !ok || s.SampleRate() != 8000 {
		t.Errorf("Stream() = %v, %v", s, ok)
	}
}

func TestStreamDecoder_FlushStartsNewRun(t *testing.T) {
	t.Parallel()

	d := NewStreamDecoder("echo", echoOpener(8000), 4, 4, 16, 4)
	defer d.Release()

	queue(t, d, []byte{1, 0, 2, 0}, 40_000, 0)
	out := nextOutput(t, d)
	if out.TimeUs != 40_000 {
		t.Errorf("first run output at %d, want 40000", out.TimeUs)
	}
	out.Release()

	d.Flush()
	if _, ok := d.Stream(); ok {
		t.Error("Stream() kept after Flush")
	}

	queue(t, d, []byte{5, 0, 6, 0}, 500_000, 0)
	queue(t, d, nil, 0, media.FlagEndOfStream)

	pcm, times, _ := collect(t, d)
	if !bytes.Equal(pcm, []byte{5, 0, 6, 0}) {
		t.Errorf("PCM = % x, want 05 00 06 00", pcm)
	}
	if len(times) != 1 || times[0] != 500_000 {
		t.Errorf("times = %v, want [500000]", times)
	}
}

func TestStreamDecoder_DecodeOnlyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		inputs      []media.BufferFlag
		wantPCM     []byte
		wantTimes   []int64
		wantSkipped int
	}{
		{"no decode-only", []media.BufferFlag{0, 0}, []byte{1, 1, 2, 2}, []int64{0}, 0},
		{"one leading", []media.BufferFlag{media.FlagDecodeOnly, 0}, []byte{2, 2}, []int64{10_000}, 1},
		{"two leading", []media.BufferFlag{media.FlagDecodeOnly, media.FlagDecodeOnly, 0}, []byte{3, 3}, []int64{20_000}, 2},
		{"only decode-only", []media.BufferFlag{media.FlagDecodeOnly}, nil, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewStreamDecoder("echo", echoOpener(8000), 4, 4, 16, 4)
			defer d.Release()

			for i, flags := range tt.inputs {
				b := byte(i + 1)
				queue(t, d, []byte{b, b}, int64(i)*10_000, flags)
			}
			queue(t, d, nil, 0, media.FlagEndOfStream)

			pcm, times, skipped := collect(t, d)
			if !bytes.Equal(pcm, tt.wantPCM) {
				t.Errorf("PCM = % x, want % x", pcm, tt.wantPCM)
			}
			if !slices.Equal(times, tt.wantTimes) {
				t.Errorf("times = %v, want %v", times, tt.wantTimes)
			}
			if skipped != tt.wantSkipped {
				t.Errorf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
		})
	}
}

func TestStreamDecoder_OpenErrorIsDeferred(t *testing.T) {
	t.Parallel()

	open := func(io.Reader) (PCMStream, error) { return nil, errBoom }
	d := NewStreamDecoder("broken", open, 2, 2, 16, 4)
	defer d.Release()

	queue(t, d, []byte{1, 2}, 0, 0)

	err := nextError(t, d)
	var derr *Error
	if !errors.As(err, &derr) || derr.Decoder != "broken" || !errors.Is(err, errBoom) {
		t.Errorf("error = %v, want *Error wrapping errBoom", err)
	}
}

func TestStreamDecoder_ReleaseStopsRun(t *testing.T) {
	t.Parallel()

	d := NewStreamDecoder("echo", echoOpener(8000), 2, 2, 16, 64)
	// The stream blocks waiting for a full chunk.
	queue(t, d, []byte{1, 0}, 0, 0)

	released := make(chan struct{})
	go func() {
		d.Release()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(pollTimeout):
		t.Fatal("Release did not return")
	}
	if _, err := d.DequeueInputBuffer(); !errors.Is(err, ErrReleased) {
		t.Errorf("DequeueInputBuffer() error = %v, want %v", err, ErrReleased)
	}
}
