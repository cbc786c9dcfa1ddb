// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ik5/audrender/media"
)

// gateCodec blocks every Decode until open is closed and records the reset
// flags it was called with.
type gateCodec struct {
	started chan struct{}
	open    chan struct{}

	mu     sync.Mutex
	resets []bool
}

func newGateCodec() *gateCodec {
	return &gateCodec{started: make(chan struct{}, 8), open: make(chan struct{})}
}

func (c *gateCodec) Decode(in *media.InputBuffer, out *media.OutputBuffer, reset bool) error {
	c.mu.Lock()
	c.resets = append(c.resets, reset)
	c.mu.Unlock()

	c.started <- struct{}{}
	<-c.open
	out.Data = append(out.Data[:0], in.Data...)
	return nil
}

func (c *gateCodec) waitStarted(t *testing.T) {
	t.Helper()

	select {
	case <-c.started:
	case <-time.After(pollTimeout):
		t.Fatal("Decode was never called")
	}
}

func (c *gateCodec) resetFlags() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.resets...)
}

func TestSimpleDecoder_DecodesInOrder(t *testing.T) {
	t.Parallel()

	d := NewSimpleDecoder("copy", copyCodec(), 2, 2, 4)
	defer d.Release()

	if d.Name() != "copy" {
		t.Errorf("Name() = %q, want copy", d.Name())
	}

	for i := range 5 {
		queue(t, d, []byte{byte(i), 0}, int64(i)*1000, media.FlagKeyFrame)
		out := nextOutput(t, d)
		if out.TimeUs != int64(i)*1000 || !bytes.Equal(out.Data, []byte{byte(i), 0}) {
			t.Errorf("output %d = %v at %d", i, out.Data, out.TimeUs)
		}
		out.Release()
	}

	queue(t, d, nil, 5000, media.FlagEndOfStream)
	out := nextOutput(t, d)
	if !out.IsEndOfStream() || out.TimeUs != 5000 {
		t.Errorf("last output flags %b at %d, want end of stream at 5000", out.Flags, out.TimeUs)
	}
	out.Release()
}

func TestSimpleDecoder_SkipAccounting(t *testing.T) {
	t.Parallel()

	d := NewSimpleDecoder("copy", copyCodec(), 4, 4, 4)
	defer d.Release()

	queue(t, d, []byte{1}, 0, media.FlagDecodeOnly)
	queue(t, d, []byte{2}, 10, media.FlagDecodeOnly)
	queue(t, d, []byte{3}, 20, media.FlagDecodeOnly)
	queue(t, d, []byte{4}, 30, 0)

	out := nextOutput(t, d)
	defer out.Release()
	if out.TimeUs != 30 || !bytes.Equal(out.Data, []byte{4}) {
		t.Errorf("output = %v at %d, want [4] at 30", out.Data, out.TimeUs)
	}
	if out.SkippedOutputBufferCount != 3 {
		t.Errorf("SkippedOutputBufferCount = %d, want 3", out.SkippedOutputBufferCount)
	}
}

func TestSimpleDecoder_DropsEmptyOutput(t *testing.T) {
	t.Parallel()

	codec := codecFunc(func(in *media.InputBuffer, out *media.OutputBuffer, _ bool) error {
		if in.Data[0] != 0 {
			out.Data = append(out.Data[:0], in.Data...)
		}
		return nil
	})
	d := NewSimpleDecoder("sparse", codec, 2, 2, 4)
	defer d.Release()

	queue(t, d, []byte{0}, 0, 0)
	queue(t, d, []byte{7}, 10, 0)

	out := nextOutput(t, d)
	defer out.Release()
	if out.TimeUs != 10 || out.SkippedOutputBufferCount != 0 {
		t.Errorf("output at %d skipped %d, want 10 and 0", out.TimeUs, out.SkippedOutputBufferCount)
	}
}

func TestSimpleDecoder_DeferredError(t *testing.T) {
	t.Parallel()

	codec := codecFunc(func(*media.InputBuffer, *media.OutputBuffer, bool) error { return errBoom })
	d := NewSimpleDecoder("broken", codec, 2, 2, 4)
	defer d.Release()

	// The failure happens on the decode goroutine; queueing still succeeds.
	queue(t, d, []byte{1}, 0, 0)

	err := nextError(t, d)
	var derr *Error
	if !errors.As(err, &derr) || derr.Decoder != "broken" {
		t.Fatalf("error = %v, want *Error from broken", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("error = %v, want errBoom", err)
	}
	if _, err := d.DequeueInputBuffer(); !errors.Is(err, errBoom) {
		t.Errorf("DequeueInputBuffer() error = %v, want errBoom", err)
	}
}

func TestSimpleDecoder_FlushDuringDecode(t *testing.T) {
	t.Parallel()

	codec := newGateCodec()
	d := NewSimpleDecoder("gate", codec, 2, 2, 4)
	defer d.Release()

	queue(t, d, []byte{1}, 0, 0)
	codec.waitStarted(t)

	d.Flush()
	close(codec.open)

	queue(t, d, []byte{2}, 500, 0)
	out := nextOutput(t, d)
	defer out.Release()

	if out.TimeUs != 500 || !bytes.Equal(out.Data, []byte{2}) {
		t.Errorf("output = %v at %d, want [2] at 500", out.Data, out.TimeUs)
	}
	if got := codec.resetFlags(); len(got) != 2 || !got[0] || !got[1] {
		t.Errorf("reset flags = %v, want [true true]", got)
	}
}

func TestSimpleDecoder_ReleaseJoinsWorker(t *testing.T) {
	t.Parallel()

	codec := newGateCodec()
	d := NewSimpleDecoder("gate", codec, 2, 2, 4)

	queue(t, d, []byte{1}, 0, 0)
	codec.waitStarted(t)

	released := make(chan struct{})
	go func() {
		d.Release()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("Release returned while Decode was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(codec.open)
	select {
	case <-released:
	case <-time.After(pollTimeout):
		t.Fatal("Release did not return")
	}

	select {
	case <-d.done:
	default:
		t.Error("decode goroutine still running after Release")
	}
	if _, err := d.DequeueOutputBuffer(); !errors.Is(err, ErrReleased) {
		t.Errorf("DequeueOutputBuffer() error = %v, want %v", err, ErrReleased)
	}
}

func TestSimpleDecoder_InputSlots(t *testing.T) {
	t.Parallel()

	codec := newGateCodec()
	d := NewSimpleDecoder("gate", codec, 1, 1, 4)
	defer func() {
		close(codec.open)
		d.Release()
	}()

	queue(t, d, []byte{1}, 0, 0)
	in, err := d.DequeueInputBuffer()
	if err != nil || in != nil {
		t.Errorf("DequeueInputBuffer() = %v, %v, want no slot", in, err)
	}
}
