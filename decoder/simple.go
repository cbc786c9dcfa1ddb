// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"sync"

	"github.com/ik5/audrender/media"
)

// Codec turns one input access unit into one output buffer.
type Codec interface {
	// Decode decodes in into out. out.TimeUs is preset to in.TimeUs and out.Data is
	// empty. reset is true for the first buffer after construction or a flush.
	// Leaving out.Data empty means the input produced no audio.
	Decode(in *media.InputBuffer, out *media.OutputBuffer, reset bool) error
}

// SimpleDecoder runs a Codec on its own goroutine behind fixed pools of input
// and output slots.
type SimpleDecoder struct {
	name  string
	codec Codec

	mu   sync.Mutex
	cond *sync.Cond

	availableInput  []*media.InputBuffer
	queuedInput     []*media.InputBuffer
	dequeuedInput   *media.InputBuffer
	availableOutput []*media.OutputBuffer
	queuedOutput    []*media.OutputBuffer

	err      error
	flushed  bool
	released bool
	skipped  int

	done chan struct{}
}

// NewSimpleDecoder starts a decoder with the given number of input and output
// slots. inputSize is the initial capacity of each input slot.
func NewSimpleDecoder(name string, codec Codec, inputs, outputs, inputSize int) *SimpleDecoder {
	d := &SimpleDecoder{
		name:    name,
		codec:   codec,
		flushed: true,
		done:    make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)

	d.availableInput = make([]*media.InputBuffer, 0, inputs)
	for range inputs {
		d.availableInput = append(d.availableInput, media.NewInputBuffer(inputSize))
	}

	d.availableOutput = make([]*media.OutputBuffer, 0, outputs)
	for range outputs {
		d.availableOutput = append(d.availableOutput, media.NewOutputBuffer(d.releaseOutputBuffer))
	}

	go d.run()

	return d
}

func (d *SimpleDecoder) Name() string { return d.name }

// Codec returns the codec driven by this decoder.
func (d *SimpleDecoder) Codec() Codec { return d.codec }

func (d *SimpleDecoder) DequeueInputBuffer() (*media.InputBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return nil, err
	}
	if d.dequeuedInput != nil {
		return nil, ErrInputAlreadyDequeued
	}
	if len(d.availableInput) == 0 {
		return nil, nil
	}

	last := len(d.availableInput) - 1
	buf := d.availableInput[last]
	d.availableInput = d.availableInput[:last]
	buf.Clear()
	d.dequeuedInput = buf

	return buf, nil
}

func (d *SimpleDecoder) QueueInputBuffer(buf *media.InputBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return err
	}
	if buf == nil || buf != d.dequeuedInput {
		return ErrUnknownInputBuffer
	}

	d.queuedInput = append(d.queuedInput, buf)
	d.dequeuedInput = nil
	d.cond.Broadcast()

	return nil
}

func (d *SimpleDecoder) DequeueOutputBuffer() (*media.OutputBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return nil, err
	}
	if len(d.queuedOutput) == 0 {
		return nil, nil
	}

	buf := d.queuedOutput[0]
	d.queuedOutput = d.queuedOutput[1:]

	return buf, nil
}

func (d *SimpleDecoder) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.flushed = true
	d.skipped = 0
	if d.dequeuedInput != nil {
		d.availableInput = append(d.availableInput, d.dequeuedInput)
		d.dequeuedInput = nil
	}
	for _, in := range d.queuedInput {
		in.Clear()
		d.availableInput = append(d.availableInput, in)
	}
	d.queuedInput = d.queuedInput[:0]
	for _, out := range d.queuedOutput {
		out.Clear()
		d.availableOutput = append(d.availableOutput, out)
	}
	d.queuedOutput = d.queuedOutput[:0]
}

func (d *SimpleDecoder) Release() {
	d.mu.Lock()
	d.released = true
	d.cond.Broadcast()
	d.mu.Unlock()

	<-d.done
}

// check must be called with mu held.
func (d *SimpleDecoder) check() error {
	if d.released {
		return ErrReleased
	}
	return d.err
}

func (d *SimpleDecoder) releaseOutputBuffer(buf *media.OutputBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf.Clear()
	d.availableOutput = append(d.availableOutput, buf)
	d.cond.Broadcast()
}

func (d *SimpleDecoder) run() {
	defer close(d.done)

	for d.decode() {
	}
}

func (d *SimpleDecoder) canDecode() bool {
	return len(d.queuedInput) > 0 && len(d.availableOutput) > 0
}

func (d *SimpleDecoder) decode() bool {
	d.mu.Lock()
	for !d.released && d.err == nil && !d.canDecode() {
		d.cond.Wait()
	}
	if d.released || d.err != nil {
		d.mu.Unlock()
		return false
	}

	in := d.queuedInput[0]
	d.queuedInput = d.queuedInput[1:]
	last := len(d.availableOutput) - 1
	out := d.availableOutput[last]
	d.availableOutput = d.availableOutput[:last]
	reset := d.flushed
	d.flushed = false
	d.mu.Unlock()

	out.TimeUs = in.TimeUs
	if in.IsEndOfStream() {
		out.Flags |= media.FlagEndOfStream
	} else {
		if in.IsDecodeOnly() {
			out.Flags |= media.FlagDecodeOnly
		}
		if err := d.codec.Decode(in, out, reset); err != nil {
			d.mu.Lock()
			d.err = &Error{Decoder: d.name, Err: err}
			d.mu.Unlock()
			return false
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.flushed:
		out.Clear()
		d.availableOutput = append(d.availableOutput, out)
	case out.IsDecodeOnly():
		d.skipped++
		out.Clear()
		d.availableOutput = append(d.availableOutput, out)
	case !out.IsEndOfStream() && len(out.Data) == 0:
		out.Clear()
		d.availableOutput = append(d.availableOutput, out)
	default:
		out.SkippedOutputBufferCount = d.skipped
		d.skipped = 0
		d.queuedOutput = append(d.queuedOutput, out)
	}

	in.Clear()
	d.availableInput = append(d.availableInput, in)

	return true
}
