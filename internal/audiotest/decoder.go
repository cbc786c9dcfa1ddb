// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/media"
)

// Queued records one input buffer handed to a FakeDecoder.
type Queued struct {
	Data   []byte
	TimeUs int64
	Flags  media.BufferFlag
}

// EndOfStream reports whether the queued buffer carried end of stream.
func (q Queued) EndOfStream() bool { return q.Flags&media.FlagEndOfStream != 0 }

// FakeDecoder is a synchronous decoder.Decoder. Each queued input becomes one
// output carrying the same bytes, unless Hold is set, in which case outputs
// appear only on Process.
type FakeDecoder struct {
	name string

	free     []*media.InputBuffer
	dequeued *media.InputBuffer
	held     []*media.InputBuffer
	outputs  []*media.OutputBuffer
	skipped  int

	// Queued lists every queued input in order, end of stream included.
	Queued []Queued
	// Hold keeps queued inputs until Process.
	Hold bool
	// SkipNext is added to the skipped count of the next output.
	SkipNext int
	// Err is returned from every call once set.
	Err error
	// Format is the PCM output format.
	Format *media.Format

	Flushes  int
	Released bool
	// OutputsReleased counts output buffers handed back.
	OutputsReleased int
}

// NewFakeDecoder returns a decoder with the given number of input slots
// producing 16-bit stereo at 44.1 kHz.
func NewFakeDecoder(name string, inputs int) *FakeDecoder {
	d := &FakeDecoder{
		name:   name,
		Format: media.NewAudioFormat(media.MimeAudioRaw, 2, 44100).WithPCMEncoding(media.EncodingPCM16Bit),
	}
	for range inputs {
		d.free = append(d.free, media.NewInputBuffer(64))
	}
	return d
}

func (d *FakeDecoder) Name() string { return d.name }

func (d *FakeDecoder) DequeueInputBuffer() (*media.InputBuffer, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if d.dequeued != nil {
		return nil, decoder.ErrInputAlreadyDequeued
	}
	if len(d.free) == 0 {
		return nil, nil
	}
	buf := d.free[0]
	d.free = d.free[1:]
	buf.Clear()
	d.dequeued = buf
	return buf, nil
}

func (d *FakeDecoder) QueueInputBuffer(buf *media.InputBuffer) error {
	if err := d.check(); err != nil {
		return err
	}
	if buf == nil || buf != d.dequeued {
		return decoder.ErrUnknownInputBuffer
	}
	d.dequeued = nil
	d.Queued = append(d.Queued, Queued{
		Data:   append([]byte(nil), buf.Data...),
		TimeUs: buf.TimeUs,
		Flags:  buf.Flags,
	})
	d.held = append(d.held, buf)
	if !d.Hold {
		d.Process()
	}
	return nil
}

// Process decodes every held input.
func (d *FakeDecoder) Process() {
	for _, in := range d.held {
		d.decode(in)
		in.Clear()
		d.free = append(d.free, in)
	}
	d.held = d.held[:0]
}

func (d *FakeDecoder) decode(in *media.InputBuffer) {
	if in.IsDecodeOnly() {
		d.skipped++
		return
	}
	out := media.NewOutputBuffer(d.releaseOutput)
	out.TimeUs = in.TimeUs
	out.Flags = in.Flags & media.FlagEndOfStream
	if !in.IsEndOfStream() {
		out.Data = append([]byte(nil), in.Data...)
	}
	out.SkippedOutputBufferCount = d.skipped + d.SkipNext
	d.skipped = 0
	d.SkipNext = 0
	d.outputs = append(d.outputs, out)
}

func (d *FakeDecoder) DequeueOutputBuffer() (*media.OutputBuffer, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if len(d.outputs) == 0 {
		return nil, nil
	}
	out := d.outputs[0]
	d.outputs = d.outputs[1:]
	return out, nil
}

// PendingOutputs returns the number of outputs not yet dequeued.
func (d *FakeDecoder) PendingOutputs() int {
	return len(d.outputs)
}

func (d *FakeDecoder) Flush() {
	d.Flushes++
	if d.dequeued != nil {
		d.free = append(d.free, d.dequeued)
		d.dequeued = nil
	}
	d.free = append(d.free, d.held...)
	d.held = d.held[:0]
	d.outputs = d.outputs[:0]
	d.skipped = 0
}

func (d *FakeDecoder) Release() {
	d.Released = true
}

func (d *FakeDecoder) releaseOutput(*media.OutputBuffer) {
	d.OutputsReleased++
}

func (d *FakeDecoder) check() error {
	if d.Released {
		return decoder.ErrReleased
	}
	return d.Err
}
