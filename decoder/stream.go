// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"errors"
	"io"
	"sync"

	"github.com/ik5/audrender/media"
)

// PCMStream is a whole-stream decoder that pulls encoded bytes from a reader and
// yields interleaved 16-bit little endian PCM.
type PCMStream interface {
	Read(p []byte) (int, error)
	SampleRate() int
	Channels() int
}

// StreamOpener builds a PCMStream on top of the encoded byte stream r. It may
// block reading stream headers.
type StreamOpener func(r io.Reader) (PCMStream, error)

var errStopped = errors.New("stream run stopped")

// StreamDecoder adapts a PCMStream to the Decoder contract. Input payloads are
// written, in order, into a pipe read by the stream; decoded PCM is cut into
// output buffers of at most chunkSize bytes. Output timestamps start at the
// first input timestamp after a flush and advance with the decoded frame count.
//
// Decode-only inputs at the start of a run are decoded but their PCM is
// dropped: PCM read while the stream has not consumed past their bytes is
// counted in SkippedOutputBufferCount, and timestamps restart at the first
// input that is not decode-only. Decode-only inputs later in a run are played.
type StreamDecoder struct {
	name      string
	open      StreamOpener
	chunkSize int

	mu   sync.Mutex
	cond *sync.Cond

	availableInput  []*media.InputBuffer
	queuedInput     []*media.InputBuffer
	dequeuedInput   *media.InputBuffer
	availableOutput []*media.OutputBuffer
	queuedOutput    []*media.OutputBuffer

	err      error
	released bool
	current  *streamRun
	stream   PCMStream
}

// streamRun is one decode generation, from the first input after a flush up to
// the next flush or release.
type streamRun struct {
	pr      *io.PipeReader
	pw      *io.PipeWriter
	baseUs  int64
	frames  int64
	stopped bool
	wg      sync.WaitGroup

	// skipEnd is the encoded byte offset where the leading decode-only
	// inputs end. playUs is the time of the first input to play.
	skipEnd int64
	playing bool
	playUs  int64
	emitted bool
	skipped int
}

// NewStreamDecoder returns a StreamDecoder with the given slot counts.
func NewStreamDecoder(name string, open StreamOpener, inputs, outputs, inputSize, chunkSize int) *StreamDecoder {
	d := &StreamDecoder{
		name:      name,
		open:      open,
		chunkSize: chunkSize,
	}
	d.cond = sync.NewCond(&d.mu)

	for range inputs {
		d.availableInput = append(d.availableInput, media.NewInputBuffer(inputSize))
	}
	for range outputs {
		d.availableOutput = append(d.availableOutput, media.NewOutputBuffer(d.releaseOutputBuffer))
	}

	return d
}

func (d *StreamDecoder) Name() string { return d.name }

// Stream returns the PCM stream of the current run once its headers were read.
func (d *StreamDecoder) Stream() (PCMStream, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.stream, d.stream != nil
}

func (d *StreamDecoder) DequeueInputBuffer() (*media.InputBuffer, error) {
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

func (d *StreamDecoder) QueueInputBuffer(buf *media.InputBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(); err != nil {
		return err
	}
	if buf == nil || buf != d.dequeuedInput {
		return ErrUnknownInputBuffer
	}
	d.dequeuedInput = nil

	if d.current == nil {
		d.start(buf.TimeUs)
	}
	if run := d.current; !run.playing && !buf.IsEndOfStream() {
		if buf.IsDecodeOnly() {
			run.skipEnd += int64(len(buf.Data))
		} else {
			run.playing = true
			run.playUs = buf.TimeUs
		}
	}
	d.queuedInput = append(d.queuedInput, buf)
	d.cond.Broadcast()

	return nil
}

func (d *StreamDecoder) DequeueOutputBuffer() (*media.OutputBuffer, error) {
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

func (d *StreamDecoder) Flush() {
	d.mu.Lock()
	run := d.detach()
	d.mu.Unlock()

	stop(run)

	d.mu.Lock()
	defer d.mu.Unlock()

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
	d.stream = nil
}

func (d *StreamDecoder) Release() {
	d.mu.Lock()
	d.released = true
	run := d.detach()
	d.mu.Unlock()

	stop(run)
}

func (d *StreamDecoder) check() error {
	if d.released {
		return ErrReleased
	}
	return d.err
}

// detach must be called with mu held.
func (d *StreamDecoder) detach() *streamRun {
	run := d.current
	d.current = nil
	if run != nil {
		run.stopped = true
	}
	d.cond.Broadcast()
	return run
}

func stop(run *streamRun) {
	if run == nil {
		return
	}
	_ = run.pr.CloseWithError(errStopped)
	_ = run.pw.CloseWithError(errStopped)
	run.wg.Wait()
}

// start must be called with mu held.
func (d *StreamDecoder) start(baseUs int64) {
	pr, pw := io.Pipe()
	run := &streamRun{pr: pr, pw: pw, baseUs: baseUs}
	d.current = run

	run.wg.Add(2)
	go d.feed(run)
	go d.pump(run)
}

func (d *StreamDecoder) releaseOutputBuffer(buf *media.OutputBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf.Clear()
	d.availableOutput = append(d.availableOutput, buf)
	d.cond.Broadcast()
}

func (d *StreamDecoder) recycleInput(in *media.InputBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	in.Clear()
	d.availableInput = append(d.availableInput, in)
	d.cond.Broadcast()
}

func (d *StreamDecoder) fail(run *streamRun, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if run.stopped || errors.Is(err, errStopped) {
		return
	}
	d.err = &Error{Decoder: d.name, Err: err}
	d.cond.Broadcast()
}

// feed copies queued input payloads into the pipe until end of stream.
func (d *StreamDecoder) feed(run *streamRun) {
	defer run.wg.Done()

	for {
		d.mu.Lock()
		for !run.stopped && len(d.queuedInput) == 0 {
			d.cond.Wait()
		}
		if run.stopped {
			d.mu.Unlock()
			return
		}
		in := d.queuedInput[0]
		d.queuedInput = d.queuedInput[1:]
		d.mu.Unlock()

		if in.IsEndOfStream() {
			d.recycleInput(in)
			_ = run.pw.Close()
			return
		}

		_, err := run.pw.Write(in.Data)
		d.recycleInput(in)
		if err != nil {
			d.fail(run, err)
			return
		}
	}
}

// countingReader counts the encoded bytes a stream consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// pump decodes the pipe content into output buffers.
func (d *StreamDecoder) pump(run *streamRun) {
	defer run.wg.Done()

	src := &countingReader{r: run.pr}
	stream, err := d.open(src)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.emit(run, nil, nil, src.n)
			return
		}
		d.fail(run, err)
		return
	}

	d.mu.Lock()
	if !run.stopped {
		d.stream = stream
	}
	d.mu.Unlock()

	buf := make([]byte, d.chunkSize)
	for {
		var n int
		// Single reads while in the decode-only span keep dropped PCM apart
		// from PCM that plays.
		if d.skipping(run, src.n) {
			n, err = stream.Read(buf)
		} else {
			n, err = io.ReadFull(stream, buf)
		}
		if n > 0 {
			if !d.emit(run, buf[:n], stream, src.n) {
				return
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			d.emit(run, nil, nil, src.n)
			return
		}
		if err != nil {
			d.fail(run, err)
			return
		}
	}
}

// skipping reports whether PCM read after consumed encoded bytes may still
// come from leading decode-only inputs.
func (d *StreamDecoder) skipping(run *streamRun, consumed int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return run.inSkip(consumed)
}

// inSkip must be called with mu held.
func (run *streamRun) inSkip(consumed int64) bool {
	return !run.playing || (run.skipEnd > 0 && consumed <= run.skipEnd)
}

// emit queues pcm as an output buffer, or an end of stream buffer when pcm is
// nil. PCM decoded from leading decode-only inputs is dropped. It waits for a
// free output slot and reports false if the run stopped.
func (d *StreamDecoder) emit(run *streamRun, pcm []byte, stream PCMStream, consumed int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if run.stopped {
		return false
	}
	if pcm != nil && run.inSkip(consumed) {
		run.skipped++
		return true
	}
	if !run.emitted && run.skipEnd > 0 && run.playing {
		run.baseUs = run.playUs
		run.frames = 0
	}
	run.emitted = true

	for !run.stopped && len(d.availableOutput) == 0 {
		d.cond.Wait()
	}
	if run.stopped {
		return false
	}

	last := len(d.availableOutput) - 1
	out := d.availableOutput[last]
	d.availableOutput = d.availableOutput[:last]

	out.SkippedOutputBufferCount = run.skipped
	run.skipped = 0

	if pcm == nil {
		out.Flags = media.FlagEndOfStream
		out.TimeUs = run.baseUs + framesToUs(run.frames, d.rate(stream))
		d.queuedOutput = append(d.queuedOutput, out)
		return true
	}

	out.Data = append(out.Data[:0], pcm...)
	out.TimeUs = run.baseUs + framesToUs(run.frames, stream.SampleRate())
	if ch := stream.Channels(); ch > 0 {
		run.frames += int64(len(pcm) / (2 * ch))
	}
	d.queuedOutput = append(d.queuedOutput, out)

	return true
}

func (d *StreamDecoder) rate(stream PCMStream) int {
	if stream != nil {
		return stream.SampleRate()
	}
	if d.stream != nil {
		return d.stream.SampleRate()
	}
	return 0
}

func framesToUs(frames int64, rate int) int64 {
	if rate <= 0 {
		return 0
	}
	return frames * 1_000_000 / int64(rate)
}
