// SPDX-License-Identifier: EPL-2.0

package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/logger"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/sink"
	"github.com/ik5/audrender/source"
)

// DefaultFirstBufferTolerance is how far the first sample after a reset may be
// from the reset position before the position snaps to it.
const DefaultFirstBufferTolerance = 500 * time.Millisecond

// State is the renderer lifecycle state.
type State int

const (
	StateDisabled State = iota
	StateEnabled
	StateStarted
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	case StateStarted:
		return "started"
	default:
		return "unknown"
	}
}

// Renderer pulls samples from a SampleStream, runs them through a decoder
// created by its DecoderFamily and hands the output to an AudioSink, which
// also provides the playback position.
//
// A Renderer is not safe for concurrent use. All methods must be called from
// the goroutine driving playback, and none of them block.
type Renderer struct {
	family      DecoderFamily
	sink        sink.AudioSink
	events      EventListener
	drm         *drm.SessionManager
	log         logger.Logger
	toleranceUs int64

	state  State
	stream source.SampleStream

	holder    source.FormatHolder
	flagsOnly *media.InputBuffer

	inputFormat    *media.Format
	encoderDelay   int
	encoderPadding int

	dec       decoder.Decoder
	inputBuf  *media.InputBuffer
	outputBuf *media.OutputBuffer

	sourceSession  drm.Session
	decoderSession drm.Session

	reinit                 ReinitializationState
	decoderReceivedBuffers bool
	sinkNeedsConfigure     bool
	waitingForKeys         bool
	inputStreamEnded       bool
	outputStreamEnded      bool

	currentPositionUs                     int64
	allowFirstBufferPositionDiscontinuity bool
	allowPositionDiscontinuity            bool

	counters Counters
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithEventListener sets the listener for renderer events.
func WithEventListener(l EventListener) Option {
	return func(r *Renderer) { r.events = l }
}

// WithLogger sets the renderer logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// WithSessionManager lets SupportsFormat accept protected formats the manager
// can serve.
func WithSessionManager(m *drm.SessionManager) Option {
	return func(r *Renderer) { r.drm = m }
}

// WithFirstBufferTolerance sets the first buffer snap tolerance.
func WithFirstBufferTolerance(d time.Duration) Option {
	return func(r *Renderer) { r.toleranceUs = d.Microseconds() }
}

// New creates a disabled renderer.
func New(family DecoderFamily, audioSink sink.AudioSink, opts ...Option) *Renderer {
	r := &Renderer{
		family:             family,
		sink:               audioSink,
		toleranceUs:        DefaultFirstBufferTolerance.Microseconds(),
		flagsOnly:          media.NewFlagsOnly(),
		sinkNeedsConfigure: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.events == nil {
		r.events = BaseEventListener{}
	}
	r.log = logger.OrNoop(r.log).WithComponent("renderer")
	audioSink.SetListener(&sinkListener{r: r})
	return r
}

// SupportsFormat reports how well f can be rendered.
func (r *Renderer) SupportsFormat(f *media.Format) FormatSupport {
	if f == nil || !f.IsAudio() {
		return FormatUnsupportedType
	}
	support := r.family.SupportsFormat(f)
	if support == FormatHandled && f.DrmInitData != nil && !r.drm.CanHandle(f.DrmInitData) {
		return FormatUnsupportedDrm
	}
	return support
}

// Enable binds the renderer to stream, positioned at positionUs.
func (r *Renderer) Enable(stream source.SampleStream, positionUs int64) error {
	if r.state != StateDisabled {
		return fmt.Errorf("%w: enable while %s", ErrInvalidState, r.state)
	}
	r.stream = stream
	r.state = StateEnabled
	r.counters = Counters{}
	r.events.OnEnabled(r.counters)

	return r.ResetPosition(positionUs)
}

// Start starts playout.
func (r *Renderer) Start() error {
	if r.state != StateEnabled {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, r.state)
	}
	r.state = StateStarted
	r.sink.Play()
	return nil
}

// Stop pauses playout, keeping buffers and the decoder.
func (r *Renderer) Stop() error {
	if r.state != StateStarted {
		return fmt.Errorf("%w: stop while %s", ErrInvalidState, r.state)
	}
	r.updateCurrentPosition()
	r.sink.Pause()
	r.state = StateEnabled
	return nil
}

// Disable releases the decoder, DRM sessions and sink resources.
func (r *Renderer) Disable() {
	if r.state == StateDisabled {
		return
	}
	if r.state == StateStarted {
		_ = r.Stop()
	}

	r.inputFormat = nil
	r.sinkNeedsConfigure = true
	r.waitingForKeys = false
	r.setSourceSession(nil)
	r.releaseDecoder()
	r.sink.Reset()

	r.stream = nil
	r.state = StateDisabled
	r.log.Debug("Renderer disabled")
	r.events.OnDisabled(r.counters)
}

// ResetPosition discards everything in flight after the stream was moved to
// positionUs.
func (r *Renderer) ResetPosition(positionUs int64) error {
	if r.state == StateDisabled {
		return fmt.Errorf("%w: reset while %s", ErrInvalidState, r.state)
	}
	r.log.Debug("Position reset to %dus", positionUs)

	r.sink.Flush()
	r.currentPositionUs = positionUs
	r.allowFirstBufferPositionDiscontinuity = true
	r.allowPositionDiscontinuity = true
	r.inputStreamEnded = false
	r.outputStreamEnded = false

	if r.dec != nil {
		return r.flushDecoder()
	}
	return nil
}

// Render does as much work as possible without blocking: it reads the input
// format if still unknown, creates the decoder, then drains decoder output
// into the sink and feeds samples into the decoder until neither makes
// progress.
func (r *Renderer) Render(positionUs, elapsedRealtimeUs int64) error {
	if r.state == StateDisabled {
		return fmt.Errorf("%w: render while %s", ErrInvalidState, r.state)
	}

	if r.outputStreamEnded {
		if err := r.sink.PlayToEndOfStream(); err != nil {
			return r.newError(KindSink, err)
		}
		return nil
	}

	if r.inputFormat == nil {
		r.holder.Clear()
		r.flagsOnly.Clear()
		switch r.stream.ReadData(&r.holder, r.flagsOnly, true) {
		case source.ResultFormatRead:
			if err := r.onInputFormatChanged(&r.holder); err != nil {
				return err
			}
		case source.ResultBufferRead:
			// Only end of stream can be read into a flags-only buffer.
			r.inputStreamEnded = true
			return r.processEndOfStream()
		default:
			return nil
		}
	}

	if err := r.maybeInitDecoder(); err != nil {
		return err
	}
	if r.dec == nil {
		return nil
	}

	for {
		progressed, err := r.drainOutputBuffer()
		if err != nil {
			return err
		}
		if !progressed {
			break
		}
	}
	for {
		progressed, err := r.feedInputBuffer()
		if err != nil {
			return err
		}
		if !progressed {
			break
		}
	}

	return nil
}

// IsReady reports whether the renderer can make progress or play out.
func (r *Renderer) IsReady() bool {
	if r.sink.HasPendingData() {
		return true
	}
	if r.inputFormat == nil || r.waitingForKeys {
		return false
	}
	return r.inputStreamEnded || r.stream.IsReady() || r.outputBuf != nil
}

// IsEnded reports whether all output was played.
func (r *Renderer) IsEnded() bool {
	return r.outputStreamEnded && r.sink.IsEnded()
}

// PositionUs returns the playback position. While started it follows the
// sink, never moving backwards except once after a reset or a sink
// discontinuity.
func (r *Renderer) PositionUs() int64 {
	if r.state == StateStarted {
		r.updateCurrentPosition()
	}
	return r.currentPositionUs
}

// HandleMessage applies an out of band control message.
func (r *Renderer) HandleMessage(msg Message) error {
	switch m := msg.(type) {
	case SetVolume:
		r.sink.SetVolume(float32(m))
	case SetAudioSessionID:
		r.sink.SetAudioSessionID(int(m))
	case SetSkipSilenceEnabled:
		r.sink.SetSkipSilenceEnabled(bool(m))
	case SetPlaybackSpeed:
		r.sink.SetPlaybackSpeed(float32(m))
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
	return nil
}

// SetPlaybackSpeed changes the playout speed.
func (r *Renderer) SetPlaybackSpeed(speed float32) {
	r.sink.SetPlaybackSpeed(speed)
}

// PlaybackSpeed returns the current playout speed.
func (r *Renderer) PlaybackSpeed() float32 {
	return r.sink.PlaybackSpeed()
}

// MaybeThrowStreamError reports a fatal error of the stream, if any.
func (r *Renderer) MaybeThrowStreamError() error {
	if r.stream == nil {
		return nil
	}
	if err := r.stream.MaybeThrowError(); err != nil {
		return r.newError(KindSource, err)
	}
	return nil
}

// Counters returns a snapshot of the buffer statistics.
func (r *Renderer) Counters() Counters {
	return r.counters
}

// State returns the lifecycle state.
func (r *Renderer) State() State {
	return r.state
}

// ReinitializationState returns the decoder swap state.
func (r *Renderer) ReinitializationState() ReinitializationState {
	return r.reinit
}

// WaitingForKeys reports whether a protected sample is held until its DRM
// session has keys.
func (r *Renderer) WaitingForKeys() bool {
	return r.waitingForKeys
}

// InputFormat returns the current input format.
func (r *Renderer) InputFormat() *media.Format {
	return r.inputFormat
}

func (r *Renderer) newError(kind ErrorKind, err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Kind: kind, Format: r.inputFormat, Err: err}
}

func (r *Renderer) processEndOfStream() error {
	r.outputStreamEnded = true
	r.log.Debug("Output stream ended")
	if err := r.sink.PlayToEndOfStream(); err != nil {
		return r.newError(KindSink, err)
	}
	return nil
}

// drainOutputBuffer moves at most one decoded buffer to the sink.
func (r *Renderer) drainOutputBuffer() (bool, error) {
	if r.outputBuf == nil {
		out, err := r.dec.DequeueOutputBuffer()
		if err != nil {
			return false, r.newError(KindDecoder, err)
		}
		if out == nil {
			return false, nil
		}
		r.outputBuf = out
		if n := out.SkippedOutputBufferCount; n > 0 {
			r.counters.SkippedOutputBufferCount += n
			r.sink.HandleDiscontinuity()
		}
	}

	if r.outputBuf.IsEndOfStream() {
		if r.reinit == ReinitWaitEndOfStream {
			// The old decoder drained; swap it for one matching the new format.
			r.releaseDecoder()
			if err := r.maybeInitDecoder(); err != nil {
				return false, err
			}
			r.sinkNeedsConfigure = true
		} else {
			r.outputBuf.Release()
			r.outputBuf = nil
			if err := r.processEndOfStream(); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	if r.sinkNeedsConfigure {
		f := r.family.OutputFormat(r.dec)
		if f == nil {
			return false, r.newError(KindDecoder, decoder.ErrNoOutputFormat)
		}
		cfg := sink.OutputConfig{
			Encoding:       f.PCMEncoding,
			Channels:       f.ChannelCount,
			SampleRate:     f.SampleRate,
			EncoderDelay:   r.encoderDelay,
			EncoderPadding: r.encoderPadding,
		}
		if err := r.sink.Configure(cfg); err != nil {
			return false, r.newError(KindSink, err)
		}
		r.sinkNeedsConfigure = false
	}

	accepted, err := r.sink.HandleBuffer(r.outputBuf.Data, r.outputBuf.TimeUs)
	if err != nil {
		return false, r.newError(KindSink, err)
	}
	if !accepted {
		return false, nil
	}

	r.counters.RenderedOutputBufferCount++
	r.outputBuf.Release()
	r.outputBuf = nil
	return true, nil
}

// feedInputBuffer moves at most one sample from the stream into the decoder.
func (r *Renderer) feedInputBuffer() (bool, error) {
	if r.dec == nil || r.reinit == ReinitWaitEndOfStream || r.inputStreamEnded {
		return false, nil
	}

	if r.inputBuf == nil {
		in, err := r.dec.DequeueInputBuffer()
		if err != nil {
			return false, r.newError(KindDecoder, err)
		}
		if in == nil {
			return false, nil
		}
		r.inputBuf = in
	}

	if r.reinit == ReinitSignalEndOfStream {
		r.inputBuf.SetFlags(media.FlagEndOfStream)
		if err := r.dec.QueueInputBuffer(r.inputBuf); err != nil {
			return false, r.newError(KindDecoder, err)
		}
		r.inputBuf = nil
		if err := r.setReinit(ReinitWaitEndOfStream); err != nil {
			return false, r.newError(KindDecoder, err)
		}
		return false, nil
	}

	var result source.ReadResult
	if r.waitingForKeys {
		// The held buffer was read already; retry it without reading again.
		result = source.ResultBufferRead
	} else {
		r.holder.Clear()
		result = r.stream.ReadData(&r.holder, r.inputBuf, false)
	}

	switch result {
	case source.ResultNothingRead:
		return false, nil
	case source.ResultFormatRead:
		if err := r.onInputFormatChanged(&r.holder); err != nil {
			return false, err
		}
		return true, nil
	}

	if r.inputBuf.IsEndOfStream() {
		r.inputStreamEnded = true
		if err := r.dec.QueueInputBuffer(r.inputBuf); err != nil {
			return false, r.newError(KindDecoder, err)
		}
		r.inputBuf = nil
		return false, nil
	}

	wait, err := r.shouldWaitForKeys(r.inputBuf.IsEncrypted())
	if err != nil {
		return false, err
	}
	if wait != r.waitingForKeys && wait {
		r.log.Debug("Waiting for DRM keys")
	}
	r.waitingForKeys = wait
	if wait {
		return false, nil
	}

	r.inputBuf.Flip()
	r.onQueueInputBuffer(r.inputBuf)
	if err := r.dec.QueueInputBuffer(r.inputBuf); err != nil {
		return false, r.newError(KindDecoder, err)
	}
	r.decoderReceivedBuffers = true
	r.counters.QueuedInputBufferCount++
	r.inputBuf = nil
	return true, nil
}

func (r *Renderer) shouldWaitForKeys(encrypted bool) (bool, error) {
	s := r.decoderSession
	if s == nil || (!encrypted && s.PlayClearSamplesWithoutKeys()) {
		return false, nil
	}
	switch s.State() {
	case drm.StateError:
		err := s.Err()
		if err == nil {
			err = ErrDrmSession
		}
		return false, r.newError(KindDrm, err)
	case drm.StateOpenedWithKeys:
		return false, nil
	default:
		return true, nil
	}
}

func (r *Renderer) onQueueInputBuffer(buf *media.InputBuffer) {
	if buf.IsDecodeOnly() {
		r.counters.SkippedInputBufferCount++
		return
	}
	if !r.allowFirstBufferPositionDiscontinuity {
		return
	}
	if d := buf.TimeUs - r.currentPositionUs; d > r.toleranceUs || d < -r.toleranceUs {
		r.currentPositionUs = buf.TimeUs
	}
	r.allowFirstBufferPositionDiscontinuity = false
}

func (r *Renderer) flushDecoder() error {
	r.waitingForKeys = false
	if r.reinit != ReinitNone {
		r.releaseDecoder()
		return r.maybeInitDecoder()
	}

	r.inputBuf = nil
	r.dropOutputBuffer()
	r.dec.Flush()
	r.decoderReceivedBuffers = false
	return nil
}

// maybeInitDecoder creates the decoder once the DRM session allows it. A
// session that is still opening defers creation without error.
func (r *Renderer) maybeInitDecoder() error {
	if r.dec != nil || r.inputFormat == nil {
		return nil
	}

	r.setDecoderSession(r.sourceSession)

	var crypto drm.CryptoContext
	if r.decoderSession != nil {
		crypto = r.decoderSession.CryptoContext()
		if crypto == nil && r.decoderSession.State() != drm.StateError {
			return nil
		}
		// A failed session is only reported once keys are needed; a new format
		// may replace it before that.
	}

	start := time.Now()
	d, err := r.family.CreateDecoder(r.inputFormat, crypto)
	if err != nil {
		return r.newError(KindDecoder, fmt.Errorf("create %s decoder: %w", r.family.Name(), err))
	}
	elapsed := time.Since(start)

	r.dec = d
	r.counters.DecoderInitCount++
	r.log.Debug("Decoder %s initialized in %dms", d.Name(), elapsed.Milliseconds())
	r.events.OnDecoderInitialized(d.Name(), elapsed)

	return nil
}

func (r *Renderer) releaseDecoder() {
	r.inputBuf = nil
	r.dropOutputBuffer()
	r.reinit = ReinitNone
	r.decoderReceivedBuffers = false

	if r.dec != nil {
		name := r.dec.Name()
		r.dec.Release()
		r.dec = nil
		r.counters.DecoderReleaseCount++
		r.log.Debug("Decoder %s released", name)
	}

	r.setDecoderSession(nil)
}

// dropOutputBuffer returns a held output buffer to its decoder, counting it
// as dropped unless it was an end of stream marker.
func (r *Renderer) dropOutputBuffer() {
	if r.outputBuf == nil {
		return
	}
	if !r.outputBuf.IsEndOfStream() {
		r.counters.DroppedBufferCount++
	}
	r.outputBuf.Release()
	r.outputBuf = nil
}

func (r *Renderer) onInputFormatChanged(holder *source.FormatHolder) error {
	next := holder.Format
	r.setSourceSession(holder.DrmSession)

	old := r.inputFormat
	r.inputFormat = next
	r.log.Debug("Input format changed: %s", next)

	if r.dec == nil {
		if err := r.maybeInitDecoder(); err != nil {
			return err
		}
	} else if r.sourceSession != r.decoderSession || !r.family.CanKeepCodec(old, next) {
		if r.decoderReceivedBuffers {
			// Drain the old decoder before replacing it.
			if err := r.setReinit(ReinitSignalEndOfStream); err != nil {
				return r.newError(KindDecoder, err)
			}
		} else {
			r.releaseDecoder()
			if err := r.maybeInitDecoder(); err != nil {
				return err
			}
			r.sinkNeedsConfigure = true
		}
	}

	r.encoderDelay = next.EncoderDelay
	r.encoderPadding = next.EncoderPadding
	r.events.OnInputFormatChanged(next)

	return nil
}

func (r *Renderer) setReinit(next ReinitializationState) error {
	state, err := r.reinit.transition(next)
	if err != nil {
		return err
	}
	r.log.Debug("Reinitialization state %s -> %s", r.reinit, state)
	r.reinit = state
	return nil
}

func (r *Renderer) setSourceSession(s drm.Session) {
	r.sourceSession = drm.ReplaceSession(r.sourceSession, s)
}

func (r *Renderer) setDecoderSession(s drm.Session) {
	r.decoderSession = drm.ReplaceSession(r.decoderSession, s)
}

func (r *Renderer) updateCurrentPosition() {
	pos := r.sink.CurrentPositionUs(r.IsEnded())
	if pos == sink.PositionNotSet {
		return
	}
	if !r.allowPositionDiscontinuity {
		pos = max(r.currentPositionUs, pos)
	}
	r.currentPositionUs = pos
	r.allowPositionDiscontinuity = false
}

// sinkListener forwards sink events to the renderer and its listener.
type sinkListener struct {
	r *Renderer
}

func (l *sinkListener) OnAudioSessionID(id int) {
	l.r.events.OnAudioSessionID(id)
}

func (l *sinkListener) OnPositionDiscontinuity() {
	l.r.allowPositionDiscontinuity = true
}

func (l *sinkListener) OnUnderrun(bufferSize int, bufferSizeMs int64, elapsedSinceLastFeedMs int64) {
	l.r.events.OnUnderrun(bufferSize, bufferSizeMs, elapsedSinceLastFeedMs)
}

func (l *sinkListener) OnSkipSilenceEnabledChanged(enabled bool) {
	l.r.events.OnSkipSilenceEnabledChanged(enabled)
}
