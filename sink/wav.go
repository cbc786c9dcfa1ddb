// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/logger"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/utils"
)

const (
	// DefaultBufferDuration is how much PCM a WavSink accepts ahead of playout.
	DefaultBufferDuration = 500 * time.Millisecond
	// MaxTimestampDriftUs is the gap between expected and actual buffer
	// timestamps above which the sink resyncs its position.
	MaxTimestampDriftUs = 200_000

	silenceThreshold = 1.0 / 1024
	maxChannels      = 8
)

var nextSessionID atomic.Int64

// segment holds played samples of one output configuration.
type segment struct {
	rate     int
	channels int
	samples  []float32
}

type chunk struct {
	data []byte
	seg  int
}

// WavSink plays PCM against a Clock and records what was played. The
// recording is converted to the output rate and channel count with the audio
// package processors and written as 16-bit WAV when the sink is reset or
// closed. Methods must be called from one goroutine.
type WavSink struct {
	out         io.WriteSeeker
	outRate     int
	outChannels int
	bufferUs    int64
	clock       Clock
	log         logger.Logger
	listener    Listener

	cfg           OutputConfig
	configured    bool
	bytesPerFrame int
	trimStart     int
	trimEnd       int

	queue        []chunk
	queuedFrames int64

	startMediaTimeUs int64
	startNeedsInit   bool
	needsSync        bool
	submittedUs      float64
	playedUs         float64
	carryUs          float64

	playing    bool
	lastTickUs int64
	lastFeedUs int64
	starved    bool
	draining   bool

	volume      float32
	speed       float32
	sessionID   int
	skipSilence bool

	segments  []segment
	finalized bool
	err       error
}

// WavOption configures a WavSink.
type WavOption func(*WavSink)

// WithOutput sets where the recording is written. Without an output the sink
// only keeps time.
func WithOutput(w io.WriteSeeker) WavOption {
	return func(s *WavSink) { s.out = w }
}

// WithOutputRate resamples the recording to rate Hz.
func WithOutputRate(rate int) WavOption {
	return func(s *WavSink) { s.outRate = rate }
}

// WithOutputChannels maps the recording to channels channels.
func WithOutputChannels(channels int) WavOption {
	return func(s *WavSink) { s.outChannels = channels }
}

// WithBufferDuration sets how far ahead of playout the sink accepts data.
func WithBufferDuration(d time.Duration) WavOption {
	return func(s *WavSink) {
		if d > 0 {
			s.bufferUs = d.Microseconds()
		}
	}
}

// WithClock sets the time base.
func WithClock(c Clock) WavOption {
	return func(s *WavSink) { s.clock = c }
}

// WithLogger sets the sink logger.
func WithLogger(l logger.Logger) WavOption {
	return func(s *WavSink) { s.log = l }
}

func NewWavSink(opts ...WavOption) *WavSink {
	s := &WavSink{
		bufferUs:       DefaultBufferDuration.Microseconds(),
		volume:         1,
		speed:          1,
		startNeedsInit: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewSystemClock()
	}
	s.log = logger.OrNoop(s.log).WithComponent("sink")
	return s
}

func (s *WavSink) SetListener(l Listener) { s.listener = l }

func (s *WavSink) SupportsOutput(channels, sampleRate int, encoding media.Encoding) bool {
	return encoding == media.EncodingPCM16Bit && channels >= 1 && channels <= maxChannels && sampleRate > 0
}

func (s *WavSink) Configure(cfg OutputConfig) error {
	if !s.SupportsOutput(cfg.Channels, cfg.SampleRate, cfg.Encoding) {
		return &ConfigurationError{Config: cfg, Err: ErrUnsupportedOutput}
	}

	s.advance()

	if s.sessionID == 0 {
		s.sessionID = int(nextSessionID.Add(1))
		if s.listener != nil {
			s.listener.OnAudioSessionID(s.sessionID)
		}
	}

	s.cfg = cfg
	s.configured = true
	s.bytesPerFrame = cfg.BytesPerFrame()
	s.trimStart = max(cfg.EncoderDelay, 0)
	s.trimEnd = max(cfg.EncoderPadding, 0)

	if n := len(s.segments); n == 0 || s.segments[n-1].rate != cfg.SampleRate || s.segments[n-1].channels != cfg.Channels {
		s.segments = append(s.segments, segment{rate: cfg.SampleRate, channels: cfg.Channels})
	}

	s.log.Debug("Sink configured: %d Hz, %d channel(s), %s", cfg.SampleRate, cfg.Channels, cfg.Encoding)
	return nil
}

func (s *WavSink) HandleBuffer(data []byte, timeUs int64) (bool, error) {
	if !s.configured {
		return false, &WriteError{Err: ErrNotConfigured}
	}
	if s.err != nil {
		return false, &WriteError{Err: s.err}
	}

	s.advance()

	if s.queuedFrames > 0 && s.framesToUs(s.queuedFrames) >= s.bufferUs {
		return false, nil
	}

	if s.startNeedsInit {
		s.startMediaTimeUs = max(timeUs, 0)
		s.startNeedsInit = false
		s.needsSync = false
	} else {
		expected := s.startMediaTimeUs + int64(s.submittedUs)
		if d := timeUs - expected; d > MaxTimestampDriftUs || d < -MaxTimestampDriftUs {
			s.log.Debug("Sink discontinuity: expected %dus, got %dus", expected, timeUs)
			s.needsSync = true
		}
		if s.needsSync {
			adjust := timeUs - expected
			s.startMediaTimeUs += adjust
			s.needsSync = false
			if adjust != 0 && s.listener != nil {
				s.listener.OnPositionDiscontinuity()
			}
		}
	}

	if s.trimStart > 0 {
		drop := min(s.trimStart, len(data)/s.bytesPerFrame)
		data = data[drop*s.bytesPerFrame:]
		s.trimStart -= drop
	}

	frames := len(data) / s.bytesPerFrame
	if frames > 0 {
		s.queue = append(s.queue, chunk{
			data: append([]byte(nil), data[:frames*s.bytesPerFrame]...),
			seg:  len(s.segments) - 1,
		})
		s.queuedFrames += int64(frames)
		s.submittedUs += float64(frames) * 1e6 / float64(s.cfg.SampleRate)
	}

	s.lastFeedUs = s.clock.NowUs()
	s.starved = false

	return true, nil
}

func (s *WavSink) HandleDiscontinuity() {
	s.needsSync = true
}

func (s *WavSink) PlayToEndOfStream() error {
	if !s.draining {
		s.draining = true
		s.trimTail(s.trimEnd)
		s.trimEnd = 0
	}
	s.advance()
	return s.err
}

func (s *WavSink) IsEnded() bool {
	s.advance()
	return s.draining && len(s.queue) == 0
}

func (s *WavSink) HasPendingData() bool {
	s.advance()
	return s.configured && len(s.queue) > 0
}

func (s *WavSink) CurrentPositionUs(sourceEnded bool) int64 {
	if !s.configured || s.startNeedsInit {
		return PositionNotSet
	}
	s.advance()
	return s.startMediaTimeUs + int64(s.playedUs)
}

func (s *WavSink) Play() {
	if s.playing {
		return
	}
	s.playing = true
	s.lastTickUs = s.clock.NowUs()
}

func (s *WavSink) Pause() {
	s.advance()
	s.playing = false
}

func (s *WavSink) Flush() {
	s.queue = nil
	s.queuedFrames = 0
	s.submittedUs = 0
	s.playedUs = 0
	s.carryUs = 0
	s.startNeedsInit = true
	s.needsSync = false
	s.draining = false
	s.starved = false
	s.lastTickUs = s.clock.NowUs()
}

func (s *WavSink) Reset() {
	s.Flush()
	s.playing = false
	s.configured = false
	if err := s.finalize(); err != nil {
		s.err = err
		s.log.Error("%v", err)
	}
}

// Close writes the recording if that did not happen yet and reports any write
// failure.
func (s *WavSink) Close() error {
	if err := s.finalize(); err != nil {
		s.err = err
	}
	return s.err
}

func (s *WavSink) SetVolume(volume float32) {
	s.volume = max(volume, 0)
}

func (s *WavSink) SetAudioSessionID(id int) {
	s.sessionID = id
}

func (s *WavSink) SetSkipSilenceEnabled(enabled bool) {
	if s.skipSilence == enabled {
		return
	}
	s.skipSilence = enabled
	if s.listener != nil {
		s.listener.OnSkipSilenceEnabledChanged(enabled)
	}
}

func (s *WavSink) SetPlaybackSpeed(speed float32) {
	if speed <= 0 {
		return
	}
	s.advance()
	s.speed = speed
}

func (s *WavSink) PlaybackSpeed() float32 { return s.speed }

// RecordedFrames returns the number of frames recorded so far, in the input
// sample rates.
func (s *WavSink) RecordedFrames() int {
	n := 0
	for _, seg := range s.segments {
		n += len(seg.samples) / seg.channels
	}
	return n
}

func (s *WavSink) framesToUs(frames int64) int64 {
	if s.cfg.SampleRate == 0 {
		return 0
	}
	return frames * 1_000_000 / int64(s.cfg.SampleRate)
}

// advance plays out queued frames for the time elapsed since the last call.
func (s *WavSink) advance() {
	now := s.clock.NowUs()
	if !s.playing {
		s.lastTickUs = now
		return
	}
	elapsed := now - s.lastTickUs
	s.lastTickUs = now
	if elapsed <= 0 {
		return
	}

	budget := s.carryUs + float64(elapsed)*float64(s.speed)
	for len(s.queue) > 0 {
		c := &s.queue[0]
		seg := &s.segments[c.seg]
		bpf := seg.channels * 2
		frameUs := 1e6 / float64(seg.rate)

		avail := len(c.data) / bpf
		take := min(avail, int(budget/frameUs))
		if take == 0 {
			break
		}

		s.record(seg, c.data[:take*bpf])
		c.data = c.data[take*bpf:]
		s.queuedFrames -= int64(take)
		s.playedUs += float64(take) * frameUs
		budget -= float64(take) * frameUs

		if take < avail {
			break
		}
		s.queue = s.queue[1:]
	}

	if len(s.queue) > 0 {
		s.carryUs = budget
		return
	}
	s.carryUs = 0

	if !s.draining && !s.starved && s.submittedUs > 0 && budget > 0 {
		s.starved = true
		bufferSize := int(s.bufferUs * int64(s.cfg.SampleRate) / 1_000_000 * int64(s.bytesPerFrame))
		sinceFeed := (now - s.lastFeedUs) / 1000
		s.log.Warn("Audio sink underrun: buffer=%d bytes, elapsed=%dms", bufferSize, sinceFeed)
		if s.listener != nil {
			s.listener.OnUnderrun(bufferSize, s.bufferUs/1000, sinceFeed)
		}
	}
}

// record appends played PCM to seg after volume and silence skipping.
func (s *WavSink) record(seg *segment, pcm []byte) {
	samples := make([]float32, len(pcm)/2)
	utils.PCM16ToFloat32(samples, pcm)

	for f := 0; f+seg.channels <= len(samples); f += seg.channels {
		frame := samples[f : f+seg.channels]
		if s.skipSilence && isSilent(frame) {
			continue
		}
		for _, v := range frame {
			seg.samples = append(seg.samples, v*s.volume)
		}
	}
}

func isSilent(frame []float32) bool {
	for _, v := range frame {
		if math.Abs(float64(v)) >= silenceThreshold {
			return false
		}
	}
	return true
}

// trimTail drops up to frames frames from the end of the queue.
func (s *WavSink) trimTail(frames int) {
	for frames > 0 && len(s.queue) > 0 {
		last := &s.queue[len(s.queue)-1]
		bpf := s.segments[last.seg].channels * 2
		avail := len(last.data) / bpf
		drop := min(frames, avail)

		last.data = last.data[:(avail-drop)*bpf]
		s.queuedFrames -= int64(drop)
		frames -= drop
		if len(last.data) == 0 {
			s.queue = s.queue[:len(s.queue)-1]
		}
	}
}

func (s *WavSink) finalize() error {
	if s.finalized || s.out == nil || s.RecordedFrames() == 0 {
		return nil
	}
	s.finalized = true

	rate := s.outRate
	if rate <= 0 {
		rate = s.segments[0].rate
	}
	channels := s.outChannels
	if channels <= 0 {
		channels = s.segments[0].channels
	}

	var data []int
	for _, seg := range s.segments {
		if len(seg.samples) == 0 {
			continue
		}
		src := audio.Convert(audio.NewSliceSource(seg.samples, seg.rate, seg.channels), rate, channels)
		pcm, err := audio.Collect16(src, 4096)
		if err != nil {
			return &WriteError{Err: fmt.Errorf("convert recording: %w", err)}
		}
		for _, v := range pcm {
			data = append(data, int(v))
		}
	}

	enc := wav.NewEncoder(s.out, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return &WriteError{Err: fmt.Errorf("encode wav: %w", err)}
	}
	if err := enc.Close(); err != nil {
		return &WriteError{Err: fmt.Errorf("close wav: %w", err)}
	}

	s.log.Debug("Sink wrote %d frames", len(data)/channels)
	return nil
}
