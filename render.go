// SPDX-License-Identifier: EPL-2.0

package audrender

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ik5/audrender/config"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/formats/aiff"
	"github.com/ik5/audrender/formats/mp3"
	"github.com/ik5/audrender/formats/vorbis"
	"github.com/ik5/audrender/formats/wav"
	"github.com/ik5/audrender/formats/webm"
	"github.com/ik5/audrender/logger"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/playback"
	"github.com/ik5/audrender/renderer"
	"github.com/ik5/audrender/sink"
	"github.com/ik5/audrender/source"
)

// Extractors returns a registry with every container extractor.
func Extractors() *source.Registry {
	r := source.NewRegistry()
	wav.Register(r)
	aiff.Register(r)
	mp3.Register(r)
	vorbis.Register(r)
	webm.Register(r)
	return r
}

// Families returns a registry with every decoder family.
func Families() *renderer.Registry {
	r := renderer.NewRegistry()
	r.Register(wav.Family{})
	r.Register(mp3.Family{})
	r.Register(vorbis.StreamFamily{})
	r.Register(vorbis.PacketFamily{})
	return r
}

// Result summarises a finished render.
type Result struct {
	// Format is the last input format the renderer saw.
	Format *media.Format
	// Decoder names the last decoder used.
	Decoder    string
	PositionUs int64
	Counters   renderer.Counters
	// Frames is the number of frames played into the recording, before
	// output conversion.
	Frames  int
	Elapsed time.Duration
}

type settings struct {
	log      logger.Logger
	progress func(playback.Progress)
	control  func(*playback.Player)
}

// Option configures Render.
type Option func(*settings)

// WithLogger sets the logger shared by every pipeline component.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithProgress reports playback progress every cfg.ProgressMs. fn runs on the
// playback goroutine and must not block.
func WithProgress(fn func(playback.Progress)) Option {
	return func(s *settings) { s.progress = fn }
}

// WithPlayer hands the player to fn before playback starts, so callers can
// seek or stop it from another goroutine.
func WithPlayer(fn func(*playback.Player)) Option {
	return func(s *settings) { s.control = fn }
}

// formatListener keeps the renderer's input format and decoder name.
type formatListener struct {
	renderer.BaseEventListener

	log     logger.Logger
	format  *media.Format
	decoder string
}

func (l *formatListener) OnInputFormatChanged(f *media.Format) { l.format = f }

func (l *formatListener) OnDecoderInitialized(name string, _ time.Duration) {
	l.decoder = name
}

func (l *formatListener) OnUnderrun(bufferSize int, _ int64, sinceFeedMs int64) {
	l.log.Debug("Audio sink underrun: buffer=%d bytes, elapsed=%dms", bufferSize, sinceFeedMs)
}

// Render decodes cfg.Input through a renderer and records what was played to
// the WAV file cfg.Output.
func Render(ctx context.Context, cfg config.Config, opts ...Option) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	log := logger.OrNoop(s.log)

	provider, err := cfg.KeyProvider()
	if err != nil {
		return nil, err
	}
	manager := drm.NewSessionManager(provider, cfg.DRM.PlayClearWithoutKeys, log)

	stream, err := Extractors().Open(cfg.Input, source.Options{Drm: manager, Logger: log})
	if err != nil {
		return nil, err
	}

	out, err := os.Create(cfg.Output)
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	var clock sink.Clock
	var manual *sink.ManualClock
	if cfg.Realtime {
		clock = sink.NewSystemClock()
	} else {
		manual = sink.NewManualClock()
		clock = manual
	}

	wavOpts := []sink.WavOption{
		sink.WithOutput(out),
		sink.WithOutputRate(cfg.OutputRate),
		sink.WithBufferDuration(cfg.BufferDuration()),
		sink.WithClock(clock),
		sink.WithLogger(log),
	}
	if cfg.Mono {
		wavOpts = append(wavOpts, sink.WithOutputChannels(1))
	}
	audioSink := sink.NewWavSink(wavOpts...)

	events := &formatListener{log: log.WithComponent("renderer")}
	r := renderer.New(Families(), audioSink,
		renderer.WithEventListener(events),
		renderer.WithSessionManager(manager),
		renderer.WithLogger(log),
	)
	for _, msg := range []renderer.Message{
		renderer.SetVolume(cfg.Volume),
		renderer.SetPlaybackSpeed(cfg.Speed),
		renderer.SetSkipSilenceEnabled(cfg.SkipSilence),
	} {
		if err := r.HandleMessage(msg); err != nil {
			_ = stream.Close()
			return nil, err
		}
	}

	var last playback.Progress
	playerOpts := []playback.Option{
		playback.WithTickInterval(cfg.TickInterval()),
		playback.WithStartPosition(cfg.StartUs()),
		playback.WithLogger(log),
		playback.WithProgress(func(p playback.Progress) {
			last = p
			if s.progress != nil {
				s.progress(p)
			}
		}, cfg.ProgressInterval()),
	}
	if manual != nil {
		playerOpts = append(playerOpts, playback.WithManualClock(manual))
	} else {
		playerOpts = append(playerOpts, playback.WithClock(clock))
	}
	player := playback.New(r, stream, playerOpts...)
	if s.control != nil {
		s.control(player)
	}

	began := time.Now()
	log.Info("Playing %s", cfg.Input)
	if err := player.Run(ctx); err != nil {
		return nil, err
	}
	if err := audioSink.Close(); err != nil {
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close output: %w", err)
	}

	return &Result{
		Format:     events.format,
		Decoder:    events.decoder,
		PositionUs: last.PositionUs,
		Counters:   last.Counters,
		Frames:     audioSink.RecordedFrames(),
		Elapsed:    time.Since(began),
	}, nil
}
