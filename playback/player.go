// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ik5/audrender/logger"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/renderer"
	"github.com/ik5/audrender/sink"
	"github.com/ik5/audrender/source"
)

// DefaultTickInterval is the time between two Render calls.
const DefaultTickInterval = 10 * time.Millisecond

// State is the playback state reported with progress.
type State int

const (
	StateIdle State = iota
	// StateBuffering means the renderer is waiting for data or keys.
	StateBuffering
	StatePlaying
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Progress is a snapshot of the playback position.
type Progress struct {
	State      State
	PositionUs int64
	// DurationUs is media.TimeUnset when the input does not declare it.
	DurationUs int64
	Counters   renderer.Counters
}

// Player runs one renderer over one stream.
type Player struct {
	r       *renderer.Renderer
	stream  source.SampleStream
	clock   sink.Clock
	manual  *sink.ManualClock
	tick    time.Duration
	startUs int64
	log     logger.Logger

	onProgress func(Progress)
	progress   *rate.Sometimes

	cmds    chan request
	done    chan struct{}
	running atomic.Bool

	// Owned by the goroutine in Run.
	state   State
	paused  bool
	stopped bool
}

// Option configures a Player.
type Option func(*Player)

// WithTickInterval sets the time between two Render calls.
func WithTickInterval(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.tick = d
		}
	}
}

// WithClock sets the clock passed to Render as elapsed real time. It should
// be the clock the sink plays against.
func WithClock(c sink.Clock) Option {
	return func(p *Player) { p.clock = c }
}

// WithManualClock renders faster than real time: c is advanced by one tick
// interval per iteration and no ticker is used.
func WithManualClock(c *sink.ManualClock) Option {
	return func(p *Player) {
		p.clock = c
		p.manual = c
	}
}

// WithStartPosition sets the position the renderer is enabled at.
func WithStartPosition(positionUs int64) Option {
	return func(p *Player) { p.startUs = max(positionUs, 0) }
}

// WithProgress calls fn at most once per interval while playing, and once
// more when playback ends. A zero interval reports every tick. fn runs on the
// playback goroutine and must not block.
func WithProgress(fn func(Progress), interval time.Duration) Option {
	return func(p *Player) {
		p.onProgress = fn
		p.progress = nil
		if interval > 0 {
			p.progress = &rate.Sometimes{First: 1, Interval: interval}
		}
	}
}

// WithLogger sets the player logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Player) { p.log = l }
}

// New creates a player for r and stream. The player takes ownership of both:
// Run disables the renderer and closes the stream when it returns.
func New(r *renderer.Renderer, stream source.SampleStream, opts ...Option) *Player {
	p := &Player{
		r:      r,
		stream: stream,
		tick:   DefaultTickInterval,
		cmds:   make(chan request),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = sink.NewSystemClock()
	}
	p.log = logger.OrNoop(p.log).WithComponent("playback")
	return p
}

// Run plays the stream to its end. It returns nil when the stream ended or
// Stop was called, ctx.Err() when ctx is cancelled, and the renderer error
// that stopped playback otherwise.
func (p *Player) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(p.done)

	began := time.Now()
	if p.startUs > 0 {
		if err := p.stream.SeekTo(p.startUs); err != nil {
			_ = p.stream.Close()
			return fmt.Errorf("seek to %dus: %w", p.startUs, err)
		}
	}
	if err := p.r.Enable(p.stream, p.startUs); err != nil {
		_ = p.stream.Close()
		return err
	}
	defer p.release()
	p.state = StateBuffering

	var ticks <-chan time.Time
	if p.manual == nil {
		t := time.NewTicker(p.tick)
		defer t.Stop()
		ticks = t.C
	}

	for {
		req, ok, err := p.wait(ctx, ticks)
		if err != nil {
			return err
		}
		if ok {
			req.reply <- p.apply(req.cmd)
			if p.stopped {
				p.log.Info("Playback stopped")
				return nil
			}
			continue
		}

		ended, err := p.step()
		if err != nil {
			p.log.Error("Playback failed: %v", err)
			return err
		}
		if ended {
			p.state = StateEnded
			if p.onProgress != nil {
				p.onProgress(p.snapshot())
			}
			p.log.Info("Playback finished in %s", time.Since(began).Round(time.Millisecond))
			return nil
		}
	}
}

// wait blocks until the next tick or command. In manual clock mode a tick is
// always due, unless playback is paused.
func (p *Player) wait(ctx context.Context, ticks <-chan time.Time) (request, bool, error) {
	if p.manual != nil && !p.paused {
		select {
		case <-ctx.Done():
			return request{}, false, ctx.Err()
		case req := <-p.cmds:
			return req, true, nil
		default:
			p.manual.Advance(p.tick)
			return request{}, false, nil
		}
	}

	select {
	case <-ctx.Done():
		return request{}, false, ctx.Err()
	case req := <-p.cmds:
		return req, true, nil
	case <-ticks:
		return request{}, false, nil
	}
}

// step runs one render pass and reports whether playback ended.
func (p *Player) step() (bool, error) {
	if err := p.r.Render(p.r.PositionUs(), p.clock.NowUs()); err != nil {
		return false, err
	}
	if p.r.IsEnded() {
		return true, nil
	}

	ready := p.r.IsReady()
	if !ready {
		if err := p.r.MaybeThrowStreamError(); err != nil {
			return false, err
		}
	}
	if err := p.update(ready); err != nil {
		return false, err
	}

	switch {
	case p.progress != nil:
		p.progress.Do(func() { p.onProgress(p.snapshot()) })
	case p.onProgress != nil:
		p.onProgress(p.snapshot())
	}
	return false, nil
}

// update starts the renderer when it can play and stops it while it waits,
// so the sink clock does not run past decoded data.
func (p *Player) update(ready bool) error {
	switch {
	case p.paused:
		p.state = StatePaused
		return p.setStarted(false)
	case ready:
		p.state = StatePlaying
		return p.setStarted(true)
	default:
		if p.state == StatePlaying {
			p.log.Debug("Buffering at %.2fs", seconds(p.r.PositionUs()))
		}
		p.state = StateBuffering
		return p.setStarted(false)
	}
}

func (p *Player) setStarted(on bool) error {
	if on == (p.r.State() == renderer.StateStarted) {
		return nil
	}
	if on {
		return p.r.Start()
	}
	return p.r.Stop()
}

func (p *Player) snapshot() Progress {
	pr := Progress{
		State:      p.state,
		PositionUs: p.r.PositionUs(),
		DurationUs: media.TimeUnset,
		Counters:   p.r.Counters(),
	}
	if f := p.r.InputFormat(); f != nil {
		pr.DurationUs = f.DurationUs
	}
	return pr
}

func (p *Player) release() {
	p.r.Disable()
	if err := p.stream.Close(); err != nil {
		p.log.Warn("Close stream: %v", err)
	}
}

func (p *Player) seek(positionUs int64) error {
	p.log.Info("Seeking to %.2fs", seconds(positionUs))
	if err := p.stream.SeekTo(positionUs); err != nil {
		return fmt.Errorf("seek to %dus: %w", positionUs, err)
	}
	if err := p.r.ResetPosition(positionUs); err != nil {
		return err
	}
	if !p.paused {
		p.state = StateBuffering
	}
	return nil
}

func seconds(us int64) float64 {
	return float64(us) / 1e6
}
