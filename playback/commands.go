// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"context"

	"github.com/ik5/audrender/renderer"
)

type (
	seekCmd   int64
	volumeCmd float32
	speedCmd  float32
	pauseCmd  bool
	stopCmd   struct{}
)

type request struct {
	cmd   any
	reply chan error
}

// Seek moves playback to positionUs.
func (p *Player) Seek(ctx context.Context, positionUs int64) error {
	if positionUs < 0 {
		return ErrInvalidPosition
	}
	return p.send(ctx, seekCmd(positionUs))
}

// SetVolume sets the output gain, 1 being unity.
func (p *Player) SetVolume(ctx context.Context, volume float32) error {
	return p.send(ctx, volumeCmd(volume))
}

// SetSpeed changes the playout speed.
func (p *Player) SetSpeed(ctx context.Context, speed float32) error {
	return p.send(ctx, speedCmd(speed))
}

// Pause stops the playback clock. Commands are still applied while paused.
func (p *Player) Pause(ctx context.Context) error {
	return p.send(ctx, pauseCmd(true))
}

// Resume undoes Pause.
func (p *Player) Resume(ctx context.Context) error {
	return p.send(ctx, pauseCmd(false))
}

// Stop makes Run return nil after releasing the renderer.
func (p *Player) Stop(ctx context.Context) error {
	return p.send(ctx, stopCmd{})
}

// send hands cmd to the Run goroutine and waits for it to be applied.
func (p *Player) send(ctx context.Context, cmd any) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case p.cmds <- req:
	case <-p.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) apply(cmd any) error {
	switch c := cmd.(type) {
	case seekCmd:
		return p.seek(int64(c))
	case volumeCmd:
		return p.r.HandleMessage(renderer.SetVolume(c))
	case speedCmd:
		return p.r.HandleMessage(renderer.SetPlaybackSpeed(c))
	case pauseCmd:
		p.paused = bool(c)
		if p.paused {
			p.state = StatePaused
			return p.setStarted(false)
		}
		p.state = StateBuffering
		return nil
	case stopCmd:
		p.stopped = true
		return nil
	}
	return nil
}
