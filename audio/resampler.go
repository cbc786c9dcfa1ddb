// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audrender/utils"
)

// Resampler streams src at another sample rate using cubic interpolation over
// a four frame window. A one pole low-pass filter runs on the input when
// downsampling. Channel count is preserved.
type Resampler struct {
	src      Source
	dstRate  int
	ratio    float64 // source frames per output frame
	channels int

	// window[0] = t-1, window[1] = t0, window[2] = t+1, window[3] = t+2
	window [4][]float32
	valid  [4]bool
	primed bool

	pos    float64
	srcBuf []float32
	eof    bool

	lowPass     bool
	filterAlpha float32
	filterState []float32
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	ratio := float64(src.SampleRate()) / float64(dstRate)

	r := &Resampler{
		src:         src,
		dstRate:     dstRate,
		ratio:       ratio,
		channels:    channels,
		srcBuf:      make([]float32, channels),
		lowPass:     ratio > 1.0,
		filterAlpha: 0.5,
		filterState: make([]float32, channels),
	}
	for i := range r.window {
		r.window[i] = make([]float32, channels)
	}

	return r
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// readFrame reads one source frame into dst. It reports whether a frame was
// read and io.EOF once the source is exhausted.
func (r *Resampler) readFrame(dst []float32) (bool, error) {
	n, err := r.src.ReadSamples(r.srcBuf)
	got := n > 0
	if got {
		copy(dst, r.srcBuf[:n])
	}
	if errors.Is(err, io.EOF) {
		r.eof = true
		return got, io.EOF
	}
	if err != nil {
		return got, fmt.Errorf("%w", err)
	}
	return got, nil
}

func (r *Resampler) filter(frame []float32) {
	if !r.lowPass {
		return
	}
	for c := range frame {
		frame[c] = r.filterAlpha*frame[c] + (1-r.filterAlpha)*r.filterState[c]
		r.filterState[c] = frame[c]
	}
}

// prime fills the window. Missing trailing frames repeat the last frame read.
func (r *Resampler) prime() error {
	r.primed = true

	for i := range r.window {
		got, err := r.readFrame(r.window[i])
		if got {
			r.valid[i] = true
			if i == 0 && r.lowPass {
				copy(r.filterState, r.window[0])
			}
		}
		if errors.Is(err, io.EOF) {
			if i == 0 {
				return io.EOF
			}
			for j := i; j < len(r.window); j++ {
				copy(r.window[j], r.window[i-1])
				r.valid[j] = true
			}
			return nil
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// advance shifts the window by one frame.
func (r *Resampler) advance() error {
	if r.eof {
		return io.EOF
	}

	copy(r.window[0], r.window[1])
	copy(r.window[1], r.window[2])
	copy(r.window[2], r.window[3])
	r.valid[0], r.valid[1], r.valid[2] = r.valid[1], r.valid[2], r.valid[3]

	got, err := r.readFrame(r.window[3])
	r.valid[3] = got
	if got {
		r.filter(r.window[3])
	}
	if errors.Is(err, io.EOF) && got {
		return nil
	}
	return err
}

func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		if err := r.prime(); err != nil {
			return 0, err
		}
	}

	written := 0
	frames := len(dst) / r.channels

	for written < frames {
		for r.pos >= 1.0 {
			r.pos -= 1.0
			if err := r.advance(); err != nil {
				return r.partial(written, err)
			}
		}

		if !r.valid[1] || !r.valid[2] {
			return r.partial(written, io.EOF)
		}

		alpha := float32(r.pos)
		for c := range r.channels {
			y1 := r.window[1][c]
			y2 := r.window[2][c]
			y0, y3 := y1, y2
			if r.valid[0] {
				y0 = r.window[0][c]
			}
			if r.valid[3] {
				y3 = r.window[3][c]
			}
			dst[written*r.channels+c] = utils.CatmullRom(y0, y1, y2, y3, alpha)
		}

		written++
		r.pos += r.ratio
	}

	return written * r.channels, nil
}

func (r *Resampler) partial(written int, err error) (int, error) {
	if written == 0 && errors.Is(err, io.EOF) {
		return 0, io.EOF
	}
	return written * r.channels, err
}
