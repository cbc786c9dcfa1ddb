// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// ChannelMixer maps a source to a different channel count. Downmixing to mono
// averages all channels; mono sources are copied to every output channel; other
// layouts keep the first channels and pad missing ones with silence.
type ChannelMixer struct {
	src      Source
	channels int
	tmp      []float32
}

// NewMonoMixer returns a ChannelMixer that averages src down to one channel.
func NewMonoMixer(src Source) *ChannelMixer {
	return NewChannelMixer(src, 1)
}

func NewChannelMixer(src Source, channels int) *ChannelMixer {
	return &ChannelMixer{
		src:      src,
		channels: channels,
		tmp:      make([]float32, 4096),
	}
}

func (m *ChannelMixer) SampleRate() int { return m.src.SampleRate() }
func (m *ChannelMixer) Channels() int   { return m.channels }
func (m *ChannelMixer) BufSize() int    { return m.src.BufSize() }

func (m *ChannelMixer) Close() error {
	if err := m.src.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// ReadSamples fills dst with whole output frames.
func (m *ChannelMixer) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	in := m.src.Channels()
	if in == m.channels {
		return m.src.ReadSamples(dst)
	}
	if len(dst)%m.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	frames := len(dst) / m.channels
	need := frames * in
	if cap(m.tmp) < need {
		m.tmp = make([]float32, max(need, 8192))
	}
	m.tmp = m.tmp[:need]

	n, err := m.src.ReadSamples(m.tmp)
	got := n / in

	switch {
	case m.channels == 1:
		inv := float32(1) / float32(in)
		for f := range got {
			var sum float32
			for c := range in {
				sum += m.tmp[f*in+c]
			}
			dst[f] = sum * inv
		}
	case in == 1:
		for f := range got {
			for c := range m.channels {
				dst[f*m.channels+c] = m.tmp[f]
			}
		}
	default:
		for f := range got {
			for c := range m.channels {
				var v float32
				if c < in {
					v = m.tmp[f*in+c]
				}
				dst[f*m.channels+c] = v
			}
		}
	}

	return got * m.channels, err
}
