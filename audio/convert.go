// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audrender/utils"
)

// Convert builds the processing chain turning src into rate Hz with channels
// channels. Stages that would not change anything are left out; channel
// mapping runs before resampling so the resampler works on fewer channels when
// downmixing.
func Convert(src Source, rate, channels int) Source {
	out := src
	if channels > 0 && channels != out.Channels() {
		out = NewChannelMixer(out, channels)
	}
	if rate > 0 && rate != out.SampleRate() {
		out = NewResampler(out, rate)
	}
	return out
}

// Collect16 reads src to the end and returns its samples as 16-bit PCM.
func Collect16(src Source, bufferSize int) ([]int16, error) {
	if ch := src.Channels(); bufferSize%ch != 0 {
		bufferSize -= bufferSize % ch
		if bufferSize == 0 {
			bufferSize = ch
		}
	}

	var pcm16 []int16
	buf := make([]float32, bufferSize)

	for {
		n, err := src.ReadSamples(buf)
		for i := range n {
			pcm16 = append(pcm16, utils.Float32ToInt16(buf[i]))
		}

		if errors.Is(err, io.EOF) {
			return pcm16, nil
		}
		if err != nil {
			return pcm16, fmt.Errorf("%w", err)
		}
	}
}
