// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"fmt"
	"log"

	"github.com/ik5/audrender/audio"
)

// Example_convert downmixes and resamples one second of stereo audio.
func Example_convert() {
	samples := make([]float32, 2*44100)
	src := audio.NewSliceSource(samples, 44100, 2)

	out := audio.Convert(src, 16000, 1)
	fmt.Printf("%d Hz, %d channel(s)\n", out.SampleRate(), out.Channels())
	// Output: 16000 Hz, 1 channel(s)
}

// Example_monoMixer averages the channels of each frame.
func Example_monoMixer() {
	src := audio.NewSliceSource([]float32{0.2, 0.4, -1, 1}, 8000, 2)
	mono := audio.NewMonoMixer(src)

	buf := make([]float32, 2)
	n, _ := mono.ReadSamples(buf)
	fmt.Printf("%.1f\n", buf[:n])
	// Output: [0.3 0.0]
}

// ExampleCollect16 turns float samples into 16-bit PCM.
func ExampleCollect16() {
	src := audio.NewSliceSource([]float32{0, 0.5, -0.5, 1}, 8000, 1)

	pcm, err := audio.Collect16(src, 4096)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(pcm)
	// Output: [0 16383 -16383 32767]
}
