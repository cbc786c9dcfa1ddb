// SPDX-License-Identifier: EPL-2.0

// Package audio provides pull based float PCM processing.
//
// A Source yields interleaved float32 samples in [-1, 1]. SliceSource serves
// samples held in memory, ChannelMixer changes the channel count and
// Resampler changes the sample rate with cubic interpolation. Convert chains
// the stages a target layout needs:
//
//	out := audio.Convert(audio.NewSliceSource(samples, 44100, 2), 16000, 1)
//	pcm, err := audio.Collect16(out, 4096)
//
// The WAV sink uses this chain to write renderer output at a fixed rate and
// channel count.
//
// # Channel Mixing
//
// Downmixing to mono averages all channels. Mono input is copied to every
// output channel. Other layouts keep the leading channels and pad missing
// ones with silence.
//
// # Resampling
//
// The Resampler keeps a four frame window per channel and interpolates
// between its middle frames. When downsampling a one pole low-pass filter
// runs on the input first. It works well for speech and monitoring output;
// it is not a band limited resampler.
//
// # Errors
//
// ReadSamples returns ErrInvalidDstSize when dst does not hold whole frames,
// and io.EOF together with the last samples once the source is exhausted.
package audio
