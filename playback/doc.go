// SPDX-License-Identifier: EPL-2.0

// Package playback drives a renderer.Renderer through a stream.
//
// A Player owns the renderer and its stream for the duration of Run. Run
// enables and starts the renderer, then calls Render once per tick until the
// renderer reports the end of the stream. Seek, SetVolume, SetSpeed, Pause,
// Resume and Stop may be called from any goroutine; they are applied between
// ticks on the goroutine running Run, which is the only one touching the
// renderer.
//
// When the renderer is not ready the player stops it so the sink position
// does not run ahead of decoded data, and restarts it once data is
// available again.
//
// With WithManualClock the player advances the clock by one tick interval per
// iteration instead of waiting for a ticker, rendering as fast as decoding
// allows.
package playback
