// SPDX-License-Identifier: EPL-2.0

// Package audrender renders audio files through a decoder driven pipeline.
//
// The pipeline is built from the subpackages:
//
//   - source: extractors turn a file into a stream of formats and samples
//   - drm: ClearKey sessions decrypt protected samples
//   - decoder: codecs behind a non-blocking input/output buffer queue
//   - renderer: the controller that moves samples from the stream through the
//     decoder into the sink and tracks the playback position
//   - sink: the clocked output that records what was played as WAV
//   - playback: the tick loop driving a renderer
//
// # Supported Formats
//
//   - WAV and AIFF (integer and float PCM) via formats/wav and formats/aiff
//   - MP3 via formats/mp3
//   - Ogg Vorbis via formats/vorbis
//   - WebM/Matroska with Vorbis or PCM audio, optionally ClearKey encrypted,
//     via formats/webm
//
// # Quick Start
//
// Render wires everything from a config.Config:
//
//	cfg := config.Defaults()
//	cfg.Input = "song.webm"
//	cfg.Output = "song.wav"
//	cfg.OutputRate = 8000
//	cfg.Mono = true
//
//	res, err := audrender.Render(ctx, cfg)
//
// Without cfg.Realtime the sink clock is advanced by the player, so rendering
// runs as fast as decoding allows while position tracking, buffering and
// end of stream handling behave exactly as in real time playback.
//
// # Custom Pipelines
//
// For more control, assemble the pieces directly:
//
//	stream, _ := audrender.Extractors().Open("song.mp3", source.Options{})
//	clock := sink.NewManualClock()
//	out := sink.NewWavSink(sink.WithOutput(f), sink.WithClock(clock))
//	r := renderer.New(audrender.Families(), out)
//	err := playback.New(r, stream, playback.WithManualClock(clock)).Run(ctx)
package audrender
