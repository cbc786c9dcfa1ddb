// SPDX-License-Identifier: EPL-2.0

// Package mp3 plays MPEG audio layer III files.
//
// This package uses github.com/hajimehoshi/go-mp3 for decoding.
//
// # Extractor
//
// Open cuts the file into fixed size audio/mpeg chunks, skipping ID3v2 and
// ID3v1 tags. Probe decodes the frame headers once to learn the sample rate
// and the duration; the average byte rate derived from them maps seek
// positions to file offsets. After a seek the first chunk is trimmed to the
// next frame header found by FindFrameSync.
//
// # Decoder Family
//
// Family feeds the chunks, in order, to a go-mp3 decoder running behind a
// decoder.StreamDecoder. Output is interleaved 16-bit stereo at the stream's
// sample rate; go-mp3 duplicates mono streams into both channels. The output
// format becomes known once the first frame header was decoded.
//
// Encrypted MP3 streams are not supported.
//
// # Error Handling
//
//   - ErrNotMP3File: no MPEG audio frame could be decoded
//   - ErrProtectedStream: the format carries DRM init data
package mp3
