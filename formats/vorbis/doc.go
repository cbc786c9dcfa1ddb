// SPDX-License-Identifier: EPL-2.0

// Package vorbis plays Vorbis audio.
//
// This package uses github.com/jfreymuth/oggvorbis and
// github.com/jfreymuth/vorbis for decoding.
//
// # Ogg Files
//
// Open cuts an Ogg Vorbis file into audio/ogg chunks. Probe reads the
// identification header and the last granule position to learn the sample
// rate, the channel count and the duration. The decoder needs the stream
// headers from the first pages, so Ogg streams can only be played from the
// start; seeking elsewhere fails with source.ErrNotSeekable.
//
// StreamFamily decodes the chunks with an oggvorbis.Reader running behind a
// decoder.StreamDecoder.
//
// # Vorbis Packets
//
// PacketFamily decodes bare Vorbis packets (audio/vorbis), one packet per
// input buffer, as demuxed from Matroska and WebM. The identification,
// comment and setup headers come from Format.InitializationData, either as
// three entries or as one Xiph laced CodecPrivate blob (see
// ParseCodecPrivate). Encrypted packets are decrypted before decoding.
//
// Both families output interleaved 16-bit PCM.
//
// # Error Handling
//
//   - ErrNotOggVorbis: the file is not an Ogg Vorbis stream
//   - ErrInvalidCodecPrivate: the Vorbis headers are missing or malformed
//   - ErrProtectedStream: an Ogg stream carries DRM init data
package vorbis
