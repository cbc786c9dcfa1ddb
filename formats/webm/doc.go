// SPDX-License-Identifier: EPL-2.0

// Package webm extracts audio from Matroska and WebM files.
//
// Parsing is done by github.com/remko/go-mkvparse. Probe reads the track
// list and picks the first audio track with a known codec:
//
//   - A_VORBIS becomes audio/vorbis; the Xiph laced CodecPrivate is split
//     into the three Vorbis headers for vorbis.PacketFamily
//   - A_PCM/INT/LIT and A_PCM/FLOAT/IEEE become audio/raw
//   - A_MPEG/L3 becomes audio/mpeg
//   - A_OPUS becomes audio/opus
//
// Open streams the frames of that track. Laced blocks (Xiph, EBML and fixed
// size) are split into one sample per frame, spaced by the track's default
// duration.
//
// # Encryption
//
// A ContentEncKeyID on the track turns into ClearKey DrmInitData on the
// format. Every frame of such a track starts with a signal byte; encrypted
// frames carry an 8 byte IV and optionally a partition table, which are
// stripped and passed on as the sample's CryptoInfo.
//
// # Seeking
//
// The file is reparsed from the start. The frame just before the seek
// position is kept so that decoders can prime themselves; the stream marks it
// decode-only.
package webm
