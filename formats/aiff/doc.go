// SPDX-License-Identifier: EPL-2.0

// Package aiff provides an AIFF (Audio Interchange File Format) extractor.
//
// This package uses github.com/go-audio/aiff to parse AIFF files.
// AIFF is Apple's standard audio file format, commonly used on macOS.
//
// # Supported Formats
//
//   - Big endian integer PCM with 8, 16, 24 or 32 bits per sample
//   - Any channel count and sample rate
//
// # Reading AIFF Files
//
// Open returns a seekable source.SampleStream. Samples are converted to
// 16-bit little endian PCM while loading, so the stream carries audio/raw
// units that the raw decoder family in package wav plays directly:
//
//	s, err := aiff.Open("audio.aif", source.Options{})
//	if err != nil {
//	    // Handle error
//	}
//	defer s.Close()
//
// Units hold UnitFrames frames. Seeking reads and discards frames up to the
// first frame at or after the requested position.
//
// # Error Handling
//
//   - ErrNotAiffFile: the input is not a valid AIFF file
//   - ErrUnsupportedBitDepth: samples are not 8, 16, 24 or 32 bits wide
//   - ErrUnsupportedAiffLayout: no channels or no sample rate
package aiff
