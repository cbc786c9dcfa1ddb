// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes WAV files.
//
// Headers are parsed with github.com/go-audio/wav. The data chunk is never
// decoded by the extractor: it is cut into frame aligned audio/raw units that
// keep the file's own sample encoding, and Family turns them into 16-bit PCM
// on the decoder side.
//
// # Supported Formats
//
//   - Integer PCM with 8, 16, 24 or 32 bits per sample
//   - IEEE float with 32 bits per sample
//   - WAVE_FORMAT_EXTENSIBLE wrapping either of the above
//   - 1 to 8 channels at any sample rate
//
// Chunks between fmt and data (LIST, fact, padding) are skipped.
//
// # Reading
//
// Open returns a seekable source.SampleStream:
//
//	s, err := wav.Open("audio.wav", source.Options{})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
// Register adds the extractor to a source.Registry under "wav" and "wave".
// Probe only inspects the headers and reports where the payload lives.
//
// Seeks land on the first frame at or after the requested position, so the
// first unit after a seek is never decode-only.
//
// # Decoding
//
// Family is the renderer.DecoderFamily for audio/raw. Its decoder converts
// every supported encoding to 16-bit little endian PCM with the channel count
// and rate unchanged. Encrypted units are decrypted with the crypto context
// handed to CreateDecoder.
//
// # Writing
//
// WritePCM16 writes a canonical 44 byte header followed by interleaved 16-bit
// samples. WriteWAV16 is the mono shorthand:
//
//	samples := []int16{100, -100, 200, -200}
//	err := wav.WriteWAV16(file, 8000, samples)
//
// # Errors
//
//   - ErrNotWavFile: the input has no RIFF/WAVE header
//   - ErrUnsupportedWavLayout: no channels, no rate or a broken chunk list
//   - ErrUnsupportedEncoding: a format tag or bit depth that cannot be decoded
//   - ErrUnsupportedWavChunks: the file has no data chunk
package wav
