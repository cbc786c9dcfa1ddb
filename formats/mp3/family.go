// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/renderer"
)

const (
	familyName   = "mp3"
	inputSlots   = 4
	outputSlots  = 8
	outputChunk  = 4608 // 1152 stereo frames of 16-bit PCM
	outputChans  = 2
	maxInputSize = 8192
)

// Family decodes audio/mpeg streams with go-mp3. Output is always 16-bit
// stereo at the stream's sample rate.
type Family struct {
	// open replaces the go-mp3 opener in tests.
	open decoder.StreamOpener
}

func (Family) Name() string { return familyName }

func (Family) SupportsFormat(f *media.Format) renderer.FormatSupport {
	if f == nil || f.SampleMimeType != media.MimeAudioMPEG {
		return renderer.FormatUnsupportedType
	}
	if f.DrmInitData != nil {
		return renderer.FormatUnsupportedDrm
	}
	if f.ChannelCount > outputChans {
		return renderer.FormatExceedsCapabilities
	}
	return renderer.FormatHandled
}

func (fam Family) CreateDecoder(f *media.Format, crypto drm.CryptoContext) (decoder.Decoder, error) {
	if crypto != nil || f.DrmInitData != nil {
		return nil, ErrProtectedStream
	}

	open := fam.open
	if open == nil {
		open = openStream
	}

	inputSize := f.MaxInputSize
	if inputSize <= 0 {
		inputSize = maxInputSize
	}
	return decoder.NewStreamDecoder(familyName, open, inputSlots, outputSlots, inputSize, outputChunk), nil
}

// OutputFormat is known once the first frame header was decoded.
func (Family) OutputFormat(d decoder.Decoder) *media.Format {
	sd, ok := d.(*decoder.StreamDecoder)
	if !ok {
		return nil
	}
	stream, ok := sd.Stream()
	if !ok {
		return nil
	}
	return media.NewAudioFormat(media.MimeAudioRaw, stream.Channels(), stream.SampleRate()).
		WithPCMEncoding(media.EncodingPCM16Bit)
}

// CanKeepCodec keeps the running decoder when the stream parameters match;
// MPEG frames are self-contained.
func (Family) CanKeepCodec(old, next *media.Format) bool {
	return old.SampleRate == next.SampleRate && old.ChannelCount == next.ChannelCount
}

// mp3Reader is an interface for gomp3.Decoder to allow testing
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

// pcmStream adapts go-mp3 to decoder.PCMStream.
type pcmStream struct {
	dec mp3Reader
}

func (s *pcmStream) Read(p []byte) (int, error) { return s.dec.Read(p) }
func (s *pcmStream) SampleRate() int            { return s.dec.SampleRate() }

// go-mp3 outputs stereo, duplicating mono channels
func (s *pcmStream) Channels() int { return outputChans }

func openStream(r io.Reader) (decoder.PCMStream, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return &pcmStream{dec: dec}, nil
}
