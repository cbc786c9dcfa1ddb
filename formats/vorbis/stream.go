// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"io"

	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/renderer"
	"github.com/ik5/audrender/utils"
	"github.com/jfreymuth/oggvorbis"
)

const (
	streamFamilyName = "oggvorbis"
	inputSlots       = 4
	outputSlots      = 8
	outputChunk      = 8192
	maxChannels      = 8
)

// StreamFamily decodes whole Ogg Vorbis byte streams (audio/ogg) with
// oggvorbis. The container framing is parsed by the decoder itself.
type StreamFamily struct {
	// open replaces the oggvorbis opener in tests.
	open decoder.StreamOpener
}

func (StreamFamily) Name() string { return streamFamilyName }

func (StreamFamily) SupportsFormat(f *media.Format) renderer.FormatSupport {
	if f == nil || f.SampleMimeType != media.MimeAudioOgg {
		return renderer.FormatUnsupportedType
	}
	if f.DrmInitData != nil {
		return renderer.FormatUnsupportedDrm
	}
	if f.ChannelCount > maxChannels {
		return renderer.FormatExceedsCapabilities
	}
	return renderer.FormatHandled
}

func (fam StreamFamily) CreateDecoder(f *media.Format, crypto drm.CryptoContext) (decoder.Decoder, error) {
	if crypto != nil || f.DrmInitData != nil {
		return nil, ErrProtectedStream
	}

	open := fam.open
	if open == nil {
		open = openOggStream
	}

	inputSize := f.MaxInputSize
	if inputSize <= 0 {
		inputSize = outputChunk
	}
	return decoder.NewStreamDecoder(streamFamilyName, open, inputSlots, outputSlots, inputSize, outputChunk), nil
}

func (StreamFamily) OutputFormat(d decoder.Decoder) *media.Format {
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

// CanKeepCodec never keeps the decoder: a new Ogg stream starts with its own
// headers.
func (StreamFamily) CanKeepCodec(_, _ *media.Format) bool { return false }

// oggReader is an interface for oggvorbis.Reader to allow testing
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
}

// oggStream adapts oggvorbis to decoder.PCMStream.
type oggStream struct {
	dec      oggReader
	frameBuf []float32
}

func newOggStream(dec oggReader) *oggStream {
	return &oggStream{dec: dec}
}

func (s *oggStream) SampleRate() int { return s.dec.SampleRate() }
func (s *oggStream) Channels() int   { return s.dec.Channels() }

// Read fills p with whole frames of 16-bit PCM.
func (s *oggStream) Read(p []byte) (int, error) {
	channels := s.dec.Channels()
	if channels < 1 {
		return 0, io.ErrUnexpectedEOF
	}

	// oggvorbis.Reader.Read() counts values (frames * channels)
	values := len(p) / 2 / channels * channels
	if values == 0 {
		return 0, io.ErrShortBuffer
	}
	if cap(s.frameBuf) < values {
		s.frameBuf = make([]float32, values)
	}
	s.frameBuf = s.frameBuf[:values]

	n, err := s.dec.Read(s.frameBuf)
	out := utils.AppendFloat32AsPCM16(p[:0], s.frameBuf[:n])
	return len(out), err
}

func openOggStream(r io.Reader) (decoder.PCMStream, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, err
	}
	return newOggStream(dec), nil
}
