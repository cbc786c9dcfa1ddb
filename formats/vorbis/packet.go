// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"fmt"

	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/renderer"
	"github.com/ik5/audrender/utils"
	"github.com/jfreymuth/vorbis"
)

const (
	packetFamilyName = "vorbis"
	defaultPacketMax = 8192
)

// PacketFamily decodes raw Vorbis packets (audio/vorbis) as carried by
// Matroska. The three Vorbis headers come from the format's
// InitializationData, either already split or as one Xiph laced blob.
type PacketFamily struct{}

func (PacketFamily) Name() string { return packetFamilyName }

func (PacketFamily) SupportsFormat(f *media.Format) renderer.FormatSupport {
	if f == nil || f.SampleMimeType != media.MimeAudioVorbis {
		return renderer.FormatUnsupportedType
	}
	if _, err := headersOf(f); err != nil {
		return renderer.FormatUnsupportedSubtype
	}
	if f.ChannelCount > maxChannels {
		return renderer.FormatExceedsCapabilities
	}
	return renderer.FormatHandled
}

func (PacketFamily) CreateDecoder(f *media.Format, crypto drm.CryptoContext) (decoder.Decoder, error) {
	headers, err := headersOf(f)
	if err != nil {
		return nil, err
	}

	codec := &packetCodec{}
	for i, h := range headers {
		if err := codec.dec.ReadHeader(h); err != nil {
			return nil, fmt.Errorf("read vorbis header %d: %w", i, err)
		}
	}
	if !codec.dec.HeadersRead() {
		return nil, fmt.Errorf("%w: headers incomplete", ErrInvalidCodecPrivate)
	}
	codec.buf = make([]float32, codec.dec.BufferSize())

	inputSize := f.MaxInputSize
	if inputSize <= 0 {
		inputSize = defaultPacketMax
	}

	return &packetDecoder{
		SimpleDecoder: decoder.NewSimpleDecoder(packetFamilyName, decoder.NewDecryptingCodec(crypto, codec),
			inputSlots, outputSlots, inputSize),
		output: media.NewAudioFormat(media.MimeAudioRaw, codec.dec.Channels(), codec.dec.SampleRate()).
			WithPCMEncoding(media.EncodingPCM16Bit),
	}, nil
}

func (PacketFamily) OutputFormat(d decoder.Decoder) *media.Format {
	if pd, ok := d.(*packetDecoder); ok {
		return pd.output
	}
	return nil
}

// CanKeepCodec keeps the decoder when the stream uses the same headers.
func (PacketFamily) CanKeepCodec(old, next *media.Format) bool {
	return old.InitializationDataEqual(next)
}

func headersOf(f *media.Format) ([][]byte, error) {
	switch len(f.InitializationData) {
	case headerCount:
		return f.InitializationData, nil
	case 1:
		return ParseCodecPrivate(f.InitializationData[0])
	default:
		return nil, fmt.Errorf("%w: %d initialization entries", ErrInvalidCodecPrivate, len(f.InitializationData))
	}
}

type packetDecoder struct {
	*decoder.SimpleDecoder
	output *media.Format
}

// packetCodec decodes one Vorbis audio packet per input buffer.
type packetCodec struct {
	dec vorbis.Decoder
	buf []float32
}

func (c *packetCodec) Decode(in *media.InputBuffer, out *media.OutputBuffer, reset bool) error {
	if reset {
		c.dec.Clear()
	}

	pcm, err := c.dec.DecodeInto(in.Data, c.buf)
	if err != nil {
		return err
	}
	// The first packet after a reset only primes the overlap window.
	out.Data = utils.AppendFloat32AsPCM16(out.Data[:0], pcm)
	return nil
}
