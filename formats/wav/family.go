// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"math"

	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/renderer"
	"github.com/ik5/audrender/utils"
)

const (
	familyName     = "raw"
	maxChannels    = 8
	decoderSlots   = 4
	defaultMaxSize = DefaultUnitSize
)

// Family decodes audio/raw samples of any integer or float PCM encoding into
// 16-bit PCM.
type Family struct{}

func (Family) Name() string { return familyName }

func (Family) SupportsFormat(f *media.Format) renderer.FormatSupport {
	if f == nil || f.SampleMimeType != media.MimeAudioRaw {
		return renderer.FormatUnsupportedType
	}
	if f.PCMEncoding.BytesPerSample() == 0 {
		return renderer.FormatUnsupportedSubtype
	}
	if f.ChannelCount < 1 || f.ChannelCount > maxChannels || f.SampleRate <= 0 {
		return renderer.FormatExceedsCapabilities
	}
	return renderer.FormatHandled
}

func (Family) CreateDecoder(f *media.Format, crypto drm.CryptoContext) (decoder.Decoder, error) {
	if f.PCMEncoding.BytesPerSample() == 0 {
		return nil, ErrUnsupportedEncoding
	}

	inputSize := f.MaxInputSize
	if inputSize <= 0 {
		inputSize = defaultMaxSize
	}

	codec := decoder.NewDecryptingCodec(crypto, pcmCodec{encoding: f.PCMEncoding})
	return &rawDecoder{
		SimpleDecoder: decoder.NewSimpleDecoder(familyName, codec, decoderSlots, decoderSlots, inputSize),
		output:        media.NewAudioFormat(media.MimeAudioRaw, f.ChannelCount, f.SampleRate).WithPCMEncoding(media.EncodingPCM16Bit),
	}, nil
}

func (Family) OutputFormat(d decoder.Decoder) *media.Format {
	if rd, ok := d.(*rawDecoder); ok {
		return rd.output
	}
	return nil
}

// CanKeepCodec reports true when only metadata such as the encoder delay changed.
func (Family) CanKeepCodec(old, next *media.Format) bool {
	return old.PCMEncoding == next.PCMEncoding &&
		old.ChannelCount == next.ChannelCount &&
		old.SampleRate == next.SampleRate
}

type rawDecoder struct {
	*decoder.SimpleDecoder
	output *media.Format
}

// pcmCodec rewrites one chunk of PCM as 16-bit little endian.
type pcmCodec struct {
	encoding media.Encoding
}

func (c pcmCodec) Decode(in *media.InputBuffer, out *media.OutputBuffer, _ bool) error {
	out.Data = ToPCM16(out.Data[:0], in.Data, c.encoding)
	return nil
}

// ToPCM16 appends the samples of src, encoded as enc, to dst as 16-bit little
// endian PCM. A trailing partial sample is ignored.
func ToPCM16(dst, src []byte, enc media.Encoding) []byte {
	size := enc.BytesPerSample()
	if size == 0 {
		return dst
	}

	for i := 0; i+size <= len(src); i += size {
		var v int16
		switch enc {
		case media.EncodingPCM8Bit:
			// WAV stores 8-bit samples unsigned
			v = utils.IntToPCM16(int(src[i])-128, 8)
		case media.EncodingPCM16Bit:
			v = int16(binary.LittleEndian.Uint16(src[i:]))
		case media.EncodingPCM24Bit:
			s := int32(src[i]) | int32(src[i+1])<<8 | int32(int8(src[i+2]))<<16
			v = utils.IntToPCM16(int(s), 24)
		case media.EncodingPCM32Bit:
			v = utils.IntToPCM16(int(int32(binary.LittleEndian.Uint32(src[i:]))), 32)
		case media.EncodingPCMFloat:
			v = utils.Float32ToInt16(math.Float32frombits(binary.LittleEndian.Uint32(src[i:])))
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
	}

	return dst
}
