// SPDX-License-Identifier: EPL-2.0

package media

import (
	"bytes"
	"fmt"
	"strings"
)

// Sample MIME types understood by the decoder families.
const (
	MimeAudioRaw    = "audio/raw"
	MimeAudioMPEG   = "audio/mpeg"
	MimeAudioOgg    = "audio/ogg"
	MimeAudioVorbis = "audio/vorbis"
	MimeAudioOpus   = "audio/opus"
)

// NoValue marks an unset integer field of a Format.
const NoValue = -1

// TimeUnset marks an unknown timestamp.
const TimeUnset int64 = -1 << 63

// Encoding describes how PCM samples are laid out in a buffer.
type Encoding int

const (
	EncodingInvalid Encoding = iota
	EncodingPCM8Bit
	EncodingPCM16Bit
	EncodingPCM24Bit
	EncodingPCM32Bit
	EncodingPCMFloat
)

// BytesPerSample returns the size of one sample of one channel.
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingPCM8Bit:
		return 1
	case EncodingPCM16Bit:
		return 2
	case EncodingPCM24Bit:
		return 3
	case EncodingPCM32Bit, EncodingPCMFloat:
		return 4
	default:
		return 0
	}
}

func (e Encoding) String() string {
	switch e {
	case EncodingPCM8Bit:
		return "pcm8"
	case EncodingPCM16Bit:
		return "pcm16"
	case EncodingPCM24Bit:
		return "pcm24"
	case EncodingPCM32Bit:
		return "pcm32"
	case EncodingPCMFloat:
		return "float"
	default:
		return "invalid"
	}
}

// EncodingForBitDepth maps an integer PCM bit depth to its Encoding.
func EncodingForBitDepth(bits int) Encoding {
	switch bits {
	case 8:
		return EncodingPCM8Bit
	case 16:
		return EncodingPCM16Bit
	case 24:
		return EncodingPCM24Bit
	case 32:
		return EncodingPCM32Bit
	default:
		return EncodingInvalid
	}
}

// Format describes one encoded stream segment. A Format is never mutated once it
// has been handed out; the With* helpers return modified copies.
type Format struct {
	ID             string
	SampleMimeType string
	Codecs         string
	Bitrate        int
	MaxInputSize   int
	ChannelCount   int
	SampleRate     int
	PCMEncoding    Encoding
	EncoderDelay   int
	EncoderPadding int
	DurationUs     int64

	// InitializationData holds codec specific setup data, e.g. Vorbis headers.
	InitializationData [][]byte

	// DrmInitData is non-nil when samples of this stream may be encrypted.
	DrmInitData *DrmInitData
}

// NewAudioFormat returns a Format for an audio stream with unset optional fields.
func NewAudioFormat(mimeType string, channels, sampleRate int) *Format {
	return &Format{
		SampleMimeType: mimeType,
		Bitrate:        NoValue,
		MaxInputSize:   NoValue,
		ChannelCount:   channels,
		SampleRate:     sampleRate,
		DurationUs:     TimeUnset,
	}
}

func (f *Format) clone() *Format {
	c := *f
	return &c
}

// WithEncoderDelay returns a copy of f with the given encoder delay and padding.
func (f *Format) WithEncoderDelay(delay, padding int) *Format {
	c := f.clone()
	c.EncoderDelay = delay
	c.EncoderPadding = padding
	return c
}

// WithDrmInitData returns a copy of f carrying the given DRM init data.
func (f *Format) WithDrmInitData(d *DrmInitData) *Format {
	c := f.clone()
	c.DrmInitData = d
	return c
}

// WithPCMEncoding returns a copy of f with the PCM encoding replaced.
func (f *Format) WithPCMEncoding(e Encoding) *Format {
	c := f.clone()
	c.PCMEncoding = e
	return c
}

// IsAudio reports whether the format carries an audio MIME type.
func (f *Format) IsAudio() bool {
	return f != nil && strings.HasPrefix(f.SampleMimeType, "audio/")
}

// InitializationDataEqual reports whether f and o carry the same codec setup data.
func (f *Format) InitializationDataEqual(o *Format) bool {
	if len(f.InitializationData) != len(o.InitializationData) {
		return false
	}
	for i := range f.InitializationData {
		if !bytes.Equal(f.InitializationData[i], o.InitializationData[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether two formats describe the same stream.
func (f *Format) Equal(o *Format) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.ID == o.ID &&
		f.SampleMimeType == o.SampleMimeType &&
		f.Codecs == o.Codecs &&
		f.Bitrate == o.Bitrate &&
		f.MaxInputSize == o.MaxInputSize &&
		f.ChannelCount == o.ChannelCount &&
		f.SampleRate == o.SampleRate &&
		f.PCMEncoding == o.PCMEncoding &&
		f.EncoderDelay == o.EncoderDelay &&
		f.EncoderPadding == o.EncoderPadding &&
		f.DurationUs == o.DurationUs &&
		f.InitializationDataEqual(o) &&
		f.DrmInitData.Equal(o.DrmInitData)
}

func (f *Format) String() string {
	if f == nil {
		return "<nil format>"
	}
	return fmt.Sprintf("Format(%s, %s, %s, %d ch, %d Hz, %s, drm=%t)",
		f.ID, f.SampleMimeType, f.Codecs, f.ChannelCount, f.SampleRate, f.PCMEncoding,
		f.DrmInitData != nil)
}
