// SPDX-License-Identifier: EPL-2.0

package webm

import (
	"fmt"

	"github.com/ik5/audrender/formats/vorbis"
	"github.com/ik5/audrender/media"
)

// Matroska codec ids of the audio tracks this extractor maps to formats.
const (
	CodecVorbis   = "A_VORBIS"
	CodecOpus     = "A_OPUS"
	CodecMP3      = "A_MPEG/L3"
	CodecPCMInt   = "A_PCM/INT/LIT"
	CodecPCMFloat = "A_PCM/FLOAT/IEEE"
)

const (
	trackTypeAudio = 2
	mimeWebMAudio  = "audio/webm"
)

// track collects a TrackEntry.
type track struct {
	number            uint64
	trackType         int64
	codecID           string
	codecPrivate      []byte
	sampleRate        float64
	channels          int
	bitDepth          int
	defaultDurationNs int64
	codecDelayNs      int64
	encrypted         bool
	keyID             []byte
}

// isAudio reports whether the track is an audio track with a codec a
// format can be built for.
func (t *track) isAudio() bool {
	if t.trackType != trackTypeAudio {
		return false
	}
	switch t.codecID {
	case CodecVorbis, CodecOpus, CodecMP3, CodecPCMInt, CodecPCMFloat:
		return true
	}
	return false
}

// format builds the sample format of the track.
func (t *track) format() (*media.Format, error) {
	channels := t.channels
	if channels == 0 {
		channels = 1
	}
	rate := int(t.sampleRate)
	if rate <= 0 {
		return nil, fmt.Errorf("%w: track %d has no sampling frequency", ErrInvalidTrack, t.number)
	}

	var f *media.Format
	switch t.codecID {
	case CodecVorbis:
		headers, err := vorbis.ParseCodecPrivate(t.codecPrivate)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", t.number, err)
		}
		f = media.NewAudioFormat(media.MimeAudioVorbis, channels, rate)
		f.InitializationData = headers
	case CodecOpus:
		f = media.NewAudioFormat(media.MimeAudioOpus, channels, rate)
		if len(t.codecPrivate) > 0 {
			f.InitializationData = [][]byte{t.codecPrivate}
		}
	case CodecMP3:
		f = media.NewAudioFormat(media.MimeAudioMPEG, channels, rate)
	case CodecPCMInt:
		enc := media.EncodingForBitDepth(t.bitDepth)
		if enc == media.EncodingInvalid {
			return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidTrack, t.bitDepth)
		}
		f = media.NewAudioFormat(media.MimeAudioRaw, channels, rate).WithPCMEncoding(enc)
	case CodecPCMFloat:
		if t.bitDepth != 32 {
			return nil, fmt.Errorf("%w: unsupported float bit depth %d", ErrInvalidTrack, t.bitDepth)
		}
		f = media.NewAudioFormat(media.MimeAudioRaw, channels, rate).WithPCMEncoding(media.EncodingPCMFloat)
	default:
		return nil, fmt.Errorf("%w: codec %s", ErrInvalidTrack, t.codecID)
	}
	f.ID = fmt.Sprint(t.number)
	f.Codecs = t.codecID

	if t.codecDelayNs > 0 {
		f = f.WithEncoderDelay(int(t.codecDelayNs*int64(rate)/1_000_000_000), 0)
	}

	if t.encrypted {
		init, err := t.drmInitData()
		if err != nil {
			return nil, err
		}
		f = f.WithDrmInitData(init)
	}
	return f, nil
}

// drmInitData announces the track's content key for ClearKey.
func (t *track) drmInitData() (*media.DrmInitData, error) {
	var kid media.KeyID
	if len(t.keyID) != len(kid) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyID, len(t.keyID))
	}
	copy(kid[:], t.keyID)

	return &media.DrmInitData{
		SchemeType: media.SchemeCENC,
		Schemes: []media.SchemeData{{
			UUID:     media.ClearKeyUUID,
			MimeType: mimeWebMAudio,
			KeyIDs:   []media.KeyID{kid},
			Data:     append([]byte(nil), t.keyID...),
		}},
	}, nil
}
