// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/source"
)

// DefaultUnitSize is the size of the access units cut from the data chunk.
const DefaultUnitSize = 32 * 1024

// WAVE format tags.
const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// Info describes the PCM payload of a WAV file.
type Info struct {
	Format     *media.Format
	DataOffset int64
	DataSize   int64
	BlockAlign int
}

// BytesPerSecond returns the payload byte rate.
func (i *Info) BytesPerSecond() float64 {
	return float64(i.BlockAlign * i.Format.SampleRate)
}

// Probe reads the headers of the WAV file at path.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return probe(f)
}

func probe(r io.ReadSeeker) (*Info, error) {
	// IsValidFile rejects float and extensible files, so only the headers are
	// checked here.
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWavFile, err)
	}
	// Err hides io.EOF, so input that ends before a fmt chunk only shows up
	// as an empty header.
	if dec.NumChans < 1 && dec.SampleRate == 0 {
		return nil, fmt.Errorf("%w: no fmt chunk", ErrNotWavFile)
	}
	if dec.NumChans < 1 {
		return nil, ErrUnsupportedWavLayout
	}

	enc, err := encodingOf(dec.WavAudioFormat, int(dec.BitDepth))
	if err != nil {
		return nil, err
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavLayout, err)
	}
	if dec.PCMChunk == nil || dec.PCMSize <= 0 {
		return nil, ErrUnsupportedWavChunks
	}

	offset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locate data chunk: %w", err)
	}

	channels := int(dec.NumChans)
	rate := int(dec.SampleRate)
	blockAlign := channels * enc.BytesPerSample()
	if blockAlign == 0 || rate <= 0 {
		return nil, ErrUnsupportedWavLayout
	}

	format := media.NewAudioFormat(media.MimeAudioRaw, channels, rate).WithPCMEncoding(enc)
	format.MaxInputSize = DefaultUnitSize + blockAlign
	format.Bitrate = blockAlign * rate * 8
	format.DurationUs = int64(dec.PCMSize/blockAlign) * 1_000_000 / int64(rate)

	return &Info{
		Format:     format,
		DataOffset: offset,
		DataSize:   int64(dec.PCMSize),
		BlockAlign: blockAlign,
	}, nil
}

func encodingOf(tag uint16, bits int) (media.Encoding, error) {
	switch tag {
	case formatPCM, formatExtensible:
		if enc := media.EncodingForBitDepth(bits); enc != media.EncodingInvalid {
			return enc, nil
		}
	case formatIEEEFloat:
		if bits == 32 {
			return media.EncodingPCMFloat, nil
		}
	}
	return media.EncodingInvalid, fmt.Errorf("%w: format tag %d, %d bits", ErrUnsupportedEncoding, tag, bits)
}

// Open opens the WAV file at path as a seekable sample stream of audio/raw
// units.
func Open(path string, opts source.Options) (source.SampleStream, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}

	load := source.NewChunkedLoader(path, source.ChunkedConfig{
		Format:         info.Format,
		ChunkSize:      DefaultUnitSize,
		DataOffset:     info.DataOffset,
		DataSize:       info.DataSize,
		FrameSize:      info.BlockAlign,
		BytesPerSecond: info.BytesPerSecond(),
	})

	return source.NewQueue(path, load, opts.QueueOptions()...), nil
}

// Register adds the WAV extractor to r.
func Register(r *source.Registry) {
	r.Register("wav", Open)
	r.Register("wave", Open)
}
