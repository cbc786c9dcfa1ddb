// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/source"
	"github.com/ik5/audrender/utils"
)

// UnitFrames is the number of frames per access unit.
const UnitFrames = 4096

// Info describes an AIFF file.
type Info struct {
	// Format is the audio/raw 16-bit format of the produced units.
	Format   *media.Format
	BitDepth int
	Frames   int64
}

// Probe reads the headers of the AIFF file at path.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, _, err := probe(f)
	return info, err
}

func probe(r io.ReadSeeker) (*Info, *aiff.Decoder, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, nil, ErrNotAiffFile
	}

	// Read file info
	dec.ReadInfo()

	bits := int(dec.BitDepth)
	if media.EncodingForBitDepth(bits) == media.EncodingInvalid {
		return nil, nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, bits)
	}

	fmtInfo := dec.Format()
	if fmtInfo == nil || fmtInfo.NumChannels < 1 || fmtInfo.SampleRate <= 0 {
		return nil, nil, ErrUnsupportedAiffLayout
	}

	channels, rate := fmtInfo.NumChannels, fmtInfo.SampleRate
	format := media.NewAudioFormat(media.MimeAudioRaw, channels, rate).WithPCMEncoding(media.EncodingPCM16Bit)
	format.MaxInputSize = UnitFrames * channels * 2
	format.Bitrate = rate * channels * bits
	format.DurationUs = int64(dec.NumSampleFrames) * 1_000_000 / int64(rate)

	return &Info{
		Format:   format,
		BitDepth: bits,
		Frames:   int64(dec.NumSampleFrames),
	}, dec, nil
}

// Open opens the AIFF file at path as a seekable sample stream. Samples are
// converted to 16-bit little endian audio/raw while loading.
func Open(path string, opts source.Options) (source.SampleStream, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}
	return source.NewQueue(path, newLoader(path, info), opts.QueueOptions()...), nil
}

// Register adds the AIFF extractor to r.
func Register(r *source.Registry) {
	r.Register("aiff", Open)
	r.Register("aif", Open)
}

func newLoader(path string, info *Info) source.Loader {
	return func(ctx context.Context, positionUs int64, out source.Output) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		_, dec, err := probe(f)
		if err != nil {
			return err
		}

		if err := out.Format(info.Format); err != nil {
			return err
		}

		fr := newFrameReader(dec, info.Format.ChannelCount, info.BitDepth)
		return load(ctx, fr, info.Format.SampleRate, positionUs, out)
	}
}

// load skips to the first frame at or after positionUs and emits the rest in
// units of UnitFrames.
func load(ctx context.Context, fr *frameReader, rate int, positionUs int64, out source.Output) error {
	var frame int64
	if positionUs > 0 {
		target := (positionUs*int64(rate) + 999_999) / 1_000_000
		for frame < target {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := fr.next(int(min(target-frame, UnitFrames)))
			frame += int64(n)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pcm, n, err := fr.read(UnitFrames)
		if n > 0 {
			timeUs := frame * 1_000_000 / int64(rate)
			if err := out.Sample(source.Sample{Data: pcm, TimeUs: timeUs, Flags: media.FlagKeyFrame}); err != nil {
				return err
			}
			frame += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// pcmReader is the part of aiff.Decoder used for reading samples.
type pcmReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// frameReader reads whole frames from a pcmReader.
type frameReader struct {
	dec      pcmReader
	channels int
	bitDepth int
	intBuf   *goaudio.IntBuffer
}

func newFrameReader(dec pcmReader, channels, bitDepth int) *frameReader {
	return &frameReader{dec: dec, channels: channels, bitDepth: bitDepth}
}

// next reads up to frames frames into the int buffer and returns the number of
// whole frames read. It reports io.EOF together with the last frames.
func (r *frameReader) next(frames int) (int, error) {
	size := frames * r.channels
	if r.intBuf == nil || cap(r.intBuf.Data) < size {
		r.intBuf = &goaudio.IntBuffer{
			Data:   make([]int, size),
			Format: r.dec.Format(),
		}
	}
	r.intBuf.Data = r.intBuf.Data[:size]

	n, err := r.dec.PCMBuffer(r.intBuf)
	if err == nil && n < size {
		err = io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n / r.channels, err
}

// read returns up to frames frames as 16-bit little endian PCM.
func (r *frameReader) read(frames int) ([]byte, int, error) {
	n, err := r.next(frames)
	if n == 0 {
		return nil, 0, err
	}

	pcm := make([]byte, 0, 2*n*r.channels)
	for _, v := range r.intBuf.Data[:n*r.channels] {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(utils.IntToPCM16(v, r.bitDepth)))
	}
	return pcm, n, err
}
