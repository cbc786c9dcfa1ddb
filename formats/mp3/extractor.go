// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/source"
)

const (
	id3v2HeaderSize = 10
	id3v1Size       = 128
	// go-mp3 output is 16-bit stereo
	bytesPerFrame = 4
)

// Info describes the MPEG audio payload of a file.
type Info struct {
	Format         *media.Format
	DataOffset     int64
	DataSize       int64
	BytesPerSecond float64
}

// Probe decodes the frame headers of the MP3 file at path to find its rate
// and duration.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return probe(f, st.Size())
}

func probe(r io.ReaderAt, size int64) (*Info, error) {
	offset := id3v2Size(r)
	end := size
	if hasID3v1(r, size) {
		end -= id3v1Size
	}
	if end <= offset {
		return nil, ErrNotMP3File
	}

	dec, err := gomp3.NewDecoder(io.NewSectionReader(r, offset, end-offset))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotMP3File, err)
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		return nil, ErrNotMP3File
	}

	format := media.NewAudioFormat(media.MimeAudioMPEG, outputChans, rate)
	format.MaxInputSize = source.DefaultChunkSize

	info := &Info{
		Format:     format,
		DataOffset: offset,
		DataSize:   end - offset,
	}

	if length := dec.Length(); length > 0 {
		durationUs := length / bytesPerFrame * 1_000_000 / int64(rate)
		if durationUs > 0 {
			format.DurationUs = durationUs
			info.BytesPerSecond = float64(info.DataSize) * 1e6 / float64(durationUs)
			format.Bitrate = int(info.BytesPerSecond * 8)
		}
	}

	return info, nil
}

// id3v2Size returns the size of a leading ID3v2 tag, or 0.
func id3v2Size(r io.ReaderAt) int64 {
	hdr := make([]byte, id3v2HeaderSize)
	if _, err := r.ReadAt(hdr, 0); err != nil || !bytes.Equal(hdr[:3], []byte("ID3")) {
		return 0
	}

	// Sizes are syncsafe: 7 bits per byte.
	size := int64(hdr[6]&0x7f)<<21 | int64(hdr[7]&0x7f)<<14 | int64(hdr[8]&0x7f)<<7 | int64(hdr[9]&0x7f)
	size += id3v2HeaderSize
	if hdr[5]&0x10 != 0 {
		// footer present
		size += id3v2HeaderSize
	}
	return size
}

func hasID3v1(r io.ReaderAt, size int64) bool {
	if size < id3v1Size {
		return false
	}
	tag := make([]byte, 3)
	if _, err := r.ReadAt(tag, size-id3v1Size); err != nil {
		return false
	}
	return bytes.Equal(tag, []byte("TAG"))
}

// FindFrameSync returns the offset of the first plausible MPEG audio layer III
// frame header in p, or -1.
func FindFrameSync(p []byte) int {
	for i := 0; i+2 < len(p); i++ {
		if p[i] != 0xff || p[i+1]&0xe0 != 0xe0 {
			continue
		}
		layer := (p[i+1] >> 1) & 0x03
		bitrate := p[i+2] >> 4
		rate := (p[i+2] >> 2) & 0x03
		version := (p[i+1] >> 3) & 0x03
		if layer == 0x01 && version != 0x01 && bitrate != 0 && bitrate != 0x0f && rate != 0x03 {
			return i
		}
	}
	return -1
}

// Open opens the MP3 file at path as a sample stream of audio/mpeg chunks.
// Seeks use the average bitrate and resynchronize on the next frame header.
func Open(path string, opts source.Options) (source.SampleStream, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}

	load := source.NewChunkedLoader(path, source.ChunkedConfig{
		Format:         info.Format,
		ChunkSize:      source.DefaultChunkSize,
		DataOffset:     info.DataOffset,
		DataSize:       info.DataSize,
		BytesPerSecond: info.BytesPerSecond,
		Resync:         FindFrameSync,
	})

	return source.NewQueue(path, load, opts.QueueOptions()...), nil
}

// Register adds the MP3 extractor to r.
func Register(r *source.Registry) {
	r.Register("mp3", Open)
}
