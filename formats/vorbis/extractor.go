// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"fmt"
	"os"

	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/source"
	"github.com/jfreymuth/oggvorbis"
)

// Info describes an Ogg Vorbis file.
type Info struct {
	Format *media.Format
	// Frames is the stream length in frames, 0 when unknown.
	Frames int64
}

// Probe reads the identification header and the last granule position of
// the Ogg Vorbis file at path.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	length, vf, err := oggvorbis.GetLength(f)
	if vf == nil {
		return nil, fmt.Errorf("%w: %w", ErrNotOggVorbis, err)
	}
	if vf.SampleRate <= 0 || vf.Channels < 1 {
		return nil, ErrNotOggVorbis
	}

	format := media.NewAudioFormat(media.MimeAudioOgg, vf.Channels, vf.SampleRate)
	format.MaxInputSize = source.DefaultChunkSize
	if vf.Bitrate.Nominal > 0 {
		format.Bitrate = vf.Bitrate.Nominal
	}

	info := &Info{Format: format}
	// A broken last page still leaves the format usable.
	if err == nil && length > 0 {
		info.Frames = length
		format.DurationUs = length * 1_000_000 / int64(vf.SampleRate)
	}
	return info, nil
}

// Open opens the Ogg Vorbis file at path as a stream of audio/ogg chunks.
// The decoder needs the stream headers, so the stream is seekable only to
// its start.
func Open(path string, opts source.Options) (source.SampleStream, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}

	load := source.NewChunkedLoader(path, source.ChunkedConfig{
		Format:    info.Format,
		ChunkSize: source.DefaultChunkSize,
	})
	return source.NewQueue(path, load, opts.QueueOptions()...), nil
}

// Register adds the Ogg extractor to r.
func Register(r *source.Registry) {
	r.Register("ogg", Open)
	r.Register("oga", Open)
}
