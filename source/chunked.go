// SPDX-License-Identifier: EPL-2.0

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ik5/audrender/media"
)

// DefaultChunkSize is the access unit size of chunked elementary streams.
const DefaultChunkSize = 4096

// ChunkedConfig describes an elementary stream cut into fixed size chunks.
type ChunkedConfig struct {
	Format    *media.Format
	ChunkSize int
	// DataOffset is where the stream payload starts in the file.
	DataOffset int64
	// DataSize limits the payload length. Zero reads to the end of the file.
	DataSize int64
	// FrameSize aligns chunks and seek offsets, e.g. to a PCM block. Seeks
	// then land exactly on a frame and timestamps are exact.
	FrameSize int
	// BytesPerSecond maps byte offsets to time. Zero makes the stream seekable
	// only to its start.
	BytesPerSecond float64
	// Resync returns the offset of the first decodable position in p, or -1.
	// It is used after seeking into the middle of the stream.
	Resync func(p []byte) int
}

// NewChunkedLoader returns a Loader reading path in chunks. Every chunk is a
// key frame stamped with its estimated presentation time.
func NewChunkedLoader(path string, cfg ChunkedConfig) Loader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.FrameSize > 1 && cfg.ChunkSize%cfg.FrameSize != 0 {
		cfg.ChunkSize += cfg.FrameSize - cfg.ChunkSize%cfg.FrameSize
	}

	return func(ctx context.Context, positionUs int64, out Output) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		var skipped int64
		timeUs := positionUs
		if positionUs > 0 {
			if cfg.BytesPerSecond <= 0 {
				return ErrNotSeekable
			}
			skipped = int64(float64(positionUs) * cfg.BytesPerSecond / 1e6)
			if fs := int64(cfg.FrameSize); fs > 1 && skipped%fs != 0 {
				// Round up so no sample lands before the seek position.
				skipped += fs - skipped%fs
			}
		}
		if _, err := f.Seek(cfg.DataOffset+skipped, io.SeekStart); err != nil {
			return fmt.Errorf("seek %s: %w", path, err)
		}

		var r io.Reader = f
		if cfg.DataSize > 0 {
			r = io.LimitReader(f, max(cfg.DataSize-skipped, 0))
		}

		if err := out.Format(cfg.Format); err != nil {
			return err
		}

		if cfg.FrameSize > 1 && positionUs > 0 {
			timeUs = frameTimeUs(skipped, cfg.BytesPerSecond)
		}

		var read int64
		first := positionUs > 0 && cfg.Resync != nil
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			chunk := make([]byte, cfg.ChunkSize)
			n, err := io.ReadFull(r, chunk)
			chunk = chunk[:n]

			if first && n > 0 {
				first = false
				skip := cfg.Resync(chunk)
				if skip < 0 {
					skip = n
				}
				chunk = chunk[skip:]
			}

			if len(chunk) > 0 {
				if err := out.Sample(Sample{Data: chunk, TimeUs: timeUs, Flags: media.FlagKeyFrame}); err != nil {
					return err
				}
				read += int64(len(chunk))
				if cfg.BytesPerSecond > 0 {
					timeUs += int64(float64(len(chunk)) * 1e6 / cfg.BytesPerSecond)
				}
				if cfg.FrameSize > 1 && cfg.BytesPerSecond > 0 {
					timeUs = frameTimeUs(skipped+read, cfg.BytesPerSecond)
				}
			}

			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
		}
	}
}

// frameTimeUs converts a frame aligned byte offset to microseconds, rounding up.
func frameTimeUs(offset int64, bytesPerSecond float64) int64 {
	return int64(math.Ceil(float64(offset) * 1e6 / bytesPerSecond))
}
