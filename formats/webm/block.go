// SPDX-License-Identifier: EPL-2.0

package webm

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/ik5/audrender/media"
)

// Block header flags.
const (
	blockLacingMask = 0x06
	lacingNone      = 0x00
	lacingXiph      = 0x02
	lacingFixed     = 0x04
	lacingEBML      = 0x06
)

// Signal byte of an encrypted WebM frame.
const (
	signalEncrypted   = 0x01
	signalPartitioned = 0x02
	ivSize            = 8
)

// block is a parsed SimpleBlock or Block.
type block struct {
	track    uint64
	relative int16
	frames   [][]byte
}

// parseVint decodes an EBML variable length integer, returning the value with
// its length marker removed and the number of bytes used. It returns 0, 0 for
// malformed input.
func parseVint(data []byte) (uint64, int) {
	if len(data) == 0 || data[0] == 0 {
		return 0, 0
	}
	size := bits.LeadingZeros8(data[0]) + 1
	if len(data) < size {
		return 0, 0
	}

	value := uint64(data[0] & (0xff >> size))
	for _, b := range data[1:size] {
		value = value<<8 | uint64(b)
	}
	return value, size
}

// parseBlock splits a block payload into its frames.
func parseBlock(data []byte) (*block, error) {
	track, n := parseVint(data)
	if n == 0 || len(data) < n+3 {
		return nil, fmt.Errorf("%w: short header", ErrInvalidBlock)
	}

	b := &block{
		track:    track,
		relative: int16(binary.BigEndian.Uint16(data[n:])),
	}
	lacing := data[n+2] & blockLacingMask
	data = data[n+3:]

	if lacing == lacingNone {
		b.frames = [][]byte{data}
		return b, nil
	}

	if len(data) < 1 {
		return nil, fmt.Errorf("%w: missing lace count", ErrInvalidBlock)
	}
	count := int(data[0]) + 1
	data = data[1:]

	var (
		sizes []int
		err   error
	)
	switch lacing {
	case lacingXiph:
		sizes, data, err = xiphLaceSizes(data, count)
	case lacingEBML:
		sizes, data, err = ebmlLaceSizes(data, count)
	case lacingFixed:
		if len(data)%count != 0 {
			return nil, fmt.Errorf("%w: %d bytes do not split into %d frames", ErrInvalidBlock, len(data), count)
		}
		sizes = make([]int, count-1)
		for i := range sizes {
			sizes[i] = len(data) / count
		}
	}
	if err != nil {
		return nil, err
	}

	b.frames = make([][]byte, 0, count)
	for _, size := range sizes {
		if size > len(data) {
			return nil, fmt.Errorf("%w: lace exceeds block", ErrInvalidBlock)
		}
		b.frames = append(b.frames, data[:size])
		data = data[size:]
	}
	b.frames = append(b.frames, data)
	return b, nil
}

// xiphLaceSizes reads the sizes of all frames but the last.
func xiphLaceSizes(data []byte, count int) ([]int, []byte, error) {
	sizes := make([]int, 0, count-1)
	for range count - 1 {
		size := 0
		for {
			if len(data) == 0 {
				return nil, nil, fmt.Errorf("%w: truncated xiph lacing", ErrInvalidBlock)
			}
			v := data[0]
			data = data[1:]
			size += int(v)
			if v != 0xff {
				break
			}
		}
		sizes = append(sizes, size)
	}
	return sizes, data, nil
}

// ebmlLaceSizes reads the first size as a vint and the others as signed
// differences to the previous size.
func ebmlLaceSizes(data []byte, count int) ([]int, []byte, error) {
	sizes := make([]int, 0, count-1)
	if count == 1 {
		return sizes, data, nil
	}

	first, n := parseVint(data)
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: truncated ebml lacing", ErrInvalidBlock)
	}
	data = data[n:]
	size := int64(first)
	sizes = append(sizes, int(size))

	for range count - 2 {
		raw, n := parseVint(data)
		if n == 0 {
			return nil, nil, fmt.Errorf("%w: truncated ebml lacing", ErrInvalidBlock)
		}
		data = data[n:]
		bias := int64(1)<<(7*n-1) - 1
		size += int64(raw) - bias
		if size < 0 {
			return nil, nil, fmt.Errorf("%w: negative lace size", ErrInvalidBlock)
		}
		sizes = append(sizes, int(size))
	}
	return sizes, data, nil
}

// parseEncryptedFrame strips the WebM encryption header from a frame of an
// encrypted track. It reports whether the frame is encrypted and, if so, the
// IV and the clear/protected partitions.
func parseEncryptedFrame(frame []byte, kid media.KeyID) ([]byte, media.CryptoInfo, bool, error) {
	if len(frame) < 1 {
		return nil, media.CryptoInfo{}, false, fmt.Errorf("%w: missing signal byte", ErrInvalidBlock)
	}
	signal := frame[0]
	frame = frame[1:]
	if signal&signalEncrypted == 0 {
		return frame, media.CryptoInfo{}, false, nil
	}

	if len(frame) < ivSize {
		return nil, media.CryptoInfo{}, false, fmt.Errorf("%w: missing iv", ErrInvalidBlock)
	}
	info := media.CryptoInfo{
		KeyID: kid,
		IV:    append([]byte(nil), frame[:ivSize]...),
	}
	frame = frame[ivSize:]

	if signal&signalPartitioned == 0 {
		return frame, info, true, nil
	}

	if len(frame) < 1 {
		return nil, media.CryptoInfo{}, false, fmt.Errorf("%w: missing partition count", ErrInvalidBlock)
	}
	count := int(frame[0])
	frame = frame[1:]
	if len(frame) < 4*count {
		return nil, media.CryptoInfo{}, false, fmt.Errorf("%w: truncated partitions", ErrInvalidBlock)
	}

	// Partition offsets alternate between clear and protected regions,
	// starting with a clear one.
	bounds := make([]int, 0, count+2)
	bounds = append(bounds, 0)
	for i := range count {
		bounds = append(bounds, int(binary.BigEndian.Uint32(frame[4*i:])))
	}
	frame = frame[4*count:]
	bounds = append(bounds, len(frame))

	for i := 1; i < len(bounds); i++ {
		if bounds[i] < bounds[i-1] || bounds[i] > len(frame) {
			return nil, media.CryptoInfo{}, false, fmt.Errorf("%w: partition offsets out of order", ErrInvalidBlock)
		}
	}
	for i := 0; i+1 < len(bounds); i += 2 {
		clearBytes := bounds[i+1] - bounds[i]
		protected := 0
		if i+2 < len(bounds) {
			protected = bounds[i+2] - bounds[i+1]
		}
		if clearBytes > 0xffff {
			return nil, media.CryptoInfo{}, false, fmt.Errorf("%w: clear region too large", ErrInvalidBlock)
		}
		info.SubSamples = append(info.SubSamples, media.SubSample{
			Clear:     uint16(clearBytes),
			Protected: uint32(protected),
		})
	}
	return frame, info, true, nil
}
