// SPDX-License-Identifier: EPL-2.0

package vorbis

import "fmt"

// headerCount is the number of Vorbis setup headers: identification, comment
// and setup.
const headerCount = 3

// ParseCodecPrivate splits Matroska Vorbis codec private data into the three
// Vorbis headers. The data starts with the packet count minus one followed by
// the Xiph laced sizes of all packets but the last.
func ParseCodecPrivate(data []byte) ([][]byte, error) {
	if len(data) < 1 || int(data[0]) != headerCount-1 {
		return nil, fmt.Errorf("%w: expected %d packets", ErrInvalidCodecPrivate, headerCount)
	}

	pos := 1
	sizes := make([]int, 0, headerCount-1)
	for range headerCount - 1 {
		size := 0
		for {
			if pos >= len(data) {
				return nil, fmt.Errorf("%w: truncated lacing", ErrInvalidCodecPrivate)
			}
			b := data[pos]
			pos++
			size += int(b)
			if b != 0xff {
				break
			}
		}
		sizes = append(sizes, size)
	}

	headers := make([][]byte, 0, headerCount)
	for _, size := range sizes {
		if pos+size > len(data) {
			return nil, fmt.Errorf("%w: header exceeds data", ErrInvalidCodecPrivate)
		}
		headers = append(headers, data[pos:pos+size])
		pos += size
	}
	headers = append(headers, data[pos:])

	return headers, nil
}

// LaceHeaders is the inverse of ParseCodecPrivate.
func LaceHeaders(headers [][]byte) []byte {
	if len(headers) == 0 {
		return nil
	}
	out := []byte{byte(len(headers) - 1)}
	for _, h := range headers[:len(headers)-1] {
		n := len(h)
		for n >= 0xff {
			out = append(out, 0xff)
			n -= 0xff
		}
		out = append(out, byte(n))
	}
	for _, h := range headers {
		out = append(out, h...)
	}
	return out
}
