// SPDX-License-Identifier: EPL-2.0

package webm

import "errors"

var (
	// ErrNotMatroska is returned when the file has no Matroska track list.
	ErrNotMatroska = errors.New("webm: not a matroska file")
	// ErrInvalidBlock is returned for a block that cannot be split into frames.
	ErrInvalidBlock = errors.New("webm: invalid block")
	// ErrInvalidKeyID is returned when ContentEncKeyID is not 16 bytes long.
	ErrInvalidKeyID = errors.New("webm: content key id must be 16 bytes")
	// ErrInvalidTrack is returned for an audio track without a usable format.
	ErrInvalidTrack = errors.New("webm: invalid audio track")
)
