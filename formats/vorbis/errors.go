// SPDX-License-Identifier: EPL-2.0

package vorbis

import "errors"

var (
	// ErrNotOggVorbis indicates the file is not an Ogg Vorbis stream
	ErrNotOggVorbis = errors.New("not an Ogg Vorbis file")

	// ErrInvalidCodecPrivate indicates codec private data that does not hold
	// three laced Vorbis headers
	ErrInvalidCodecPrivate = errors.New("invalid Vorbis codec private data")

	// ErrProtectedStream indicates an encrypted Ogg stream
	ErrProtectedStream = errors.New("encrypted Ogg streams are not supported")
)
