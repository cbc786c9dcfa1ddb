// SPDX-License-Identifier: EPL-2.0

package mp3

import "errors"

var (
	// ErrNotMP3File indicates no MPEG audio frame could be decoded
	ErrNotMP3File = errors.New("not an MP3 file")

	// ErrProtectedStream indicates an encrypted MPEG audio stream
	ErrProtectedStream = errors.New("encrypted MP3 streams are not supported")
)
