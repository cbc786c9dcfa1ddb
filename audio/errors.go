// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

// ErrInvalidDstSize is returned by ReadSamples when dst does not hold a whole
// number of frames.
var ErrInvalidDstSize = errors.New("audio: dst length is not a multiple of the channel count")
