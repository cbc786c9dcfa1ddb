// SPDX-License-Identifier: EPL-2.0

// Package media holds the value types shared by every stage of the render
// pipeline: stream formats, encoded input buffers, decoded output buffers and
// the protection metadata attached to them.
//
// A Format is immutable once published. InputBuffer and OutputBuffer are slots
// owned by a decoder; callers fill, queue and release them but never keep them
// after handing them back.
package media
