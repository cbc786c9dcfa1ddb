// SPDX-License-Identifier: EPL-2.0

// Package renderer drives audio decoding and playout.
//
// A Renderer connects three collaborators:
//   - a source.SampleStream supplying formats and encoded samples
//   - a decoder.Decoder created by a DecoderFamily for the current format
//   - a sink.AudioSink that plays PCM and reports the playback position
//
// # Render Loop
//
// Render is called repeatedly by the playback loop and never blocks. Each call
// first drains decoded buffers into the sink until the sink or the decoder
// stalls, then feeds samples into the decoder until the stream or the decoder
// stalls:
//
//	r := renderer.New(family, sink)
//	if err := r.Enable(stream, 0); err != nil {
//	    return err
//	}
//	_ = r.Start()
//	for !r.IsEnded() {
//	    if err := r.Render(pos, elapsed); err != nil {
//	        return err
//	    }
//	}
//
// # Format Changes
//
// When the input format changes in a way the decoder cannot follow, and the
// decoder already received samples, the renderer queues end of stream into it,
// plays out what remains and only then creates a decoder for the new format.
// No decoded audio is dropped by a format change.
//
// # Protected Content
//
// Formats read from the stream carry a drm.Session. The decoder is created once
// the session offers a crypto context; encrypted samples are held in the
// renderer until the session has keys. A session error is fatal and reported
// as an *Error of KindDrm.
//
// # Position
//
// PositionUs follows the sink but never moves backwards, except once after
// ResetPosition or a sink discontinuity. The first sample queued after a reset
// moves the position to its timestamp when the two are further apart than the
// first buffer tolerance.
package renderer
