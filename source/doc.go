// SPDX-License-Identifier: EPL-2.0

/*
Package source supplies encoded samples to the renderer.

A SampleStream is polled with ReadData, which never blocks and returns one of
three results: a format, a buffer (a sample or end of stream) or nothing.
Formats carry their DRM session in the FormatHolder.

Queue is the SampleStream used by every extractor in this module. The
extractor runs as a Loader on a goroutine and pushes formats and samples into
a bounded channel; the renderer drains that channel from its own goroutine.
Seeking cancels the loader and starts a new one at the requested position.
Samples before that position are flagged decode-only.

	q := source.NewQueue("song.wav", loader, source.WithCapacity(32))
	defer q.Close()

	var holder source.FormatHolder
	buf := media.NewInputBuffer(4096)
	switch q.ReadData(&holder, buf, false) {
	case source.ResultFormatRead:
		// holder.Format is the new format
	case source.ResultBufferRead:
		// buf holds a sample or end of stream
	case source.ResultNothingRead:
		// try again on the next tick
	}

NewChunkedLoader cuts elementary streams such as MPEG audio or Ogg files into
fixed size chunks for decoders that parse the stream themselves. Registry maps
file extensions to the extractors registered by the formats packages.
*/
package source
