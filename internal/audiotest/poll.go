// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"testing"
	"time"

	"github.com/ik5/audrender/decoder"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/source"
)

// PollTimeout bounds the polling helpers.
const PollTimeout = 5 * time.Second

// ReadUntil polls ReadData until it returns something.
func ReadUntil(t testing.TB, s source.SampleStream, holder *source.FormatHolder, buf *media.InputBuffer, formatRequired bool) source.ReadResult {
	t.Helper()

	deadline := time.Now().Add(PollTimeout)
	for {
		if r := s.ReadData(holder, buf, formatRequired); r != source.ResultNothingRead {
			return r
		}
		if err := s.MaybeThrowError(); err != nil {
			t.Fatalf("MaybeThrowError() = %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("ReadData() returned nothing until the deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

// Captured is a sample read back from a stream.
type Captured struct {
	Data       []byte
	TimeUs     int64
	Flags      media.BufferFlag
	CryptoInfo media.CryptoInfo
}

// ReadAll reads s until end of stream and returns the last format and every
// sample.
func ReadAll(t testing.TB, s source.SampleStream) (*media.Format, []Captured) {
	t.Helper()

	var (
		holder  source.FormatHolder
		format  *media.Format
		samples []Captured
	)
	buf := media.NewInputBuffer(4096)
	for {
		holder.Clear()
		switch ReadUntil(t, s, &holder, buf, false) {
		case source.ResultFormatRead:
			format = holder.Format
			continue
		}
		if buf.IsEndOfStream() {
			return format, samples
		}
		samples = append(samples, Captured{
			Data:       append([]byte(nil), buf.Data...),
			TimeUs:     buf.TimeUs,
			Flags:      buf.Flags,
			CryptoInfo: buf.CryptoInfo,
		})
	}
}

// Decoded is what DecodeAll collected from a decoder.
type Decoded struct {
	PCM   []byte
	Times []int64
	// Skipped sums SkippedOutputBufferCount over every output buffer.
	Skipped int
}

// DecodeAll queues inputs followed by end of stream into d and collects the
// output until end of stream.
func DecodeAll(t testing.TB, d decoder.Decoder, inputs []Captured) Decoded {
	t.Helper()

	var out Decoded
	deadline := time.Now().Add(PollTimeout)
	next := 0
	eosQueued := false

	for time.Now().Before(deadline) {
		progressed := false

		for {
			buf, err := d.DequeueOutputBuffer()
			if err != nil {
				t.Fatalf("DequeueOutputBuffer() error = %v", err)
			}
			if buf == nil {
				break
			}
			progressed = true
			out.Skipped += buf.SkippedOutputBufferCount
			if buf.IsEndOfStream() {
				buf.Release()
				return out
			}
			out.PCM = append(out.PCM, buf.Data...)
			out.Times = append(out.Times, buf.TimeUs)
			buf.Release()
		}

		if !eosQueued {
			in, err := d.DequeueInputBuffer()
			if err != nil {
				t.Fatalf("DequeueInputBuffer() error = %v", err)
			}
			if in != nil {
				if next < len(inputs) {
					s := inputs[next]
					in.Fill(s.Data)
					in.TimeUs = s.TimeUs
					in.SetFlags(s.Flags)
					in.CryptoInfo = s.CryptoInfo
					next++
				} else {
					in.SetFlags(media.FlagEndOfStream)
					eosQueued = true
				}
				in.Flip()
				if err := d.QueueInputBuffer(in); err != nil {
					t.Fatalf("QueueInputBuffer() error = %v", err)
				}
				progressed = true
			}
		}

		if !progressed {
			time.Sleep(time.Millisecond)
		}
	}

	t.Fatal("decoder did not reach end of stream before the deadline")
	return out
}
