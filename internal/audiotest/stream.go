// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/source"
)

// Item is one scripted entry of a FakeStream. Exactly one of Format, Sample or
// EndOfStream is set; Stall makes one ReadData call return nothing.
type Item struct {
	Format      *media.Format
	Session     drm.Session
	Sample      *source.Sample
	EndOfStream bool
	Stall       bool
}

// FormatItem returns a format entry.
func FormatItem(f *media.Format, s drm.Session) Item {
	return Item{Format: f, Session: s}
}

// SampleItem returns a clear sample entry.
func SampleItem(timeUs int64, data ...byte) Item {
	return Item{Sample: &source.Sample{Data: data, TimeUs: timeUs, Flags: media.FlagKeyFrame}}
}

// EncryptedItem returns a sample entry flagged as encrypted.
func EncryptedItem(timeUs int64, data ...byte) Item {
	return Item{Sample: &source.Sample{Data: data, TimeUs: timeUs, Flags: media.FlagKeyFrame | media.FlagEncrypted}}
}

// EndItem returns the end of stream entry.
func EndItem() Item {
	return Item{EndOfStream: true}
}

// StallItem returns an entry that makes one read return nothing.
func StallItem() Item {
	return Item{Stall: true}
}

// FakeStream is a scripted source.SampleStream. It is not safe for concurrent
// use.
type FakeStream struct {
	items  []Item
	pos    int
	format *media.Format
	sess   drm.Session
	ended  bool

	// Reads counts ReadData calls that returned a sample.
	Reads int
	// Err is returned by MaybeThrowError.
	Err error
	// Ready overrides IsReady when non-nil.
	Ready *bool
	// Seeks records SeekTo positions.
	Seeks  []int64
	Closed bool
}

// NewFakeStream returns a stream playing items in order.
func NewFakeStream(items ...Item) *FakeStream {
	return &FakeStream{items: items}
}

// Append adds items to the end of the script.
func (s *FakeStream) Append(items ...Item) {
	s.items = append(s.items, items...)
}

// Remaining returns how many items were not read yet.
func (s *FakeStream) Remaining() int {
	return len(s.items) - s.pos
}

func (s *FakeStream) ReadData(holder *source.FormatHolder, buf *media.InputBuffer, formatRequired bool) source.ReadResult {
	if formatRequired && s.format != nil {
		holder.Format = s.format
		holder.DrmSession = s.sess
		return source.ResultFormatRead
	}
	if s.ended {
		buf.SetFlags(media.FlagEndOfStream)
		return source.ResultBufferRead
	}
	if s.pos >= len(s.items) {
		return source.ResultNothingRead
	}

	it := s.items[s.pos]
	switch {
	case it.Stall:
		s.pos++
		return source.ResultNothingRead
	case it.Format != nil:
		s.pos++
		s.format = it.Format
		s.sess = it.Session
		holder.Format = it.Format
		holder.DrmSession = it.Session
		return source.ResultFormatRead
	case it.EndOfStream:
		s.pos++
		s.ended = true
		buf.Clear()
		buf.SetFlags(media.FlagEndOfStream)
		return source.ResultBufferRead
	}

	if buf.IsFlagsOnly() {
		buf.SetFlags(it.Sample.Flags)
		return source.ResultBufferRead
	}
	s.pos++
	s.Reads++
	buf.Clear()
	buf.Fill(it.Sample.Data)
	buf.TimeUs = it.Sample.TimeUs
	buf.SetFlags(it.Sample.Flags)
	buf.CryptoInfo = it.Sample.CryptoInfo
	return source.ResultBufferRead
}

func (s *FakeStream) IsReady() bool {
	if s.Ready != nil {
		return *s.Ready
	}
	return s.ended || s.pos < len(s.items)
}

func (s *FakeStream) MaybeThrowError() error { return s.Err }

// SeekTo records the position; the script continues where it was.
func (s *FakeStream) SeekTo(positionUs int64) error {
	s.Seeks = append(s.Seeks, positionUs)
	s.ended = false
	return nil
}

func (s *FakeStream) Close() error {
	s.Closed = true
	return nil
}
