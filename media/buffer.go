// SPDX-License-Identifier: EPL-2.0

package media

// BufferFlag is a bit set describing a buffer.
type BufferFlag uint32

const (
	FlagKeyFrame BufferFlag = 1 << iota
	FlagEndOfStream
	FlagEncrypted
	FlagDecodeOnly
)

// SubSample describes one clear/protected region pair of an encrypted sample.
type SubSample struct {
	Clear     uint16
	Protected uint32
}

// CryptoInfo carries what is needed to decrypt one sample.
type CryptoInfo struct {
	KeyID      KeyID
	IV         []byte
	SubSamples []SubSample
}

// InputBuffer is a reusable slot handed out by a decoder and filled with one
// encoded access unit.
type InputBuffer struct {
	Data       []byte
	TimeUs     int64
	Flags      BufferFlag
	CryptoInfo CryptoInfo

	flagsOnly bool
}

// NewInputBuffer returns an input buffer with room for size bytes.
func NewInputBuffer(size int) *InputBuffer {
	return &InputBuffer{Data: make([]byte, 0, size)}
}

// NewFlagsOnly returns a buffer that never carries payload. It is used to read
// formats and end of stream without consuming sample data.
func NewFlagsOnly() *InputBuffer {
	return &InputBuffer{flagsOnly: true}
}

// IsFlagsOnly reports whether b was created by NewFlagsOnly.
func (b *InputBuffer) IsFlagsOnly() bool { return b.flagsOnly }

// Clear resets the buffer for reuse, keeping its capacity.
func (b *InputBuffer) Clear() {
	b.Data = b.Data[:0]
	b.TimeUs = 0
	b.Flags = 0
	b.CryptoInfo = CryptoInfo{}
}

// SetFlags replaces the flags of the buffer.
func (b *InputBuffer) SetFlags(f BufferFlag) { b.Flags = f }

// AddFlag sets f in addition to the current flags.
func (b *InputBuffer) AddFlag(f BufferFlag) { b.Flags |= f }

// Fill copies p into the buffer payload, growing it when needed.
func (b *InputBuffer) Fill(p []byte) {
	if b.flagsOnly {
		return
	}
	b.Data = append(b.Data[:0], p...)
}

// Flip finalizes the buffer before it is queued to a decoder: the payload is
// limited to what was written.
func (b *InputBuffer) Flip() {
	b.Data = b.Data[:len(b.Data):len(b.Data)]
}

func (b *InputBuffer) IsEndOfStream() bool { return b.Flags&FlagEndOfStream != 0 }
func (b *InputBuffer) IsEncrypted() bool   { return b.Flags&FlagEncrypted != 0 }
func (b *InputBuffer) IsDecodeOnly() bool  { return b.Flags&FlagDecodeOnly != 0 }
func (b *InputBuffer) IsKeyFrame() bool    { return b.Flags&FlagKeyFrame != 0 }

// OutputBuffer holds decoded data produced by a decoder.
type OutputBuffer struct {
	Data   []byte
	TimeUs int64
	Flags  BufferFlag

	// SkippedOutputBufferCount is the number of buffers the decoder dropped
	// internally before producing this one.
	SkippedOutputBufferCount int

	owner func(*OutputBuffer)
}

// NewOutputBuffer returns an output buffer that calls owner when released.
func NewOutputBuffer(owner func(*OutputBuffer)) *OutputBuffer {
	return &OutputBuffer{owner: owner}
}

// Clear resets the buffer for reuse.
func (b *OutputBuffer) Clear() {
	b.Data = b.Data[:0]
	b.TimeUs = 0
	b.Flags = 0
	b.SkippedOutputBufferCount = 0
}

func (b *OutputBuffer) IsEndOfStream() bool { return b.Flags&FlagEndOfStream != 0 }
func (b *OutputBuffer) IsDecodeOnly() bool  { return b.Flags&FlagDecodeOnly != 0 }

// Release hands the buffer back to the decoder that produced it.
func (b *OutputBuffer) Release() {
	if b.owner != nil {
		b.owner(b)
	}
}
