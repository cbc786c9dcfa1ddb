// SPDX-License-Identifier: EPL-2.0

package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/media"
)

func rawFormat() *media.Format {
	return media.NewAudioFormat(media.MimeAudioRaw, 2, 44100)
}

// sliceLoader emits a format followed by count samples spaced stepUs apart,
// starting at the first sample at or after the requested position.
func sliceLoader(format *media.Format, count int, stepUs int64) Loader {
	return func(ctx context.Context, positionUs int64, out Output) error {
		if err := out.Format(format); err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			ts := int64(i) * stepUs
			if ts+stepUs <= positionUs {
				continue
			}
			if err := out.Sample(Sample{Data: []byte{byte(i)}, TimeUs: ts, Flags: media.FlagKeyFrame}); err != nil {
				return err
			}
		}
		return nil
	}
}

// readUntil polls ReadData until it returns something or the deadline passes.
func readUntil(t *testing.T, s SampleStream, holder *FormatHolder, buf *media.InputBuffer, formatRequired bool) ReadResult {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if r := s.ReadData(holder, buf, formatRequired); r != ResultNothingRead {
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

func TestQueue_ReadsFormatSamplesAndEnd(t *testing.T) {
	t.Parallel()

	q := NewQueue("test", sliceLoader(rawFormat(), 3, 1000))
	defer q.Close()

	var holder FormatHolder
	buf := media.NewInputBuffer(16)

	if r := readUntil(t, q, &holder, buf, false); r != ResultFormatRead {
		t.Fatalf("first read = %v, want format", r)
	}
	if !holder.Format.Equal(rawFormat()) {
		t.Errorf("format = %v", holder.Format)
	}

	for i := 0; i < 3; i++ {
		if r := readUntil(t, q, &holder, buf, false); r != ResultBufferRead {
			t.Fatalf("read %d = %v, want buffer", i, r)
		}
		if buf.TimeUs != int64(i)*1000 || buf.Data[0] != byte(i) {
			t.Errorf("sample %d: time %d data %v", i, buf.TimeUs, buf.Data)
		}
		if buf.IsDecodeOnly() {
			t.Errorf("sample %d unexpectedly decode-only", i)
		}
	}

	for range 2 {
		if r := readUntil(t, q, &holder, buf, false); r != ResultBufferRead || !buf.IsEndOfStream() {
			t.Fatalf("end read = %v, eos = %v", r, buf.IsEndOfStream())
		}
	}
}

func TestQueue_FormatRequired(t *testing.T) {
	t.Parallel()

	q := NewQueue("test", sliceLoader(rawFormat(), 2, 1000))
	defer q.Close()

	var holder FormatHolder
	buf := media.NewInputBuffer(16)

	if r := readUntil(t, q, &holder, buf, true); r != ResultFormatRead {
		t.Fatalf("read = %v, want format", r)
	}
	holder.Clear()
	if r := q.ReadData(&holder, buf, true); r != ResultFormatRead || holder.Format == nil {
		t.Errorf("second required read = %v, format %v", r, holder.Format)
	}
}

func TestQueue_FlagsOnlyDoesNotConsume(t *testing.T) {
	t.Parallel()

	q := NewQueue("test", sliceLoader(rawFormat(), 1, 1000))
	defer q.Close()

	var holder FormatHolder
	readUntil(t, q, &holder, media.NewInputBuffer(16), false)

	flags := media.NewFlagsOnly()
	readUntil(t, q, &holder, flags, false)
	if len(flags.Data) != 0 {
		t.Errorf("flags-only buffer got %d bytes", len(flags.Data))
	}

	buf := media.NewInputBuffer(16)
	if r := readUntil(t, q, &holder, buf, false); r != ResultBufferRead || buf.IsEndOfStream() {
		t.Fatalf("sample was consumed by flags-only read")
	}
}

func TestQueue_SeekMarksDecodeOnly(t *testing.T) {
	t.Parallel()

	q := NewQueue("test", sliceLoader(rawFormat(), 10, 1000))
	defer q.Close()

	if err := q.SeekTo(4500); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}

	var holder FormatHolder
	buf := media.NewInputBuffer(16)
	readUntil(t, q, &holder, buf, false)

	readUntil(t, q, &holder, buf, false)
	if buf.TimeUs != 4000 || !buf.IsDecodeOnly() {
		t.Errorf("first sample after seek: time %d decodeOnly %v", buf.TimeUs, buf.IsDecodeOnly())
	}
	readUntil(t, q, &holder, buf, false)
	if buf.TimeUs != 5000 || buf.IsDecodeOnly() {
		t.Errorf("second sample after seek: time %d decodeOnly %v", buf.TimeUs, buf.IsDecodeOnly())
	}
}

func TestQueue_LoadErrorIsReported(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	q := NewQueue("test", func(ctx context.Context, positionUs int64, out Output) error {
		return boom
	})
	defer q.Close()

	var holder FormatHolder
	buf := media.NewInputBuffer(16)

	deadline := time.Now().Add(2 * time.Second)
	for q.MaybeThrowError() == nil && time.Now().Before(deadline) {
		q.ReadData(&holder, buf, false)
		time.Sleep(time.Millisecond)
	}

	var loadErr *LoadError
	if !errors.As(q.MaybeThrowError(), &loadErr) || !errors.Is(loadErr, boom) {
		t.Fatalf("MaybeThrowError() = %v, want LoadError wrapping boom", q.MaybeThrowError())
	}
	if q.IsReady() {
		t.Error("IsReady() = true after load error")
	}
}

func TestQueue_CancellationIsNotAnError(t *testing.T) {
	t.Parallel()

	q := NewQueue("test", func(ctx context.Context, positionUs int64, out Output) error {
		return context.Canceled
	})
	defer q.Close()

	var holder FormatHolder
	buf := media.NewInputBuffer(16)
	for range 50 {
		q.ReadData(&holder, buf, false)
		time.Sleep(time.Millisecond)
	}
	if err := q.MaybeThrowError(); err != nil {
		t.Errorf("MaybeThrowError() = %v, want nil", err)
	}
}

func TestQueue_AttachesDrmSession(t *testing.T) {
	t.Parallel()

	kid := media.KeyID{9}
	init := &media.DrmInitData{
		SchemeType: media.SchemeCENC,
		Schemes:    []media.SchemeData{{UUID: media.ClearKeyUUID, KeyIDs: []media.KeyID{kid}}},
	}
	mgr := drm.NewSessionManager(drm.StaticKeys{kid: make([]byte, 16)}, false, nil)
	q := NewQueue("test", sliceLoader(rawFormat().WithDrmInitData(init), 1, 1000), WithSessionManager(mgr))

	var holder FormatHolder
	if r := readUntil(t, q, &holder, media.NewInputBuffer(16), false); r != ResultFormatRead {
		t.Fatalf("read = %v, want format", r)
	}
	if holder.DrmSession == nil {
		t.Fatal("holder has no DRM session")
	}

	ck := holder.DrmSession.(*drm.ClearKeySession)
	if refs := ck.Refs(); refs != 1 {
		t.Errorf("Refs() = %d, want 1", refs)
	}
	_ = q.Close()
	if refs := ck.Refs(); refs != 0 {
		t.Errorf("Refs() after close = %d, want 0", refs)
	}
}

func TestQueue_ProtectedWithoutManagerFails(t *testing.T) {
	t.Parallel()

	init := &media.DrmInitData{
		SchemeType: media.SchemeCENC,
		Schemes:    []media.SchemeData{{UUID: media.ClearKeyUUID, KeyIDs: []media.KeyID{{1}}}},
	}
	q := NewQueue("test", sliceLoader(rawFormat().WithDrmInitData(init), 1, 1000))
	defer q.Close()

	var holder FormatHolder
	deadline := time.Now().Add(2 * time.Second)
	for q.MaybeThrowError() == nil && time.Now().Before(deadline) {
		q.ReadData(&holder, media.NewInputBuffer(16), false)
		time.Sleep(time.Millisecond)
	}
	if !errors.Is(q.MaybeThrowError(), drm.ErrNoProvider) {
		t.Errorf("MaybeThrowError() = %v, want ErrNoProvider", q.MaybeThrowError())
	}
}

func TestChunkedLoader(t *testing.T) {
	t.Parallel()

	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "stream.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	format := media.NewAudioFormat(media.MimeAudioMPEG, 2, 44100)
	load := NewChunkedLoader(path, ChunkedConfig{
		Format:         format,
		ChunkSize:      4,
		BytesPerSecond: 4,
		Resync: func(p []byte) int {
			for i, b := range p {
				if b%2 == 0 {
					return i
				}
			}
			return -1
		},
	})

	tests := []struct {
		name       string
		positionUs int64
		wantFirst  byte
		wantChunks int
	}{
		{"from start", 0, 0, 3},
		{"seek", 750_000, 4, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := NewQueue("chunked", load)
			defer q.Close()
			if tt.positionUs > 0 {
				if err := q.SeekTo(tt.positionUs); err != nil {
					t.Fatal(err)
				}
			}

			var holder FormatHolder
			buf := media.NewInputBuffer(8)
			readUntil(t, q, &holder, buf, false)

			chunks := 0
			for {
				readUntil(t, q, &holder, buf, false)
				if buf.IsEndOfStream() {
					break
				}
				if chunks == 0 && buf.Data[0] != tt.wantFirst {
					t.Errorf("first byte = %d, want %d", buf.Data[0], tt.wantFirst)
				}
				chunks++
			}
			if chunks != tt.wantChunks {
				t.Errorf("chunks = %d, want %d", chunks, tt.wantChunks)
			}
		})
	}
}

func TestChunkedLoader_NotSeekable(t *testing.T) {
	t.Parallel()

	load := NewChunkedLoader("unused", ChunkedConfig{Format: rawFormat()})
	err := load(context.Background(), 1000, &queueOutput{ctx: context.Background(), items: make(chan item, 4)})
	if err == nil {
		t.Fatal("expected error")
	}
}
