// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/internal/audiotest"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/renderer"
	"github.com/ik5/audrender/source"
)

const (
	testOgg    = "testdata/test.ogg"
	testFrames = 44100
)

// testPackets holds the Vorbis headers and audio packets of testdata/test.ogg.
type testPackets struct {
	Headers [3][]byte
	Packets [][]byte
}

func readTestPackets(t testing.TB) *testPackets {
	t.Helper()

	f, err := os.Open("testdata/test.gob")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data := new(testPackets)
	if err := gob.NewDecoder(f).Decode(data); err != nil {
		t.Fatal(err)
	}
	return data
}

func packetFormat(data *testPackets) *media.Format {
	f := media.NewAudioFormat(media.MimeAudioVorbis, 1, 44100)
	f.InitializationData = [][]byte{data.Headers[0], data.Headers[1], data.Headers[2]}
	return f
}

func packetInputs(data *testPackets) []audiotest.Captured {
	inputs := make([]audiotest.Captured, len(data.Packets))
	for i, p := range data.Packets {
		inputs[i] = audiotest.Captured{Data: p, TimeUs: int64(i) * 1000, Flags: media.FlagKeyFrame}
	}
	return inputs
}

// mockOggVorbisReader simulates the oggvorbis.Reader for testing
type mockOggVorbisReader struct {
	sampleRate int
	channels   int
	samples    []float32
	offset     int
}

func (m *mockOggVorbisReader) SampleRate() int { return m.sampleRate }
func (m *mockOggVorbisReader) Channels() int   { return m.channels }

func (m *mockOggVorbisReader) Read(buf []float32) (int, error) {
	if m.offset >= len(m.samples) {
		return 0, io.EOF
	}
	n := copy(buf, m.samples[m.offset:])
	m.offset += n
	return n, nil
}

func TestLacing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers [][]byte
	}{
		{"small", [][]byte{{1, 2, 3}, {4}, {5, 6}}},
		{"exactly 255", [][]byte{bytes.Repeat([]byte{1}, 255), {2}, {3}}},
		{"large", [][]byte{bytes.Repeat([]byte{1}, 30), bytes.Repeat([]byte{2}, 600), bytes.Repeat([]byte{3}, 3000)}},
		{"empty comment", [][]byte{{1}, {}, {3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCodecPrivate(LaceHeaders(tt.headers))
			if err != nil {
				t.Fatalf("ParseCodecPrivate() error = %v", err)
			}
			if len(got) != len(tt.headers) {
				t.Fatalf("got %d headers, want %d", len(got), len(tt.headers))
			}
			for i := range got {
				if !bytes.Equal(got[i], tt.headers[i]) {
					t.Errorf("header %d = %d bytes, want %d", i, len(got[i]), len(tt.headers[i]))
				}
			}
		})
	}
}

func TestParseCodecPrivate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong count", []byte{1, 3, 0, 0, 0}},
		{"truncated lacing", []byte{2, 0xff}},
		{"header exceeds data", []byte{2, 10, 1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseCodecPrivate(tt.data); !errors.Is(err, ErrInvalidCodecPrivate) {
				t.Errorf("ParseCodecPrivate() error = %v, want %v", err, ErrInvalidCodecPrivate)
			}
		})
	}
}

func TestLaceHeaders_Empty(t *testing.T) {
	t.Parallel()

	if got := LaceHeaders(nil); got != nil {
		t.Errorf("LaceHeaders(nil) = %v, want nil", got)
	}
}

func TestPacketFamily_SupportsFormat(t *testing.T) {
	t.Parallel()

	data := readTestPackets(t)
	laced := media.NewAudioFormat(media.MimeAudioVorbis, 2, 48000)
	laced.InitializationData = [][]byte{LaceHeaders(data.Headers[:])}
	wide := packetFormat(data)
	wide.ChannelCount = 12

	tests := []struct {
		name   string
		format *media.Format
		want   renderer.FormatSupport
	}{
		{"nil", nil, renderer.FormatUnsupportedType},
		{"ogg", media.NewAudioFormat(media.MimeAudioOgg, 2, 44100), renderer.FormatUnsupportedType},
		{"no headers", media.NewAudioFormat(media.MimeAudioVorbis, 2, 44100), renderer.FormatUnsupportedSubtype},
		{"split headers", packetFormat(data), renderer.FormatHandled},
		{"laced headers", laced, renderer.FormatHandled},
		{"too many channels", wide, renderer.FormatExceedsCapabilities},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := (PacketFamily{}).SupportsFormat(tt.format); got != tt.want {
				t.Errorf("SupportsFormat() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPacketFamily_Decodes(t *testing.T) {
	t.Parallel()

	data := readTestPackets(t)
	fam := PacketFamily{}

	d, err := fam.CreateDecoder(packetFormat(data), nil)
	if err != nil {
		t.Fatalf("CreateDecoder() error = %v", err)
	}
	defer d.Release()

	out := fam.OutputFormat(d)
	if out == nil || out.ChannelCount != 1 || out.SampleRate != 44100 || out.PCMEncoding != media.EncodingPCM16Bit {
		t.Fatalf("OutputFormat() = %s, want raw pcm16 mono 44100 Hz", out)
	}

	got := audiotest.DecodeAll(t, d, packetInputs(data))
	if frames := len(got.PCM) / 2; frames < testFrames {
		t.Errorf("decoded %d frames, want at least %d", frames, testFrames)
	}

	// The first packet only primes the decoder.
	if len(got.Times) >= len(data.Packets) {
		t.Errorf("outputs = %d, want fewer than %d packets", len(got.Times), len(data.Packets))
	}
}

func TestPacketFamily_LacedHeaders(t *testing.T) {
	t.Parallel()

	data := readTestPackets(t)
	format := media.NewAudioFormat(media.MimeAudioVorbis, 1, 44100)
	format.InitializationData = [][]byte{LaceHeaders(data.Headers[:])}

	d, err := PacketFamily{}.CreateDecoder(format, nil)
	if err != nil {
		t.Fatalf("CreateDecoder() error = %v", err)
	}
	d.Release()
}

func TestPacketFamily_Decrypts(t *testing.T) {
	t.Parallel()

	data := readTestPackets(t)
	session := audiotest.NewFakeSession(drm.StateOpenedWithKeys)

	d, err := PacketFamily{}.CreateDecoder(packetFormat(data), session.CryptoContext())
	if err != nil {
		t.Fatalf("CreateDecoder() error = %v", err)
	}
	defer d.Release()

	inputs := packetInputs(data)[:4]
	for i := range inputs {
		inputs[i].Flags |= media.FlagEncrypted
	}
	audiotest.DecodeAll(t, d, inputs)

	if session.Decrypted != len(inputs) {
		t.Errorf("Decrypted = %d, want %d", session.Decrypted, len(inputs))
	}
}

func TestPacketFamily_CreateDecoderErrors(t *testing.T) {
	t.Parallel()

	data := readTestPackets(t)

	missing := media.NewAudioFormat(media.MimeAudioVorbis, 1, 44100)
	if _, err := (PacketFamily{}).CreateDecoder(missing, nil); !errors.Is(err, ErrInvalidCodecPrivate) {
		t.Errorf("CreateDecoder() error = %v, want %v", err, ErrInvalidCodecPrivate)
	}

	noSetup := packetFormat(data)
	noSetup.InitializationData = [][]byte{data.Headers[0], data.Headers[1], data.Headers[1]}
	if _, err := (PacketFamily{}).CreateDecoder(noSetup, nil); !errors.Is(err, ErrInvalidCodecPrivate) {
		t.Errorf("CreateDecoder() error = %v, want %v", err, ErrInvalidCodecPrivate)
	}

	bad := packetFormat(data)
	bad.InitializationData = [][]byte{{1, 2, 3}, data.Headers[1], data.Headers[2]}
	if _, err := (PacketFamily{}).CreateDecoder(bad, nil); err == nil {
		t.Error("CreateDecoder() error = nil for a corrupt identification header")
	}
}

func TestPacketFamily_CanKeepCodec(t *testing.T) {
	t.Parallel()

	data := readTestPackets(t)
	a := packetFormat(data)
	b := packetFormat(data)
	b.ID = "other"

	if !(PacketFamily{}).CanKeepCodec(a, b) {
		t.Error("CanKeepCodec() = false for equal headers")
	}

	c := packetFormat(data)
	c.InitializationData = [][]byte{data.Headers[0], {}, data.Headers[2]}
	if (PacketFamily{}).CanKeepCodec(a, c) {
		t.Error("CanKeepCodec() = true for different headers")
	}
}

func TestOggStream_Read(t *testing.T) {
	t.Parallel()

	s := newOggStream(&mockOggVorbisReader{
		sampleRate: 22050,
		channels:   2,
		samples:    []float32{0, 0.5, -0.5, 1, 2, -2},
	})

	if s.SampleRate() != 22050 || s.Channels() != 2 {
		t.Errorf("stream = %d Hz %d ch, want 22050 Hz 2 ch", s.SampleRate(), s.Channels())
	}

	// Room for one and a half frames reads one frame.
	p := make([]byte, 6)
	n, err := s.Read(p)
	if err != nil || n != 4 {
		t.Fatalf("Read() = %d, %v, want 4, nil", n, err)
	}
	if got := int16(binary.LittleEndian.Uint16(p[2:])); got != 16383 {
		t.Errorf("second sample = %d, want 16383", got)
	}

	rest, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	want := []int16{-16383, 32767, 32767, -32767}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(rest[2*i:])); got != w {
			t.Errorf("sample %d = %d, want %d", i+2, got, w)
		}
	}
}

func TestOggStream_ShortBuffer(t *testing.T) {
	t.Parallel()

	s := newOggStream(&mockOggVorbisReader{channels: 2})
	if _, err := s.Read(make([]byte, 3)); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Read() error = %v, want %v", err, io.ErrShortBuffer)
	}
}

func TestStreamFamily_SupportsFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format *media.Format
		want   renderer.FormatSupport
	}{
		{"nil", nil, renderer.FormatUnsupportedType},
		{"vorbis packets", media.NewAudioFormat(media.MimeAudioVorbis, 2, 44100), renderer.FormatUnsupportedType},
		{"ogg", media.NewAudioFormat(media.MimeAudioOgg, 2, 44100), renderer.FormatHandled},
		{"protected", media.NewAudioFormat(media.MimeAudioOgg, 2, 44100).WithDrmInitData(&media.DrmInitData{}), renderer.FormatUnsupportedDrm},
	}

	for _, tt := range tests {
		if got := (StreamFamily{}).SupportsFormat(tt.format); got != tt.want {
			t.Errorf("%s: SupportsFormat() = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestStreamFamily_DecodesFile(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile(testOgg)
	if err != nil {
		t.Fatal(err)
	}

	var inputs []audiotest.Captured
	for chunk := range slices(raw, 1024) {
		inputs = append(inputs, audiotest.Captured{Data: chunk, Flags: media.FlagKeyFrame})
	}

	fam := StreamFamily{}
	d, err := fam.CreateDecoder(media.NewAudioFormat(media.MimeAudioOgg, 1, 44100), nil)
	if err != nil {
		t.Fatalf("CreateDecoder() error = %v", err)
	}
	defer d.Release()

	got := audiotest.DecodeAll(t, d, inputs)
	if frames := len(got.PCM) / 2; frames < testFrames || frames > testFrames+outputChunk {
		t.Errorf("decoded %d frames, want about %d", frames, testFrames)
	}

	out := fam.OutputFormat(d)
	if out == nil || out.ChannelCount != 1 || out.SampleRate != 44100 {
		t.Errorf("OutputFormat() = %s, want mono 44100 Hz", out)
	}
	if fam.CanKeepCodec(out, out) {
		t.Error("CanKeepCodec() = true")
	}
}

func TestStreamFamily_CreateDecoderProtected(t *testing.T) {
	t.Parallel()

	session := audiotest.NewFakeSession(drm.StateOpenedWithKeys)
	_, err := StreamFamily{}.CreateDecoder(media.NewAudioFormat(media.MimeAudioOgg, 2, 44100), session.CryptoContext())
	if !errors.Is(err, ErrProtectedStream) {
		t.Errorf("CreateDecoder() error = %v, want %v", err, ErrProtectedStream)
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	info, err := Probe(testOgg)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	f := info.Format
	if f.SampleMimeType != media.MimeAudioOgg || f.SampleRate != 44100 || f.ChannelCount != 1 {
		t.Errorf("format = %s, want audio/ogg mono 44100 Hz", f)
	}
	if info.Frames != testFrames || f.DurationUs != 1_000_000 {
		t.Errorf("Frames = %d, DurationUs = %d, want %d, 1000000", info.Frames, f.DurationUs, testFrames)
	}
}

func TestProbe_NotOgg(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/text.ogg"
	if err := os.WriteFile(path, []byte("not an ogg stream"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Probe(path); !errors.Is(err, ErrNotOggVorbis) {
		t.Errorf("Probe() error = %v, want %v", err, ErrNotOggVorbis)
	}
}

func TestOpen_ReadsFile(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile(testOgg)
	if err != nil {
		t.Fatal(err)
	}

	s, err := Open(testOgg, source.Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	_, samples := audiotest.ReadAll(t, s)
	var data []byte
	for _, smp := range samples {
		data = append(data, smp.Data...)
	}
	if !bytes.Equal(data, raw) {
		t.Errorf("stream payload differs from file: %d bytes, want %d", len(data), len(raw))
	}
}

func TestOpen_SeekNotSupported(t *testing.T) {
	t.Parallel()

	s, err := Open(testOgg, source.Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.SeekTo(500_000); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}

	var holder source.FormatHolder
	buf := media.NewInputBuffer(0)
	deadline := time.Now().Add(audiotest.PollTimeout)
	for time.Now().Before(deadline) {
		s.ReadData(&holder, buf, false)
		if err := s.MaybeThrowError(); err != nil {
			if !errors.Is(err, source.ErrNotSeekable) {
				t.Errorf("MaybeThrowError() = %v, want %v", err, source.ErrNotSeekable)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("seek error never surfaced")
}

func TestRegister(t *testing.T) {
	t.Parallel()

	r := source.NewRegistry()
	Register(r)
	for _, ext := range []string{"ogg", "oga"} {
		if _, ok := r.Get(ext); !ok {
			t.Errorf("Get(%q) not registered", ext)
		}
	}
}

// slices yields p in pieces of at most n bytes.
func slices(p []byte, n int) func(func([]byte) bool) {
	return func(yield func([]byte) bool) {
		for len(p) > 0 {
			k := min(n, len(p))
			if !yield(p[:k]) {
				return
			}
			p = p[k:]
		}
	}
}

func BenchmarkPacketFamily_Decode(b *testing.B) {
	data := readTestPackets(b)
	inputs := packetInputs(data)

	b.ReportAllocs()
	for b.Loop() {
		d, err := PacketFamily{}.CreateDecoder(packetFormat(data), nil)
		if err != nil {
			b.Fatal(err)
		}
		audiotest.DecodeAll(b, d, inputs)
		d.Release()
	}
}
