// SPDX-License-Identifier: EPL-2.0

package playback

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ik5/audrender/formats/wav"
	"github.com/ik5/audrender/internal/audiotest"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/renderer"
	"github.com/ik5/audrender/sink"
	"github.com/ik5/audrender/source"
)

var errBoom = errors.New("boom")

func rawFormat() *media.Format {
	return media.NewAudioFormat(media.MimeAudioRaw, 1, 8000).WithPCMEncoding(media.EncodingPCM16Bit)
}

// writeTone writes a mono 16-bit WAV of frames non-silent frames.
func writeTone(t *testing.T, rate, frames int) string {
	t.Helper()

	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = int16(1000 + i%100)
	}
	buf := new(bytes.Buffer)
	if err := wav.WritePCM16(buf, rate, 1, samples); err != nil {
		t.Fatalf("WritePCM16() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

type progressLog struct {
	all []Progress
}

func (l *progressLog) record(p Progress) { l.all = append(l.all, p) }

func (l *progressLog) last() Progress {
	if len(l.all) == 0 {
		return Progress{}
	}
	return l.all[len(l.all)-1]
}

func withTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func TestPlayer_PlaysWavToEnd(t *testing.T) {
	t.Parallel()

	const rate, frames = 8000, 4000
	stream, err := wav.Open(writeTone(t, rate, frames), source.Options{})
	if err != nil {
		t.Fatalf("wav.Open() error = %v", err)
	}

	clock := sink.NewManualClock()
	out := sink.NewWavSink(sink.WithClock(clock), sink.WithBufferDuration(100*time.Millisecond))
	r := renderer.New(wav.Family{}, out)

	progress := &progressLog{}
	p := New(r, stream,
		WithManualClock(clock),
		WithProgress(progress.record, time.Hour),
	)

	if err := p.Run(withTimeout(t, 10*time.Second)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := out.RecordedFrames(); got != frames {
		t.Errorf("RecordedFrames() = %d, want %d", got, frames)
	}
	if r.State() != renderer.StateDisabled {
		t.Errorf("renderer state = %v, want disabled", r.State())
	}

	last := progress.last()
	if last.State != StateEnded {
		t.Errorf("last progress state = %v, want ended", last.State)
	}
	if last.PositionUs < 490_000 {
		t.Errorf("last position = %dus, want about 500000", last.PositionUs)
	}
	if last.DurationUs != 500_000 {
		t.Errorf("duration = %dus, want 500000", last.DurationUs)
	}
	if last.Counters.RenderedOutputBufferCount == 0 {
		t.Error("no output buffers rendered")
	}
	// First report plus the final one; the interval suppresses the rest.
	if len(progress.all) != 2 {
		t.Errorf("progress reports = %d, want 2", len(progress.all))
	}
}

func TestPlayer_StartPosition(t *testing.T) {
	t.Parallel()

	stream, err := wav.Open(writeTone(t, 8000, 8000), source.Options{})
	if err != nil {
		t.Fatalf("wav.Open() error = %v", err)
	}

	clock := sink.NewManualClock()
	out := sink.NewWavSink(sink.WithClock(clock))
	p := New(renderer.New(wav.Family{}, out), stream,
		WithManualClock(clock),
		WithStartPosition(750_000),
	)

	if err := p.Run(withTimeout(t, 10*time.Second)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// The extractor seeks to the exact frame, so only the last quarter plays.
	if got := out.RecordedFrames(); got != 2000 {
		t.Errorf("RecordedFrames() = %d, want 2000", got)
	}
}

func TestPlayer_FakePipelineEnds(t *testing.T) {
	t.Parallel()

	stream := audiotest.NewFakeStream(
		audiotest.FormatItem(rawFormat(), nil),
		audiotest.SampleItem(0, 1, 0, 2, 0),
		audiotest.EndItem(),
	)
	fake := audiotest.NewFakeSink()
	fake.Ended = true

	progress := &progressLog{}
	p := New(renderer.New(wav.Family{}, fake), stream,
		WithManualClock(sink.NewManualClock()),
		WithProgress(progress.record, 0),
	)

	if err := p.Run(withTimeout(t, 5*time.Second)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fake.Buffers) != 1 || !bytes.Equal(fake.Buffers[0].Data, []byte{1, 0, 2, 0}) {
		t.Errorf("sink buffers = %+v, want one 4 byte buffer", fake.Buffers)
	}
	if fake.EndOfStreams == 0 {
		t.Error("PlayToEndOfStream was never called")
	}
	if fake.Resets != 1 {
		t.Errorf("sink resets = %d, want 1", fake.Resets)
	}
	if !stream.Closed {
		t.Error("stream was not closed")
	}
	if got := progress.last().State; got != StateEnded {
		t.Errorf("last state = %v, want ended", got)
	}
}

func TestPlayer_StallIsNotAnError(t *testing.T) {
	t.Parallel()

	notReady := false
	stream := audiotest.NewFakeStream(audiotest.FormatItem(rawFormat(), nil))
	stream.Ready = &notReady
	fake := audiotest.NewFakeSink()

	progress := &progressLog{}
	p := New(renderer.New(wav.Family{}, fake), stream,
		WithTickInterval(time.Millisecond),
		WithProgress(progress.record, 0),
	)

	err := p.Run(withTimeout(t, 50*time.Millisecond))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if fake.Playing {
		t.Error("sink playing while the stream is stalled")
	}
	if got := progress.last().State; got != StateBuffering {
		t.Errorf("state = %v, want buffering", got)
	}
}

func TestPlayer_StreamErrorStopsPlayback(t *testing.T) {
	t.Parallel()

	notReady := false
	stream := audiotest.NewFakeStream(audiotest.FormatItem(rawFormat(), nil))
	stream.Ready = &notReady
	stream.Err = errBoom

	p := New(renderer.New(wav.Family{}, audiotest.NewFakeSink()), stream,
		WithTickInterval(time.Millisecond))

	err := p.Run(withTimeout(t, 5*time.Second))
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want errBoom", err)
	}
	var rerr *renderer.Error
	if !errors.As(err, &rerr) || rerr.Kind != renderer.KindSource {
		t.Errorf("Run() error = %v, want source renderer.Error", err)
	}
}

func TestPlayer_Commands(t *testing.T) {
	t.Parallel()

	notReady := false
	stream := audiotest.NewFakeStream(audiotest.FormatItem(rawFormat(), nil))
	stream.Ready = &notReady
	fake := audiotest.NewFakeSink()
	r := renderer.New(wav.Family{}, fake)

	p := New(r, stream, WithTickInterval(time.Millisecond))

	ctx := withTimeout(t, 5*time.Second)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	if err := p.SetVolume(ctx, 0.25); err != nil {
		t.Fatalf("SetVolume() error = %v", err)
	}
	if err := p.SetSpeed(ctx, 2); err != nil {
		t.Fatalf("SetSpeed() error = %v", err)
	}
	if err := p.Pause(ctx); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := p.Seek(ctx, 1_000_000); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	if err := p.Seek(ctx, -1); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Seek(-1) error = %v, want ErrInvalidPosition", err)
	}
	if err := p.Resume(ctx); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fake.Volume != 0.25 {
		t.Errorf("sink volume = %v, want 0.25", fake.Volume)
	}
	if fake.Speed != 2 {
		t.Errorf("sink speed = %v, want 2", fake.Speed)
	}
	if len(stream.Seeks) != 1 || stream.Seeks[0] != 1_000_000 {
		t.Errorf("stream seeks = %v, want [1000000]", stream.Seeks)
	}
	// Enable and the seek each flush the sink.
	if fake.Flushes < 2 {
		t.Errorf("sink flushes = %d, want at least 2", fake.Flushes)
	}
	if !stream.Closed {
		t.Error("stream was not closed")
	}

	if err := p.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() after Run error = %v, want ErrNotRunning", err)
	}
	if err := p.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateBuffering, "buffering"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateEnded, "ended"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func BenchmarkPlayer_Wav(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.wav")
	samples := make([]int16, 44100)
	buf := new(bytes.Buffer)
	if err := wav.WritePCM16(buf, 44100, 1, samples); err != nil {
		b.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		stream, err := wav.Open(path, source.Options{})
		if err != nil {
			b.Fatal(err)
		}
		clock := sink.NewManualClock()
		r := renderer.New(wav.Family{}, sink.NewWavSink(sink.WithClock(clock)))
		if err := New(r, stream, WithManualClock(clock)).Run(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
