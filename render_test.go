// SPDX-License-Identifier: EPL-2.0

package audrender

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	gowav "github.com/go-audio/wav"

	"github.com/ik5/audrender/config"
	"github.com/ik5/audrender/drm"
	"github.com/ik5/audrender/formats/wav"
	"github.com/ik5/audrender/playback"
	"github.com/ik5/audrender/source"
)

func writeStereo(t *testing.T, rate, frames int) string {
	t.Helper()

	samples := make([]int16, frames*2)
	for i := range samples {
		samples[i] = int16(2000 + i%500)
	}
	buf := new(bytes.Buffer)
	if err := wav.WritePCM16(buf, rate, 2, samples); err != nil {
		t.Fatalf("WritePCM16() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T, input string) config.Config {
	t.Helper()

	cfg := config.Defaults()
	cfg.Input = input
	cfg.Output = filepath.Join(t.TempDir(), "out.wav")
	cfg.ProgressMs = 0
	return cfg
}

func readOutput(t *testing.T, path string) *gowav.Decoder {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })

	dec := gowav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("%s is not a valid wav file", path)
	}
	return dec
}

func TestRender_WavToMono16k(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, writeStereo(t, 8000, 4000))
	cfg.OutputRate = 16000
	cfg.Mono = true

	var reports int
	res, err := Render(context.Background(), cfg, WithProgress(func(playback.Progress) { reports++ }))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if res.Frames != 4000 {
		t.Errorf("Frames = %d, want 4000", res.Frames)
	}
	if res.Decoder != "raw" {
		t.Errorf("Decoder = %q, want raw", res.Decoder)
	}
	if res.Format == nil || res.Format.SampleRate != 8000 || res.Format.ChannelCount != 2 {
		t.Errorf("Format = %v, want 8000 Hz stereo", res.Format)
	}
	if res.PositionUs < 490_000 {
		t.Errorf("PositionUs = %d, want about 500000", res.PositionUs)
	}
	if reports == 0 {
		t.Error("no progress reported")
	}

	dec := readOutput(t, cfg.Output)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error = %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 {
		t.Errorf("output = %d Hz, %d ch, want 16000 Hz mono", dec.SampleRate, dec.NumChans)
	}
	if n := len(buf.Data); n < 7900 || n > 8100 {
		t.Errorf("output frames = %d, want about 8000", n)
	}
}

func TestRender_Volume(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, writeStereo(t, 8000, 800))
	cfg.Volume = 0

	if _, err := Render(context.Background(), cfg); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	buf, err := readOutput(t, cfg.Output).FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error = %v", err)
	}
	for i, v := range buf.Data {
		if v != 0 {
			t.Fatalf("sample %d = %d, want silence", i, v)
		}
	}
}

func TestRender_OggVorbis(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, filepath.Join("formats", "vorbis", "testdata", "test.ogg"))

	res, err := Render(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Decoder != "oggvorbis" {
		t.Errorf("Decoder = %q, want oggvorbis", res.Decoder)
	}
	if res.Frames < 44100 || res.Frames > 44100+8192 {
		t.Errorf("Frames = %d, want about 44100", res.Frames)
	}
}

func TestRender_Errors(t *testing.T) {
	t.Parallel()

	input := writeStereo(t, 8000, 100)

	tests := []struct {
		name   string
		modify func(*config.Config)
		want   error
	}{
		{"no input", func(c *config.Config) { c.Input = "" }, config.ErrNoInput},
		{"unknown extension", func(c *config.Config) { c.Input = "song.flac" }, source.ErrUnknownExtension},
		{"missing file", func(c *config.Config) { c.Input = filepath.Join(t.TempDir(), "none.wav") }, os.ErrNotExist},
		{"bad key", func(c *config.Config) {
			c.DRM.ClearKeys = map[string]string{"0123456789abcdef0123456789abcdef": "00"}
		}, drm.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t, input)
			tt.modify(&cfg)
			if _, err := Render(context.Background(), cfg); !errors.Is(err, tt.want) {
				t.Errorf("Render() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRender_StopEarly(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, writeStereo(t, 8000, 80000))
	cfg.Realtime = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := Render(ctx, cfg, WithPlayer(func(p *playback.Player) {
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = p.Stop(ctx)
		}()
	}))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Frames >= 80000 {
		t.Errorf("Frames = %d, want a partial render", res.Frames)
	}
}

func TestRender_Cancelled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, writeStereo(t, 8000, 80000))
	cfg.Realtime = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := Render(ctx, cfg); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Render() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRegistries(t *testing.T) {
	t.Parallel()

	wantExts := []string{"aif", "aiff", "mka", "mkv", "mp3", "oga", "ogg", "wav", "wave", "weba", "webm"}
	if got := Extractors().Extensions(); !slices.Equal(got, wantExts) {
		t.Errorf("Extensions() = %v, want %v", got, wantExts)
	}

	wantFamilies := []string{"mp3", "oggvorbis", "raw", "vorbis"}
	if got := Families().Names(); !slices.Equal(got, wantFamilies) {
		t.Errorf("Names() = %v, want %v", got, wantFamilies)
	}
}
