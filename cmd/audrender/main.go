// SPDX-License-Identifier: EPL-2.0

// Package main provides the CLI entry point for audrender.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/audrender"
	"github.com/ik5/audrender/config"
	"github.com/ik5/audrender/logger"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/playback"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Play    PlayCmd    `cmd:"" help:"Render an audio file to WAV through the decoder pipeline."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// PlayCmd defines the play subcommand. Flags override the configuration file.
type PlayCmd struct {
	Input  string  `arg:"" optional:"" help:"Input file (wav, aiff, mp3, ogg, webm)."`
	Output *string `short:"o" help:"Output WAV file path (default: ${defaultOutput})."`
	Config string  `short:"c" type:"existingfile" help:"YAML configuration file."`

	// Output processing
	Rate        *int     `short:"r" help:"Output sample rate in Hz (default: decoded rate)."`
	Mono        bool     `short:"m" help:"Mix the output down to mono."`
	Volume      *float64 `help:"Output gain (1.0 = unity)."`
	Speed       *float64 `help:"Playback speed."`
	SkipSilence bool     `help:"Drop silent frames from the output."`

	// Timing
	Start    *time.Duration `short:"s" help:"Start position (e.g. 1m30s)."`
	Buffer   *time.Duration `help:"Sink buffer duration (default: ${defaultBuffer})."`
	Tick     *time.Duration `help:"Render tick interval (default: ${defaultTick})."`
	Realtime bool           `help:"Play against the wall clock instead of rendering as fast as possible."`

	// DRM
	Key         map[string]string `short:"k" help:"ClearKey as KID=KEY in hex. May be repeated."`
	LicenseFile *string           `help:"ClearKey JSON Web Key Set file."`
	PlayClear   bool              `help:"Play clear samples before keys are loaded."`

	// Logging options
	LogLevel *string `short:"l" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)."`
	Quiet    bool    `short:"Q" help:"Suppress all log output."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("audrender"),
		kong.Description("Render audio files through a decoder driven audio renderer."),
		kong.UsageOnError(),
		helpDefaults(config.Defaults()),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// helpDefaults exposes the configuration defaults to flag help text.
func helpDefaults(cfg config.Config) kong.Vars {
	return kong.Vars{
		"defaultOutput": cfg.Output,
		"defaultBuffer": (time.Duration(cfg.BufferMs) * time.Millisecond).String(),
		"defaultTick":   (time.Duration(cfg.TickMs) * time.Millisecond).String(),
	}
}

// Run executes the play command.
func (cmd *PlayCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create logger
	var log logger.Logger
	if cfg.Quiet {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(cfg.Level())
	}
	if cmd.Config != "" {
		log.Debug("Loaded configuration: %s", cmd.Config)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Received signal, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	progress := make(chan playback.Progress, 1)

	var res *audrender.Result
	g.Go(func() error {
		defer close(progress)

		var err error
		res, err = audrender.Render(ctx, cfg,
			audrender.WithLogger(log),
			audrender.WithProgress(func(p playback.Progress) {
				select {
				case progress <- p:
				default:
				}
			}),
		)
		return err
	})

	g.Go(func() error {
		for p := range progress {
			reportProgress(log, p)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Playback stopped")
			return nil
		}
		return err
	}

	log.Info("Rendered %s: %d frames, %s decoder", cfg.Output, res.Frames, res.Decoder)
	return nil
}

func reportProgress(log logger.Logger, p playback.Progress) {
	if p.DurationUs == media.TimeUnset || p.DurationUs <= 0 {
		log.Info("Playback position: %.2fs", float64(p.PositionUs)/1e6)
		return
	}
	log.Info("Playback position: %.2fs / %.2fs (%s)",
		float64(p.PositionUs)/1e6, float64(p.DurationUs)/1e6, p.State)
}

// buildConfig loads the configuration file, if any, and applies CLI overrides.
func (cmd *PlayCmd) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cmd.Config != "" {
		loaded, err := config.LoadFromFile(cmd.Config)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Input != "" {
		cfg.Input = cmd.Input
	}
	if cmd.Output != nil {
		cfg.Output = *cmd.Output
	}

	// Output processing
	if cmd.Rate != nil {
		cfg.OutputRate = *cmd.Rate
	}
	if cmd.Mono {
		cfg.Mono = true
	}
	if cmd.Volume != nil {
		cfg.Volume = *cmd.Volume
	}
	if cmd.Speed != nil {
		cfg.Speed = *cmd.Speed
	}
	if cmd.SkipSilence {
		cfg.SkipSilence = true
	}

	// Timing
	if cmd.Start != nil {
		cfg.StartMs = cmd.Start.Milliseconds()
	}
	if cmd.Buffer != nil {
		cfg.BufferMs = int(cmd.Buffer.Milliseconds())
	}
	if cmd.Tick != nil {
		cfg.TickMs = int(cmd.Tick.Milliseconds())
	}
	if cmd.Realtime {
		cfg.Realtime = true
	}

	// DRM
	if len(cmd.Key) > 0 {
		cfg.DRM.ClearKeys = cmd.Key
	}
	if cmd.LicenseFile != nil {
		cfg.DRM.LicenseFile = *cmd.LicenseFile
	}
	if cmd.PlayClear {
		cfg.DRM.PlayClearWithoutKeys = true
	}

	// Logging
	if cmd.LogLevel != nil {
		cfg.LogLevel = *cmd.LogLevel
	}
	if cmd.Quiet {
		cfg.Quiet = true
	}

	return cfg, nil
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("audrender version %s", version))
	return nil
}
