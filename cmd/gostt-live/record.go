package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/config"
	"github.com/chaz8081/gostt-live/internal/hotkey"
	"github.com/chaz8081/gostt-live/internal/inject"
	"github.com/chaz8081/gostt-live/internal/metrics"
	"github.com/chaz8081/gostt-live/internal/session"
	"github.com/chaz8081/gostt-live/internal/transcribe"
)

type recordFlags struct {
	output string
	device string
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "transcript file (default: timestamped file in output.dir)")
	cmd.Flags().StringVar(&f.device, "device", "", "input device name substring (overrides config)")
}

func newRecordCommand(g *globalFlags) *cobra.Command {
	f := &recordFlags{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record and transcribe until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), g, f)
		},
	}
	f.register(cmd)
	return cmd
}

// applyOverrides folds command-line flags into cfg.
func applyOverrides(cfg *config.Config, g *globalFlags, f *recordFlags) {
	if g.logLevel != "" {
		cfg.LogLevel = strings.ToLower(g.logLevel)
	}
	if f.device != "" {
		cfg.Audio.Device = f.device
	}
	if f.output != "" {
		cfg.Output.Path = f.output
	}
}

func runRecord(ctx context.Context, g *globalFlags, f *recordFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	setupLogging(g.logLevel)

	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	applyOverrides(cfg, g, f)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	setupLogging(cfg.LogLevel)

	printBanner(cfg)

	engine, err := transcribe.New(&cfg.Transcribe)
	if err != nil {
		return fmt.Errorf("transcription engine: %w", err)
	}
	slog.Info("Transcription engine ready", "backend", cfg.Transcribe.Backend)

	src, err := audio.OpenCapture(audio.CaptureConfig{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		Device:     cfg.Audio.Device,
	})
	if err != nil {
		engine.Close()
		return fmt.Errorf("failed to open audio capture: %w\n\nEnsure microphone access is granted to this terminal", err)
	}

	var sink session.Sink
	if cfg.Inject.Method != "none" {
		injector, err := inject.NewInjector(cfg.Inject.Method)
		if err != nil {
			src.Close()
			engine.Close()
			return err
		}
		sink = injector
		slog.Info("Text injector ready", "method", cfg.Inject.Method)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	stopHint := "Ctrl+C"
	if len(cfg.Hotkey.Keys) > 0 {
		trigger, err := hotkey.NewTrigger(cfg.Hotkey.Keys)
		if err != nil {
			src.Close()
			engine.Close()
			return err
		}
		go trigger.Watch(ctx, stop)
		stopHint = trigger.String() + " or Ctrl+C"
	}

	sess := session.New(cfg, src, engine, session.Options{
		OutputPath: cfg.Output.Path,
		Metrics:    m,
		Sink:       sink,
	})

	fmt.Printf("Recording... press %s to stop.\n", stopHint)
	start := time.Now()
	runErr := sess.Run(ctx)

	fmt.Printf("\nRecorded %s, %d segments.\n", time.Since(start).Round(time.Second), sess.Transcript().Len())
	if _, err := os.Stat(sess.OutputPath()); err == nil {
		fmt.Printf("Transcript saved to %s\n", sess.OutputPath())
	}
	return runErr
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	device := cfg.Audio.Device
	if device == "" {
		device = "(default)"
	}
	engine := cfg.Transcribe.Backend
	switch cfg.Transcribe.Backend {
	case "openai":
		engine += " (" + cfg.Transcribe.OpenAI.Model + ")"
	case "command":
		engine += " (" + cfg.Transcribe.Command.Path + ")"
	}

	fmt.Println("=== gostt-live ===")
	fmt.Printf("  Engine:  %s\n", engine)
	fmt.Printf("  Audio:   %dHz, %dch, device %s\n", cfg.Audio.SampleRate, cfg.Audio.Channels, device)
	fmt.Printf("  Chunks:  %s (overlap %s)\n", cfg.Chunk.Duration, cfg.Chunk.Overlap)
	fmt.Printf("  Inject:  %s\n", cfg.Inject.Method)
	if cfg.Metrics.Listen != "" {
		fmt.Printf("  Metrics: %s/metrics\n", cfg.Metrics.Listen)
	}
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("==================")
}
