// Command gostt-live records from a microphone, transcribes the audio in
// fixed-size chunks while recording, and writes the stitched transcript to a
// text file when stopped.
//
// Usage:
//
//	gostt-live [record] [--output FILE] [--config FILE] [--device NAME]
//	gostt-live devices
//	gostt-live init-config
//	gostt-live models download [MODEL]
//	gostt-live score REFERENCE HYPOTHESIS
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-live/internal/config"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	// .env supplies OPENAI_API_KEY and friends; real env vars win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		// Exit directly: gohook's C cleanup can crash on a normal return.
		os.Exit(1)
	}
	os.Exit(0)
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	rec := &recordFlags{}

	root := &cobra.Command{
		Use:           "gostt-live",
		Short:         "Live microphone transcription",
		Long:          "Record from a microphone until interrupted, transcribing chunks as they fill, then save the transcript.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), g, rec)
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to config file (default: ~/.config/gostt-live/config.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rec.register(root)

	root.AddCommand(newRecordCommand(g))
	root.AddCommand(newDevicesCommand())
	root.AddCommand(newInitConfigCommand())
	root.AddCommand(newModelsCommand())
	root.AddCommand(newScoreCommand())
	return root
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		slog.Debug("Config loaded", "path", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	slog.Debug("No config file found, using defaults")
	return config.Default(), nil
}

// setupLogging installs a text handler on stderr at the given level.
func setupLogging(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}
