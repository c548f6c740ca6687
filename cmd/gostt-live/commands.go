package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/config"
	"github.com/chaz8081/gostt-live/internal/models"
	"github.com/chaz8081/gostt-live/internal/transcribe"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := audio.ListDevices()
			if err != nil {
				return err
			}
			printDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
}

func printDevices(w io.Writer, devices []audio.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No input devices found.")
		return
	}
	for i, d := range devices {
		mark := " "
		if d.IsDefault {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %2d  %s\n", mark, i, d.Name)
	}
	fmt.Fprintln(w, "\nSelect one with --device or audio.device (case-insensitive substring).")
}

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Config already exists: %s\n", config.DefaultConfigPath())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
}

func newModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage whisper.cpp models for the command backend",
	}

	var dir string
	download := &cobra.Command{
		Use:   "download [MODEL]",
		Short: "Download a ggml model (default " + models.DefaultModel + ")",
		Long:  "Download a whisper.cpp ggml model. Known models: " + strings.Join(models.Known, ", "),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := models.DefaultModel
			if len(args) == 1 {
				model = args[0]
			}
			d := &models.Downloader{Dir: dir, Progress: cmd.OutOrStdout()}
			path, err := d.Download(cmd.Context(), model)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model ready: %s\nSet transcribe.command.model_path to use it.\n", path)
			return nil
		},
	}
	download.Flags().StringVar(&dir, "dir", config.DefaultModelsDir(), "directory to store models in")

	cmd.AddCommand(download)
	return cmd
}

func newScoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "score REFERENCE HYPOTHESIS",
		Short: "Word error rate of a transcript against a reference text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading reference: %w", err)
			}
			hyp, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading hypothesis: %w", err)
			}
			printScore(cmd.OutOrStdout(), transcribe.ComputeWER(string(ref), string(hyp)))
			return nil
		},
	}
}

func printScore(w io.Writer, r transcribe.WERResult) {
	if math.IsInf(r.WER, 1) {
		fmt.Fprintln(w, "WER:           undefined (empty reference)")
	} else {
		fmt.Fprintf(w, "WER:           %.2f%%\n", r.WER*100)
	}
	fmt.Fprintf(w, "Reference:     %d words\n", r.RefWords)
	fmt.Fprintf(w, "Hypothesis:    %d words\n", r.HypWords)
	fmt.Fprintf(w, "Substitutions: %d\n", r.Substitutions)
	fmt.Fprintf(w, "Insertions:    %d\n", r.Insertions)
	fmt.Fprintf(w, "Deletions:     %d\n", r.Deletions)
}
