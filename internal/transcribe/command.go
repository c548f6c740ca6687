package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/config"
)

// blankAudio is what whisper.cpp prints for chunks without speech.
const blankAudio = "[BLANK_AUDIO]"

// CommandEngine runs a whisper.cpp style CLI once per chunk. The chunk is
// written to a temporary WAV file that is removed after each call.
type CommandEngine struct {
	path      string
	modelPath string
	args      []string
	tmpDir    string
}

// NewCommandEngine checks the binary exists and prepares a scratch directory.
// The caller must call Close() when done.
func NewCommandEngine(cfg config.CommandConfig) (*CommandEngine, error) {
	bin, err := exec.LookPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: command %q not found: %w", cfg.Path, err)
	}
	if cfg.ModelPath != "" {
		if _, err := os.Stat(cfg.ModelPath); err != nil {
			return nil, fmt.Errorf("transcribe: model %q: %w", cfg.ModelPath, err)
		}
	}

	tmpDir, err := os.MkdirTemp("", "gostt-live-*")
	if err != nil {
		return nil, fmt.Errorf("transcribe: creating scratch dir: %w", err)
	}

	return &CommandEngine{
		path:      bin,
		modelPath: cfg.ModelPath,
		args:      cfg.Args,
		tmpDir:    tmpDir,
	}, nil
}

// Transcribe writes the chunk to disk, runs the command, and returns its
// stdout as text. The process is killed if ctx is done.
func (e *CommandEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if e.tmpDir == "" {
		return Result{}, fmt.Errorf("transcribe: command engine is closed")
	}
	chunkPath := filepath.Join(e.tmpDir, "chunk.wav")
	if err := audio.WriteWAVFile(chunkPath, req.Audio, req.SampleRate, req.Channels); err != nil {
		return Result{}, fmt.Errorf("transcribe: write chunk: %w", err)
	}
	defer os.Remove(chunkPath)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, e.commandArgs(chunkPath, req.Language)...) //nolint:gosec // binary and args come from the user's config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("transcribe: command: %w", ctx.Err())
		}
		return Result{}, fmt.Errorf("transcribe: command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := parseCommandOutput(stdout.String())
	slog.Debug("command transcription", "chars", len(text))
	return Result{Text: text, Language: req.Language}, nil
}

// Close removes the scratch directory and any chunk file left in it.
func (e *CommandEngine) Close() error {
	if e.tmpDir == "" {
		return nil
	}
	err := os.RemoveAll(e.tmpDir)
	e.tmpDir = ""
	if err != nil {
		return fmt.Errorf("transcribe: removing scratch dir: %w", err)
	}
	return nil
}

func (e *CommandEngine) commandArgs(chunkPath, language string) []string {
	var args []string
	if e.modelPath != "" {
		args = append(args, "-m", e.modelPath)
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	// -nt: no timestamps, -np: no progress/system prints
	args = append(args, "-nt", "-np")
	args = append(args, e.args...)
	return append(args, "-f", chunkPath)
}

// parseCommandOutput joins the non-empty output lines and drops
// blank-audio markers.
func parseCommandOutput(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, blankAudio, ""))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
