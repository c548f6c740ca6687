// Package transcribe provides speech-to-text engines.
//
// Supported backends:
//   - openai: any OpenAI-compatible /audio/transcriptions endpoint (default)
//   - command: a whisper.cpp style CLI run on a temporary WAV file
package transcribe

import (
	"context"
	"fmt"

	"github.com/chaz8081/gostt-live/internal/config"
)

// Request is one chunk of audio to transcribe.
type Request struct {
	// Audio is little-endian signed 16-bit PCM.
	Audio      []byte
	SampleRate int
	Channels   int
	// Language is an ISO-639-1 hint; empty lets the engine detect it.
	Language string
}

// Result is the engine's raw text for one chunk.
type Result struct {
	Text     string
	Language string
}

// Engine converts one chunk of audio to text. Calls are independent: no
// state carries over from one chunk to the next.
type Engine interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
	// Close releases backend resources.
	Close() error
}

// New creates an Engine based on the config backend setting.
func New(cfg *config.TranscribeConfig) (Engine, error) {
	switch cfg.Backend {
	case "openai", "":
		e, err := NewOpenAIEngine(cfg.OpenAI)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "command":
		e, err := NewCommandEngine(cfg.Command)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: openai, command)", cfg.Backend)
	}
}
