package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/config"
)

// OpenAIEngine transcribes through an OpenAI-compatible HTTP API. Pointing
// BaseURL at a local whisper server keeps audio on the machine.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine creates an engine for the given endpoint. The API key
// falls back to $OPENAI_API_KEY; it may be empty only when a custom base URL
// is set.
func NewOpenAIEngine(cfg config.OpenAIConfig) (*OpenAIEngine, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("transcribe: openai api key is required (set transcribe.openai.api_key or OPENAI_API_KEY)")
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Transcribe uploads the chunk as an in-memory WAV file.
func (e *OpenAIEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	wavData, err := audio.EncodeWAV(req.Audio, req.SampleRate, req.Channels)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: encode chunk: %w", err)
	}

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: "chunk.wav",
		Reader:   bytes.NewReader(wavData),
		Language: req.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: openai request: %w", err)
	}

	slog.Debug("openai transcription", "model", e.model, "chars", len(resp.Text))
	return Result{Text: strings.TrimSpace(resp.Text), Language: resp.Language}, nil
}

// Close is a no-op; the HTTP client holds no per-session resources.
func (e *OpenAIEngine) Close() error {
	return nil
}
