package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Output     OutputConfig     `yaml:"output"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Inject     InjectConfig     `yaml:"inject"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	LogLevel   string           `yaml:"log_level"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
	// Device is matched as a case-insensitive substring of the input device
	// name. Empty selects the system default.
	Device string `yaml:"device"`
	// BufferFrames is the number of frames read from the device per call.
	BufferFrames int `yaml:"buffer_frames"`
}

// ChunkConfig holds the sliding window settings.
type ChunkConfig struct {
	Duration     time.Duration `yaml:"duration"`
	Overlap      time.Duration `yaml:"overlap"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxBuffered caps how much audio may queue up behind a slow engine.
	// Zero disables the cap.
	MaxBuffered time.Duration `yaml:"max_buffered"`
}

// TranscribeConfig holds speech-to-text engine settings.
type TranscribeConfig struct {
	Backend  string        `yaml:"backend"` // "openai" or "command"
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
	// MaxConsecutiveFailures stops the session after this many failed chunks
	// in a row. Zero never stops.
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	OpenAI                 OpenAIConfig  `yaml:"openai"`
	Command                CommandConfig `yaml:"command"`
}

// OpenAIConfig configures an OpenAI-compatible transcription endpoint.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"` // falls back to $OPENAI_API_KEY
	Model   string `yaml:"model"`
}

// CommandConfig configures a whisper.cpp style CLI binary.
type CommandConfig struct {
	Path      string   `yaml:"path"`
	ModelPath string   `yaml:"model_path"`
	Args      []string `yaml:"args"`
}

// OutputConfig controls where the transcript is written.
type OutputConfig struct {
	// Path is the transcript file. Empty generates a timestamped name in Dir.
	Path string `yaml:"path"`
	Dir  string `yaml:"dir"`
}

// HotkeyConfig holds the optional stop hotkey.
type HotkeyConfig struct {
	Keys []string `yaml:"keys"` // empty disables the hotkey
}

// InjectConfig holds live text injection settings.
type InjectConfig struct {
	Method string `yaml:"method"` // "none", "type" or "paste"
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":9464"; empty disables
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-live")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the directory downloaded models are stored in.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "gostt-live", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:   16000,
			Channels:     1,
			BufferFrames: 1600,
		},
		Chunk: ChunkConfig{
			Duration:     30 * time.Second,
			Overlap:      0,
			PollInterval: 250 * time.Millisecond,
			MaxBuffered:  10 * time.Minute,
		},
		Transcribe: TranscribeConfig{
			Backend:  "openai",
			Language: "en",
			Timeout:  2 * time.Minute,
			OpenAI: OpenAIConfig{
				Model: "whisper-1",
			},
			Command: CommandConfig{
				Path:      "whisper-cli",
				ModelPath: filepath.Join(DefaultModelsDir(), "ggml-base.en.bin"),
			},
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Inject: InjectConfig{
			Method: "none",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transcribe.Command.Path = expandTilde(cfg.Transcribe.Command.Path)
	cfg.Transcribe.Command.ModelPath = expandTilde(cfg.Transcribe.Command.ModelPath)
	cfg.Output.Path = expandTilde(cfg.Output.Path)
	cfg.Output.Dir = expandTilde(cfg.Output.Dir)

	return cfg, nil
}

// WriteDefault writes the default config to DefaultConfigPath. If a file
// already exists it is left untouched and ("", nil) is returned.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	header := "# gostt-live configuration\n# Durations use Go syntax (30s, 1m30s). See README for all options.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}
	if c.Audio.BufferFrames <= 0 {
		return fmt.Errorf("audio.buffer_frames must be > 0")
	}

	if c.Chunk.Duration <= 0 {
		return fmt.Errorf("chunk.duration must be > 0")
	}
	if c.ChunkBytes() == 0 {
		return fmt.Errorf("chunk.duration %s is shorter than one audio frame", c.Chunk.Duration)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Duration {
		return fmt.Errorf("chunk.overlap must be >= 0 and < chunk.duration, got %s", c.Chunk.Overlap)
	}
	if c.StrideBytes() <= 0 {
		return fmt.Errorf("chunk.overlap %s leaves less than one audio frame of stride", c.Chunk.Overlap)
	}
	if c.Chunk.PollInterval <= 0 {
		return fmt.Errorf("chunk.poll_interval must be > 0")
	}
	if c.Chunk.MaxBuffered < 0 {
		return fmt.Errorf("chunk.max_buffered must be >= 0")
	}
	if c.Chunk.MaxBuffered > 0 && c.MaxBufferedBytes() < c.MinBufferedBytes() {
		return fmt.Errorf("chunk.max_buffered (%s, %d bytes) must hold one chunk plus one stride or read (%d bytes)",
			c.Chunk.MaxBuffered, c.MaxBufferedBytes(), c.MinBufferedBytes())
	}

	switch c.Transcribe.Backend {
	case "openai":
		if c.Transcribe.OpenAI.Model == "" {
			return fmt.Errorf("transcribe.openai.model must not be empty")
		}
	case "command":
		if c.Transcribe.Command.Path == "" {
			return fmt.Errorf("transcribe.command.path must not be empty")
		}
	default:
		return fmt.Errorf("transcribe.backend must be \"openai\" or \"command\", got %q", c.Transcribe.Backend)
	}
	if c.Transcribe.Timeout < 0 {
		return fmt.Errorf("transcribe.timeout must be >= 0")
	}
	if c.Transcribe.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("transcribe.max_consecutive_failures must be >= 0")
	}

	switch c.Inject.Method {
	case "none", "type", "paste":
	default:
		return fmt.Errorf("inject.method must be \"none\", \"type\" or \"paste\", got %q", c.Inject.Method)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// FrameBytes is the size of one audio frame (one sample per channel).
func (c *Config) FrameBytes() int {
	return int(c.Audio.Channels) * 2
}

// ChunkBytes is the size of one chunk in bytes, aligned to whole frames.
func (c *Config) ChunkBytes() int {
	return c.durationBytes(c.Chunk.Duration)
}

// OverlapBytes is the size of the re-transcribed overlap in bytes.
func (c *Config) OverlapBytes() int {
	return c.durationBytes(c.Chunk.Overlap)
}

// StrideBytes is how far the window advances after each chunk.
func (c *Config) StrideBytes() int {
	return c.ChunkBytes() - c.OverlapBytes()
}

// MaxBufferedBytes is the buffer cap in bytes; zero means unbounded.
func (c *Config) MaxBufferedBytes() int {
	return c.durationBytes(c.Chunk.MaxBuffered)
}

// MinBufferedBytes is the smallest usable buffer cap: one chunk plus room
// to keep capturing while that chunk is transcribed. The room is one stride,
// or one device read when reads are larger.
func (c *Config) MinBufferedBytes() int {
	return c.ChunkBytes() + max(c.StrideBytes(), c.ReadBytes())
}

// ReadBytes is the size of one device read.
func (c *Config) ReadBytes() int {
	return c.Audio.BufferFrames * c.FrameBytes()
}

func (c *Config) durationBytes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	// round to the nearest whole frame
	frames := (int64(c.Audio.SampleRate)*int64(d) + int64(time.Second)/2) / int64(time.Second)
	return int(frames) * c.FrameBytes()
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// map to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
