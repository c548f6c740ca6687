package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("Audio.Channels = %d, want 1", cfg.Audio.Channels)
	}
	if cfg.Chunk.Duration != 30*time.Second {
		t.Errorf("Chunk.Duration = %s, want 30s", cfg.Chunk.Duration)
	}
	if cfg.Chunk.Overlap != 0 {
		t.Errorf("Chunk.Overlap = %s, want 0", cfg.Chunk.Overlap)
	}
	if cfg.Chunk.PollInterval != 250*time.Millisecond {
		t.Errorf("Chunk.PollInterval = %s, want 250ms", cfg.Chunk.PollInterval)
	}
	if cfg.Transcribe.Backend != "openai" {
		t.Errorf("Transcribe.Backend = %q, want %q", cfg.Transcribe.Backend, "openai")
	}
	if cfg.Transcribe.Language != "en" {
		t.Errorf("Transcribe.Language = %q, want %q", cfg.Transcribe.Language, "en")
	}
	if cfg.Inject.Method != "none" {
		t.Errorf("Inject.Method = %q, want %q", cfg.Inject.Method, "none")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
audio:
  sample_rate: 44100
  channels: 2
  device: focusrite
chunk:
  duration: 10s
  overlap: 2s
  poll_interval: 100ms
transcribe:
  backend: command
  language: de
  timeout: 45s
  command:
    path: /usr/local/bin/whisper-cli
    model_path: /tmp/ggml.bin
    args: ["-t", "4"]
output:
  path: /tmp/notes.txt
hotkey:
  keys: ["ctrl", "shift", "s"]
inject:
  method: paste
metrics:
  listen: ":9464"
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Audio.SampleRate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 2 {
		t.Errorf("Audio.Channels = %d, want 2", cfg.Audio.Channels)
	}
	if cfg.Audio.Device != "focusrite" {
		t.Errorf("Audio.Device = %q, want %q", cfg.Audio.Device, "focusrite")
	}
	if cfg.Audio.BufferFrames != 1600 {
		t.Errorf("Audio.BufferFrames = %d, want default 1600", cfg.Audio.BufferFrames)
	}
	if cfg.Chunk.Duration != 10*time.Second || cfg.Chunk.Overlap != 2*time.Second {
		t.Errorf("Chunk = %+v, want 10s/2s", cfg.Chunk)
	}
	if cfg.Chunk.PollInterval != 100*time.Millisecond {
		t.Errorf("Chunk.PollInterval = %s, want 100ms", cfg.Chunk.PollInterval)
	}
	if cfg.Transcribe.Backend != "command" {
		t.Errorf("Transcribe.Backend = %q, want %q", cfg.Transcribe.Backend, "command")
	}
	if cfg.Transcribe.Timeout != 45*time.Second {
		t.Errorf("Transcribe.Timeout = %s, want 45s", cfg.Transcribe.Timeout)
	}
	if cfg.Transcribe.Command.Path != "/usr/local/bin/whisper-cli" {
		t.Errorf("Transcribe.Command.Path = %q", cfg.Transcribe.Command.Path)
	}
	if len(cfg.Transcribe.Command.Args) != 2 {
		t.Errorf("Transcribe.Command.Args = %v, want 2 entries", cfg.Transcribe.Command.Args)
	}
	if cfg.Output.Path != "/tmp/notes.txt" {
		t.Errorf("Output.Path = %q, want %q", cfg.Output.Path, "/tmp/notes.txt")
	}
	if len(cfg.Hotkey.Keys) != 3 {
		t.Errorf("Hotkey.Keys = %v, want 3 keys", cfg.Hotkey.Keys)
	}
	if cfg.Inject.Method != "paste" {
		t.Errorf("Inject.Method = %q, want %q", cfg.Inject.Method, "paste")
	}
	if cfg.Metrics.Listen != ":9464" {
		t.Errorf("Metrics.Listen = %q, want %q", cfg.Metrics.Listen, ":9464")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	yamlContent := `
transcribe:
  command:
    model_path: ~/models/ggml.bin
output:
  dir: ~/transcripts
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := filepath.Join(home, "models/ggml.bin"); cfg.Transcribe.Command.ModelPath != want {
		t.Errorf("Transcribe.Command.ModelPath = %q, want %q", cfg.Transcribe.Command.ModelPath, want)
	}
	if want := filepath.Join(home, "transcripts"); cfg.Output.Dir != want {
		t.Errorf("Output.Dir = %q, want %q", cfg.Output.Dir, want)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("chunk: [not, a, map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero sample rate",
			modify:  func(c *Config) { c.Audio.SampleRate = 0 },
			wantErr: true,
		},
		{
			name:    "zero channels",
			modify:  func(c *Config) { c.Audio.Channels = 0 },
			wantErr: true,
		},
		{
			name:    "zero buffer frames",
			modify:  func(c *Config) { c.Audio.BufferFrames = 0 },
			wantErr: true,
		},
		{
			name:    "zero chunk duration",
			modify:  func(c *Config) { c.Chunk.Duration = 0 },
			wantErr: true,
		},
		{
			name:    "chunk shorter than a frame",
			modify:  func(c *Config) { c.Chunk.Duration = time.Microsecond },
			wantErr: true,
		},
		{
			name:    "overlap equal to duration",
			modify:  func(c *Config) { c.Chunk.Overlap = c.Chunk.Duration },
			wantErr: true,
		},
		{
			name:    "negative overlap",
			modify:  func(c *Config) { c.Chunk.Overlap = -time.Second },
			wantErr: true,
		},
		{
			name:    "overlap shorter than duration",
			modify:  func(c *Config) { c.Chunk.Overlap = 5 * time.Second },
			wantErr: false,
		},
		{
			name:    "zero poll interval",
			modify:  func(c *Config) { c.Chunk.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "buffer cap below one chunk",
			modify:  func(c *Config) { c.Chunk.MaxBuffered = time.Second },
			wantErr: true,
		},
		{
			name:    "buffer cap equal to one chunk",
			modify:  func(c *Config) { c.Chunk.MaxBuffered = c.Chunk.Duration },
			wantErr: true,
		},
		{
			name:    "buffer cap one frame short of chunk plus stride",
			modify:  func(c *Config) { c.Chunk.MaxBuffered = 60*time.Second - 62500*time.Nanosecond },
			wantErr: true,
		},
		{
			name:    "buffer cap of chunk plus stride",
			modify:  func(c *Config) { c.Chunk.MaxBuffered = 60 * time.Second },
			wantErr: false,
		},
		{
			name: "buffer cap too small for one read",
			modify: func(c *Config) {
				c.Audio.BufferFrames = 16000 * 40
				c.Chunk.MaxBuffered = 60 * time.Second
			},
			wantErr: true,
		},
		{
			name: "buffer cap with overlap needs only one stride",
			modify: func(c *Config) {
				c.Chunk.Overlap = 10 * time.Second
				c.Chunk.MaxBuffered = 50 * time.Second
			},
			wantErr: false,
		},
		{
			name:    "overlap rounds to the whole chunk",
			modify:  func(c *Config) { c.Chunk.Overlap = c.Chunk.Duration - 10*time.Microsecond },
			wantErr: true,
		},
		{
			name:    "unbounded buffer",
			modify:  func(c *Config) { c.Chunk.MaxBuffered = 0 },
			wantErr: false,
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Transcribe.Backend = "invalid" },
			wantErr: true,
		},
		{
			name:    "openai backend without model",
			modify:  func(c *Config) { c.Transcribe.OpenAI.Model = "" },
			wantErr: true,
		},
		{
			name: "command backend without path",
			modify: func(c *Config) {
				c.Transcribe.Backend = "command"
				c.Transcribe.Command.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "negative max failures",
			modify:  func(c *Config) { c.Transcribe.MaxConsecutiveFailures = -1 },
			wantErr: true,
		},
		{
			name:    "invalid inject method",
			modify:  func(c *Config) { c.Inject.Method = "invalid" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChunkMath(t *testing.T) {
	tests := []struct {
		name                    string
		rate, channels          uint32
		duration, overlap       time.Duration
		chunk, overlapB, stride int
	}{
		{"30s mono no overlap", 16000, 1, 30 * time.Second, 0, 960000, 0, 960000},
		{"30s mono 5s overlap", 16000, 1, 30 * time.Second, 5 * time.Second, 960000, 160000, 800000},
		{"stereo 1s", 16000, 2, time.Second, 250 * time.Millisecond, 64000, 16000, 48000},
		{"44.1kHz 10ms", 44100, 1, 10 * time.Millisecond, 0, 882, 0, 882},
		{"rounds up to nearest frame", 44100, 1, 1010 * time.Microsecond, 0, 90, 0, 90},
		{"rounds down to nearest frame", 44100, 1, 1001 * time.Microsecond, 0, 88, 0, 88},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Audio.SampleRate = tt.rate
			cfg.Audio.Channels = tt.channels
			cfg.Chunk.Duration = tt.duration
			cfg.Chunk.Overlap = tt.overlap

			if got := cfg.ChunkBytes(); got != tt.chunk {
				t.Errorf("ChunkBytes() = %d, want %d", got, tt.chunk)
			}
			if got := cfg.OverlapBytes(); got != tt.overlapB {
				t.Errorf("OverlapBytes() = %d, want %d", got, tt.overlapB)
			}
			if got := cfg.StrideBytes(); got != tt.stride {
				t.Errorf("StrideBytes() = %d, want %d", got, tt.stride)
			}
			if cfg.ChunkBytes()%cfg.FrameBytes() != 0 {
				t.Error("ChunkBytes() is not frame aligned")
			}
		})
	}
}

func TestMinBufferedBytes(t *testing.T) {
	cfg := Default()
	cfg.Chunk.Duration = 100 * time.Millisecond
	cfg.Audio.BufferFrames = 1600

	// stride 3200B equals one read of 1600 frames
	if got, want := cfg.MinBufferedBytes(), 6400; got != want {
		t.Errorf("MinBufferedBytes() = %d, want %d", got, want)
	}

	cfg.Chunk.MaxBuffered = cfg.Chunk.Duration
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted a buffer cap of exactly one chunk")
	}
	cfg.Chunk.MaxBuffered = 200 * time.Millisecond
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	// a larger read sets the headroom
	cfg.Chunk.Overlap = 50 * time.Millisecond
	cfg.Audio.BufferFrames = 2400
	if got, want := cfg.MinBufferedBytes(), 3200+4800; got != want {
		t.Errorf("MinBufferedBytes() = %d, want %d", got, want)
	}
}

func TestMaxBufferedBytes(t *testing.T) {
	cfg := Default()
	cfg.Chunk.MaxBuffered = time.Minute
	if got, want := cfg.MaxBufferedBytes(), 16000*60*2; got != want {
		t.Errorf("MaxBufferedBytes() = %d, want %d", got, want)
	}
	cfg.Chunk.MaxBuffered = 0
	if got := cfg.MaxBufferedBytes(); got != 0 {
		t.Errorf("MaxBufferedBytes() = %d, want 0 (unbounded)", got)
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	// Use a temp dir as fake home to avoid touching real config
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "gostt-live", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}

	if !strings.HasPrefix(string(data), "# gostt-live") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Chunk.Duration != 30*time.Second {
		t.Errorf("written config Chunk.Duration = %s, want 30s", cfg.Chunk.Duration)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("written config Audio.SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}

	// The written file round-trips through Load.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of written config error = %v", err)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("written config does not validate: %v", err)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "gostt-live")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("log_level: debug\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
