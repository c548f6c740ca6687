package session

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/gostt-live/internal/config"
	"github.com/chaz8081/gostt-live/internal/transcribe"
)

// testConfig returns a config with 100ms chunks of 16kHz mono audio
// (3200 bytes) written to a temp file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.Audio.BufferFrames = 1600
	cfg.Chunk.Duration = 100 * time.Millisecond
	cfg.Chunk.Overlap = 0
	cfg.Chunk.PollInterval = 10 * time.Millisecond
	cfg.Chunk.MaxBuffered = 0
	cfg.Transcribe.Timeout = 0
	cfg.Output.Path = filepath.Join(t.TempDir(), "transcript.txt")
	return cfg
}

func block(n int, v byte) []byte {
	return bytes.Repeat([]byte{v}, n)
}

// fakeSource hands out scripted blocks, then either fails with err (once
// gate is closed, if set) or blocks until ctx is done.
type fakeSource struct {
	mu     sync.Mutex
	blocks [][]byte
	err    error
	gate   chan struct{}
	closed int
}

func (f *fakeSource) Read(ctx context.Context, frames int) ([]byte, error) {
	f.mu.Lock()
	if len(f.blocks) > 0 {
		b := f.blocks[0]
		f.blocks = f.blocks[1:]
		f.mu.Unlock()
		return b, nil
	}
	err, gate := f.err, f.gate
	f.mu.Unlock()

	if err != nil {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type engineResult struct {
	text string
	err  error
	hang bool // wait for ctx instead of answering
}

// fakeEngine answers call i with results[i] and records every request.
type fakeEngine struct {
	mu       sync.Mutex
	results  []engineResult
	requests [][]byte
	onCall   func(i int)
	closed   int
}

func (e *fakeEngine) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	e.mu.Lock()
	i := len(e.requests)
	e.requests = append(e.requests, append([]byte(nil), req.Audio...))
	var r engineResult
	if i < len(e.results) {
		r = e.results[i]
	}
	onCall := e.onCall
	e.mu.Unlock()

	if onCall != nil {
		onCall(i)
	}
	if r.hang {
		<-ctx.Done()
		return transcribe.Result{}, ctx.Err()
	}
	if r.err != nil {
		return transcribe.Result{}, r.err
	}
	return transcribe.Result{Text: r.text, Language: req.Language}, nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

func (e *fakeEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func (e *fakeEngine) request(i int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[i]
}

func (e *fakeEngine) closeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// cancelAt returns an onCall hook that cancels after call n.
func cancelAt(n int, cancel context.CancelFunc) func(int) {
	return func(i int) {
		if i == n {
			cancel()
		}
	}
}

type fakeSink struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *fakeSink) Inject(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}
