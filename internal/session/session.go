// Package session runs one live transcription session: capture and chunk
// transcription run concurrently until stopped, then the transcript is
// written once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/config"
	"github.com/chaz8081/gostt-live/internal/metrics"
	"github.com/chaz8081/gostt-live/internal/transcribe"
	"github.com/chaz8081/gostt-live/internal/transcript"
)

// Options holds optional session collaborators.
type Options struct {
	// OutputPath is the transcript file. Empty uses a timestamped file in
	// the configured output directory.
	OutputPath string
	Metrics    *metrics.Metrics
	Sink       Sink
}

// Session owns the buffer, capture source, engine and transcript of one
// recording.
type Session struct {
	ID string

	cfg     *config.Config
	src     audio.Source
	engine  transcribe.Engine
	buf     *audio.Buffer
	log     *transcript.Log
	metrics *metrics.Metrics
	sink    Sink
	logger  *slog.Logger

	outputPath string
	ran        atomic.Bool
}

// New creates a session. It takes ownership of src and engine: both are
// closed when Run returns.
func New(cfg *config.Config, src audio.Source, engine transcribe.Engine, opts Options) *Session {
	id := uuid.NewString()
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = transcript.OutputPath(cfg.Output.Path, cfg.Output.Dir, time.Now())
	}
	return &Session{
		ID:         id,
		cfg:        cfg,
		src:        src,
		engine:     engine,
		buf:        audio.NewBuffer(cfg.MaxBufferedBytes()),
		log:        transcript.NewLog(),
		metrics:    m,
		sink:       opts.Sink,
		logger:     slog.Default().With("session", id),
		outputPath: outputPath,
	}
}

// OutputPath returns where the transcript is written.
func (s *Session) OutputPath() string {
	return s.outputPath
}

// Transcript returns the session transcript.
func (s *Session) Transcript() *transcript.Log {
	return s.log
}

// Run records and transcribes until ctx is done or a fatal error occurs.
// Capture failures stop the session; engine failures on single chunks do
// not. Whatever the outcome, capture is stopped, the engine closed and the
// transcript saved before Run returns. The returned error joins the fatal
// error, if any, with shutdown errors.
func (s *Session) Run(ctx context.Context) error {
	if s.ran.Swap(true) {
		return errors.New("session: already run")
	}

	sched, err := NewScheduler(SchedulerConfig{
		ChunkBytes:             s.cfg.ChunkBytes(),
		StrideBytes:            s.cfg.StrideBytes(),
		SampleRate:             int(s.cfg.Audio.SampleRate),
		Channels:               int(s.cfg.Audio.Channels),
		Language:               s.cfg.Transcribe.Language,
		Timeout:                s.cfg.Transcribe.Timeout,
		PollInterval:           s.cfg.Chunk.PollInterval,
		MaxConsecutiveFailures: s.cfg.Transcribe.MaxConsecutiveFailures,
	}, s.buf, s.engine, s.log, s.metrics, s.sink, s.logger)
	if err != nil {
		return errors.Join(err, s.shutdown())
	}

	rec := audio.NewRecorder(s.src, s.buf, s.cfg.Audio.BufferFrames)
	dropper, _ := s.src.(interface{ Dropped() uint64 })
	var lastDropped uint64
	rec.OnAppend = func(n int) {
		s.metrics.RecordCaptured(n, s.buf.Len())
		if dropper != nil {
			d := dropper.Dropped()
			if d > lastDropped {
				s.logger.Warn("Capture fell behind, audio dropped", "periods", d-lastDropped)
				s.metrics.RecordDropped(d - lastDropped)
				lastDropped = d
			}
		}
	}

	s.logger.Info("Session started",
		"chunk", s.cfg.Chunk.Duration, "overlap", s.cfg.Chunk.Overlap, "output", s.outputPath)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rec.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	runErr := g.Wait()

	if runErr != nil {
		s.logger.Error("Session stopped on error", "error", runErr)
	}
	shutdownErr := s.shutdown()
	s.logger.Info("Session ended",
		"duration", time.Since(start).Round(time.Second), "segments", s.log.Len(), "output", s.outputPath)

	return errors.Join(runErr, shutdownErr)
}

// shutdown stops capture, closes the engine and saves the transcript. Every
// step runs even if an earlier one fails.
func (s *Session) shutdown() error {
	var errs []error
	if err := s.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session: close capture: %w", err))
	}
	if err := s.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session: close engine: %w", err))
	}
	if err := s.log.Save(s.outputPath); err != nil {
		errs = append(errs, fmt.Errorf("session: save transcript: %w", err))
	} else {
		s.logger.Info("Transcript saved", "path", s.outputPath, "segments", s.log.Len())
	}
	return errors.Join(errs...)
}
