package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/metrics"
	"github.com/chaz8081/gostt-live/internal/transcribe"
	"github.com/chaz8081/gostt-live/internal/transcript"
)

// TranscriptionError reports that the engine failed on one chunk. The chunk
// is skipped and the session continues.
type TranscriptionError struct {
	Seq int
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe chunk %d: %v", e.Seq, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// Sink receives the text of every segment appended to the transcript.
type Sink interface {
	Inject(text string) error
}

// SchedulerConfig holds the window and engine settings of a Scheduler.
type SchedulerConfig struct {
	ChunkBytes  int
	StrideBytes int
	SampleRate  int
	Channels    int
	Language    string

	// Timeout bounds each engine call. Zero leaves calls unbounded.
	Timeout time.Duration
	// PollInterval bounds how long a wait for audio goes without
	// re-checking for a stop.
	PollInterval time.Duration
	// MaxConsecutiveFailures ends the run after that many failed chunks in
	// a row. Zero never ends it.
	MaxConsecutiveFailures int
}

// Scheduler cuts fixed-size chunks off the front of a buffer, transcribes
// them one at a time, and appends the stitched text to a transcript.
type Scheduler struct {
	cfg     SchedulerConfig
	buf     *audio.Buffer
	engine  transcribe.Engine
	log     *transcript.Log
	metrics *metrics.Metrics
	sink    Sink
	logger  *slog.Logger

	seq      int
	failures int
}

// NewScheduler creates a Scheduler. m and sink may be nil.
func NewScheduler(cfg SchedulerConfig, buf *audio.Buffer, engine transcribe.Engine, log *transcript.Log, m *metrics.Metrics, sink Sink, logger *slog.Logger) (*Scheduler, error) {
	if cfg.ChunkBytes <= 0 {
		return nil, fmt.Errorf("session: chunk size must be > 0")
	}
	if cfg.StrideBytes <= 0 || cfg.StrideBytes > cfg.ChunkBytes {
		return nil, fmt.Errorf("session: stride %d must be in (0, %d]", cfg.StrideBytes, cfg.ChunkBytes)
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:     cfg,
		buf:     buf,
		engine:  engine,
		log:     log,
		metrics: m,
		sink:    sink,
		logger:  logger,
	}, nil
}

// Run processes chunks until ctx is done. It returns nil on a stop, and an
// error only when the buffer invariant breaks or the consecutive failure
// limit is reached.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Debug("Scheduler started", "chunk_bytes", s.cfg.ChunkBytes, "stride_bytes", s.cfg.StrideBytes)
	defer s.logger.Debug("Scheduler stopped", "chunks", s.seq)

	for {
		if err := s.buf.WaitFor(ctx, s.cfg.ChunkBytes, s.cfg.PollInterval); err != nil {
			return nil
		}
		if err := s.next(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// next transcribes the chunk at the front of the buffer and advances the
// window by one stride.
func (s *Scheduler) next(ctx context.Context) error {
	seq := s.seq
	s.seq++

	chunk, err := s.buf.Peek(s.cfg.ChunkBytes)
	if err != nil {
		return fmt.Errorf("session: peek chunk %d: %w", seq, err)
	}

	raw, err := s.transcribe(ctx, seq, chunk)

	if _, derr := s.buf.DrainFront(s.cfg.StrideBytes); derr != nil {
		return fmt.Errorf("session: drain chunk %d: %w", seq, derr)
	}
	s.metrics.SetBuffered(s.buf.Len())

	if err != nil {
		if ctx.Err() != nil {
			// Cancelled by the stop, not an engine failure.
			return nil
		}
		s.failures++
		s.logger.Warn("Transcription failed, skipping chunk", "seq", seq, "error", err, "consecutive", s.failures)
		if s.cfg.MaxConsecutiveFailures > 0 && s.failures >= s.cfg.MaxConsecutiveFailures {
			return fmt.Errorf("session: %d consecutive transcription failures: %w", s.failures, err)
		}
		return nil
	}
	s.failures = 0

	text, ok := transcript.Stitch(s.log.Last(), raw)
	s.metrics.RecordSegment(ok)
	if !ok {
		s.logger.Debug("No new text", "seq", seq)
		return nil
	}
	s.log.Append(seq, text)
	s.logger.Info("Segment", "seq", seq, "text", text)

	if s.sink != nil {
		if err := s.sink.Inject(text); err != nil {
			s.logger.Warn("Sink failed", "seq", seq, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) transcribe(ctx context.Context, seq int, chunk []byte) (string, error) {
	callCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.engine.Transcribe(callCtx, transcribe.Request{
		Audio:      chunk,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Language:   s.cfg.Language,
	})
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == nil {
			s.metrics.RecordTranscription(elapsed, err)
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("no result after %s: %w", s.cfg.Timeout, err)
		}
		return "", &TranscriptionError{Seq: seq, Err: err}
	}
	s.metrics.RecordTranscription(elapsed, nil)
	s.logger.Debug("Transcribed chunk", "seq", seq, "elapsed", elapsed.Round(time.Millisecond), "chars", len(res.Text))
	return res.Text, nil
}
