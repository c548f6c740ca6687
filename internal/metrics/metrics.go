// Package metrics exposes Prometheus metrics for a recording session.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for a session.
type Metrics struct {
	// Capture metrics
	BytesCaptured prometheus.Counter
	FramesDropped prometheus.Counter
	BufferedBytes prometheus.Gauge

	// Transcription metrics
	ChunksTranscribed     prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Transcript metrics
	SegmentsAppended prometheus.Counter
	ChunksEmpty      prometheus.Counter

	registry *prometheus.Registry
}

// New creates all metrics and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		BytesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_live_captured_bytes_total",
			Help: "Total PCM bytes appended to the audio buffer",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_live_capture_dropped_periods_total",
			Help: "Capture periods dropped because the reader fell behind",
		}),
		BufferedBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "gostt_live_buffered_bytes",
			Help: "PCM bytes currently held in the audio buffer",
		}),

		ChunksTranscribed: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_live_chunks_transcribed_total",
			Help: "Total number of chunks the engine transcribed",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_live_transcription_failures_total",
			Help: "Total number of chunks the engine failed to transcribe",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gostt_live_transcription_duration_seconds",
			Help:    "Duration of engine calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}),

		SegmentsAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_live_segments_appended_total",
			Help: "Total number of segments appended to the transcript",
		}),
		ChunksEmpty: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_live_chunks_empty_total",
			Help: "Chunks that produced no new text after stitching",
		}),

		registry: reg,
	}
}

// RecordCaptured records n bytes appended to the buffer, which now holds
// buffered bytes.
func (m *Metrics) RecordCaptured(n, buffered int) {
	m.BytesCaptured.Add(float64(n))
	m.BufferedBytes.Set(float64(buffered))
}

// RecordDropped adds capture periods dropped since the last call.
func (m *Metrics) RecordDropped(n uint64) {
	if n > 0 {
		m.FramesDropped.Add(float64(n))
	}
}

// SetBuffered sets the buffered bytes gauge.
func (m *Metrics) SetBuffered(n int) {
	m.BufferedBytes.Set(float64(n))
}

// RecordTranscription records one engine call.
func (m *Metrics) RecordTranscription(d time.Duration, err error) {
	m.TranscriptionDuration.Observe(d.Seconds())
	if err != nil {
		m.TranscriptionFailures.Inc()
		return
	}
	m.ChunksTranscribed.Inc()
}

// RecordSegment records the outcome of stitching one chunk.
func (m *Metrics) RecordSegment(appended bool) {
	if appended {
		m.SegmentsAppended.Inc()
		return
	}
	m.ChunksEmpty.Inc()
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}
