package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// CaptureError reports a fatal failure of the capture path: the device
// could not be read or the buffer refused more audio.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: %s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Recorder copies fixed-size reads from a Source into a Buffer.
type Recorder struct {
	src    Source
	buf    *Buffer
	frames int

	// OnAppend, when set, is called with the size of every appended block.
	OnAppend func(n int)
}

// NewRecorder creates a Recorder that reads frames frames per call.
func NewRecorder(src Source, buf *Buffer, frames int) *Recorder {
	if frames <= 0 {
		frames = 1024
	}
	return &Recorder{src: src, buf: buf, frames: frames}
}

// Run reads from the source until ctx is done. It returns nil on a
// cooperative stop and a *CaptureError on any read or append failure.
// A read already in progress is allowed to finish before ctx is observed.
func (r *Recorder) Run(ctx context.Context) error {
	slog.Debug("Recorder started", "frames_per_read", r.frames)
	defer slog.Debug("Recorder stopped")

	for ctx.Err() == nil {
		p, err := r.src.Read(ctx, r.frames)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return &CaptureError{Op: "read", Err: err}
		}

		if err := r.buf.Append(p); err != nil {
			return &CaptureError{Op: "append", Err: err}
		}
		if r.OnAppend != nil {
			r.OnAppend(len(p))
		}
	}
	return nil
}
