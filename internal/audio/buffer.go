package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrInsufficientData is returned when a caller asks for more bytes than
	// the buffer holds. It indicates a scheduling bug, not a runtime condition.
	ErrInsufficientData = errors.New("audio: insufficient buffered data")

	// ErrBufferOverflow is returned by Append when the configured cap would be
	// exceeded.
	ErrBufferOverflow = errors.New("audio: buffer overflow")
)

// Buffer is a thread-safe byte accumulator for raw PCM audio. One goroutine
// appends captured audio while another peeks chunks and drains the window
// forward. Length and content always change together under one lock.
type Buffer struct {
	mu       sync.Mutex
	data     []byte
	maxBytes int
	notify   chan struct{}
}

// NewBuffer creates an empty buffer. maxBytes caps the number of bytes held;
// zero means unbounded.
func NewBuffer(maxBytes int) *Buffer {
	return &Buffer{
		maxBytes: maxBytes,
		notify:   make(chan struct{}, 1),
	}
}

// Append adds p to the tail of the buffer and wakes a waiting reader.
// The slice is copied; the caller may reuse it.
func (b *Buffer) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	b.mu.Lock()
	if b.maxBytes > 0 && len(b.data)+len(p) > b.maxBytes {
		have := len(b.data)
		b.mu.Unlock()
		return fmt.Errorf("%w: holding %d bytes, appending %d, cap %d", ErrBufferOverflow, have, len(p), b.maxBytes)
	}
	b.data = append(b.data, p...)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default: // a wake-up is already pending
	}
	return nil
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Peek returns a copy of the first n bytes without removing them.
func (b *Buffer) Peek(n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n < 0 || n > len(b.data) {
		return nil, fmt.Errorf("%w: peek %d bytes, have %d", ErrInsufficientData, n, len(b.data))
	}
	out := make([]byte, n)
	copy(out, b.data[:n])
	return out, nil
}

// DrainFront removes and returns the first n bytes. If n exceeds the current
// length it fails and the buffer is left unchanged.
func (b *Buffer) DrainFront(n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n < 0 || n > len(b.data) {
		return nil, fmt.Errorf("%w: drain %d bytes, have %d", ErrInsufficientData, n, len(b.data))
	}
	out := make([]byte, n)
	copy(out, b.data[:n])

	// Shift the remainder down so the backing array is reused.
	remaining := copy(b.data, b.data[n:])
	b.data = b.data[:remaining]
	return out, nil
}

// WaitFor blocks until at least n bytes are buffered or ctx is done.
// Appends wake the waiter immediately; poll bounds each wait so a missed
// wake-up never delays the check by more than one interval.
func (b *Buffer) WaitFor(ctx context.Context, n int, poll time.Duration) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		if b.Len() >= n {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.notify:
		case <-timer.C:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(poll)
	}
}
