package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrAlreadySaved is returned by Save after the transcript has been written.
var ErrAlreadySaved = errors.New("transcript: already saved")

// Segment is the stitched text of one chunk.
type Segment struct {
	Seq  int // chunk sequence number
	Text string
	At   time.Time
}

// Log is an append-only, ordered transcript. It is written once, at the end
// of a session.
type Log struct {
	mu       sync.Mutex
	segments []Segment
	saved    bool
}

// NewLog creates an empty transcript.
func NewLog() *Log {
	return &Log{}
}

// Append adds a segment for chunk seq. Blank text is ignored.
func (l *Log) Append(seq int, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.segments = append(l.segments, Segment{Seq: seq, Text: text, At: time.Now()})
	return true
}

// Last returns the text of the most recent segment, or "".
func (l *Log) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.segments) == 0 {
		return ""
	}
	return l.segments[len(l.segments)-1].Text
}

// Len returns the number of segments.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.segments)
}

// Segments returns a copy of all segments in order.
func (l *Log) Segments() []Segment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Segment, len(l.segments))
	copy(out, l.segments)
	return out
}

// String joins the segments with a blank line between them.
func (l *Log) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	texts := make([]string, len(l.segments))
	for i, s := range l.segments {
		texts[i] = s.Text
	}
	return strings.Join(texts, "\n\n")
}

// Save writes the transcript to path as UTF-8 text. Only the first call
// writes; later calls return ErrAlreadySaved. The file is written to a
// temporary name first and renamed into place.
func (l *Log) Save(path string) error {
	l.mu.Lock()
	if l.saved {
		l.mu.Unlock()
		return ErrAlreadySaved
	}
	l.saved = true
	l.mu.Unlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("transcript: creating output dir: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(l.String()), 0644); err != nil {
		return fmt.Errorf("transcript: writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("transcript: moving into place: %w", err)
	}
	return nil
}

// DefaultFilename returns a timestamped transcript file name.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("transcription_%s.txt", now.Format("20060102_150405"))
}

// OutputPath resolves where a transcript is written: path if set, otherwise
// a timestamped file in dir.
func OutputPath(path, dir string, now time.Time) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, DefaultFilename(now))
}
