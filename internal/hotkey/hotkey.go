// Package hotkey provides a global stop hotkey using gohook. The first press
// of the key combination ends the recording session.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// Trigger watches a global key combination and fires once.
type Trigger struct {
	keys  []string
	fired chan struct{}
	once  sync.Once
}

// NewTrigger creates a Trigger for the given key combo. Key names are
// lowercased (e.g., ["ctrl", "shift", "s"]).
func NewTrigger(keys []string) (*Trigger, error) {
	var norm []string
	seen := make(map[string]bool)
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		norm = append(norm, k)
	}
	if len(norm) == 0 {
		return nil, fmt.Errorf("hotkey: no keys given")
	}
	return &Trigger{
		keys:  norm,
		fired: make(chan struct{}),
	}, nil
}

// Keys returns the normalized key combination.
func (t *Trigger) Keys() []string {
	return append([]string(nil), t.keys...)
}

// String returns the combination as "ctrl+shift+s".
func (t *Trigger) String() string {
	return strings.Join(t.keys, "+")
}

// Fired is closed on the first press.
func (t *Trigger) Fired() <-chan struct{} {
	return t.fired
}

// fire reports whether this call was the first press.
func (t *Trigger) fire() bool {
	first := false
	t.once.Do(func() {
		close(t.fired)
		first = true
	})
	return first
}

// Watch listens for the combination and calls stop on the first press.
// It blocks until ctx is done. Run it in a goroutine.
func (t *Trigger) Watch(ctx context.Context, stop func()) {
	hook.Register(hook.KeyDown, t.keys, func(e hook.Event) {
		if t.fire() {
			slog.Info("Stop hotkey pressed", "keys", t.String())
			stop()
		}
	})

	evChan := hook.Start()
	go func() {
		<-ctx.Done()
		hook.End()
	}()
	<-hook.Process(evChan)
}
