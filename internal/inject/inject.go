// Package inject provides live text injection of transcript segments into
// the active application using robotgo for keystroke simulation or
// clipboard paste.
package inject

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/go-vgo/robotgo"
)

// keyboard is the part of robotgo the injector drives.
type keyboard interface {
	Type(text string)
	ReadClipboard() (string, error)
	WriteClipboard(text string) error
	KeyTap(key string, modifier string) error
}

type robotgoKeyboard struct{}

func (robotgoKeyboard) Type(text string) { robotgo.Type(text) }
func (robotgoKeyboard) ReadClipboard() (string, error) { return robotgo.ReadAll() }
func (robotgoKeyboard) WriteClipboard(text string) error { return robotgo.WriteAll(text) }
func (robotgoKeyboard) KeyTap(key, modifier string) error { return robotgo.KeyTap(key, modifier) }

// Injector types or pastes each segment into the active application.
// Segments after the first are separated by a space so they read as one
// running text.
type Injector struct {
	method   string // "type" or "paste"
	modifier string // paste shortcut modifier
	kb       keyboard

	mu      sync.Mutex
	started bool
}

// NewInjector creates an Injector with the given method.
// method must be "type" (keystroke simulation) or "paste" (clipboard).
func NewInjector(method string) (*Injector, error) {
	switch method {
	case "type", "paste":
	default:
		return nil, fmt.Errorf("inject: unknown method %q", method)
	}
	return &Injector{
		method:   method,
		modifier: pasteModifier(runtime.GOOS),
		kb:       robotgoKeyboard{},
	}, nil
}

// Inject sends text to the active application using the configured method.
func (inj *Injector) Inject(text string) error {
	if text == "" {
		return nil
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()

	if inj.started {
		text = " " + text
	}

	var err error
	switch inj.method {
	case "paste":
		err = inj.paste(text)
	default: // "type"
		inj.kb.Type(text)
	}
	if err == nil {
		inj.started = true
	}
	return err
}

// paste copies text to the clipboard and pastes it. Faster for long text,
// and the previous clipboard contents are restored afterwards.
func (inj *Injector) paste(text string) error {
	prev, _ := inj.kb.ReadClipboard()

	if err := inj.kb.WriteClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	if err := inj.kb.KeyTap("v", inj.modifier); err != nil {
		return fmt.Errorf("inject: key tap %s+v: %w", inj.modifier, err)
	}

	// best effort
	_ = inj.kb.WriteClipboard(prev)
	return nil
}

// pasteModifier returns the paste shortcut modifier for goos.
func pasteModifier(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
