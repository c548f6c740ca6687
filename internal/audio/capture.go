package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// BytesPerSample is the width of one signed 16-bit PCM sample.
const BytesPerSample = 2

// ErrDeviceStopped is returned by Read once the capture device has stopped,
// either because Close was called or because the backend stopped it.
var ErrDeviceStopped = errors.New("audio: capture device stopped")

// Source yields raw little-endian PCM16 audio on demand.
type Source interface {
	// Read blocks until frames frames are available and returns them.
	Read(ctx context.Context, frames int) ([]byte, error)
	// Close stops capture and releases the device.
	Close() error
}

// CaptureConfig selects the capture format and device.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// Device is a case-insensitive substring of the input device name.
	// Empty, or no match, selects the system default input.
	Device string
	// QueueDepth is the number of device periods buffered between the
	// audio callback and Read. Zero uses a default of 64.
	QueueDepth int
}

// DeviceInfo describes an input device.
type DeviceInfo struct {
	Name      string
	IsDefault bool
}

// Capture reads PCM16 audio from a microphone through malgo.
type Capture struct {
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	infos    []malgo.DeviceInfo // keeps the selected DeviceID alive
	channels uint32

	frames  chan []byte
	pending []byte
	dropped atomic.Uint64

	stopped   chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

// ListDevices enumerates capture devices.
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: initializing context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("audio: enumerating capture devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		out = append(out, DeviceInfo{
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault != 0,
		})
	}
	return out, nil
}

// OpenCapture opens and starts a signed 16-bit capture device.
// Call Close when done.
func OpenCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.SampleRate == 0 || cfg.Channels == 0 {
		return nil, fmt.Errorf("audio: sample rate and channels must be > 0")
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 64
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: initializing context: %w", err)
	}

	c := &Capture{
		ctx:      ctx,
		channels: cfg.Channels,
		frames:   make(chan []byte, depth),
		stopped:  make(chan struct{}),
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = cfg.Channels
	deviceCfg.SampleRate = cfg.SampleRate

	if cfg.Device != "" {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			c.freeContext()
			return nil, fmt.Errorf("audio: enumerating capture devices: %w", err)
		}
		c.infos = infos
		if i := matchDevice(deviceNames(infos), cfg.Device); i >= 0 {
			slog.Info("Using capture device", "name", infos[i].Name())
			deviceCfg.Capture.DeviceID = c.infos[i].ID.Pointer()
		} else {
			slog.Warn("Capture device not found, using default input", "device", cfg.Device)
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: c.onData,
		Stop: c.onStop,
	})
	if err != nil {
		c.freeContext()
		return nil, fmt.Errorf("audio: initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		c.freeContext()
		return nil, fmt.Errorf("audio: starting capture device: %w", err)
	}
	c.device = device

	return c, nil
}

// Read blocks until frames frames have been captured, ctx is done, or the
// device stops.
func (c *Capture) Read(ctx context.Context, frames int) ([]byte, error) {
	need := frames * int(c.channels) * BytesPerSample
	for len(c.pending) < need {
		select {
		case p := <-c.frames:
			c.pending = append(c.pending, p...)
		case <-c.stopped:
			return nil, ErrDeviceStopped
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([]byte, need)
	copy(out, c.pending)
	n := copy(c.pending, c.pending[need:])
	c.pending = c.pending[:n]
	return out, nil
}

// Dropped returns the number of device periods discarded because Read fell
// behind the audio callback.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Close stops the device and releases the audio context.
func (c *Capture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.device != nil {
			c.device.Uninit()
			c.device = nil
		}
		c.markStopped()
		err = c.freeContext()
	})
	return err
}

// onData is the malgo callback invoked when captured frames are available.
// It must not block; pInput is only valid for the duration of the call.
func (c *Capture) onData(_, pInput []byte, frameCount uint32) {
	n := int(frameCount * c.channels * BytesPerSample)
	if n > len(pInput) {
		n = len(pInput)
	}
	p := make([]byte, n)
	copy(p, pInput[:n])

	select {
	case c.frames <- p:
	default:
		c.dropped.Add(1)
	}
}

func (c *Capture) onStop() {
	c.markStopped()
}

func (c *Capture) markStopped() {
	c.stopOnce.Do(func() { close(c.stopped) })
}

func (c *Capture) freeContext() error {
	if c.ctx == nil {
		return nil
	}
	defer func() {
		c.ctx.Free()
		c.ctx = nil
	}()
	if err := c.ctx.Uninit(); err != nil {
		return fmt.Errorf("audio: uninitializing context: %w", err)
	}
	return nil
}

func deviceNames(infos []malgo.DeviceInfo) []string {
	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name()
	}
	return names
}

// matchDevice returns the index of the first name containing selector,
// case-insensitively, or -1.
func matchDevice(names []string, selector string) int {
	selector = strings.ToLower(strings.TrimSpace(selector))
	if selector == "" {
		return -1
	}
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), selector) {
			return i
		}
	}
	return -1
}
