// Package malgo implements [audio.Source] on top of miniaudio via
// github.com/gen2brain/malgo.
//
// The device runs continuously once opened; its callback appends int16 PCM to
// an internal buffer that ReadFrame drains. The buffer is capped so a session
// that stops reading (while speaking, for instance) cannot grow it without
// bound; the oldest audio is discarded first.
package malgo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/voicetutor/pkg/audio"
)

// maxBufferedSeconds bounds the audio kept between reads.
const maxBufferedSeconds = 5

// ErrClosed is returned by ReadFrame after Close.
var ErrClosed = errors.New("malgo: capture closed")

// Option configures a [Capture].
type Option func(*Capture)

// WithDeviceName selects the capture device whose name matches exactly.
// The system default is used when empty or when no device matches.
func WithDeviceName(name string) Option {
	return func(c *Capture) { c.deviceName = name }
}

// WithPeriod sets the device callback period in milliseconds. Default: 20.
func WithPeriod(ms int) Option {
	return func(c *Capture) { c.periodMs = ms }
}

// Capture is a microphone [audio.Source].
type Capture struct {
	format     audio.Format
	deviceName string
	periodMs   int

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// Open initialises miniaudio and starts capturing in the given format.
func Open(format audio.Format, opts ...Option) (*Capture, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("malgo: invalid capture format %s", format)
	}
	c := &Capture{format: format, periodMs: 20}
	for _, o := range opts {
		o(c)
	}
	c.cond = sync.NewCond(&c.mu)

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("malgo", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("malgo: init context: %w", err)
	}
	c.mctx = mctx

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.PeriodSizeInMilliseconds = uint32(c.periodMs)
	if c.deviceName != "" {
		if err := c.selectDevice(&cfg); err != nil {
			slog.Warn("malgo: falling back to default capture device", "device", c.deviceName, "err", err)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: c.onData})
	if err != nil {
		c.freeContext()
		return nil, fmt.Errorf("malgo: init device: %w", err)
	}
	c.device = device
	if err := device.Start(); err != nil {
		device.Uninit()
		c.freeContext()
		return nil, fmt.Errorf("malgo: start device: %w", err)
	}
	return c, nil
}

func (c *Capture) selectDevice(cfg *malgo.DeviceConfig) error {
	infos, err := c.mctx.Devices(malgo.Capture)
	if err != nil {
		return err
	}
	for i := range infos {
		if infos[i].Name() == c.deviceName {
			cfg.Capture.DeviceID = infos[i].ID.Pointer()
			return nil
		}
	}
	return fmt.Errorf("no capture device named %q", c.deviceName)
}

func (c *Capture) onData(_, input []byte, _ uint32) {
	c.mu.Lock()
	c.buf = append(c.buf, input...)
	if limit := maxBufferedSeconds * c.format.SampleRate * c.format.BytesPerFrame(); len(c.buf) > limit {
		c.buf = c.buf[len(c.buf)-limit:]
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Format implements [audio.Source].
func (c *Capture) Format() audio.Format { return c.format }

// ReadFrame implements [audio.Source].
func (c *Capture) ReadFrame(ctx context.Context, buf []byte) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cond.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) < len(buf) {
		if c.closed {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.cond.Wait()
	}
	n := copy(buf, c.buf)
	c.buf = c.buf[n:]
	return nil
}

// Flush implements [audio.Flusher].
func (c *Capture) Flush() {
	c.mu.Lock()
	c.buf = c.buf[:0]
	c.mu.Unlock()
}

// Close stops the device and releases miniaudio. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()

	if c.device != nil {
		if err := c.device.Stop(); err != nil {
			slog.Warn("malgo: stop device", "err", err)
		}
		c.device.Uninit()
	}
	c.freeContext()
	return nil
}

func (c *Capture) freeContext() {
	if c.mctx == nil {
		return
	}
	_ = c.mctx.Uninit()
	c.mctx.Free()
	c.mctx = nil
}

var (
	_ audio.Source  = (*Capture)(nil)
	_ audio.Flusher = (*Capture)(nil)
)
