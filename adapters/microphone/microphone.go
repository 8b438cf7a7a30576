package microphone

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/repositories"
)

// Default configuration values
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 1
	DefaultBuffered   = 64
)

// Config holds microphone configuration
type Config struct {
	SampleRate int
	Channels   int
	// Buffered is how many device callbacks may queue before new ones are dropped
	Buffered int
}

// Device captures s16le PCM from the default input device
type Device struct {
	config Config
	logger *zap.Logger
}

var _ repositories.MediaDevice = (*Device)(nil)

// NewDevice creates a microphone device
func NewDevice(config Config, logger *zap.Logger) *Device {
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.Channels <= 0 {
		config.Channels = DefaultChannels
	}
	if config.Buffered <= 0 {
		config.Buffered = DefaultBuffered
	}
	return &Device{config: config, logger: logger}
}

// Open starts capturing. Each Open owns its own audio context.
func (d *Device) Open(ctx context.Context) (repositories.MediaTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		d.logger.Debug("Audio backend", zap.String("message", message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	t := &track{
		data:    make(chan []byte, d.config.Buffered),
		stopped: make(chan struct{}),
		mctx:    mctx,
		logger:  d.logger,
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(d.config.Channels)
	cfg.SampleRate = uint32(d.config.SampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			// input is reused by the backend after the callback returns.
			t.push(append([]byte(nil), input...))
		},
		// Also fires when the device goes away or the backend fails.
		Stop: t.deviceStopped,
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}
	t.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	d.logger.Info("Microphone opened",
		zap.Int("sampleRate", d.config.SampleRate),
		zap.Int("channels", d.config.Channels))
	return t, nil
}

type track struct {
	data    chan []byte
	stopped chan struct{}
	endOnce sync.Once
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64

	mctx   *malgo.AllocatedContext
	device *malgo.Device
	logger *zap.Logger
}

func (t *track) push(b []byte) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.data <- b:
	default:
		// The reader is behind; the backend thread must never block.
		t.dropped.Add(1)
	}
}

// Read returns the next captured buffer
func (t *track) Read(ctx context.Context) ([]byte, error) {
	select {
	case b := <-t.data:
		return b, nil
	case <-t.stopped:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deviceStopped runs on the backend thread when capture stops, whether
// through Stop or because the device was lost. Readers then see io.EOF.
func (t *track) deviceStopped() {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if !closed {
		t.logger.Warn("Microphone stopped by the device")
	}
	t.end()
}

// end wakes readers. It never touches the device, so the backend may call it.
func (t *track) end() {
	t.endOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.stopped)
	})
}

// Stop releases the device. Safe to call more than once.
func (t *track) Stop() error {
	t.end()
	t.once.Do(func() {
		if t.device != nil {
			t.device.Uninit()
		}
		if t.mctx != nil {
			t.mctx.Uninit()
			t.mctx.Free()
		}
		t.logger.Info("Microphone released", zap.Int64("droppedBuffers", t.dropped.Load()))
	})
	return nil
}
