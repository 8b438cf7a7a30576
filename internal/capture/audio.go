package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/audio"
	"github.com/javaboys/hunty/interview/internal/envelope"
	"github.com/javaboys/hunty/interview/internal/metrics"
	"github.com/javaboys/hunty/interview/internal/voice"
)

// AudioSender delivers an enveloped audio chunk
type AudioSender interface {
	SendAudioChunk(h envelope.Header, payload []byte) error
}

// AudioConfig describes the chunks produced from the microphone
type AudioConfig struct {
	Interval   time.Duration
	Codec      string
	SampleRate int
	Channels   int
}

// DefaultAudioConfig matches what the microphone adapter captures
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		Interval:   250 * time.Millisecond,
		Codec:      envelope.CodecPCM16,
		SampleRate: 48000,
		Channels:   1,
	}
}

// Option configures a chunker
type Option func(*options)

type options struct {
	ticker    TickerFunc
	onStopped func(error)
}

// WithTicker overrides the chunk interval clock
func WithTicker(fn TickerFunc) Option {
	return func(o *options) { o.ticker = fn }
}

// WithOnStopped registers a callback run after every teardown. err is nil
// when the chunker was stopped deliberately.
func WithOnStopped(fn func(err error)) Option {
	return func(o *options) { o.onStopped = fn }
}

func buildOptions(opts []Option) options {
	o := options{ticker: realTicker, onStopped: func(error) {}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AudioChunker sends the microphone as enveloped chunks on the voice socket.
type AudioChunker struct {
	device repositories.MediaDevice
	sender AudioSender
	config AudioConfig
	logger *zap.Logger
	opts   options
	meter  audio.LevelMeter

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewAudioChunker creates a stopped audio chunker
func NewAudioChunker(device repositories.MediaDevice, sender AudioSender, config AudioConfig, logger *zap.Logger, opts ...Option) *AudioChunker {
	def := DefaultAudioConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Codec == "" {
		config.Codec = def.Codec
	}
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	if config.Channels <= 0 {
		config.Channels = def.Channels
	}

	return &AudioChunker{
		device: device,
		sender: sender,
		config: config,
		logger: logger,
		opts:   buildOptions(opts),
	}
}

// Start opens the microphone and begins chunking. Starting a running
// chunker is a no-op.
func (c *AudioChunker) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	track, err := c.device.Open(ctx)
	if err != nil {
		c.logger.Error("Failed to open microphone", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.running = true
	c.cancel = cancel
	c.done = done
	c.meter.Reset()

	go c.run(runCtx, track, done)

	c.logger.Info("Audio capture started",
		zap.Duration("interval", c.config.Interval),
		zap.Int("sampleRate", c.config.SampleRate))
	return nil
}

// Stop ends capture and waits for teardown to finish
func (c *AudioChunker) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the microphone is being captured
func (c *AudioChunker) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Level returns the smoothed microphone level in 0..1
func (c *AudioChunker) Level() float64 {
	return c.meter.Level()
}

// run is the only place a track is torn down.
func (c *AudioChunker) run(ctx context.Context, track repositories.MediaTrack, done chan struct{}) {
	ticks, stopTicker := c.opts.ticker(c.config.Interval)

	rest, err := pump(ctx, track, ticks, c.send)

	stopTicker()
	if stopErr := track.Stop(); stopErr != nil {
		c.logger.Warn("Failed to stop microphone track", zap.Error(stopErr))
	}
	if len(rest) > 0 {
		c.send(rest)
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	metrics.MicLevel.Set(0)
	close(done)

	if err != nil {
		c.logger.Warn("Audio capture stopped", zap.Error(err))
	} else {
		c.logger.Info("Audio capture stopped")
	}
	c.opts.onStopped(err)
}

// send never fails the run: chunks produced while the socket reconnects are dropped.
func (c *AudioChunker) send(chunk []byte) error {
	rms := audio.RMSPCM16(chunk)
	level := c.meter.Observe(rms)
	metrics.MicLevel.Set(level)

	durationMs := int(c.config.Interval / time.Millisecond)
	header := envelope.Header{
		Type:       envelope.TypeAudioChunk,
		Codec:      c.config.Codec,
		SampleRate: c.config.SampleRate,
		Channels:   c.config.Channels,
		RMSHint:    &rms,
		DurationMs: &durationMs,
	}

	if err := c.sender.SendAudioChunk(header, chunk); err != nil {
		if errors.Is(err, voice.ErrNotOpen) {
			c.logger.Debug("Dropping audio chunk while voice socket is down", zap.Int("bytes", len(chunk)))
		} else {
			c.logger.Warn("Failed to send audio chunk", zap.Int("bytes", len(chunk)), zap.Error(err))
		}
		return nil
	}

	metrics.ChunksSentTotal.WithLabelValues("audio").Inc()
	metrics.ChunkBytesSentTotal.WithLabelValues("audio").Add(float64(len(chunk)))
	return nil
}
