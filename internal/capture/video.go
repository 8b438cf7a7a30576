package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/metrics"
)

// DefaultVideoInterval is how often raw camera bytes are flushed
const DefaultVideoInterval = 2000 * time.Millisecond

// VideoConfig describes the chunks produced from the camera
type VideoConfig struct {
	Interval time.Duration
}

// VideoChunker uploads the camera as raw chunks on its own socket.
type VideoChunker struct {
	device repositories.MediaDevice
	dialer repositories.VideoDialer
	config VideoConfig
	logger *zap.Logger
	opts   options

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewVideoChunker creates a stopped video chunker
func NewVideoChunker(device repositories.MediaDevice, dialer repositories.VideoDialer, config VideoConfig, logger *zap.Logger, opts ...Option) *VideoChunker {
	if config.Interval <= 0 {
		config.Interval = DefaultVideoInterval
	}
	return &VideoChunker{
		device: device,
		dialer: dialer,
		config: config,
		logger: logger,
		opts:   buildOptions(opts),
	}
}

// Start connects the video socket and begins uploading the camera.
// Starting a running chunker is a no-op.
func (c *VideoChunker) Start(ctx context.Context, interviewID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	link, err := c.dialer.Dial(ctx, interviewID, token)
	if err != nil {
		c.logger.Error("Failed to open video socket", zap.String("interviewID", interviewID), zap.Error(err))
		return err
	}

	track, err := c.device.Open(ctx)
	if err != nil {
		link.Close()
		c.logger.Error("Failed to open camera", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.running = true
	c.cancel = cancel
	c.done = done

	go c.run(runCtx, track, link, done)

	c.logger.Info("Video capture started",
		zap.String("interviewID", interviewID),
		zap.Duration("interval", c.config.Interval))
	return nil
}

// Stop ends capture, finalizes the upload and waits for teardown to finish
func (c *VideoChunker) Stop() {
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

// Running reports whether the camera is being captured
func (c *VideoChunker) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *VideoChunker) run(ctx context.Context, track repositories.MediaTrack, link repositories.VideoLink, done chan struct{}) {
	ticks, stopTicker := c.opts.ticker(c.config.Interval)

	send := func(chunk []byte) error {
		if err := link.SendChunk(chunk); err != nil {
			return err
		}
		metrics.ChunksSentTotal.WithLabelValues("video").Inc()
		metrics.ChunkBytesSentTotal.WithLabelValues("video").Add(float64(len(chunk)))
		return nil
	}

	rest, err := pump(ctx, track, ticks, send)

	stopTicker()
	if stopErr := track.Stop(); stopErr != nil {
		c.logger.Warn("Failed to stop camera track", zap.Error(stopErr))
	}
	if len(rest) > 0 {
		if sendErr := send(rest); sendErr != nil {
			c.logger.Warn("Failed to send final video chunk", zap.Error(sendErr))
		}
	}
	if eosErr := link.SendEndOfStream(); eosErr != nil {
		c.logger.Warn("Failed to send video end of stream", zap.Error(eosErr))
	}
	if closeErr := link.Close(); closeErr != nil {
		c.logger.Warn("Failed to close video socket", zap.Error(closeErr))
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	close(done)

	if err != nil {
		c.logger.Warn("Video capture stopped", zap.Error(err))
	} else {
		c.logger.Info("Video capture stopped")
	}
	c.opts.onStopped(err)
}
