package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/repositories"
)

// readSize is the largest chunk returned by a single Read
const readSize = 32 * 1024

// Default configuration values
const (
	DefaultPath        = "ffmpeg"
	DefaultInputFormat = "v4l2"
	DefaultDevice      = "/dev/video0"
	DefaultFrameRate   = 15
	DefaultSize        = "640x480"
	DefaultBitrate     = "600k"
)

// Config holds camera capture configuration
type Config struct {
	// Path to the ffmpeg binary
	Path string
	// InputFormat is the ffmpeg demuxer for the camera (v4l2, avfoundation, dshow)
	InputFormat string
	Device      string
	FrameRate   int
	Size        string
	Bitrate     string
}

// Device records the camera to WebM through an ffmpeg subprocess
type Device struct {
	config Config
	logger *zap.Logger
}

var _ repositories.MediaDevice = (*Device)(nil)

// NewDevice creates a camera device
func NewDevice(config Config, logger *zap.Logger) *Device {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.InputFormat == "" {
		config.InputFormat = DefaultInputFormat
	}
	if config.Device == "" {
		config.Device = DefaultDevice
	}
	if config.FrameRate <= 0 {
		config.FrameRate = DefaultFrameRate
	}
	if config.Size == "" {
		config.Size = DefaultSize
	}
	if config.Bitrate == "" {
		config.Bitrate = DefaultBitrate
	}
	return &Device{
		config: config,
		logger: logger.With(zap.String("camera", config.Device)),
	}
}

// Args returns the ffmpeg command line for the configured camera
func (d *Device) Args() []string {
	return []string{
		"-nostdin",
		"-hide_banner", "-loglevel", "error",
		"-f", d.config.InputFormat,
		"-framerate", fmt.Sprint(d.config.FrameRate),
		"-video_size", d.config.Size,
		"-i", d.config.Device,
		"-an",
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-b:v", d.config.Bitrate,
		"-f", "webm",
		"pipe:1",
	}
}

// Open starts ffmpeg. The process lives until Stop or the parent ctx ends.
func (d *Device) Open(ctx context.Context) (repositories.MediaTrack, error) {
	procCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(procCtx, d.config.Path, d.Args()...)
	cmd.WaitDelay = 2 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	d.logger.Info("Camera capture started", zap.Int("pid", cmd.Process.Pid))
	return newTrack(cmd, stdout, cancel, d.logger), nil
}

type track struct {
	cmd    *exec.Cmd
	stdout io.Reader
	cancel context.CancelFunc
	logger *zap.Logger

	// reading is held for the duration of a pipe read. Stop takes it before
	// Wait, which closes the pipe.
	reading chan struct{}
	stopped atomic.Bool

	once      sync.Once
	bytesRead atomic.Int64
}

func newTrack(cmd *exec.Cmd, stdout io.Reader, cancel context.CancelFunc, logger *zap.Logger) *track {
	return &track{
		cmd:     cmd,
		stdout:  stdout,
		cancel:  cancel,
		logger:  logger,
		reading: make(chan struct{}, 1),
	}
}

// Read returns the next block of encoded video. A read in progress is not
// cancelled by ctx; Stop ends the process, which closes stdout.
func (t *track) Read(ctx context.Context) ([]byte, error) {
	select {
	case t.reading <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-t.reading }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.stopped.Load() {
		return nil, io.EOF
	}
	buf := make([]byte, readSize)
	n, err := t.stdout.Read(buf)
	if n > 0 {
		t.bytesRead.Add(int64(n))
		return buf[:n], nil
	}
	if err == nil {
		return nil, nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return nil, io.EOF
	}
	return nil, err
}

// Stop terminates ffmpeg. Idempotent.
func (t *track) Stop() error {
	var waitErr error
	t.once.Do(func() {
		t.cancel()

		// Killing ffmpeg ends any read in progress with EOF.
		select {
		case t.reading <- struct{}{}:
			t.stopped.Store(true)
			<-t.reading
		case <-time.After(t.cmd.WaitDelay):
			t.stopped.Store(true)
			t.logger.Warn("Camera read still blocked after kill")
		}
		waitErr = t.cmd.Wait()
		t.logger.Info("Camera capture stopped", zap.Int64("bytesRead", t.bytesRead.Load()))
	})

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		// Killed by our own cancel.
		return nil
	}
	return waitErr
}
