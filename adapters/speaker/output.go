package speaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/faiface/beep"
	beepspeaker "github.com/faiface/beep/speaker"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
)

// Default configuration values
const (
	DefaultSampleRate      = 48000
	DefaultBufferSize      = 100 * time.Millisecond
	DefaultResampleQuality = 4
)

// ErrClosed is returned when scheduling on a closed output
var ErrClosed = errors.New("audio output closed")

// Config holds speaker output configuration
type Config struct {
	SampleRate      int
	BufferSize      time.Duration
	ResampleQuality int
}

// Output plays scheduled buffers on the system speaker. The number of
// samples streamed to the device is its clock.
type Output struct {
	config Config
	sr     beep.SampleRate
	logger *zap.Logger

	initOnce sync.Once
	initErr  error
	started  bool

	mu      sync.Mutex
	pos     int
	items   []*scheduled
	scratch [][2]float64
	closed  bool
}

type scheduled struct {
	start    int
	streamer beep.Streamer
	done     chan struct{}
}

var _ repositories.AudioOutput = (*Output)(nil)

// NewOutput creates a suspended speaker output. Nothing touches the device until Resume.
func NewOutput(config Config, logger *zap.Logger) *Output {
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.ResampleQuality <= 0 {
		config.ResampleQuality = DefaultResampleQuality
	}

	logger.Info("Speaker output configured",
		zap.Int("sampleRate", config.SampleRate),
		zap.Duration("bufferSize", config.BufferSize))

	return &Output{
		config: config,
		sr:     beep.SampleRate(config.SampleRate),
		logger: logger,
	}
}

// Resume initializes the speaker on first use
func (o *Output) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.initOnce.Do(func() {
		if err := beepspeaker.Init(o.sr, o.sr.N(o.config.BufferSize)); err != nil {
			o.initErr = fmt.Errorf("failed to initialize speaker: %w", err)
			return
		}
		o.mu.Lock()
		o.started = true
		o.mu.Unlock()
		beepspeaker.Play(o)
		o.logger.Info("Speaker output resumed")
	})
	return o.initErr
}

// Now returns the device clock
func (o *Output) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sr.D(o.pos)
}

// Play schedules buf at the given device time
func (o *Output) Play(buf entities.AudioBuffer, at time.Duration) (<-chan struct{}, error) {
	if buf.SampleRate <= 0 || len(buf.Channels) == 0 {
		return nil, fmt.Errorf("invalid audio buffer: rate %d, %d channels", buf.SampleRate, len(buf.Channels))
	}

	var s beep.Streamer = &bufferStreamer{buf: buf}
	if src := beep.SampleRate(buf.SampleRate); src != o.sr {
		s = beep.Resample(o.config.ResampleQuality, src, o.sr, s)
	}

	item := &scheduled{
		start:    o.sr.N(at),
		streamer: s,
		done:     make(chan struct{}),
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	o.items = append(o.items, item)
	sort.SliceStable(o.items, func(i, j int) bool { return o.items[i].start < o.items[j].start })
	return item.done, nil
}

// Stream implements beep.Streamer, mixing every item due in this window.
func (o *Output) Stream(samples [][2]float64) (n int, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range samples {
		samples[i] = [2]float64{}
	}
	if cap(o.scratch) < len(samples) {
		o.scratch = make([][2]float64, len(samples))
	}

	windowStart := o.pos
	windowEnd := o.pos + len(samples)
	remaining := o.items[:0]
	for _, item := range o.items {
		if item.start >= windowEnd {
			remaining = append(remaining, item)
			continue
		}

		offset := item.start - windowStart
		if offset < 0 {
			offset = 0
		}
		tmp := o.scratch[:len(samples)-offset]
		got, more := item.streamer.Stream(tmp)
		for i := 0; i < got; i++ {
			samples[offset+i][0] += tmp[i][0]
			samples[offset+i][1] += tmp[i][1]
		}

		if !more || got < len(tmp) {
			close(item.done)
			continue
		}
		// Already playing; later windows continue from offset zero.
		item.start = windowStart
		remaining = append(remaining, item)
	}
	o.items = remaining

	for i := range samples {
		samples[i][0] = clamp(samples[i][0])
		samples[i][1] = clamp(samples[i][1])
	}
	o.pos = windowEnd
	return len(samples), true
}

// Err implements beep.Streamer
func (o *Output) Err() error { return nil }

// Close stops playback and releases the speaker
func (o *Output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	for _, item := range o.items {
		close(item.done)
	}
	o.items = nil
	started := o.started
	o.mu.Unlock()

	if started {
		beepspeaker.Clear()
		beepspeaker.Close()
		o.logger.Info("Speaker output closed")
	}
	return nil
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// bufferStreamer streams an AudioBuffer as stereo frames.
type bufferStreamer struct {
	buf entities.AudioBuffer
	pos int
}

func (b *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	frames := b.buf.Frames()
	if b.pos >= frames {
		return 0, false
	}

	n := 0
	for n < len(samples) && b.pos < frames {
		left := float64(b.buf.Channels[0][b.pos])
		right := left
		if len(b.buf.Channels) > 1 {
			right = float64(b.buf.Channels[1][b.pos])
		}
		samples[n] = [2]float64{left, right}
		n++
		b.pos++
	}
	return n, true
}

func (b *bufferStreamer) Err() error { return nil }
