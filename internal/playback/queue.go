package playback

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/audio"
	"github.com/javaboys/hunty/interview/internal/metrics"
)

const (
	// DefaultGain is applied to every block before it reaches the device.
	DefaultGain = 1.25

	// DefaultStartLead delays the first block after an idle period so the
	// device never receives a start time already in the past.
	DefaultStartLead = 10 * time.Millisecond

	// lookahead is how many blocks may sit scheduled behind the one playing.
	lookahead = 1
)

// Block is decoded mono PCM tagged with its sample rate and the number of
// output channels it should be played on.
type Block struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the block
func (b Block) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// PCM16Block decodes an s16le payload into a block.
func PCM16Block(payload []byte, sampleRate, channels int) Block {
	return Block{
		Samples:    audio.PCM16ToFloat32(payload),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Option configures a Queue
type Option func(*Queue)

// WithGain overrides the output gain
func WithGain(gain float64) Option {
	return func(q *Queue) { q.gain = float32(gain) }
}

// WithStartLead overrides the lead applied after an idle period
func WithStartLead(d time.Duration) Option {
	return func(q *Queue) { q.startLead = d }
}

// Queue plays blocks strictly in enqueue order, each one starting where the
// previous one ended on the output clock.
type Queue struct {
	out       repositories.AudioOutput
	logger    *zap.Logger
	gain      float32
	startLead time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// wake tells a drain waiting on the device that a block arrived.
	wake chan struct{}

	mu       sync.Mutex
	blocks   []Block
	draining bool
	closed   bool
	// cursor is the scheduled end of the last block handed to the output.
	cursor time.Duration
}

// NewQueue creates a queue that owns out
func NewQueue(out repositories.AudioOutput, logger *zap.Logger, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		out:       out,
		logger:    logger,
		gain:      DefaultGain,
		startLead: DefaultStartLead,
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a block and starts draining if the queue was idle.
func (q *Queue) Enqueue(b Block) {
	if len(b.Samples) == 0 || b.SampleRate <= 0 {
		q.logger.Debug("Ignoring empty audio block", zap.Int("sampleRate", b.SampleRate))
		return
	}
	if b.Channels <= 0 {
		b.Channels = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.blocks = append(q.blocks, b)
	metrics.PlaybackQueueDepth.Set(float64(len(q.blocks)))

	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		go q.drain()
		return
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// IsPlaying reports whether a block is in flight or waiting.
func (q *Queue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Resume activates the output device. Safe to call repeatedly.
func (q *Queue) Resume(ctx context.Context) error {
	return q.out.Resume(ctx)
}

// Close stops draining, drops pending blocks and releases the output.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.blocks = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	metrics.PlaybackQueueDepth.Set(0)
	return q.out.Close()
}

// drain hands blocks to the output in order. The next block is scheduled at
// the previous one's end while that one is still playing, so completion
// latency on the device never opens a gap.
func (q *Queue) drain() {
	defer q.wg.Done()

	if err := q.out.Resume(q.ctx); err != nil {
		q.logger.Warn("Failed to resume audio output", zap.Error(err))
	}

	// Completion channels of scheduled blocks, oldest first.
	var inFlight []<-chan struct{}
	fromIdle := true
	for {
		if len(inFlight) > lookahead {
			select {
			case <-inFlight[0]:
				inFlight = inFlight[1:]
			case <-q.ctx.Done():
				q.stopDraining()
				return
			}
		}

		b, ok := q.next(len(inFlight) == 0)
		if !ok {
			if len(inFlight) == 0 {
				return
			}
			select {
			case <-inFlight[0]:
				inFlight = inFlight[1:]
				if len(inFlight) == 0 {
					fromIdle = true
				}
			case <-q.wake:
			case <-q.ctx.Done():
				q.stopDraining()
				return
			}
			continue
		}

		buf := q.materialize(b)
		start := q.startTime(fromIdle)

		done, err := q.out.Play(buf, start)
		if err != nil {
			q.logger.Error("Failed to schedule audio block",
				zap.Int("sampleRate", b.SampleRate),
				zap.Int("samples", len(b.Samples)),
				zap.Error(err))
			continue
		}

		q.mu.Lock()
		q.cursor = start + buf.Duration()
		q.mu.Unlock()
		metrics.PlaybackBlocksTotal.Inc()

		inFlight = append(inFlight, done)
		fromIdle = false
	}
}

// next pops the oldest block. With nothing queued it stops the drain only
// when idle is set, otherwise the drain keeps waiting on the device.
func (q *Queue) next(idle bool) (Block, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.blocks) == 0 {
		if idle || q.closed {
			q.draining = false
		}
		return Block{}, false
	}
	b := q.blocks[0]
	q.blocks[0] = Block{}
	q.blocks = q.blocks[1:]
	metrics.PlaybackQueueDepth.Set(float64(len(q.blocks)))
	return b, true
}

func (q *Queue) stopDraining() {
	q.mu.Lock()
	q.draining = false
	q.mu.Unlock()
}

// startTime picks the start for the next block: the previous block's end,
// or the present moment when the drain has fallen behind the device clock.
func (q *Queue) startTime(fromIdle bool) time.Duration {
	now := q.out.Now()

	q.mu.Lock()
	cursor := q.cursor
	q.mu.Unlock()

	earliest := now
	if fromIdle {
		earliest = now + q.startLead
	}
	if cursor < earliest {
		return earliest
	}
	return cursor
}

// materialize duplicates the mono samples into every output channel.
func (q *Queue) materialize(b Block) entities.AudioBuffer {
	scaled := make([]float32, len(b.Samples))
	for i, s := range b.Samples {
		scaled[i] = s * q.gain
	}

	channels := make([][]float32, b.Channels)
	channels[0] = scaled
	for c := 1; c < b.Channels; c++ {
		channels[c] = append([]float32(nil), scaled...)
	}
	return entities.AudioBuffer{SampleRate: b.SampleRate, Channels: channels}
}
