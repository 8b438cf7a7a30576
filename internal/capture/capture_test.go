package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/envelope"
)

const waitTimeout = 2 * time.Second

// fakeTrack returns queued chunks, then blocks until stopped or told to end.
type fakeTrack struct {
	mu      sync.Mutex
	chunks  [][]byte
	endWith error

	reads    atomic.Int32
	stops    atomic.Int32
	stopped  chan struct{}
	stopOnce sync.Once
	ended    chan struct{}
}

func newFakeTrack(chunks ...[]byte) *fakeTrack {
	return &fakeTrack{
		chunks:  chunks,
		stopped: make(chan struct{}),
		ended:   make(chan struct{}),
	}
}

func (t *fakeTrack) Read(ctx context.Context) ([]byte, error) {
	t.reads.Add(1)
	t.mu.Lock()
	if len(t.chunks) > 0 {
		b := t.chunks[0]
		t.chunks = t.chunks[1:]
		t.mu.Unlock()
		return b, nil
	}
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.stopped:
		return nil, io.EOF
	case <-t.ended:
		return nil, t.endWith
	}
}

func (t *fakeTrack) Stop() error {
	t.stops.Add(1)
	t.stopOnce.Do(func() { close(t.stopped) })
	return nil
}

func (t *fakeTrack) end(err error) {
	t.endWith = err
	close(t.ended)
}

// waitIdle waits until every queued chunk has been handed to the pump.
func (t *fakeTrack) waitIdle(tb testing.TB, queued int) {
	tb.Helper()
	deadline := time.Now().Add(waitTimeout)
	for int(t.reads.Load()) <= queued {
		if time.Now().After(deadline) {
			tb.Fatal("Timed out waiting for track reads")
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeDevice struct {
	track *fakeTrack
	err   error
	opens atomic.Int32
}

func (d *fakeDevice) Open(ctx context.Context) (repositories.MediaTrack, error) {
	d.opens.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.track, nil
}

type sentChunk struct {
	header  envelope.Header
	payload []byte
}

type fakeSender struct {
	mu     sync.Mutex
	chunks []sentChunk
	sent   chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan struct{}, 16)}
}

func (s *fakeSender) SendAudioChunk(h envelope.Header, payload []byte) error {
	s.mu.Lock()
	s.chunks = append(s.chunks, sentChunk{h, append([]byte(nil), payload...)})
	s.mu.Unlock()
	s.sent <- struct{}{}
	return nil
}

func (s *fakeSender) all() []sentChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentChunk(nil), s.chunks...)
}

// manualTicker delivers ticks only when the test asks for them.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) fn(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() { m.stopped.Store(true) }
}

func (m *manualTicker) tick(tb testing.TB) {
	tb.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(waitTimeout):
		tb.Fatal("Timed out delivering tick")
	}
}

func waitStopped(tb testing.TB, ch <-chan error) error {
	tb.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitTimeout):
		tb.Fatal("Timed out waiting for teardown")
		return nil
	}
}

func TestAudioChunkerEmitsEnvelopedChunks(t *testing.T) {
	chunkA := []byte{0x00, 0x40, 0x00, 0x40}
	chunkB := []byte{0x00, 0xc0}
	track := newFakeTrack(chunkA, chunkB)
	sender := newFakeSender()
	ticker := newManualTicker()

	c := NewAudioChunker(&fakeDevice{track: track}, sender, DefaultAudioConfig(), zap.NewNop(), WithTicker(ticker.fn))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()

	track.waitIdle(t, 2)
	ticker.tick(t)
	<-sender.sent

	chunks := sender.all()
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	got := chunks[0]
	if !bytes.Equal(got.payload, append(chunkA, chunkB...)) {
		t.Errorf("Expected concatenated payload, got %v", got.payload)
	}
	h := got.header
	if h.Type != envelope.TypeAudioChunk || h.Codec != envelope.CodecPCM16 {
		t.Errorf("Expected audio.chunk/pcm16, got %s/%s", h.Type, h.Codec)
	}
	if h.SampleRate != 48000 || h.Channels != 1 {
		t.Errorf("Expected 48000 Hz mono, got %d Hz %d ch", h.SampleRate, h.Channels)
	}
	if h.DurationMs == nil || *h.DurationMs != 250 {
		t.Errorf("Expected durationMs 250, got %v", h.DurationMs)
	}
	if h.RMSHint == nil || *h.RMSHint <= 0 || *h.RMSHint > 1 {
		t.Errorf("Expected rmsHint in (0,1], got %v", h.RMSHint)
	}
	if c.Level() <= 0 {
		t.Errorf("Expected positive mic level, got %v", c.Level())
	}
}

func TestAudioChunkerSkipsEmptyIntervals(t *testing.T) {
	track := newFakeTrack()
	sender := newFakeSender()
	ticker := newManualTicker()

	c := NewAudioChunker(&fakeDevice{track: track}, sender, AudioConfig{}, zap.NewNop(), WithTicker(ticker.fn))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ticker.tick(t)
	ticker.tick(t)
	c.Stop()

	if n := len(sender.all()); n != 0 {
		t.Errorf("Expected no chunks for empty intervals, got %d", n)
	}
}

func TestAudioChunkerStartIsIdempotent(t *testing.T) {
	device := &fakeDevice{track: newFakeTrack()}
	c := NewAudioChunker(device, newFakeSender(), AudioConfig{}, zap.NewNop(), WithTicker(newManualTicker().fn))

	for i := 0; i < 3; i++ {
		if err := c.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	}
	defer c.Stop()

	if n := device.opens.Load(); n != 1 {
		t.Errorf("Expected device opened once, got %d", n)
	}
	if !c.Running() {
		t.Error("Expected chunker to be running")
	}
}

func TestAudioChunkerDeviceError(t *testing.T) {
	device := &fakeDevice{err: errors.New("permission denied")}
	c := NewAudioChunker(device, newFakeSender(), AudioConfig{}, zap.NewNop())

	err := c.Start(context.Background())
	if !errors.Is(err, ErrDevice) {
		t.Errorf("Expected ErrDevice, got %v", err)
	}
	if c.Running() {
		t.Error("Expected chunker to stay stopped")
	}
	c.Stop()
}

func TestAudioChunkerSingleTeardown(t *testing.T) {
	tests := []struct {
		name    string
		trigger func(c *AudioChunker, track *fakeTrack, cancel context.CancelFunc)
		wantErr error
	}{
		{
			name:    "explicit stop",
			trigger: func(c *AudioChunker, track *fakeTrack, cancel context.CancelFunc) { c.Stop() },
		},
		{
			name:    "context cancelled",
			trigger: func(c *AudioChunker, track *fakeTrack, cancel context.CancelFunc) { cancel() },
		},
		{
			name:    "track ended",
			trigger: func(c *AudioChunker, track *fakeTrack, cancel context.CancelFunc) { track.end(io.EOF) },
			wantErr: ErrTrackEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := newFakeTrack()
			stopped := make(chan error, 4)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			c := NewAudioChunker(&fakeDevice{track: track}, newFakeSender(), AudioConfig{}, zap.NewNop(),
				WithTicker(newManualTicker().fn),
				WithOnStopped(func(err error) { stopped <- err }))
			if err := c.Start(ctx); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			tt.trigger(c, track, cancel)
			err := waitStopped(t, stopped)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}

			// Every other path converges on the same teardown.
			c.Stop()
			c.Stop()
			cancel()

			if n := track.stops.Load(); n != 1 {
				t.Errorf("Expected track stopped once, got %d", n)
			}
			if c.Running() {
				t.Error("Expected chunker to be stopped")
			}
			select {
			case err := <-stopped:
				t.Errorf("Expected a single teardown, got another %v", err)
			case <-time.After(20 * time.Millisecond):
			}
		})
	}
}

func TestAudioChunkerRestartsAfterTrackEnds(t *testing.T) {
	first := newFakeTrack()
	device := &fakeDevice{track: first}
	stopped := make(chan error, 2)

	c := NewAudioChunker(device, newFakeSender(), AudioConfig{}, zap.NewNop(),
		WithTicker(newManualTicker().fn),
		WithOnStopped(func(err error) { stopped <- err }))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first.end(errors.New("device unplugged"))
	waitStopped(t, stopped)

	device.track = newFakeTrack()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() after track end error = %v", err)
	}
	defer c.Stop()

	if n := device.opens.Load(); n != 2 {
		t.Errorf("Expected device reopened, got %d opens", n)
	}
}

type fakeLink struct {
	mu     sync.Mutex
	events []string
	failOn string
}

func (l *fakeLink) record(ev string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if l.failOn != "" && ev == l.failOn {
		return errors.New("socket closed")
	}
	return nil
}

func (l *fakeLink) SendChunk(data []byte) error { return l.record("chunk:" + string(data)) }
func (l *fakeLink) SendEndOfStream() error      { return l.record("eos") }
func (l *fakeLink) Close() error                { return l.record("close") }

func (l *fakeLink) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeDialer struct {
	link        *fakeLink
	err         error
	interviewID string
	token       string
}

func (d *fakeDialer) Dial(ctx context.Context, interviewID, token string) (repositories.VideoLink, error) {
	d.interviewID = interviewID
	d.token = token
	if d.err != nil {
		return nil, d.err
	}
	return d.link, nil
}

func TestVideoChunkerUploadsAndFinalizes(t *testing.T) {
	track := newFakeTrack([]byte("ab"), []byte("cd"))
	link := &fakeLink{}
	dialer := &fakeDialer{link: link}
	ticker := newManualTicker()

	c := NewVideoChunker(&fakeDevice{track: track}, dialer, VideoConfig{}, zap.NewNop(), WithTicker(ticker.fn))
	if err := c.Start(context.Background(), "iv_1", "tok"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if dialer.interviewID != "iv_1" || dialer.token != "tok" {
		t.Errorf("Expected dial for iv_1/tok, got %s/%s", dialer.interviewID, dialer.token)
	}

	track.waitIdle(t, 2)
	ticker.tick(t)

	c.Stop()

	want := []string{"chunk:abcd", "eos", "close"}
	got := link.all()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, got[i])
		}
	}
	if n := track.stops.Load(); n != 1 {
		t.Errorf("Expected track stopped once, got %d", n)
	}
	if !ticker.stopped.Load() {
		t.Error("Expected ticker to be stopped")
	}
}

func TestVideoChunkerSendsFinalPartialChunk(t *testing.T) {
	track := newFakeTrack([]byte("tail"))
	link := &fakeLink{}
	c := NewVideoChunker(&fakeDevice{track: track}, &fakeDialer{link: link}, VideoConfig{}, zap.NewNop(),
		WithTicker(newManualTicker().fn))
	if err := c.Start(context.Background(), "iv_1", "tok"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	track.waitIdle(t, 1)
	c.Stop()

	want := []string{"chunk:tail", "eos", "close"}
	got := link.all()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, got[i])
		}
	}
}

func TestVideoChunkerStopsWhenSocketFails(t *testing.T) {
	track := newFakeTrack([]byte("xy"))
	link := &fakeLink{failOn: "chunk:xy"}
	ticker := newManualTicker()
	stopped := make(chan error, 2)

	c := NewVideoChunker(&fakeDevice{track: track}, &fakeDialer{link: link}, VideoConfig{}, zap.NewNop(),
		WithTicker(ticker.fn),
		WithOnStopped(func(err error) { stopped <- err }))
	if err := c.Start(context.Background(), "iv_1", "tok"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	track.waitIdle(t, 1)
	ticker.tick(t)

	if err := waitStopped(t, stopped); err == nil {
		t.Error("Expected socket failure to be reported")
	}
	if n := track.stops.Load(); n != 1 {
		t.Errorf("Expected track stopped once, got %d", n)
	}
	if c.Running() {
		t.Error("Expected chunker to be stopped")
	}
}

func TestVideoChunkerStartErrors(t *testing.T) {
	t.Run("dial failure leaves camera closed", func(t *testing.T) {
		device := &fakeDevice{track: newFakeTrack()}
		c := NewVideoChunker(device, &fakeDialer{err: errors.New("refused")}, VideoConfig{}, zap.NewNop())

		if err := c.Start(context.Background(), "iv_1", "tok"); err == nil {
			t.Fatal("Expected dial error")
		}
		if n := device.opens.Load(); n != 0 {
			t.Errorf("Expected camera untouched, got %d opens", n)
		}
	})

	t.Run("device failure closes socket", func(t *testing.T) {
		link := &fakeLink{}
		device := &fakeDevice{err: errors.New("no camera")}
		c := NewVideoChunker(device, &fakeDialer{link: link}, VideoConfig{}, zap.NewNop())

		err := c.Start(context.Background(), "iv_1", "tok")
		if !errors.Is(err, ErrDevice) {
			t.Errorf("Expected ErrDevice, got %v", err)
		}
		if got := link.all(); len(got) != 1 || got[0] != "close" {
			t.Errorf("Expected socket closed, got %v", got)
		}
		if c.Running() {
			t.Error("Expected chunker to stay stopped")
		}
	})
}
