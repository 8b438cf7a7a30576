package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain"
	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/events"
	"github.com/javaboys/hunty/interview/internal/playback"
	"github.com/javaboys/hunty/interview/internal/voice"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu       sync.Mutex
	meeting  *entities.Meeting
	getErr   error
	startErr error
	endErr   error
	starts   int
	ends     int
}

func (a *fakeAPI) Get(ctx context.Context, code string) (*entities.Meeting, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.getErr != nil {
		return nil, a.getErr
	}
	m := *a.meeting
	return &m, nil
}

func (a *fakeAPI) Start(ctx context.Context, code string) (*entities.StartResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.starts++
	if a.startErr != nil {
		return nil, a.startErr
	}
	return &entities.StartResult{
		StartAt:     base,
		EndAt:       base.Add(30 * time.Minute),
		InterviewID: "iv_new",
		Token:       "tok_new",
	}, nil
}

func (a *fakeAPI) End(ctx context.Context, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ends++
	return a.endErr
}

func (a *fakeAPI) Health(ctx context.Context) error { return nil }

func (a *fakeAPI) endCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ends
}

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string]string{}} }

func (s *fakeStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", repositories.ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

type fakeVoice struct {
	mu       sync.Mutex
	enables  []string
	disables int
	state    voice.State
}

func (v *fakeVoice) Enable(ctx context.Context, interviewID, token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enables = append(v.enables, interviewID+"/"+token)
	v.state = voice.StateOpen
	return nil
}

func (v *fakeVoice) Disable() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disables++
	v.state = voice.StateDisabled
}

func (v *fakeVoice) State() voice.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *fakeVoice) counts() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.enables), v.disables
}

type fakeMic struct {
	mu       sync.Mutex
	running  bool
	starts   int
	stops    int
	startErr error
}

func (m *fakeMic) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

func (m *fakeMic) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.running = false
}

func (m *fakeMic) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *fakeMic) Level() float64 { return 0.5 }

type fakeCam struct {
	mu      sync.Mutex
	running bool
	starts  []string
	stops   int
}

func (c *fakeCam) Start(ctx context.Context, interviewID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts = append(c.starts, interviewID)
	c.running = true
	return nil
}

func (c *fakeCam) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	c.running = false
}

func (c *fakeCam) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

type fakePlayer struct {
	mu      sync.Mutex
	resumes int
	blocks  []playback.Block
	closed  bool
}

func (p *fakePlayer) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumes++
	return nil
}

func (p *fakePlayer) Enqueue(b playback.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocks = append(p.blocks, b)
}

func (p *fakePlayer) IsPlaying() bool { return false }

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakePublisher struct {
	transcripts chan events.TranscriptEvent
	lifecycle   chan events.LifecycleEvent
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		transcripts: make(chan events.TranscriptEvent, 8),
		lifecycle:   make(chan events.LifecycleEvent, 8),
	}
}

func (p *fakePublisher) PublishTranscript(ctx context.Context, e events.TranscriptEvent) error {
	p.transcripts <- e
	return nil
}

func (p *fakePublisher) PublishLifecycle(ctx context.Context, e events.LifecycleEvent) error {
	p.lifecycle <- e
	return nil
}

// deadlineTimer hands out a channel the test fires by hand.
type deadlineTimer struct {
	mu    sync.Mutex
	fire  chan time.Time
	waits []time.Duration
}

func newDeadlineTimer() *deadlineTimer {
	return &deadlineTimer{fire: make(chan time.Time, 1)}
}

func (d *deadlineTimer) after(wait time.Duration) <-chan time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waits = append(d.waits, wait)
	return d.fire
}

type harness struct {
	api       *fakeAPI
	store     *fakeStore
	voice     *fakeVoice
	mic       *fakeMic
	cam       *fakeCam
	player    *fakePlayer
	publisher *fakePublisher
	timer     *deadlineTimer
	ctrl      *SessionController
}

func newHarness(t *testing.T, meeting *entities.Meeting, opts ...ControllerOption) *harness {
	t.Helper()
	h := &harness{
		api:       &fakeAPI{meeting: meeting},
		store:     newFakeStore(),
		voice:     &fakeVoice{},
		mic:       &fakeMic{},
		cam:       &fakeCam{},
		player:    &fakePlayer{},
		publisher: newFakePublisher(),
		timer:     newDeadlineTimer(),
	}
	opts = append([]ControllerOption{
		WithClock(func() time.Time { return base }, h.timer.after),
		WithPublisher(h.publisher),
	}, opts...)
	h.ctrl = NewSessionController(h.api, h.store, h.player, zap.NewNop(), opts...)
	h.ctrl.Attach(h.voice, h.mic, h.cam)
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

func lobbyMeeting() *entities.Meeting {
	return &entities.Meeting{Code: "abc", CandidateName: "Dana", Status: entities.SessionStatusNotStarted}
}

func runningMeeting(endAt time.Time) *entities.Meeting {
	id, token := "iv_1", "tok_1"
	return &entities.Meeting{
		Code:        "abc",
		Status:      entities.SessionStatusRunning,
		InterviewID: &id,
		Token:       &token,
		EndAt:       &endAt,
	}
}

func waitPhase(t *testing.T, c *SessionController, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.Phase() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected phase %s, got %s", want, c.Phase())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		meeting    *entities.Meeting
		stored     string
		wantPhase  Phase
		wantStatus entities.SessionStatus
		wantStored bool
	}{
		{
			name:       "not started",
			meeting:    lobbyMeeting(),
			wantPhase:  PhaseLobby,
			wantStatus: entities.SessionStatusNotStarted,
		},
		{
			name:       "stored deadline ahead restores live",
			meeting:    runningMeeting(base.Add(time.Hour)),
			stored:     strconv.FormatInt(base.Add(10*time.Minute).UnixMilli(), 10),
			wantPhase:  PhaseLive,
			wantStatus: entities.SessionStatusRunning,
			wantStored: true,
		},
		{
			name:       "stored deadline passed is cleared",
			meeting:    lobbyMeeting(),
			stored:     strconv.FormatInt(base.Add(-time.Minute).UnixMilli(), 10),
			wantPhase:  PhaseLobby,
			wantStatus: entities.SessionStatusNotStarted,
		},
		{
			name:       "malformed stored deadline is cleared",
			meeting:    lobbyMeeting(),
			stored:     "yesterday",
			wantPhase:  PhaseLobby,
			wantStatus: entities.SessionStatusNotStarted,
		},
		{
			name:       "meeting deadline ahead restores live",
			meeting:    runningMeeting(base.Add(5 * time.Minute)),
			wantPhase:  PhaseLive,
			wantStatus: entities.SessionStatusRunning,
		},
		{
			name:       "running meeting past its deadline is ended",
			meeting:    runningMeeting(base.Add(-5 * time.Minute)),
			wantPhase:  PhaseLobby,
			wantStatus: entities.SessionStatusEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.meeting)
			if tt.stored != "" {
				h.store.Set(context.Background(), entities.EndAtStorageKey, tt.stored)
			}

			if err := h.ctrl.Load(context.Background(), "abc"); err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			snap := h.ctrl.Snapshot()
			if snap.Phase != tt.wantPhase {
				t.Errorf("Expected phase %s, got %s", tt.wantPhase, snap.Phase)
			}
			if snap.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, snap.Status)
			}
			if got := h.store.has(entities.EndAtStorageKey); got != tt.wantStored {
				t.Errorf("Expected stored deadline %v, got %v", tt.wantStored, got)
			}

			enables, _ := h.voice.counts()
			if tt.wantPhase == PhaseLive && enables != 1 {
				t.Errorf("Expected voice enabled once, got %d", enables)
			}
			if tt.wantPhase == PhaseLobby && enables != 0 {
				t.Errorf("Expected voice untouched in lobby, got %d enables", enables)
			}
		})
	}
}

func TestLoadFailure(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	h.api.getErr = errors.New("HTTP 500")

	err := h.ctrl.Load(context.Background(), "abc")
	if !errors.Is(err, ErrLifecycle) {
		t.Errorf("Expected ErrLifecycle, got %v", err)
	}
	if h.ctrl.Snapshot().LastError == "" {
		t.Error("Expected a user-visible error")
	}
}

func TestStartGoesLive(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	if err := h.ctrl.Load(context.Background(), "abc"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.Phase != PhaseLive || snap.Status != entities.SessionStatusRunning {
		t.Errorf("Expected live/running, got %s/%s", snap.Phase, snap.Status)
	}
	if snap.InterviewID != "iv_new" {
		t.Errorf("Expected interview iv_new, got %s", snap.InterviewID)
	}
	if snap.Remaining != 30*time.Minute {
		t.Errorf("Expected 30m remaining, got %v", snap.Remaining)
	}

	stored, err := h.store.Get(context.Background(), entities.EndAtStorageKey)
	if err != nil {
		t.Fatalf("Expected stored deadline, got %v", err)
	}
	if want := strconv.FormatInt(base.Add(30*time.Minute).UnixMilli(), 10); stored != want {
		t.Errorf("Expected stored %s, got %s", want, stored)
	}

	if h.player.resumes == 0 {
		t.Error("Expected audio output resumed")
	}
	if len(h.voice.enables) != 1 || h.voice.enables[0] != "iv_new/tok_new" {
		t.Errorf("Expected voice enabled for iv_new/tok_new, got %v", h.voice.enables)
	}
	if !h.mic.Running() {
		t.Error("Expected microphone started")
	}
	if h.cam.Running() {
		t.Error("Expected camera to stay off by default")
	}
	if len(h.timer.waits) != 1 || h.timer.waits[0] != 30*time.Minute {
		t.Errorf("Expected deadline armed for 30m, got %v", h.timer.waits)
	}

	select {
	case e := <-h.publisher.lifecycle:
		if e.Status != string(entities.SessionStatusRunning) || e.InterviewID != "iv_new" {
			t.Errorf("Expected running lifecycle event for iv_new, got %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("Timed out waiting for lifecycle event")
	}

	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrAlreadyLive) {
		t.Errorf("Expected ErrAlreadyLive, got %v", err)
	}
}

func TestStartFailureStaysInLobby(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	h.ctrl.Load(context.Background(), "abc")
	h.api.startErr = errors.New("HTTP 503")

	err := h.ctrl.Start(context.Background())
	if !errors.Is(err, ErrLifecycle) {
		t.Fatalf("Expected ErrLifecycle, got %v", err)
	}

	snap := h.ctrl.Snapshot()
	if snap.Phase != PhaseLobby {
		t.Errorf("Expected lobby, got %s", snap.Phase)
	}
	if snap.LastError == "" {
		t.Error("Expected a user-visible error")
	}
	if enables, _ := h.voice.counts(); enables != 0 {
		t.Errorf("Expected voice untouched, got %d enables", enables)
	}
	if h.store.has(entities.EndAtStorageKey) {
		t.Error("Expected no stored deadline")
	}

	// The failure is retryable.
	h.api.startErr = nil
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() retry error = %v", err)
	}
	if h.ctrl.Snapshot().LastError != "" {
		t.Error("Expected error cleared after a successful start")
	}
}

func TestStartRequiresMeeting(t *testing.T) {
	h := newHarness(t, lobbyMeeting())

	if err := h.ctrl.Start(context.Background()); !errors.Is(err, ErrNoMeeting) {
		t.Errorf("Expected ErrNoMeeting, got %v", err)
	}
	if err := h.ctrl.End(context.Background()); !errors.Is(err, ErrNotLive) {
		t.Errorf("Expected ErrNotLive, got %v", err)
	}
}

func TestEnd(t *testing.T) {
	tests := []struct {
		name    string
		endErr  error
		wantErr bool
	}{
		{"success", nil, false},
		{"request fails but session still ends", errors.New("HTTP 409"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, lobbyMeeting(), WithCapture(true, true))
			h.ctrl.Load(context.Background(), "abc")
			if err := h.ctrl.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			h.api.endErr = tt.endErr

			err := h.ctrl.End(context.Background())
			if tt.wantErr && !errors.Is(err, ErrLifecycle) {
				t.Errorf("Expected ErrLifecycle, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}

			snap := h.ctrl.Snapshot()
			if snap.Phase != PhaseLobby || snap.Status != entities.SessionStatusEnded {
				t.Errorf("Expected lobby/ended, got %s/%s", snap.Phase, snap.Status)
			}
			if _, disables := h.voice.counts(); disables != 1 {
				t.Errorf("Expected voice disabled once, got %d", disables)
			}
			if h.mic.Running() || h.cam.Running() {
				t.Error("Expected capture stopped")
			}
			if h.store.has(entities.EndAtStorageKey) {
				t.Error("Expected stored deadline cleared")
			}
			if snap.Remaining != 0 {
				t.Errorf("Expected no remaining time in lobby, got %v", snap.Remaining)
			}
		})
	}
}

func TestOnSystemEnded(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	h.ctrl.Load(context.Background(), "abc")
	h.ctrl.Start(context.Background())

	h.ctrl.OnSystem(domain.SystemMessage{Type: domain.MessageTypeSystem, Event: domain.SystemEventEnded})

	waitPhase(t, h.ctrl, PhaseLobby)
	if h.ctrl.Snapshot().Status != entities.SessionStatusEnded {
		t.Errorf("Expected ended status, got %s", h.ctrl.Snapshot().Status)
	}
	if h.store.has(entities.EndAtStorageKey) {
		t.Error("Expected stored deadline cleared")
	}
	if h.api.endCount() != 0 {
		t.Error("Expected no end request for a server-side end")
	}
}

func TestOnSystemError(t *testing.T) {
	h := newHarness(t, lobbyMeeting())

	h.ctrl.OnSystem(domain.SystemMessage{Event: domain.SystemEventError, Message: "agent crashed"})
	if got := h.ctrl.Snapshot().LastError; got != "agent crashed" {
		t.Errorf("Expected error message, got %q", got)
	}

	h.ctrl.OnSystem(domain.SystemMessage{Event: domain.SystemEventError})
	if got := h.ctrl.Snapshot().LastError; got == "" {
		t.Error("Expected a default error message")
	}
}

func TestConnectivityLostAndReconnect(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	h.ctrl.Load(context.Background(), "abc")
	h.ctrl.Start(context.Background())

	h.ctrl.OnConnectivityLost(voice.ErrConnectivityLost)

	snap := h.ctrl.Snapshot()
	if snap.Phase != PhaseLive {
		t.Errorf("Expected to stay live, got %s", snap.Phase)
	}
	if snap.LastError == "" {
		t.Error("Expected a user-visible connectivity error")
	}

	if err := h.ctrl.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if enables, _ := h.voice.counts(); enables != 2 {
		t.Errorf("Expected voice re-enabled, got %d enables", enables)
	}
	if h.ctrl.Snapshot().LastError != "" {
		t.Error("Expected error cleared after reconnect")
	}
}

func TestReconnectRequiresLive(t *testing.T) {
	h := newHarness(t, lobbyMeeting())

	if err := h.ctrl.Reconnect(context.Background()); !errors.Is(err, ErrNotLive) {
		t.Errorf("Expected ErrNotLive, got %v", err)
	}
}

func TestOnTranscript(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	h.ctrl.Load(context.Background(), "abc")
	h.ctrl.Start(context.Background())

	h.ctrl.OnTranscript(domain.TranscriptMessage{Type: domain.MessageTypeSTTPartial, Text: "hel"})
	if got := h.ctrl.Snapshot().Partial; got != "hel" {
		t.Errorf("Expected partial hel, got %q", got)
	}

	h.ctrl.OnTranscript(domain.TranscriptMessage{Type: domain.MessageTypeSTTFinal, Text: "hello", FromMs: 0, ToMs: 900})
	snap := h.ctrl.Snapshot()
	if snap.Partial != "" {
		t.Errorf("Expected partial cleared, got %q", snap.Partial)
	}
	if len(snap.Subtitles) != 1 || snap.Subtitles[0].Text != "hello" {
		t.Errorf("Expected one subtitle line, got %v", snap.Subtitles)
	}

	select {
	case e := <-h.publisher.transcripts:
		if e.Text != "hello" || e.InterviewID != "iv_new" || e.ToMs != 900 {
			t.Errorf("Expected published final for iv_new, got %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("Timed out waiting for published transcript")
	}
}

func TestDeadlineEndsSession(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	h.ctrl.Load(context.Background(), "abc")
	h.ctrl.Start(context.Background())

	h.timer.fire <- base.Add(30 * time.Minute)

	waitPhase(t, h.ctrl, PhaseLobby)
	if h.api.endCount() != 1 {
		t.Errorf("Expected one end request at the deadline, got %d", h.api.endCount())
	}
	if h.store.has(entities.EndAtStorageKey) {
		t.Error("Expected stored deadline cleared")
	}
}

func TestCaptureToggles(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	h.ctrl.Load(context.Background(), "abc")

	// Toggles in the lobby only record the preference.
	if err := h.ctrl.SetCameraEnabled(context.Background(), true); err != nil {
		t.Fatalf("SetCameraEnabled() error = %v", err)
	}
	if h.cam.Running() {
		t.Error("Expected camera idle in lobby")
	}

	h.ctrl.Start(context.Background())
	if !h.cam.Running() || h.cam.starts[0] != "iv_new" {
		t.Errorf("Expected camera started for iv_new, got %v", h.cam.starts)
	}

	h.ctrl.SetMicEnabled(context.Background(), false)
	if h.mic.Running() || h.ctrl.Snapshot().MicEnabled {
		t.Error("Expected microphone stopped")
	}

	h.mic.startErr = errors.New("permission denied")
	if err := h.ctrl.SetMicEnabled(context.Background(), true); err == nil {
		t.Error("Expected device error")
	}
	snap := h.ctrl.Snapshot()
	if snap.MicEnabled {
		t.Error("Expected microphone disabled after a device error")
	}
	if snap.LastError == "" {
		t.Error("Expected a user-visible device error")
	}
}

func TestOnMicStopped(t *testing.T) {
	h := newHarness(t, lobbyMeeting())

	h.ctrl.OnMicStopped(nil)
	if !h.ctrl.Snapshot().MicEnabled {
		t.Error("Expected a deliberate stop to keep the preference")
	}

	h.ctrl.OnMicStopped(errors.New("track ended"))
	snap := h.ctrl.Snapshot()
	if snap.MicEnabled || snap.LastError == "" {
		t.Errorf("Expected microphone disabled with an error, got %+v", snap)
	}
}

func TestPlayTestSound(t *testing.T) {
	h := newHarness(t, lobbyMeeting())

	if err := h.ctrl.PlayTestSound(context.Background()); err != nil {
		t.Fatalf("PlayTestSound() error = %v", err)
	}
	if len(h.player.blocks) != 1 {
		t.Fatalf("Expected one block, got %d", len(h.player.blocks))
	}
	b := h.player.blocks[0]
	if b.SampleRate != 24000 || len(b.Samples) != 7200 {
		t.Errorf("Expected 300ms at 24kHz, got %d samples at %d", len(b.Samples), b.SampleRate)
	}
}

func TestCloseKeepsStoredDeadline(t *testing.T) {
	h := newHarness(t, lobbyMeeting())
	h.ctrl.Load(context.Background(), "abc")
	h.ctrl.Start(context.Background())

	if err := h.ctrl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, disables := h.voice.counts(); disables != 1 {
		t.Errorf("Expected voice disabled, got %d", disables)
	}
	if !h.player.closed {
		t.Error("Expected playback closed")
	}
	if !h.store.has(entities.EndAtStorageKey) {
		t.Error("Expected stored deadline kept for the next run")
	}
	if err := h.ctrl.Close(); err != nil {
		t.Errorf("Expected second close to succeed, got %v", err)
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{59*time.Second + 900*time.Millisecond, "00:59"},
		{29*time.Minute + 5*time.Second, "29:05"},
		{time.Hour, "01:00:00"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "02:03:04"},
	}

	for _, tt := range tests {
		if got := FormatRemaining(tt.in); got != tt.want {
			t.Errorf("FormatRemaining(%v): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseLobby.String() != "lobby" || PhaseLive.String() != "live" || Phase(9).String() != "unknown" {
		t.Error("Unexpected phase names")
	}
}
