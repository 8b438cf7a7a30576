package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain"
	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
	"github.com/javaboys/hunty/interview/internal/audio"
	"github.com/javaboys/hunty/interview/internal/events"
	"github.com/javaboys/hunty/interview/internal/metrics"
	"github.com/javaboys/hunty/interview/internal/playback"
	"github.com/javaboys/hunty/interview/internal/subtitle"
	"github.com/javaboys/hunty/interview/internal/voice"
)

var (
	// ErrNotLive is returned by operations that need a running session
	ErrNotLive = errors.New("session is not live")

	// ErrAlreadyLive is returned when starting a session that is running
	ErrAlreadyLive = errors.New("session is already live")

	// ErrNoMeeting is returned before a meeting has been loaded
	ErrNoMeeting = errors.New("no meeting loaded")

	// ErrLifecycle wraps failed meeting lifecycle requests. They are user-visible and retryable.
	ErrLifecycle = errors.New("meeting lifecycle request failed")
)

// endRequestTimeout bounds the end request issued when the deadline passes
const endRequestTimeout = 10 * time.Second

// Phase is the page the interview is on
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseLive
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseLive:
		return "live"
	default:
		return "unknown"
	}
}

// VoiceLink is the voice socket as seen by the controller
type VoiceLink interface {
	Enable(ctx context.Context, interviewID, token string) error
	Disable()
	State() voice.State
}

// AudioCapture is the microphone chunker
type AudioCapture interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Level() float64
}

// VideoCapture is the camera chunker
type VideoCapture interface {
	Start(ctx context.Context, interviewID, token string) error
	Stop()
	Running() bool
}

// Player is the playback queue owned by the controller
type Player interface {
	Resume(ctx context.Context) error
	Enqueue(b playback.Block)
	IsPlaying() bool
	Close() error
}

// EventPublisher receives transcript and lifecycle events
type EventPublisher interface {
	PublishTranscript(ctx context.Context, event events.TranscriptEvent) error
	PublishLifecycle(ctx context.Context, event events.LifecycleEvent) error
}

// Snapshot is a point-in-time view of the controller for display
type Snapshot struct {
	Phase       Phase
	Status      entities.SessionStatus
	Code        string
	InterviewID string
	Candidate   string
	EndAt       *time.Time
	Remaining   time.Duration
	MicEnabled  bool
	CamEnabled  bool
	MicLevel    float64
	Voice       voice.State
	LastError   string
	Partial     string
	Subtitles   []entities.TranscriptLine
}

// ControllerOption configures a SessionController
type ControllerOption func(*SessionController)

// WithClock overrides the wall clock and the deadline timer
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) ControllerOption {
	return func(c *SessionController) {
		c.now = now
		c.after = after
	}
}

// WithPublisher sends transcript and lifecycle events to p
func WithPublisher(p EventPublisher) ControllerOption {
	return func(c *SessionController) { c.publisher = p }
}

// WithCapture sets whether the microphone and camera start with the session
func WithCapture(mic, cam bool) ControllerOption {
	return func(c *SessionController) {
		c.micEnabled = mic
		c.camEnabled = cam
	}
}

// SessionController drives the Lobby -> Live -> Lobby state machine.
type SessionController struct {
	api       repositories.MeetingAPI
	store     repositories.SessionStore
	player    Player
	subtitles *subtitle.Buffer
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
	after     func(time.Duration) <-chan time.Time

	voice VoiceLink
	mic   AudioCapture
	cam   VideoCapture

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// lifecycle serializes every transition
	lifecycle sync.Mutex

	mu             sync.Mutex
	phase          Phase
	meeting        *entities.Meeting
	session        *entities.Session
	micEnabled     bool
	camEnabled     bool
	lastError      string
	deadlineCancel context.CancelFunc
	closed         bool
}

// NewSessionController creates a controller in the lobby. Attach must be
// called before the session can go live.
func NewSessionController(api repositories.MeetingAPI, store repositories.SessionStore, player Player, logger *zap.Logger, opts ...ControllerOption) *SessionController {
	ctx, cancel := context.WithCancel(context.Background())
	c := &SessionController{
		api:        api,
		store:      store,
		player:     player,
		logger:     logger,
		now:        time.Now,
		after:      time.After,
		ctx:        ctx,
		cancel:     cancel,
		phase:      PhaseLobby,
		micEnabled: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.subtitles = subtitle.NewBuffer(c.publishFinal)
	return c
}

// Attach wires the streaming components. mic and cam may be nil.
func (c *SessionController) Attach(v VoiceLink, mic AudioCapture, cam VideoCapture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = v
	c.mic = mic
	c.cam = cam
}

// Subtitles returns the caption buffer
func (c *SessionController) Subtitles() *subtitle.Buffer {
	return c.subtitles
}

// Load fetches the meeting and restores a running session whose deadline
// is still ahead.
func (c *SessionController) Load(ctx context.Context, code string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.Phase() == PhaseLive {
		return ErrAlreadyLive
	}

	meeting, err := c.api.Get(ctx, code)
	if err != nil {
		metrics.LifecycleErrorsTotal.WithLabelValues("load").Inc()
		c.setError("Failed to load meeting")
		return fmt.Errorf("%w: load meeting %s: %w", ErrLifecycle, code, err)
	}

	session := meeting.Session()
	now := c.now()

	stored, storeErr := c.storedEndAt(ctx)
	switch {
	case storeErr == nil && now.Before(stored):
		session.Status = entities.SessionStatusRunning
		session.EndAt = &stored
	case storeErr == nil:
		c.clearEndAt(ctx)
	case meeting.EndAt != nil && now.Before(*meeting.EndAt):
		session.Status = entities.SessionStatusRunning
	}
	if session.Status == entities.SessionStatusRunning && session.IsExpired(now) {
		session.Status = entities.SessionStatusEnded
	}

	c.mu.Lock()
	c.meeting = meeting
	c.session = session
	c.lastError = ""
	c.mu.Unlock()

	c.logger.Info("Meeting loaded",
		zap.String("code", code),
		zap.String("status", string(session.Status)))

	if session.Status != entities.SessionStatusRunning {
		c.setPhase(PhaseLobby)
		return nil
	}
	if session.InterviewID == "" {
		c.logger.Warn("Running meeting has no interview id, staying in lobby", zap.String("code", code))
		c.setPhase(PhaseLobby)
		return nil
	}

	c.goLive(ctx)
	return nil
}

// Start starts the meeting. The session goes live only once the backend accepts.
func (c *SessionController) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	phase, meeting := c.phase, c.meeting
	c.mu.Unlock()

	if meeting == nil {
		return ErrNoMeeting
	}
	if phase == PhaseLive {
		return ErrAlreadyLive
	}

	result, err := c.api.Start(ctx, meeting.Code)
	if err != nil {
		metrics.LifecycleErrorsTotal.WithLabelValues("start").Inc()
		c.setError("Failed to start the meeting. Please try again.")
		c.logger.Error("Failed to start meeting", zap.String("code", meeting.Code), zap.Error(err))
		return fmt.Errorf("%w: start meeting %s: %w", ErrLifecycle, meeting.Code, err)
	}

	session := entities.NewSession(meeting.Code)
	session.Begin(*result)

	if err := c.store.Set(ctx, entities.EndAtStorageKey, strconv.FormatInt(result.EndAt.UnixMilli(), 10)); err != nil {
		c.logger.Warn("Failed to persist session deadline", zap.Error(err))
	}

	c.mu.Lock()
	c.session = session
	c.lastError = ""
	c.mu.Unlock()
	c.subtitles.Reset()

	c.logger.Info("Meeting started",
		zap.String("code", meeting.Code),
		zap.String("interviewID", result.InterviewID),
		zap.Time("endAt", result.EndAt))

	c.goLive(ctx)
	return nil
}

// End ends the meeting. The local session ends even if the request fails.
func (c *SessionController) End(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	phase, session := c.phase, c.session
	c.mu.Unlock()

	if phase != PhaseLive {
		return ErrNotLive
	}

	var endErr error
	if err := c.api.End(ctx, session.Code); err != nil {
		metrics.LifecycleErrorsTotal.WithLabelValues("end").Inc()
		c.logger.Warn("Failed to end meeting", zap.String("code", session.Code), zap.Error(err))
		endErr = fmt.Errorf("%w: end meeting %s: %w", ErrLifecycle, session.Code, err)
	}

	c.finish(ctx, "ended by candidate")
	if endErr != nil {
		c.setError("The meeting could not be ended on the server.")
	}
	return endErr
}

// Reconnect re-arms the voice socket after connectivity was lost.
func (c *SessionController) Reconnect(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	phase, session, v := c.phase, c.session, c.voice
	c.mu.Unlock()

	if phase != PhaseLive {
		return ErrNotLive
	}
	if err := v.Enable(c.ctx, session.InterviewID, session.Token); err != nil {
		c.setError("Failed to reconnect")
		return err
	}
	c.setError("")
	c.logger.Info("Voice reconnect requested", zap.String("interviewID", session.InterviewID))
	return nil
}

// SetMicEnabled toggles the microphone. While live it starts or stops capture.
func (c *SessionController) SetMicEnabled(ctx context.Context, enabled bool) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	c.micEnabled = enabled
	live, mic := c.phase == PhaseLive, c.mic
	c.mu.Unlock()

	if !live || mic == nil {
		return nil
	}
	if !enabled {
		mic.Stop()
		return nil
	}
	return c.startMic()
}

// SetCameraEnabled toggles the camera. While live it starts or stops the upload.
func (c *SessionController) SetCameraEnabled(ctx context.Context, enabled bool) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	c.camEnabled = enabled
	live, cam := c.phase == PhaseLive, c.cam
	c.mu.Unlock()

	if !live || cam == nil {
		return nil
	}
	if !enabled {
		cam.Stop()
		return nil
	}
	return c.startCam()
}

// PlayTestSound plays a short beep to check the speaker.
func (c *SessionController) PlayTestSound(ctx context.Context) error {
	if err := c.player.Resume(ctx); err != nil {
		return err
	}
	c.player.Enqueue(playback.Block{
		Samples: audio.Tone(audio.TestToneFrequency, audio.TestToneDuration,
			audio.TestToneSampleRate, audio.TestToneVolume),
		SampleRate: audio.TestToneSampleRate,
		Channels:   1,
	})
	return nil
}

// OnSystem handles lifecycle events from the voice socket. It runs on the
// socket goroutine, so teardown is handed off.
func (c *SessionController) OnSystem(msg domain.SystemMessage) {
	switch msg.Event {
	case domain.SystemEventReady:
		c.logger.Info("Voice session ready")

	case domain.SystemEventEnded:
		c.logger.Info("Meeting ended by server")
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.lifecycle.Lock()
			defer c.lifecycle.Unlock()
			if c.ctx.Err() != nil {
				return
			}
			c.finish(c.ctx, "ended by server")
		}()

	case domain.SystemEventError:
		text := msg.Message
		if text == "" {
			text = "Connection error"
		}
		c.logger.Warn("Voice session reported an error", zap.String("message", msg.Message))
		c.setError(text)
	}
}

// OnTranscript updates the captions
func (c *SessionController) OnTranscript(msg domain.TranscriptMessage) {
	if !msg.IsFinal() {
		c.subtitles.SetPartial(msg.Text)
		return
	}
	c.subtitles.AddFinal(entities.TranscriptLine{
		Text:       msg.Text,
		FromMs:     msg.FromMs,
		ToMs:       msg.ToMs,
		ReceivedAt: c.now(),
	})
}

// OnConnectivityLost surfaces a terminal voice failure. The session stays
// live so the candidate can Reconnect.
func (c *SessionController) OnConnectivityLost(err error) {
	c.logger.Error("Voice connectivity lost", zap.Error(err))
	c.setError("Connection lost. Reconnect to continue the interview.")
}

// OnMicStopped is the microphone chunker's teardown callback.
func (c *SessionController) OnMicStopped(err error) {
	if err == nil {
		return
	}
	c.logger.Warn("Microphone stopped", zap.Error(err))
	c.mu.Lock()
	c.micEnabled = false
	c.mu.Unlock()
	c.setError("Microphone stopped. Turn it back on to continue.")
}

// OnCameraStopped is the camera chunker's teardown callback.
func (c *SessionController) OnCameraStopped(err error) {
	if err == nil {
		return
	}
	c.logger.Warn("Camera stopped", zap.Error(err))
	c.mu.Lock()
	c.camEnabled = false
	c.mu.Unlock()
	c.setError("Camera stopped. Turn it back on to keep recording.")
}

// Phase returns the current phase
func (c *SessionController) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Remaining returns the time left until the session deadline
func (c *SessionController) Remaining(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.phase != PhaseLive {
		return 0
	}
	return c.session.Remaining(now)
}

// Snapshot returns the current state for display
func (c *SessionController) Snapshot() Snapshot {
	now := c.now()

	c.mu.Lock()
	snap := Snapshot{
		Phase:      c.phase,
		MicEnabled: c.micEnabled,
		CamEnabled: c.camEnabled,
		LastError:  c.lastError,
		Voice:      voice.StateDisabled,
	}
	if c.meeting != nil {
		snap.Code = c.meeting.Code
		snap.Candidate = c.meeting.CandidateName
	}
	if c.session != nil {
		snap.Status = c.session.Status
		snap.InterviewID = c.session.InterviewID
		snap.EndAt = c.session.EndAt
		if c.phase == PhaseLive {
			snap.Remaining = c.session.Remaining(now)
		}
	}
	v, mic := c.voice, c.mic
	c.mu.Unlock()

	if v != nil {
		snap.Voice = v.State()
	}
	if mic != nil {
		snap.MicLevel = mic.Level()
	}
	snap.Partial = c.subtitles.Partial()
	snap.Subtitles = c.subtitles.Recent(subtitle.DefaultVisibleLines)
	return snap
}

// Close tears every component down. The stored deadline is kept so a
// restarted client resumes a running session.
func (c *SessionController) Close() error {
	c.lifecycle.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.lifecycle.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.stopStreaming()
	c.cancel()
	c.lifecycle.Unlock()

	c.wg.Wait()
	return c.player.Close()
}

// goLive enters the live phase and arms every streaming component.
// Callers hold the lifecycle lock.
func (c *SessionController) goLive(ctx context.Context) {
	c.mu.Lock()
	c.phase = PhaseLive
	session := c.session
	v := c.voice
	micOn, camOn := c.micEnabled, c.camEnabled
	c.mu.Unlock()

	if err := c.player.Resume(ctx); err != nil {
		c.logger.Warn("Failed to resume audio output", zap.Error(err))
	}

	if v != nil {
		if err := v.Enable(c.ctx, session.InterviewID, session.Token); err != nil {
			c.logger.Error("Failed to enable voice session", zap.Error(err))
			c.setError("Failed to connect voice")
		}
	}
	if micOn {
		c.startMic()
	}
	if camOn {
		c.startCam()
	}

	c.armDeadline(session)
	c.publishLifecycle(session, "")
}

func (c *SessionController) startMic() error {
	c.mu.Lock()
	mic := c.mic
	c.mu.Unlock()
	if mic == nil {
		return nil
	}

	if err := mic.Start(c.ctx); err != nil {
		c.mu.Lock()
		c.micEnabled = false
		c.mu.Unlock()
		c.setError("Microphone unavailable. Check permissions and try again.")
		return err
	}
	return nil
}

func (c *SessionController) startCam() error {
	c.mu.Lock()
	cam, session := c.cam, c.session
	c.mu.Unlock()
	if cam == nil || session == nil {
		return nil
	}

	if err := cam.Start(c.ctx, session.InterviewID, session.Token); err != nil {
		c.mu.Lock()
		c.camEnabled = false
		c.mu.Unlock()
		c.setError("Camera unavailable. Check permissions and try again.")
		return err
	}
	return nil
}

// armDeadline ends the session when its deadline passes.
func (c *SessionController) armDeadline(session *entities.Session) {
	if session.EndAt == nil {
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	if c.deadlineCancel != nil {
		c.deadlineCancel()
	}
	c.deadlineCancel = cancel
	c.mu.Unlock()

	fire := c.after(session.EndAt.Sub(c.now()))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-fire:
		}

		c.lifecycle.Lock()
		defer c.lifecycle.Unlock()
		if ctx.Err() != nil {
			return
		}

		c.logger.Info("Session deadline passed", zap.String("interviewID", session.InterviewID))
		endCtx, cancelEnd := context.WithTimeout(c.ctx, endRequestTimeout)
		defer cancelEnd()
		if err := c.api.End(endCtx, session.Code); err != nil {
			metrics.LifecycleErrorsTotal.WithLabelValues("end").Inc()
			c.logger.Warn("Failed to end meeting at deadline", zap.Error(err))
		}
		c.finish(endCtx, "deadline passed")
	}()
}

// finish tears the live session down into Lobby(Ended). Callers hold the
// lifecycle lock.
func (c *SessionController) finish(ctx context.Context, reason string) {
	c.mu.Lock()
	if c.phase != PhaseLive {
		c.mu.Unlock()
		return
	}
	session := c.session
	c.mu.Unlock()

	c.stopStreaming()
	c.clearEndAt(ctx)

	c.mu.Lock()
	session.Finish(c.now())
	c.phase = PhaseLobby
	c.mu.Unlock()

	c.logger.Info("Session ended",
		zap.String("interviewID", session.InterviewID),
		zap.String("reason", reason))
	c.publishLifecycle(session, reason)
}

// stopStreaming synchronously stops voice, capture and the deadline timer.
func (c *SessionController) stopStreaming() {
	c.mu.Lock()
	v, mic, cam := c.voice, c.mic, c.cam
	if c.deadlineCancel != nil {
		c.deadlineCancel()
		c.deadlineCancel = nil
	}
	c.mu.Unlock()

	if v != nil {
		v.Disable()
	}
	if mic != nil {
		mic.Stop()
	}
	if cam != nil {
		cam.Stop()
	}
}

func (c *SessionController) storedEndAt(ctx context.Context) (time.Time, error) {
	raw, err := c.store.Get(ctx, entities.EndAtStorageKey)
	if err != nil {
		if !errors.Is(err, repositories.ErrKeyNotFound) {
			c.logger.Warn("Failed to read session deadline", zap.Error(err))
		}
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.logger.Warn("Ignoring malformed session deadline", zap.String("value", raw))
		c.clearEndAt(ctx)
		return time.Time{}, repositories.ErrKeyNotFound
	}
	return time.UnixMilli(ms), nil
}

func (c *SessionController) clearEndAt(ctx context.Context) {
	if err := c.store.Delete(ctx, entities.EndAtStorageKey); err != nil && !errors.Is(err, repositories.ErrKeyNotFound) {
		c.logger.Warn("Failed to clear session deadline", zap.Error(err))
	}
}

func (c *SessionController) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *SessionController) setError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

func (c *SessionController) publishFinal(line entities.TranscriptLine) {
	if c.publisher == nil {
		return
	}
	c.mu.Lock()
	var code, interviewID string
	if c.session != nil {
		code, interviewID = c.session.Code, c.session.InterviewID
	}
	c.mu.Unlock()

	event := events.TranscriptEvent{
		InterviewID: interviewID,
		MeetingCode: code,
		Text:        line.Text,
		FromMs:      line.FromMs,
		ToMs:        line.ToMs,
		ReceivedAt:  line.ReceivedAt,
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.publisher.PublishTranscript(c.ctx, event); err != nil {
			c.logger.Warn("Failed to publish transcript", zap.Error(err))
		}
	}()
}

func (c *SessionController) publishLifecycle(session *entities.Session, reason string) {
	if c.publisher == nil {
		return
	}
	event := events.LifecycleEvent{
		InterviewID: session.InterviewID,
		MeetingCode: session.Code,
		Status:      string(session.Status),
		Reason:      reason,
		At:          c.now(),
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.publisher.PublishLifecycle(c.ctx, event); err != nil {
			c.logger.Warn("Failed to publish lifecycle event", zap.Error(err))
		}
	}()
}
