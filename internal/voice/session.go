package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain"
	"github.com/javaboys/hunty/interview/internal/envelope"
	"github.com/javaboys/hunty/interview/internal/metrics"
	"github.com/javaboys/hunty/interview/internal/playback"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// Outbound frames buffered per connection.
	sendBufferSize = 256
)

// Default configuration values
const (
	DefaultMaxRetries       = 3
	DefaultBaseDelay        = 500 * time.Millisecond
	DefaultSampleRate       = 24000
	DefaultChannels         = 1
	DefaultHandshakeTimeout = 10 * time.Second
)

var (
	// ErrNotOpen is returned when sending while the socket is not open.
	ErrNotOpen = errors.New("voice socket is not open")

	// ErrConnectivityLost is reported once the retry budget is spent.
	ErrConnectivityLost = errors.New("voice connection lost")

	// ErrSendBufferFull is returned when the outbound buffer cannot take another frame.
	ErrSendBufferFull = errors.New("voice send buffer full")

	// ErrMissingInterview is returned by Enable without an interview id.
	ErrMissingInterview = errors.New("interview id is required")
)

// State is the connection state of a voice session
type State int

const (
	StateDisabled State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds voice session configuration
type Config struct {
	// BaseURL is the backend base, http(s) or ws(s)
	BaseURL string

	// MaxRetries bounds consecutive reconnect attempts
	MaxRetries int

	// BaseDelay is multiplied by the attempt number to get the reconnect delay
	BaseDelay time.Duration

	// DefaultSampleRate and DefaultChannels apply to audio frames that omit them
	DefaultSampleRate int
	DefaultChannels   int

	HandshakeTimeout time.Duration
}

// DefaultConfig returns the configuration used against the interview backend
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		DefaultSampleRate: DefaultSampleRate,
		DefaultChannels:   DefaultChannels,
		HandshakeTimeout:  DefaultHandshakeTimeout,
	}
}

// Player receives decoded audio
type Player interface {
	Enqueue(b playback.Block)
}

// Handler receives everything that is not audio. Callbacks run on the
// session's own goroutine and must not call Disable synchronously.
type Handler interface {
	OnSystem(msg domain.SystemMessage)
	OnTranscript(msg domain.TranscriptMessage)
	OnConnectivityLost(err error)
}

// Option configures a Session
type Option func(*Session)

// WithDialer overrides the websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithTimer overrides how reconnect delays are waited on
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Session) { s.after = after }
}

type writeData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Session owns the voice socket: handshake, reconnection and dispatch.
type Session struct {
	config  Config
	player  Player
	handler Handler
	logger  *zap.Logger
	dialer  *websocket.Dialer
	after   func(time.Duration) <-chan time.Time

	mu            sync.Mutex
	state         State
	retryCount    int
	readyReceived bool
	connID        string
	send          chan writeData
	interviewID   string
	token         string
	cancel        context.CancelFunc
	done          chan struct{}
}

// New creates a disabled voice session
func New(config Config, player Player, handler Handler, logger *zap.Logger, opts ...Option) *Session {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultBaseDelay
	}
	if config.DefaultSampleRate <= 0 {
		config.DefaultSampleRate = DefaultSampleRate
	}
	if config.DefaultChannels <= 0 {
		config.DefaultChannels = DefaultChannels
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	s := &Session{
		config:  config,
		player:  player,
		handler: handler,
		logger:  logger,
		dialer:  &websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout},
		after:   time.After,
		state:   StateDisabled,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enable starts connecting for the given interview. Enabling again with the
// same identifiers while the session is active is a no-op.
func (s *Session) Enable(ctx context.Context, interviewID, token string) error {
	if interviewID == "" {
		return ErrMissingInterview
	}
	target, err := SocketURL(s.config.BaseURL, VoicePath, interviewID, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.cancel != nil && s.interviewID == interviewID && s.token == token && !isDone(s.done) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	s.Disable()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.interviewID = interviewID
	s.token = token
	s.cancel = cancel
	s.done = done
	s.retryCount = 0
	s.state = StateConnecting
	s.mu.Unlock()

	s.logger.Info("Voice session enabled", zap.String("interviewID", interviewID))

	go func() {
		err := s.run(runCtx, target, interviewID)
		close(done)
		if err != nil {
			s.handler.OnConnectivityLost(err)
		}
	}()
	return nil
}

// Disable closes the socket, cancels any pending reconnect and waits for
// the session goroutines to exit.
func (s *Session) Disable() {
	s.mu.Lock()
	cancel, done, interviewID := s.cancel, s.done, s.interviewID
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	s.state = StateDisabled
	s.retryCount = 0
	s.readyReceived = false
	s.mu.Unlock()

	s.logger.Info("Voice session disabled", zap.String("interviewID", interviewID))
}

// State returns the current connection state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RetryCount returns the number of reconnects since a socket last reported ready
func (s *Session) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// SendControl sends a control action. Only allowed while open.
func (s *Session) SendControl(action string) error {
	return s.SendJSON(domain.NewControlMessage(action))
}

// SendJSON sends v as a text frame. Only allowed while open.
func (s *Session) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.enqueue(writeData{Type: websocket.TextMessage, Payload: payload})
}

// SendAudioChunk wraps payload in a 256-byte envelope and sends it as one binary frame.
func (s *Session) SendAudioChunk(h envelope.Header, payload []byte) error {
	frame, err := envelope.Encode(h, payload)
	if err != nil {
		return err
	}
	return s.enqueue(writeData{Type: websocket.BinaryMessage, Payload: frame})
}

// enqueue hands a complete frame to the connection's single writer.
func (s *Session) enqueue(msg writeData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen || s.send == nil {
		return ErrNotOpen
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// run connects and reconnects until ctx is cancelled or retries run out.
func (s *Session) run(ctx context.Context, target, interviewID string) error {
	for {
		err := s.connectAndServe(ctx, target, interviewID)
		if ctx.Err() != nil {
			return nil
		}

		s.mu.Lock()
		attempt := s.retryCount
		s.state = StateClosed
		s.mu.Unlock()

		if attempt >= s.config.MaxRetries {
			metrics.ConnectivityLostTotal.Inc()
			s.logger.Error("Voice connection abandoned",
				zap.String("interviewID", interviewID),
				zap.Int("retries", attempt),
				zap.Error(err))
			return fmt.Errorf("%w after %d retries: %v", ErrConnectivityLost, attempt, err)
		}

		delay := s.config.BaseDelay * time.Duration(attempt+1)
		s.logger.Warn("Voice socket closed, reconnecting",
			zap.String("interviewID", interviewID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(delay):
		}

		s.mu.Lock()
		s.retryCount++
		s.state = StateConnecting
		s.mu.Unlock()
		metrics.ReconnectsTotal.Inc()
	}
}

// connectAndServe runs one socket lifetime and returns why it ended.
func (s *Session) connectAndServe(ctx context.Context, target, interviewID string) error {
	conn, _, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to dial voice socket: %w", err)
	}

	connID := uuid.New().String()
	send := make(chan writeData, sendBufferSize)

	s.mu.Lock()
	s.connID = connID
	s.send = send
	s.state = StateOpen
	s.readyReceived = false
	s.mu.Unlock()

	metrics.VoiceConnected.Set(1)
	s.logger.Info("Voice socket open",
		zap.String("interviewID", interviewID),
		zap.String("connID", connID))

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	})

	writerDone := make(chan struct{})
	go s.writePump(conn, send, writerDone)

	err = s.readPump(conn, connID)

	stop()
	s.mu.Lock()
	s.send = nil
	if s.state == StateOpen {
		s.state = StateClosed
	}
	s.mu.Unlock()
	close(send)
	<-writerDone
	conn.Close()
	metrics.VoiceConnected.Set(0)

	return err
}

// readPump pumps messages from the websocket connection to the dispatcher.
func (s *Session) readPump(conn *websocket.Conn, connID string) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Voice socket error", zap.String("connID", connID), zap.Error(err))
			}
			return err
		}

		msg, err := s.decode(messageType, message)
		if err != nil {
			s.logger.Warn("Dropping unreadable voice message",
				zap.String("connID", connID),
				zap.Error(err))
			continue
		}
		s.dispatch(msg)
	}
}

// writePump is the only writer of conn.
func (s *Session) writePump(conn *websocket.Conn, send <-chan writeData, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case message, ok := <-send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(message.Type, message.Payload); err != nil {
				s.logger.Error("Failed to write voice message", zap.Error(err))
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func isDone(ch chan struct{}) bool {
	if ch == nil {
		return true
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
