package websocket

import (
	"context"
	"net/http"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain"
	"github.com/javaboys/hunty/interview/internal/auth"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio and video chunks

	sendBufferSize = 256
)

// Socket kinds
const (
	KindVoice = "voice"
	KindVideo = "video"
)

// interviewIDPattern admits ids that are safe as a single path element.
var interviewIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidInterviewID reports whether id may name an interview on the wire and on disk.
func ValidInterviewID(id string) bool {
	return interviewIDPattern.MatchString(id) && filepath.IsLocal(id)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The mock backend accepts any origin, like the dev server it stands in for.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// TokenValidator validates interview tokens presented on socket URLs
type TokenValidator interface {
	Validate(token string) (*auth.InterviewClaims, error)
}

// Config tunes the scripted behaviour of the mock voice agent
type Config struct {
	// VideoDir receives one recording per interview
	VideoDir string
	// TTSInterval is the period between synthetic speech chunks
	TTSInterval time.Duration
	// TTSChunk is the audio length carried by each chunk
	TTSChunk time.Duration
	// TTSSampleRate of the synthetic speech
	TTSSampleRate int
	// PartialDelay and FinalDelay schedule the scripted subtitles after start
	PartialDelay time.Duration
	FinalDelay   time.Duration
	PartialText  string
	FinalText    string
}

// DefaultConfig returns the timings of the reference mock server
func DefaultConfig(videoDir string) Config {
	return Config{
		VideoDir:      videoDir,
		TTSInterval:   260 * time.Millisecond,
		TTSChunk:      250 * time.Millisecond,
		TTSSampleRate: 24000,
		PartialDelay:  500 * time.Millisecond,
		FinalDelay:    1500 * time.Millisecond,
		PartialText:   "Hello, please introduce yourself...",
		FinalText:     "Hello, please introduce yourself.",
	}
}

// Hub maintains the set of active voice and video sockets.
type Hub struct {
	// Registered clients by connection id.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run exits.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	validator TokenValidator
	config    Config
	logger    *zap.Logger
}

// NewHub creates a new WebSocket hub. A nil validator accepts any token.
func NewHub(validator TokenValidator, config Config, logger *zap.Logger) *Hub {
	defaults := DefaultConfig(config.VideoDir)
	if config.TTSInterval <= 0 {
		config.TTSInterval = defaults.TTSInterval
	}
	if config.TTSChunk <= 0 {
		config.TTSChunk = defaults.TTSChunk
	}
	if config.TTSSampleRate <= 0 {
		config.TTSSampleRate = defaults.TTSSampleRate
	}
	if config.PartialDelay <= 0 {
		config.PartialDelay = defaults.PartialDelay
	}
	if config.FinalDelay <= 0 {
		config.FinalDelay = defaults.FinalDelay
	}
	if config.PartialText == "" {
		config.PartialText = defaults.PartialText
	}
	if config.FinalText == "" {
		config.FinalText = defaults.FinalText
	}

	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		validator:  validator,
		config:     config,
		logger:     logger,
	}
}

// Run starts the hub's main loop. Every client is closed when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("kind", client.kind),
				zap.String("interviewID", client.interviewID),
				zap.String("connID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.shutdown()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("kind", client.kind),
				zap.String("connID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.shutdown()
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of registered sockets of the given kind.
// An empty kind counts every socket.
func (h *Hub) ClientCount(kind string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, client := range h.clients {
		if kind == "" || client.kind == kind {
			n++
		}
	}
	return n
}

// EndInterview tells every voice socket of an interview that the meeting is over.
// It returns how many sockets were notified.
func (h *Hub) EndInterview(interviewID, message string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, client := range h.clients {
		if client.kind != KindVoice || client.interviewID != interviewID {
			continue
		}
		client.stopTTS()
		client.enqueue(systemFrame(domain.SystemEventEnded, message))
		n++
	}
	return n
}

// HandleVoice upgrades a /voice request
func (h *Hub) HandleVoice(c echo.Context) error {
	return h.handle(c, KindVoice)
}

// HandleVideo upgrades a /video request
func (h *Hub) HandleVideo(c echo.Context) error {
	return h.handle(c, KindVideo)
}

func (h *Hub) handle(c echo.Context, kind string) error {
	interviewID := c.QueryParam("interviewId")
	token := c.QueryParam("token")

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.String("kind", kind), zap.Error(err))
		return err
	}

	if reason := h.authorize(interviewID, token); reason != "" {
		h.logger.Warn("WebSocket connection rejected",
			zap.String("kind", kind),
			zap.String("reason", reason))
		reject(conn, reason)
		return nil
	}

	client := &Client{
		hub:         h,
		id:          uuid.NewString(),
		kind:        kind,
		interviewID: interviewID,
		conn:        conn,
		send:        make(chan WriteData, sendBufferSize),
		logger: h.logger.With(
			zap.String("kind", kind),
			zap.String("interviewID", interviewID)),
	}

	select {
	case h.register <- client:
	case <-h.done:
		reject(conn, "Server shutting down")
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	if kind == KindVoice {
		client.enqueue(systemFrame(domain.SystemEventReady, ""))
	}
	return nil
}

// authorize returns a rejection reason, or "" when the socket may proceed.
// A missing token is tolerated; a present one must be valid for the interview.
func (h *Hub) authorize(interviewID, token string) string {
	if !ValidInterviewID(interviewID) {
		return "Bad params"
	}
	if token == "" || h.validator == nil {
		return ""
	}
	claims, err := h.validator.Validate(token)
	if err != nil {
		return "Invalid token"
	}
	if claims.InterviewID != interviewID {
		return "Token does not match interview"
	}
	return ""
}

// reject reports an error to a socket that never registered and closes it.
func reject(conn *websocket.Conn, reason string) {
	frame := systemFrame(domain.SystemEventError, reason)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(frame.Type, frame.Payload)
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	conn.Close()
}
