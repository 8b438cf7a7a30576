package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain"
	"github.com/javaboys/hunty/interview/domain/repositories"
)

// ErrLinkClosed is returned when sending on a closed video link
var ErrLinkClosed = errors.New("video link closed")

// VideoDialer opens the raw video upload socket
type VideoDialer struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

var _ repositories.VideoDialer = (*VideoDialer)(nil)

// NewVideoDialer creates a dialer for the /video socket of baseURL
func NewVideoDialer(baseURL string, logger *zap.Logger) *VideoDialer {
	return &VideoDialer{
		baseURL: baseURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout},
		logger:  logger,
	}
}

// Dial connects the video socket for an interview
func (d *VideoDialer) Dial(ctx context.Context, interviewID, token string) (repositories.VideoLink, error) {
	if interviewID == "" {
		return nil, ErrMissingInterview
	}
	target, err := SocketURL(d.baseURL, VideoPath, interviewID, token)
	if err != nil {
		return nil, err
	}

	conn, _, err := d.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial video socket: %w", err)
	}

	d.logger.Info("Video socket open", zap.String("interviewID", interviewID))
	return &VideoLink{conn: conn, logger: d.logger}, nil
}

// VideoLink writes video frames synchronously. Calls are serialized so
// frames never interleave.
type VideoLink struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ repositories.VideoLink = (*VideoLink)(nil)

// SendChunk sends data as one binary frame
func (l *VideoLink) SendChunk(data []byte) error {
	return l.write(websocket.BinaryMessage, data)
}

// SendEndOfStream sends the stop control that finalizes the recording
func (l *VideoLink) SendEndOfStream() error {
	payload, err := json.Marshal(domain.NewControlMessage(domain.ControlActionStop))
	if err != nil {
		return err
	}
	return l.write(websocket.TextMessage, payload)
}

// Close sends a normal close frame and closes the socket
func (l *VideoLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return l.conn.Close()
}

func (l *VideoLink) write(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLinkClosed
	}
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := l.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write video frame: %w", err)
	}
	return nil
}
