package websocket

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain"
	"github.com/javaboys/hunty/interview/internal/envelope"
)

// RecordingName is the file each interview's video is appended to
const RecordingName = "recording.webm"

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	id          string
	kind        string
	interviewID string

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Closed by shutdown.
	send chan WriteData

	logger *zap.Logger

	mutex  sync.Mutex
	closed bool

	// Voice state
	ttsStop     chan struct{}
	timers      []*time.Timer
	audioChunks int
	audioBytes  int64

	// Video state
	recording  *os.File
	videoBytes int64
}

// RecordingPath returns where the video of an interview is stored
func RecordingPath(videoDir, interviewID string) string {
	return filepath.Join(videoDir, interviewID, RecordingName)
}

// enqueue hands a frame to the write pump. It reports false once the client is closed.
func (c *Client) enqueue(data WriteData) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Send buffer full, dropping frame", zap.Int("type", data.Type))
	}
	return true
}

// shutdown stops every background activity and closes the send channel.
// Only the hub calls it, once per client.
func (c *Client) shutdown() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	if c.ttsStop != nil {
		close(c.ttsStop)
		c.ttsStop = nil
	}
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.closeRecordingLocked()
	close(c.send)

	if c.kind == KindVoice {
		c.logger.Info("Voice socket closed",
			zap.Int("audioChunks", c.audioChunks),
			zap.Int64("audioBytes", c.audioBytes))
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			if c.kind == KindVideo {
				c.processVideoChunk(message)
			} else {
				c.processAudioChunk(message)
			}
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage handles control messages from the client
func (c *Client) processMessage(message []byte) {
	msg, err := domain.ParseInbound(message)
	if err != nil {
		c.logger.Warn("Failed to parse message", zap.Error(err))
		return
	}

	ctrl, ok := msg.(domain.ControlMessage)
	if !ok {
		c.logger.Warn("Unexpected message type", zap.String("type", msg.MessageType()))
		return
	}

	if c.kind == KindVideo {
		c.handleVideoControl(ctrl.Action)
		return
	}
	c.handleVoiceControl(ctrl.Action)
}

func (c *Client) handleVoiceControl(action string) {
	cfg := c.hub.config
	switch action {
	case domain.ControlActionStart:
		c.logger.Info("Interview started on voice socket")
		c.startTTS()
		c.schedule(cfg.PartialDelay, transcriptFrame(domain.MessageTypeSTTPartial, cfg.PartialText, 0, 800))
		c.schedule(cfg.FinalDelay, transcriptFrame(domain.MessageTypeSTTFinal, cfg.FinalText, 0, 1200))

	case domain.ControlActionStop:
		c.stopTTS()
		c.enqueue(systemFrame(domain.SystemEventEnded, "Interview ended (mock)."))

	case domain.ControlActionPing:
		c.enqueue(systemFrame(domain.SystemEventReady, ""))

	default:
		c.logger.Warn("Unknown control action", zap.String("action", action))
	}
}

func (c *Client) processAudioChunk(data []byte) {
	frame := envelope.Decode(data)

	c.mutex.Lock()
	c.audioChunks++
	c.audioBytes += int64(len(frame.Payload))
	chunks := c.audioChunks
	c.mutex.Unlock()

	fields := []zap.Field{
		zap.Int("chunk", chunks),
		zap.Int("size", len(frame.Payload)),
	}
	if frame.Header != nil {
		fields = append(fields,
			zap.String("type", frame.Header.Type),
			zap.String("codec", frame.Header.Codec),
			zap.Int("sampleRate", frame.Header.SampleRate))
	}
	c.logger.Debug("Received audio chunk", fields...)
}

// AudioStats returns the audio chunks and payload bytes received so far
func (c *Client) AudioStats() (int, int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.audioChunks, c.audioBytes
}

// startTTS streams synthetic speech until stopTTS. Redundant calls are ignored.
func (c *Client) startTTS() {
	frame, err := ttsFrame(c.hub.config.TTSChunk, c.hub.config.TTSSampleRate)
	if err != nil {
		c.logger.Error("Failed to build speech frame", zap.Error(err))
		return
	}

	c.mutex.Lock()
	if c.closed || c.ttsStop != nil {
		c.mutex.Unlock()
		return
	}
	stop := make(chan struct{})
	c.ttsStop = stop
	c.mutex.Unlock()

	go func() {
		ticker := time.NewTicker(c.hub.config.TTSInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !c.enqueue(frame) {
					return
				}
			}
		}
	}()
}

func (c *Client) stopTTS() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.ttsStop != nil {
		close(c.ttsStop)
		c.ttsStop = nil
	}
}

// schedule enqueues frame after d unless the client closes first
func (c *Client) schedule(d time.Duration, frame WriteData) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return
	}
	c.timers = append(c.timers, time.AfterFunc(d, func() {
		c.enqueue(frame)
	}))
}

func (c *Client) handleVideoControl(action string) {
	switch action {
	case domain.ControlActionStop:
		c.mutex.Lock()
		c.closeRecordingLocked()
		c.mutex.Unlock()
	case domain.ControlActionPing:
	default:
		c.logger.Warn("Unknown control action", zap.String("action", action))
	}
}

// processVideoChunk appends a raw media chunk to the interview's recording
func (c *Client) processVideoChunk(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return
	}

	if c.recording == nil {
		f, err := c.openRecording()
		if err != nil {
			c.logger.Error("Failed to open recording", zap.Error(err))
			return
		}
		c.recording = f
	}

	n, err := c.recording.Write(data)
	c.videoBytes += int64(n)
	if err != nil {
		c.logger.Error("Failed to write video chunk", zap.Error(err))
		return
	}
	c.logger.Debug("Saved video chunk",
		zap.Int("size", n),
		zap.Int64("totalBytes", c.videoBytes))
}

func (c *Client) openRecording() (*os.File, error) {
	if !ValidInterviewID(c.interviewID) {
		return nil, fmt.Errorf("invalid interview id %q", c.interviewID)
	}
	path := RecordingPath(c.hub.config.VideoDir, c.interviewID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (c *Client) closeRecordingLocked() {
	if c.recording == nil {
		return
	}
	path := c.recording.Name()
	if err := c.recording.Close(); err != nil {
		c.logger.Error("Failed to close recording", zap.Error(err))
	}
	c.recording = nil
	c.logger.Info("Recording finalized",
		zap.String("path", path),
		zap.Int64("bytes", c.videoBytes))
}
