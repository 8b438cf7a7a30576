package voice

import (
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain"
	"github.com/javaboys/hunty/interview/internal/audio"
	"github.com/javaboys/hunty/interview/internal/envelope"
	"github.com/javaboys/hunty/interview/internal/metrics"
	"github.com/javaboys/hunty/interview/internal/playback"
)

// audioFrame is a decoded binary message.
type audioFrame struct {
	frame envelope.Frame
}

// MessageType implements domain.Inbound
func (audioFrame) MessageType() string { return "binary" }

func (s *Session) decode(messageType int, data []byte) (domain.Inbound, error) {
	if messageType == websocket.BinaryMessage {
		return audioFrame{frame: envelope.Decode(data)}, nil
	}
	return domain.ParseInbound(data)
}

// dispatch routes one inbound message. Every message kind is handled here.
func (s *Session) dispatch(msg domain.Inbound) {
	switch m := msg.(type) {
	case domain.SystemMessage:
		metrics.FramesReceivedTotal.WithLabelValues("system").Inc()
		if m.Event == domain.SystemEventReady {
			s.onReady()
		}
		s.handler.OnSystem(m)

	case domain.TranscriptMessage:
		metrics.FramesReceivedTotal.WithLabelValues("transcript").Inc()
		s.handler.OnTranscript(m)

	case audioFrame:
		metrics.FramesReceivedTotal.WithLabelValues("audio").Inc()
		s.playFrame(m.frame)

	default:
		metrics.FramesReceivedTotal.WithLabelValues("unknown").Inc()
		s.logger.Debug("Ignoring voice message", zap.String("type", msg.MessageType()))
	}
}

// onReady sends the start control the first time a socket reports ready.
// Only a socket that got this far counts as healthy and refills the retry budget.
func (s *Session) onReady() {
	s.mu.Lock()
	first := !s.readyReceived
	s.readyReceived = true
	if first {
		s.retryCount = 0
	}
	s.mu.Unlock()

	if !first {
		return
	}
	if err := s.SendControl(domain.ControlActionStart); err != nil {
		s.logger.Warn("Failed to send start control", zap.Error(err))
	}
}

func (s *Session) playFrame(f envelope.Frame) {
	metrics.EnvelopeHeadersTotal.WithLabelValues(strconv.Itoa(f.HeaderLength)).Inc()
	s.player.Enqueue(s.blockFor(f))
}

// blockFor applies the codec policy to a decoded frame.
func (s *Session) blockFor(f envelope.Frame) playback.Block {
	h := f.Header
	if !h.IsAudio() {
		return playback.PCM16Block(f.Payload, s.config.DefaultSampleRate, s.config.DefaultChannels)
	}

	if !h.IsPCM16() {
		metrics.FallbackTonesTotal.WithLabelValues(h.Codec).Inc()
		s.logger.Warn("Unsupported audio codec, playing fallback tone",
			zap.String("type", h.Type),
			zap.String("codec", h.Codec),
			zap.Int("bytes", len(f.Payload)))
		return playback.Block{
			Samples: audio.Tone(audio.FallbackToneFrequency, audio.FallbackToneDuration,
				audio.FallbackToneSampleRate, audio.FallbackToneVolume),
			SampleRate: audio.FallbackToneSampleRate,
			Channels:   1,
		}
	}

	rate := h.SampleRate
	if rate <= 0 {
		rate = s.config.DefaultSampleRate
	}
	channels := h.Channels
	if channels <= 0 {
		channels = s.config.DefaultChannels
	}
	return playback.PCM16Block(f.Payload, rate, channels)
}
