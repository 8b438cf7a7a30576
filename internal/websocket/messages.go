package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/javaboys/hunty/interview/domain"
	"github.com/javaboys/hunty/interview/internal/envelope"
)

// systemFrame builds a {"type":"system"} text frame
func systemFrame(event domain.SystemEvent, message string) WriteData {
	return jsonFrame(domain.SystemMessage{
		Type:    domain.MessageTypeSystem,
		Event:   event,
		Message: message,
	})
}

// transcriptFrame builds an stt.partial or stt.final text frame
func transcriptFrame(kind, text string, fromMs, toMs int64) WriteData {
	return jsonFrame(domain.TranscriptMessage{
		Type:   kind,
		Text:   text,
		FromMs: fromMs,
		ToMs:   toMs,
	})
}

func jsonFrame(v any) WriteData {
	// Marshalling these fixed message structs cannot fail.
	payload, _ := json.Marshal(v)
	return WriteData{Type: websocket.TextMessage, Payload: payload}
}

// ttsFrame builds a tts.chunk envelope carrying d of mono PCM16 silence
func ttsFrame(d time.Duration, sampleRate int) (WriteData, error) {
	samples := int(int64(d) * int64(sampleRate) / int64(time.Second))
	header := envelope.Header{
		Type:       envelope.TypeTTSChunk,
		Codec:      envelope.CodecPCM16,
		SampleRate: sampleRate,
		Channels:   1,
	}
	frame, err := envelope.Encode(header, make([]byte, samples*2))
	if err != nil {
		return WriteData{}, err
	}
	return WriteData{Type: websocket.BinaryMessage, Payload: frame}, nil
}
