package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// PrefixSize is the header budget used for every frame this client emits.
	PrefixSize = 256

	// LegacyPrefixSize is the short header prefix still accepted from older peers.
	LegacyPrefixSize = 16
)

// Frame types
const (
	TypeTTSChunk   = "tts.chunk"
	TypeAudioChunk = "audio.chunk"
)

// Codecs
const (
	CodecPCM16    = "pcm16"
	CodecOpusWebM = "opus/webm"
)

// ErrEnvelopeTooLarge is returned when a serialized header does not fit its prefix.
var ErrEnvelopeTooLarge = errors.New("envelope header exceeds prefix size")

// decodeLadder lists the prefix sizes tried by Decode, most preferred first.
var decodeLadder = []int{PrefixSize, LegacyPrefixSize}

// Header is the JSON metadata carried in front of every audio payload.
type Header struct {
	Type       string   `json:"type"`
	Codec      string   `json:"codec"`
	SampleRate int      `json:"sampleRate"`
	Channels   int      `json:"channels"`
	RMSHint    *float64 `json:"rmsHint,omitempty"`
	DurationMs *int     `json:"durationMs,omitempty"`
}

// IsPCM16 reports whether the codec names linear 16-bit PCM.
func (h *Header) IsPCM16() bool {
	return h != nil && strings.Contains(strings.ToLower(h.Codec), CodecPCM16)
}

// IsAudio reports whether the frame type is one of the known audio chunk types.
func (h *Header) IsAudio() bool {
	if h == nil {
		return false
	}
	return h.Type == TypeTTSChunk || h.Type == TypeAudioChunk
}

// Frame is a decoded envelope. Header is nil when no prefix could be parsed.
type Frame struct {
	Header       *Header
	Payload      []byte
	HeaderLength int
}

// Encode serializes h into a zero-padded PrefixSize prefix followed by payload.
func Encode(h Header, payload []byte) ([]byte, error) {
	return EncodeWithPrefix(h, payload, PrefixSize)
}

// EncodeWithPrefix is Encode with an explicit prefix size.
func EncodeWithPrefix(h Header, payload []byte, prefixSize int) ([]byte, error) {
	raw, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope header: %w", err)
	}
	if len(raw) > prefixSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrEnvelopeTooLarge, len(raw), prefixSize)
	}

	frame := make([]byte, prefixSize+len(payload))
	copy(frame, raw)
	copy(frame[prefixSize:], payload)
	return frame, nil
}

// Decode parses a binary frame. It never fails: when neither the 256-byte nor
// the 16-byte prefix holds a JSON object the whole frame is returned as payload.
func Decode(frame []byte) Frame {
	for _, size := range decodeLadder {
		if len(frame) < size {
			continue
		}
		if h, ok := parsePrefix(frame[:size]); ok {
			return Frame{
				Header:       h,
				Payload:      frame[size:],
				HeaderLength: size,
			}
		}
	}
	return Frame{Payload: frame}
}

func parsePrefix(prefix []byte) (*Header, bool) {
	text := bytes.TrimSpace(bytes.TrimRight(prefix, "\x00"))
	if len(text) == 0 || text[0] != '{' || !json.Valid(text) {
		return nil, false
	}

	var h Header
	if err := json.Unmarshal(text, &h); err != nil {
		// A well-formed object with oddly typed fields still counts as a header.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, false
		}
	}
	return &h, true
}
