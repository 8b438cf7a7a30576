package domain

import (
	"encoding/json"
	"fmt"
)

// Text frame types exchanged over the voice socket
const (
	MessageTypeControl    = "control"
	MessageTypeSystem     = "system"
	MessageTypeSTTPartial = "stt.partial"
	MessageTypeSTTFinal   = "stt.final"
)

// Control actions sent by the client
const (
	ControlActionStart = "start"
	ControlActionStop  = "stop"
	ControlActionPing  = "ping"
)

// SystemEvent is the event carried by a system message
type SystemEvent string

const (
	SystemEventReady SystemEvent = "ready"
	SystemEventEnded SystemEvent = "ended"
	SystemEventError SystemEvent = "error"
)

// ControlMessage is an outbound control instruction
type ControlMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// NewControlMessage builds a control message for the given action
func NewControlMessage(action string) ControlMessage {
	return ControlMessage{Type: MessageTypeControl, Action: action}
}

// Inbound is any text message received from the server
type Inbound interface {
	MessageType() string
}

// SystemMessage carries lifecycle events from the server
type SystemMessage struct {
	Type    string      `json:"type"`
	Event   SystemEvent `json:"event"`
	Message string      `json:"message,omitempty"`
}

// MessageType implements Inbound
func (m SystemMessage) MessageType() string { return MessageTypeSystem }

// TranscriptMessage is a partial or final subtitle
type TranscriptMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	FromMs int64  `json:"fromMs"`
	ToMs   int64  `json:"toMs"`
}

// MessageType implements Inbound
func (m TranscriptMessage) MessageType() string { return m.Type }

// IsFinal reports whether the transcript is finalized
func (m TranscriptMessage) IsFinal() bool { return m.Type == MessageTypeSTTFinal }

// UnknownMessage is a well-formed message with a type the client does not handle
type UnknownMessage struct {
	Type string `json:"type"`
}

// MessageType implements Inbound
func (m UnknownMessage) MessageType() string { return m.Type }

// MessageType implements Inbound for control messages read by the server
func (m ControlMessage) MessageType() string { return MessageTypeControl }

type envelopeType struct {
	Type string `json:"type"`
}

// ParseInbound decodes a text frame into its typed message.
// Unrecognized system events fold to SystemEventError.
func ParseInbound(data []byte) (Inbound, error) {
	var base envelopeType
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeSystem:
		var msg SystemMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid system message: %w", err)
		}
		switch msg.Event {
		case SystemEventReady, SystemEventEnded, SystemEventError:
		default:
			msg.Event = SystemEventError
		}
		return msg, nil

	case MessageTypeSTTPartial, MessageTypeSTTFinal:
		var msg TranscriptMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid transcript message: %w", err)
		}
		return msg, nil

	case MessageTypeControl:
		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid control message: %w", err)
		}
		return msg, nil

	case "":
		return nil, fmt.Errorf("message missing type field")

	default:
		return UnknownMessage{Type: base.Type}, nil
	}
}
