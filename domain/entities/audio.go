package entities

import "time"

// AudioBuffer is a playable block of float PCM, one slice per output channel.
type AudioBuffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of sample frames per channel
func (b AudioBuffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer
func (b AudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// TranscriptLine is one finalized subtitle line
type TranscriptLine struct {
	Text       string    `json:"text"`
	FromMs     int64     `json:"fromMs"`
	ToMs       int64     `json:"toMs"`
	ReceivedAt time.Time `json:"receivedAt"`
}
