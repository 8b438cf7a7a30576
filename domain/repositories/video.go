package repositories

import "context"

// VideoDialer opens the video upload socket for an interview
type VideoDialer interface {
	Dial(ctx context.Context, interviewID, token string) (VideoLink, error)
}

// VideoLink is an open video upload socket
type VideoLink interface {
	// SendChunk sends one raw media chunk as a single binary frame
	SendChunk(data []byte) error
	// SendEndOfStream tells the peer the recording is complete
	SendEndOfStream() error
	Close() error
}
