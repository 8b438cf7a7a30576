package repositories

import "context"

// MediaDevice opens a live capture track (microphone or camera)
type MediaDevice interface {
	Open(ctx context.Context) (MediaTrack, error)
}

// MediaTrack is a live capture stream
type MediaTrack interface {
	// Read blocks until captured bytes are available. io.EOF means the track ended.
	Read(ctx context.Context) ([]byte, error)
	// Stop releases the underlying device.
	Stop() error
}
