package repositories

import (
	"context"
	"time"

	"github.com/javaboys/hunty/interview/domain/entities"
)

// AudioOutput is a process-scoped audio output device.
// It may start suspended; Resume must be awaited before audio is heard.
type AudioOutput interface {
	// Resume activates the device. Calling it more than once is safe.
	Resume(ctx context.Context) error
	// Now returns the device clock, which only moves forward.
	Now() time.Duration
	// Play schedules buf to start at the given device time. The returned
	// channel is closed once the buffer has finished playing.
	Play(buf entities.AudioBuffer, at time.Duration) (<-chan struct{}, error)
	// Close releases the device.
	Close() error
}
