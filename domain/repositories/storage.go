package repositories

import (
	"context"
	"errors"

	"github.com/javaboys/hunty/interview/domain/entities"
)

// ErrKeyNotFound is returned by a SessionStore for missing keys
var ErrKeyNotFound = errors.New("key not found")

// ErrMeetingNotFound is returned when no meeting exists for a code
var ErrMeetingNotFound = errors.New("meeting not found")

// SessionStore is durable local storage that survives client restarts
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MeetingRepository defines data access methods for meetings held by the backend
type MeetingRepository interface {
	GetByCode(ctx context.Context, code string) (*entities.Meeting, error)
	Save(ctx context.Context, meeting *entities.Meeting) error
	// ListRunning returns every meeting currently in the running status
	ListRunning(ctx context.Context) ([]*entities.Meeting, error)
}
