package repositories

import (
	"context"

	"github.com/javaboys/hunty/interview/domain/entities"
)

// MeetingAPI abstracts the backend's meeting lifecycle endpoints
type MeetingAPI interface {
	// Get fetches the meeting descriptor for a code
	Get(ctx context.Context, code string) (*entities.Meeting, error)
	// Start starts the meeting and returns its identifiers and deadline
	Start(ctx context.Context, code string) (*entities.StartResult, error)
	// End ends a running meeting
	End(ctx context.Context, code string) error
	// Health checks that the backend is reachable
	Health(ctx context.Context) error
}
