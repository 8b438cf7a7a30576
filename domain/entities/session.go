package entities

import (
	"errors"
	"time"
)

// SessionStatus represents the lifecycle status of an interview session
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "not_started"
	SessionStatusRunning    SessionStatus = "running"
	SessionStatusEnded      SessionStatus = "ended"
)

// EndAtStorageKey is the durable storage key holding a running session's deadline.
const EndAtStorageKey = "interview_end_at"

// Session is the client-side view of one interview.
type Session struct {
	Code        string        `json:"code" bson:"code"`
	Status      SessionStatus `json:"status" bson:"status"`
	InterviewID string        `json:"interviewId" bson:"interview_id"`
	Token       string        `json:"token" bson:"token"`
	StartAt     *time.Time    `json:"startAt,omitempty" bson:"start_at,omitempty"`
	EndAt       *time.Time    `json:"endAt,omitempty" bson:"end_at,omitempty"`
}

// NewSession creates a not-yet-started session for a meeting code
func NewSession(code string) *Session {
	return &Session{
		Code:   code,
		Status: SessionStatusNotStarted,
	}
}

// Begin marks the session as running with the identifiers returned by the backend
func (s *Session) Begin(result StartResult) {
	startAt := result.StartAt
	endAt := result.EndAt
	s.Status = SessionStatusRunning
	s.InterviewID = result.InterviewID
	s.Token = result.Token
	s.StartAt = &startAt
	s.EndAt = &endAt
}

// Finish marks the session as ended at the given time
func (s *Session) Finish(at time.Time) {
	s.Status = SessionStatusEnded
	s.EndAt = &at
}

// IsRunning reports whether the session is running and its deadline is still ahead
func (s *Session) IsRunning(now time.Time) bool {
	return s.Status == SessionStatusRunning && !s.IsExpired(now)
}

// IsExpired checks if the session deadline has passed
func (s *Session) IsExpired(now time.Time) bool {
	return s.EndAt != nil && !now.Before(*s.EndAt)
}

// Remaining returns the time left until the deadline, never negative
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.EndAt == nil {
		return 0
	}
	d := s.EndAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.Code == "" {
		return errors.New("code is required")
	}

	switch s.Status {
	case SessionStatusNotStarted, SessionStatusEnded:
	case SessionStatusRunning:
		if s.InterviewID == "" {
			return errors.New("interview_id is required for a running session")
		}
		if s.EndAt == nil {
			return errors.New("end_at is required for a running session")
		}
	default:
		return errors.New("invalid session status")
	}

	return nil
}
