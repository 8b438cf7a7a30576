package entities

import (
	"errors"
	"time"
)

// Meeting is the descriptor served by the backend for a meeting code
type Meeting struct {
	Code          string        `json:"code" bson:"_id"`
	CandidateName string        `json:"candidateName" bson:"candidate_name"`
	Greeting      string        `json:"greeting" bson:"greeting"`
	Status        SessionStatus `json:"status" bson:"status"`
	InterviewID   *string       `json:"interviewId" bson:"interview_id,omitempty"`
	Token         *string       `json:"token" bson:"token,omitempty"`
	StartAt       *time.Time    `json:"startAt,omitempty" bson:"start_at,omitempty"`
	EndAt         *time.Time    `json:"endAt" bson:"end_at,omitempty"`
}

// StartResult is returned by the backend when a meeting starts
type StartResult struct {
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
	InterviewID string    `json:"interviewId"`
	Token       string    `json:"token"`
}

// Session builds the client session view of the meeting
func (m *Meeting) Session() *Session {
	s := &Session{
		Code:    m.Code,
		Status:  m.Status,
		StartAt: m.StartAt,
		EndAt:   m.EndAt,
	}
	if s.Status == "" {
		s.Status = SessionStatusNotStarted
	}
	if m.InterviewID != nil {
		s.InterviewID = *m.InterviewID
	}
	if m.Token != nil {
		s.Token = *m.Token
	}
	return s
}

// Validate validates the meeting descriptor
func (m *Meeting) Validate() error {
	if m.Code == "" {
		return errors.New("code is required")
	}
	return nil
}
