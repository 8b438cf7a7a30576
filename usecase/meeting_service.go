package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
)

// DefaultMeetingDuration is used when a start request names no duration
const DefaultMeetingDuration = 30 * time.Minute

// ErrNotRunning is returned when ending a meeting that is not running
var ErrNotRunning = errors.New("meeting not running")

// TokenIssuer signs interview tokens
type TokenIssuer interface {
	Issue(meetingCode, interviewID string, expiresAt time.Time) (string, error)
}

// MeetingService runs the meeting lifecycle behind the backend's REST endpoints
type MeetingService struct {
	repo    repositories.MeetingRepository
	issuer  TokenIssuer
	logger  *zap.Logger
	now     func() time.Time
	onEnded func(meeting *entities.Meeting, reason string)

	// mu serializes read-modify-write cycles on meetings
	mu sync.Mutex
}

// MeetingServiceOption configures a MeetingService
type MeetingServiceOption func(*MeetingService)

// WithMeetingClock overrides the wall clock
func WithMeetingClock(now func() time.Time) MeetingServiceOption {
	return func(s *MeetingService) { s.now = now }
}

// WithEndedHook registers a callback run after a meeting ends for any reason
func WithEndedHook(fn func(meeting *entities.Meeting, reason string)) MeetingServiceOption {
	return func(s *MeetingService) { s.onEnded = fn }
}

// NewMeetingService creates a new meeting service
func NewMeetingService(repo repositories.MeetingRepository, issuer TokenIssuer, logger *zap.Logger, opts ...MeetingServiceOption) *MeetingService {
	s := &MeetingService{
		repo:   repo,
		issuer: issuer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the meeting descriptor for a code
func (s *MeetingService) Get(ctx context.Context, code string) (*entities.Meeting, error) {
	return s.repo.GetByCode(ctx, code)
}

// Start starts a meeting. Starting a running meeting returns its current
// identifiers unchanged.
func (s *MeetingService) Start(ctx context.Context, code string, duration time.Duration) (*entities.StartResult, error) {
	if duration <= 0 {
		duration = DefaultMeetingDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meeting, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if meeting.Status == entities.SessionStatusRunning && meeting.EndAt != nil && now.Before(*meeting.EndAt) {
		s.logger.Info("Meeting already running", zap.String("code", code))
		return startResult(meeting), nil
	}

	startAt := now.UTC()
	endAt := startAt.Add(duration)
	interviewID := newInterviewID()
	token, err := s.issuer.Issue(code, interviewID, endAt)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	meeting.Status = entities.SessionStatusRunning
	meeting.StartAt = &startAt
	meeting.EndAt = &endAt
	meeting.InterviewID = &interviewID
	meeting.Token = &token
	if err := s.repo.Save(ctx, meeting); err != nil {
		return nil, err
	}

	s.logger.Info("Meeting started",
		zap.String("code", code),
		zap.String("interviewID", interviewID),
		zap.Time("endAt", endAt))
	return startResult(meeting), nil
}

// End ends a running meeting
func (s *MeetingService) End(ctx context.Context, code string) error {
	s.mu.Lock()
	meeting, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if meeting.Status != entities.SessionStatusRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}

	endAt := s.now().UTC()
	meeting.Status = entities.SessionStatusEnded
	meeting.EndAt = &endAt
	err = s.repo.Save(ctx, meeting)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Info("Meeting ended", zap.String("code", code))
	s.ended(meeting, "ended by request")
	return nil
}

// ExpireDue marks every running meeting whose deadline passed as ended
func (s *MeetingService) ExpireDue(ctx context.Context) (int, error) {
	s.mu.Lock()
	running, err := s.repo.ListRunning(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	now := s.now()
	var expired []*entities.Meeting
	for _, meeting := range running {
		if meeting.EndAt == nil || now.Before(*meeting.EndAt) {
			continue
		}
		meeting.Status = entities.SessionStatusEnded
		if err := s.repo.Save(ctx, meeting); err != nil {
			s.logger.Error("Failed to expire meeting", zap.String("code", meeting.Code), zap.Error(err))
			continue
		}
		expired = append(expired, meeting)
	}
	s.mu.Unlock()

	for _, meeting := range expired {
		s.logger.Info("Meeting expired", zap.String("code", meeting.Code))
		s.ended(meeting, "time is up")
	}
	return len(expired), nil
}

func (s *MeetingService) ended(meeting *entities.Meeting, reason string) {
	if s.onEnded != nil {
		s.onEnded(meeting, reason)
	}
}

func startResult(m *entities.Meeting) *entities.StartResult {
	result := &entities.StartResult{}
	if m.StartAt != nil {
		result.StartAt = *m.StartAt
	}
	if m.EndAt != nil {
		result.EndAt = *m.EndAt
	}
	if m.InterviewID != nil {
		result.InterviewID = *m.InterviewID
	}
	if m.Token != nil {
		result.Token = *m.Token
	}
	return result
}

// newInterviewID returns an id shaped like iv_1a2b3c4d
func newInterviewID() string {
	return "iv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
