package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
)

// MemoryMeetingRepository is an in-memory MeetingRepository for the mock backend
type MemoryMeetingRepository struct {
	mu       sync.RWMutex
	meetings map[string]*entities.Meeting // code -> meeting
}

var _ repositories.MeetingRepository = (*MemoryMeetingRepository)(nil)

// NewMemoryMeetingRepository creates a repository holding copies of the given meetings
func NewMemoryMeetingRepository(seed ...*entities.Meeting) *MemoryMeetingRepository {
	m := &MemoryMeetingRepository{meetings: make(map[string]*entities.Meeting)}
	for _, meeting := range seed {
		m.meetings[meeting.Code] = cloneMeeting(meeting)
	}
	return m
}

// GetByCode implements repositories.MeetingRepository
func (m *MemoryMeetingRepository) GetByCode(ctx context.Context, code string) (*entities.Meeting, error) {
	if code == "" {
		return nil, errors.New("meeting code cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	meeting, exists := m.meetings[code]
	if !exists {
		return nil, repositories.ErrMeetingNotFound
	}
	return cloneMeeting(meeting), nil
}

// Save implements repositories.MeetingRepository
func (m *MemoryMeetingRepository) Save(ctx context.Context, meeting *entities.Meeting) error {
	if meeting == nil {
		return errors.New("meeting cannot be nil")
	}
	if err := meeting.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.meetings[meeting.Code] = cloneMeeting(meeting)
	return nil
}

// ListRunning implements repositories.MeetingRepository
func (m *MemoryMeetingRepository) ListRunning(ctx context.Context) ([]*entities.Meeting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*entities.Meeting{}
	for _, meeting := range m.meetings {
		if meeting.Status == entities.SessionStatusRunning {
			result = append(result, cloneMeeting(meeting))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

// cloneMeeting copies the meeting and everything its pointers reference
func cloneMeeting(src *entities.Meeting) *entities.Meeting {
	dst := *src
	if src.InterviewID != nil {
		v := *src.InterviewID
		dst.InterviewID = &v
	}
	if src.Token != nil {
		v := *src.Token
		dst.Token = &v
	}
	if src.StartAt != nil {
		v := *src.StartAt
		dst.StartAt = &v
	}
	if src.EndAt != nil {
		v := *src.EndAt
		dst.EndAt = &v
	}
	return &dst
}
