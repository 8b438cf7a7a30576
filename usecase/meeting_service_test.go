package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/javaboys/hunty/interview/adapters/store"
	"github.com/javaboys/hunty/interview/domain/entities"
	"github.com/javaboys/hunty/interview/domain/repositories"
)

type fakeIssuer struct {
	issued int
	err    error
}

func (f *fakeIssuer) Issue(code, interviewID string, expiresAt time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.issued++
	return "tok_" + interviewID, nil
}

type endedCall struct {
	code   string
	reason string
}

func newMeetingHarness(t *testing.T, clock *time.Time) (*MeetingService, *fakeIssuer, *[]endedCall) {
	t.Helper()
	repo := store.NewMemoryMeetingRepository(&entities.Meeting{
		Code:          "abc",
		CandidateName: "Alex",
		Status:        entities.SessionStatusNotStarted,
	})
	issuer := &fakeIssuer{}
	var ended []endedCall
	svc := NewMeetingService(repo, issuer, zap.NewNop(),
		WithMeetingClock(func() time.Time { return *clock }),
		WithEndedHook(func(m *entities.Meeting, reason string) {
			ended = append(ended, endedCall{code: m.Code, reason: reason})
		}),
	)
	return svc, issuer, &ended
}

func TestMeetingStart(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc, issuer, _ := newMeetingHarness(t, &now)
	ctx := context.Background()

	result, err := svc.Start(ctx, "abc", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.HasPrefix(result.InterviewID, "iv_") || len(result.InterviewID) != 11 {
		t.Errorf("Expected iv_ + 8 chars, got %q", result.InterviewID)
	}
	if result.Token != "tok_"+result.InterviewID {
		t.Errorf("Expected token for %s, got %q", result.InterviewID, result.Token)
	}
	if !result.EndAt.Equal(now.Add(DefaultMeetingDuration)) {
		t.Errorf("Expected endAt %v, got %v", now.Add(DefaultMeetingDuration), result.EndAt)
	}

	meeting, _ := svc.Get(ctx, "abc")
	if meeting.Status != entities.SessionStatusRunning {
		t.Errorf("Expected running, got %s", meeting.Status)
	}

	// A second start while running returns the same identifiers.
	now = now.Add(time.Minute)
	again, err := svc.Start(ctx, "abc", 45*time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if again.InterviewID != result.InterviewID || !again.EndAt.Equal(result.EndAt) {
		t.Error("Expected idempotent start to return the running meeting")
	}
	if issuer.issued != 1 {
		t.Errorf("Expected 1 token issued, got %d", issuer.issued)
	}
}

func TestMeetingStartCustomDuration(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newMeetingHarness(t, &now)

	result, err := svc.Start(context.Background(), "abc", 45*time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := result.EndAt.Sub(result.StartAt); got != 45*time.Minute {
		t.Errorf("Expected 45m meeting, got %v", got)
	}
}

func TestMeetingStartErrors(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc, issuer, _ := newMeetingHarness(t, &now)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "missing", 0); !errors.Is(err, repositories.ErrMeetingNotFound) {
		t.Errorf("Expected ErrMeetingNotFound, got %v", err)
	}

	issuer.err = errors.New("boom")
	if _, err := svc.Start(ctx, "abc", 0); err == nil {
		t.Error("Expected token error")
	}
	meeting, _ := svc.Get(ctx, "abc")
	if meeting.Status != entities.SessionStatusNotStarted {
		t.Errorf("Expected meeting to stay not_started, got %s", meeting.Status)
	}
}

func TestMeetingEnd(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc, _, ended := newMeetingHarness(t, &now)
	ctx := context.Background()

	if err := svc.End(ctx, "abc"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}

	svc.Start(ctx, "abc", 0)
	now = now.Add(5 * time.Minute)
	if err := svc.End(ctx, "abc"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	meeting, _ := svc.Get(ctx, "abc")
	if meeting.Status != entities.SessionStatusEnded {
		t.Errorf("Expected ended, got %s", meeting.Status)
	}
	if !meeting.EndAt.Equal(now) {
		t.Errorf("Expected endAt %v, got %v", now, meeting.EndAt)
	}
	if len(*ended) != 1 || (*ended)[0].reason != "ended by request" {
		t.Errorf("Expected one ended hook call, got %v", *ended)
	}

	if err := svc.End(ctx, "abc"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning after end, got %v", err)
	}

	// An ended meeting can be started again.
	if _, err := svc.Start(ctx, "abc", 0); err != nil {
		t.Errorf("Expected restart to succeed, got %v", err)
	}
}

func TestMeetingExpireDue(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc, _, ended := newMeetingHarness(t, &now)
	ctx := context.Background()

	svc.Start(ctx, "abc", 10*time.Minute)

	n, err := svc.ExpireDue(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Expected nothing to expire, got %d, %v", n, err)
	}

	now = now.Add(10 * time.Minute)
	n, err = svc.ExpireDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 expired meeting, got %d, %v", n, err)
	}

	meeting, _ := svc.Get(ctx, "abc")
	if meeting.Status != entities.SessionStatusEnded {
		t.Errorf("Expected ended, got %s", meeting.Status)
	}
	if len(*ended) != 1 || (*ended)[0].reason != "time is up" {
		t.Errorf("Expected expiry hook call, got %v", *ended)
	}
}

func TestMeetingStartAfterExpiry(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc, issuer, _ := newMeetingHarness(t, &now)
	ctx := context.Background()

	first, _ := svc.Start(ctx, "abc", 10*time.Minute)
	now = now.Add(11 * time.Minute)

	second, err := svc.Start(ctx, "abc", 10*time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if second.InterviewID == first.InterviewID {
		t.Error("Expected a new interview once the previous deadline passed")
	}
	if issuer.issued != 2 {
		t.Errorf("Expected 2 tokens issued, got %d", issuer.issued)
	}
}
