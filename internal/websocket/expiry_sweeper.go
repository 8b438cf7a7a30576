package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often running meetings are checked for expiry
const DefaultSweepInterval = 15 * time.Second

// MeetingExpirer ends running meetings whose deadline passed
type MeetingExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// ExpirySweeper periodically ends meetings that ran past their deadline
type ExpirySweeper struct {
	meetings MeetingExpirer
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates a sweeper. A non-positive interval uses DefaultSweepInterval.
func NewExpirySweeper(meetings MeetingExpirer, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &ExpirySweeper{
		meetings: meetings,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until ctx is done
func (s *ExpirySweeper) Run(ctx context.Context) error {
	s.logger.Info("Expiry sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single expiry pass
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := s.meetings.ExpireDue(ctx)
	if err != nil {
		s.logger.Error("Failed to expire meetings", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Expired meetings", zap.Int("count", n))
	}
}
