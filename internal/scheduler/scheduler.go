package scheduler

import (
	"context"
	"log/slog"
	"time"

	"initiative_syncer/internal/domain"
)

// Syncer runs one sync attempt per trigger.
type Syncer interface {
	SyncIfTotalChanged(ctx context.Context) (*domain.SyncResult, error)
}

type Config struct {
	// Interval, when set, replaces the daily trigger.
	Interval   time.Duration
	Hour       int
	Minute     int
	RunOnStart bool
}

type Scheduler struct {
	syncer Syncer
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

func NewScheduler(syncer Syncer, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer: syncer,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "scheduler"),
	}
}

// Start triggers syncs until ctx is cancelled. Failed runs are logged and
// the schedule continues.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Interval > 0 {
		s.logger.Info("scheduler started", "interval", s.cfg.Interval)
	} else {
		s.logger.Info("scheduler started", "daily_at_utc", formatClock(s.cfg.Hour, s.cfg.Minute))
	}

	if s.cfg.RunOnStart {
		s.runSync(ctx)
	}

	for {
		now := s.now()
		next := s.next(now)
		s.logger.Debug("next sync scheduled", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) next(now time.Time) time.Time {
	if s.cfg.Interval > 0 {
		return now.Add(s.cfg.Interval)
	}
	return nextDaily(now, s.cfg.Hour, s.cfg.Minute)
}

// nextDaily returns the first hour:minute UTC strictly after now.
func nextDaily(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) runSync(ctx context.Context) {
	result, err := s.syncer.SyncIfTotalChanged(ctx)
	if err != nil {
		s.logger.Error("sync failed", "error", err)
		return
	}

	switch {
	case result.Skipped != "":
		s.logger.Info("sync skipped", "reason", result.Skipped, "run_id", result.RunID)
	case result.Synced:
		s.logger.Info("sync finished",
			"run_id", result.RunID,
			"total_in_api", result.TotalInAPI,
			"total_fetched", result.TotalFetched,
		)
	default:
		s.logger.Info("catalog unchanged", "run_id", result.RunID, "total_in_api", result.TotalInAPI)
	}
}

func formatClock(hour, minute int) string {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
}
