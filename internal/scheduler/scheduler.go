package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Importer defines the interface for range imports.
type Importer interface {
	ImportRange(ctx context.Context, start time.Time) (int, error)
}

// Scheduler re-runs the range import on a fixed interval. Re-running is safe
// because the import skips every date that already has records.
type Scheduler struct {
	importer Importer
	start    time.Time
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(importer Importer, start time.Time, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		importer: importer,
		start:    start,
		interval: interval,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.interval,
		"start_date", s.start.Format("2006-01-02"),
	)

	s.runImport(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runImport(ctx)
		}
	}
}

func (s *Scheduler) runImport(ctx context.Context) {
	count, err := s.importer.ImportRange(ctx, s.start)
	if err != nil {
		s.logger.Error("import run aborted", "imported", count, "error", err)
		return
	}
	s.logger.Info("import run completed", "imported", count)
}
