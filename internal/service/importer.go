package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keinerst7/tollsync/internal/config"
	"github.com/keinerst7/tollsync/internal/domain"
)

const (
	// lagDays: range imports stop at today minus this many days, matching
	// the upstream's recency restriction.
	lagDays = 2

	dateLayout = "2006-01-02"
)

// Importer drives day-by-day ingestion of toll records. Idempotency is at
// day granularity: a date with any persisted record is never fetched again.
type Importer struct {
	source    Source
	records   RecordStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	config    config.ImportConfig
	now       func() time.Time
}

func NewImporter(
	source Source,
	records RecordStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.ImportConfig,
) *Importer {
	return &Importer{
		source:    source,
		records:   records,
		txManager: txManager,
		publisher: publisher,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// ImportRange imports every date from start through today minus two days,
// strictly sequentially and ascending. The run is best-effort: a failed day
// is logged and the loop moves on. Returns the number of records imported
// across the whole range; a non-nil error is only returned on cancellation.
func (s *Importer) ImportRange(ctx context.Context, start time.Time) (int, error) {
	logger := s.logger.With("run_id", uuid.NewString())

	end := dateOnly(s.now()).AddDate(0, 0, -lagDays)
	logger.Info("starting range import",
		"from", start.Format(dateLayout),
		"to", end.Format(dateLayout),
	)

	total := 0
	for date := dateOnly(start); !date.After(end); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			logger.Info("range import cancelled", "imported", total)
			return total, err
		}

		count, err := s.importDay(ctx, logger, date)
		if err != nil {
			// Best effort over the whole span: one bad day never aborts the run.
			logger.Error("day import failed", "date", date.Format(dateLayout), "error", err)
		}
		total += count

		// Fixed pause between dates, a courtesy toward the upstream.
		select {
		case <-ctx.Done():
			logger.Info("range import cancelled", "imported", total)
			return total, ctx.Err()
		case <-time.After(s.config.DayDelay):
		}
	}

	logger.Info("range import finished", "imported", total)
	return total, nil
}

// ImportDate imports a single date given as yyyy-MM-dd. Unlike ImportRange,
// fetch and persistence failures are returned to the caller.
func (s *Importer) ImportDate(ctx context.Context, date string) (int, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDateFormat, date)
	}

	return s.importDay(ctx, s.logger, dateOnly(day))
}

func (s *Importer) importDay(ctx context.Context, logger *slog.Logger, date time.Time) (int, error) {
	exists, err := s.records.ExistsForDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("existence check: %w", err)
	}
	if exists {
		logger.Info("date already imported, skipping", "date", date.Format(dateLayout))
		return 0, nil
	}

	outcome, err := s.source.FetchForDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if outcome.Empty || len(outcome.Passages) == 0 {
		logger.Info("no data for date", "date", date.Format(dateLayout))
		return 0, nil
	}

	records := s.buildRecords(date, outcome.Passages)

	// One transaction per day: the date only starts existing once the whole
	// batch commits, so a crash mid-day re-imports the full day on restart.
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.records.InsertBatch(txCtx, records)
	})
	if err != nil {
		return 0, fmt.Errorf("persist batch: %w", err)
	}

	logger.Info("imported date", "date", date.Format(dateLayout), "records", len(records))

	if s.publisher != nil {
		event := &domain.ImportEvent{
			Date:    date,
			Records: len(records),
			Total:   sumAmounts(records),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			logger.Warn("publish import event failed", "date", date.Format(dateLayout), "error", err)
		}
	}

	return len(records), nil
}

func (s *Importer) buildRecords(date time.Time, passages []domain.Passage) []domain.TollRecord {
	midnight := dateOnly(date)
	ingested := s.now()

	records := make([]domain.TollRecord, 0, len(passages))
	for _, p := range passages {
		records = append(records, domain.TollRecord{
			Station:    p.Station,
			Direction:  p.Direction,
			OccurredAt: midnight.Add(time.Duration(p.Hour) * time.Hour),
			Category:   p.Category,
			Amount:     p.Amount,
			IngestedAt: ingested,
		})
	}
	return records
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
