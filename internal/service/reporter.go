package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/keinerst7/tollsync/internal/domain"
)

// Reporter builds monthly aggregates over persisted toll records. It reads
// through the record store only and is independent of the import pipeline.
type Reporter struct {
	records RecordStore
	logger  *slog.Logger
}

func NewReporter(records RecordStore, logger *slog.Logger) *Reporter {
	return &Reporter{records: records, logger: logger}
}

// MonthlyReport groups the month's records by station and calendar date,
// with a per-category breakdown inside each group. Rows are ordered by
// station ascending, then date ascending; the summary fields are derived
// from the rows.
func (r *Reporter) MonthlyReport(ctx context.Context, year, month int) (*domain.MonthlyReport, error) {
	from, to, err := monthWindow(year, month)
	if err != nil {
		return nil, err
	}

	records, err := r.records.ListInWindow(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	type groupKey struct {
		station string
		date    time.Time
	}
	groups := make(map[groupKey][]domain.TollRecord)
	for _, rec := range records {
		key := groupKey{station: rec.Station, date: dateOnly(rec.OccurredAt)}
		groups[key] = append(groups[key], rec)
	}

	rows := make([]domain.StationDayRow, 0, len(groups))
	for key, recs := range groups {
		rows = append(rows, domain.StationDayRow{
			Station:    key.station,
			Date:       key.date,
			Vehicles:   len(recs),
			Total:      sumAmounts(recs),
			Categories: categoryBreakdown(recs),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Station != rows[j].Station {
			return rows[i].Station < rows[j].Station
		}
		return rows[i].Date.Before(rows[j].Date)
	})

	report := &domain.MonthlyReport{
		Period: fmt.Sprintf("%04d-%02d", year, month),
		Total:  decimal.Zero,
		Rows:   rows,
	}
	stations := make(map[string]struct{})
	days := make(map[time.Time]struct{})
	for _, row := range rows {
		stations[row.Station] = struct{}{}
		days[row.Date] = struct{}{}
		report.Vehicles += row.Vehicles
		report.Total = report.Total.Add(row.Total)
	}
	report.Stations = len(stations)
	report.Days = len(days)

	r.logger.Debug("built monthly report",
		"period", report.Period,
		"rows", len(rows),
		"vehicles", report.Vehicles,
	)
	return report, nil
}

// StationReport groups the month's records by station only, with average
// daily revenue over the station's distinct dates. Rows are ordered by total
// revenue descending.
func (r *Reporter) StationReport(ctx context.Context, year, month int) (*domain.StationReport, error) {
	from, to, err := monthWindow(year, month)
	if err != nil {
		return nil, err
	}

	records, err := r.records.ListInWindow(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	groups := make(map[string][]domain.TollRecord)
	for _, rec := range records {
		groups[rec.Station] = append(groups[rec.Station], rec)
	}

	rows := make([]domain.StationRow, 0, len(groups))
	for station, recs := range groups {
		total := sumAmounts(recs)

		avg := decimal.Zero
		if days := distinctDates(recs); days > 0 {
			avg = total.DivRound(decimal.NewFromInt(int64(days)), 2)
		} else {
			// A station with records always has at least one date; guard
			// anyway instead of dividing by zero.
			r.logger.Warn("station has records but no distinct dates", "station", station)
		}

		rows = append(rows, domain.StationRow{
			Station:         station,
			Vehicles:        len(recs),
			Total:           total,
			AvgDailyRevenue: avg,
			Categories:      categoryBreakdown(recs),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Total.Equal(rows[j].Total) {
			return rows[i].Total.GreaterThan(rows[j].Total)
		}
		return rows[i].Station < rows[j].Station
	})

	return &domain.StationReport{
		Period:   fmt.Sprintf("%04d-%02d", year, month),
		Stations: len(rows),
		Rows:     rows,
	}, nil
}

// monthWindow returns the first and last calendar day of the month.
func monthWindow(year, month int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d", domain.ErrInvalidMonth, month)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	last := first.AddDate(0, 1, -1)
	return first, last, nil
}

func sumAmounts(records []domain.TollRecord) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(rec.Amount)
	}
	return total
}

func categoryBreakdown(records []domain.TollRecord) []domain.CategoryTotal {
	totals := make(map[string]*domain.CategoryTotal)
	for _, rec := range records {
		ct, ok := totals[rec.Category]
		if !ok {
			ct = &domain.CategoryTotal{Category: rec.Category, Total: decimal.Zero}
			totals[rec.Category] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(rec.Amount)
	}

	breakdown := make([]domain.CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		breakdown = append(breakdown, *ct)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].Category < breakdown[j].Category
	})
	return breakdown
}

func distinctDates(records []domain.TollRecord) int {
	dates := make(map[time.Time]struct{})
	for _, rec := range records {
		dates[dateOnly(rec.OccurredAt)] = struct{}{}
	}
	return len(dates)
}
