package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/keinerst7/tollsync/internal/domain"
)

type TollStore struct {
	db *sqlx.DB
}

func NewTollStore(db *sqlx.DB) *TollStore {
	return &TollStore{db: db}
}

// ExistsForDate reports whether any record falls on the given calendar date.
func (s *TollStore) ExistsForDate(ctx context.Context, date time.Time) (bool, error) {
	day := dayStart(date)

	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM toll_records WHERE occurred_at >= $1 AND occurred_at < $2)",
		day, day.AddDate(0, 0, 1),
	)
	return exists, err
}

// InsertBatch inserts all records in one statement. It runs on the ambient
// transaction when one is carried in ctx.
func (s *TollStore) InsertBatch(ctx context.Context, records []domain.TollRecord) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO toll_records (station, direction, occurred_at, category, amount, ingested_at) VALUES ")
	valueArgs := make([]interface{}, 0, len(records)*6)

	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for col := 0; col < 6; col++ {
			if col > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(itoa(i*6 + col + 1))
		}
		sb.WriteString(")")
		valueArgs = append(valueArgs,
			rec.Station, rec.Direction, rec.OccurredAt, rec.Category, rec.Amount, rec.IngestedAt)
	}

	exec := GetExecutor(ctx, s.db)
	_, err := exec.ExecContext(ctx, sb.String(), valueArgs...)
	return err
}

// ListInWindow returns records whose timestamp falls on any calendar date
// between from and to inclusive, ordered by timestamp.
func (s *TollStore) ListInWindow(ctx context.Context, from, to time.Time) ([]domain.TollRecord, error) {
	query := `
		SELECT id, station, direction, occurred_at, category, amount, ingested_at
		FROM toll_records
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY occurred_at`

	var records []domain.TollRecord
	err := s.db.SelectContext(ctx, &records, query, dayStart(from), dayStart(to).AddDate(0, 0, 1))
	return records, err
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return itoa(i/10) + string(rune('0'+i%10))
}
