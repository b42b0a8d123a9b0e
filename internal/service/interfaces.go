package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/keinerst7/tollsync/internal/domain"
)

type Source interface {
	FetchForDate(ctx context.Context, date time.Time) (*domain.FetchOutcome, error)
}

type RecordStore interface {
	ExistsForDate(ctx context.Context, date time.Time) (bool, error)
	InsertBatch(ctx context.Context, records []domain.TollRecord) error
	ListInWindow(ctx context.Context, from, to time.Time) ([]domain.TollRecord, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, event *domain.ImportEvent) error
	Close() error
}
