package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/keinerst7/tollsync/internal/config"
	"github.com/keinerst7/tollsync/internal/domain"
	"github.com/keinerst7/tollsync/internal/service/mocks"
)

type ImporterTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	records   *mocks.MockRecordStore
	txManager *mocks.MockTransactionManager
	publisher *mocks.MockPublisher

	importer *Importer
	logger   *slog.Logger
	today    time.Time
}

func (s *ImporterTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.records = mocks.NewMockRecordStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.today = time.Date(2024, 6, 4, 10, 30, 0, 0, time.Local)

	s.importer = NewImporter(
		s.source,
		s.records,
		s.txManager,
		nil,
		s.logger,
		config.ImportConfig{DayDelay: time.Millisecond},
	)
	s.importer.now = func() time.Time { return s.today }
}

func (s *ImporterTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestImporterTestSuite(t *testing.T) {
	suite.Run(t, new(ImporterTestSuite))
}

func (s *ImporterTestSuite) expectTransaction() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func (s *ImporterTestSuite) TestImportRange_PersistsFetchedRecords() {
	ctx := context.Background()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)

	// Range is a single day: start 2024-06-01, today-2d = 2024-06-02.
	s.today = time.Date(2024, 6, 3, 8, 0, 0, 0, time.Local)

	outcome := &domain.FetchOutcome{Passages: []domain.Passage{
		{Station: "X", Direction: "inbound", Hour: 5, Category: "auto", Amount: decimal.RequireFromString("3.50")},
		{Station: "X", Direction: "outbound", Hour: 10, Category: "camion", Amount: decimal.RequireFromString("7.00")},
	}}

	s.records.EXPECT().ExistsForDate(gomock.Any(), day).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), day).Return(outcome, nil)
	s.expectTransaction()

	var persisted []domain.TollRecord
	s.records.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, records []domain.TollRecord) error {
			persisted = records
			return nil
		},
	)

	count, err := s.importer.ImportRange(ctx, day)

	s.NoError(err)
	s.Equal(2, count)
	s.Require().Len(persisted, 2)
	s.Equal(time.Date(2024, 6, 1, 5, 0, 0, 0, time.Local), persisted[0].OccurredAt)
	s.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local), persisted[1].OccurredAt)
	s.Equal("X", persisted[0].Station)
	s.Equal("auto", persisted[0].Category)
	s.True(persisted[0].Amount.Equal(decimal.RequireFromString("3.50")))
	s.Equal(s.today, persisted[0].IngestedAt)
}

func (s *ImporterTestSuite) TestImportRange_SkipsExistingDates() {
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	second := start.AddDate(0, 0, 1)

	// 2024-06-01 already has records: no fetch is expected for it.
	s.records.EXPECT().ExistsForDate(gomock.Any(), start).Return(true, nil)
	s.records.EXPECT().ExistsForDate(gomock.Any(), second).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), second).Return(&domain.FetchOutcome{Empty: true}, nil)

	count, err := s.importer.ImportRange(ctx, start)

	s.NoError(err)
	s.Equal(0, count)
}

func (s *ImporterTestSuite) TestImportRange_ContinuesAfterDayFailure() {
	ctx := context.Background()
	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	second := first.AddDate(0, 0, 1)

	s.records.EXPECT().ExistsForDate(gomock.Any(), first).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), first).Return(nil, &domain.NetworkError{Err: errors.New("timeout")})

	s.records.EXPECT().ExistsForDate(gomock.Any(), second).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), second).Return(&domain.FetchOutcome{Passages: []domain.Passage{
		{Station: "A", Hour: 0, Category: "auto", Amount: decimal.RequireFromString("2.00")},
	}}, nil)
	s.expectTransaction()
	s.records.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Return(nil)

	count, err := s.importer.ImportRange(ctx, first)

	s.NoError(err)
	s.Equal(1, count)
}

func (s *ImporterTestSuite) TestImportRange_HourOffsetsStayOnDate() {
	ctx := context.Background()
	day := time.Date(2024, 6, 2, 0, 0, 0, 0, time.Local)

	outcome := &domain.FetchOutcome{Passages: []domain.Passage{
		{Station: "A", Hour: 0, Category: "auto", Amount: decimal.RequireFromString("1.00")},
		{Station: "A", Hour: 23, Category: "auto", Amount: decimal.RequireFromString("1.00")},
	}}

	s.records.EXPECT().ExistsForDate(gomock.Any(), day).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), day).Return(outcome, nil)
	s.expectTransaction()

	var persisted []domain.TollRecord
	s.records.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, records []domain.TollRecord) error {
			persisted = records
			return nil
		},
	)

	count, err := s.importer.ImportRange(ctx, day)

	s.NoError(err)
	s.Equal(2, count)
	s.Require().Len(persisted, 2)
	s.Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, time.Local), persisted[0].OccurredAt)
	s.Equal(time.Date(2024, 6, 2, 23, 0, 0, 0, time.Local), persisted[1].OccurredAt)
}

func (s *ImporterTestSuite) TestImportRange_Cancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := s.importer.ImportRange(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local))

	s.ErrorIs(err, context.Canceled)
	s.Equal(0, count)
}

func (s *ImporterTestSuite) TestImportRange_PublishesImportEvents() {
	ctx := context.Background()
	day := time.Date(2024, 6, 2, 0, 0, 0, 0, time.Local)

	importer := NewImporter(s.source, s.records, s.txManager, s.publisher, s.logger,
		config.ImportConfig{DayDelay: time.Millisecond})
	importer.now = func() time.Time { return s.today }

	s.records.EXPECT().ExistsForDate(gomock.Any(), day).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), day).Return(&domain.FetchOutcome{Passages: []domain.Passage{
		{Station: "A", Hour: 1, Category: "auto", Amount: decimal.RequireFromString("3.00")},
		{Station: "A", Hour: 2, Category: "auto", Amount: decimal.RequireFromString("4.50")},
	}}, nil)
	s.expectTransaction()
	s.records.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Return(nil)

	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, event *domain.ImportEvent) error {
			s.Equal(day, event.Date)
			s.Equal(2, event.Records)
			s.True(event.Total.Equal(decimal.RequireFromString("7.50")))
			return nil
		},
	)

	count, err := importer.ImportRange(ctx, day)

	s.NoError(err)
	s.Equal(2, count)
}

func (s *ImporterTestSuite) TestImportDate_InvalidFormat() {
	count, err := s.importer.ImportDate(context.Background(), "01/06/2024")

	s.ErrorIs(err, domain.ErrInvalidDateFormat)
	s.Equal(0, count)
}

func (s *ImporterTestSuite) TestImportDate_SecondRunImportsNothing() {
	ctx := context.Background()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// First run: no records yet, import two.
	s.records.EXPECT().ExistsForDate(gomock.Any(), day).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), day).Return(&domain.FetchOutcome{Passages: []domain.Passage{
		{Station: "A", Hour: 4, Category: "auto", Amount: decimal.RequireFromString("5.00")},
		{Station: "B", Hour: 6, Category: "camion", Amount: decimal.RequireFromString("9.00")},
	}}, nil)
	s.expectTransaction()
	s.records.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Return(nil)

	count, err := s.importer.ImportDate(ctx, "2024-06-01")
	s.NoError(err)
	s.Equal(2, count)

	// Second run: the date now exists, nothing is fetched.
	s.records.EXPECT().ExistsForDate(gomock.Any(), day).Return(true, nil)

	count, err = s.importer.ImportDate(ctx, "2024-06-01")
	s.NoError(err)
	s.Equal(0, count)
}

func (s *ImporterTestSuite) TestImportDate_PropagatesFetchError() {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.records.EXPECT().ExistsForDate(gomock.Any(), day).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), day).Return(nil, domain.ErrAuthFailed)

	count, err := s.importer.ImportDate(context.Background(), "2024-06-01")

	s.ErrorIs(err, domain.ErrAuthFailed)
	s.Equal(0, count)
}

func (s *ImporterTestSuite) TestImportDate_PropagatesPersistenceError() {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	persistErr := errors.New("insert failed")

	s.records.EXPECT().ExistsForDate(gomock.Any(), day).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), day).Return(&domain.FetchOutcome{Passages: []domain.Passage{
		{Station: "A", Hour: 4, Category: "auto", Amount: decimal.RequireFromString("5.00")},
	}}, nil)
	s.expectTransaction()
	s.records.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Return(persistErr)

	count, err := s.importer.ImportDate(context.Background(), "2024-06-01")

	s.ErrorIs(err, persistErr)
	s.Equal(0, count)
}

func (s *ImporterTestSuite) TestImportDate_EmptyOutcomeIsNotAnError() {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	s.records.EXPECT().ExistsForDate(gomock.Any(), day).Return(false, nil)
	s.source.EXPECT().FetchForDate(gomock.Any(), day).Return(&domain.FetchOutcome{Empty: true}, nil)

	count, err := s.importer.ImportDate(context.Background(), "2024-06-01")

	s.NoError(err)
	s.Equal(0, count)
}
