package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/keinerst7/tollsync/internal/domain"
)

const (
	SourceID = "fx"

	// minAgeDays: the upstream only serves dates strictly more than this
	// many days in the past.
	minAgeDays = 2

	dateLayout = "2006-01-02"
)

// Config holds toll API source configuration.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Source fetches toll-collection records from the F2X API, one date at a
// time, normalizing the upstream's ambiguous responses: 204, a blank body and
// a bare empty array all mean "no data for that date".
type Source struct {
	client  *http.Client
	baseURL string
	tokens  *TokenManager
	logger  *slog.Logger
	now     func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Source {
	client := &http.Client{Timeout: cfg.Timeout}
	logger = logger.With("source", SourceID)
	return &Source{
		client:  client,
		baseURL: cfg.BaseURL,
		tokens:  NewTokenManager(client, cfg, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// FetchForDate retrieves one date's worth of passage records. Dates too
// recent for the upstream come back Empty without any network call. A stale
// token (401) triggers one re-authentication and exactly one retried
// request.
func (s *Source) FetchForDate(ctx context.Context, date time.Time) (*domain.FetchOutcome, error) {
	if !s.servable(date) {
		s.logger.Debug("date too recent for upstream", "date", date.Format(dateLayout))
		return &domain.FetchOutcome{Empty: true}, nil
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	outcome, status, err := s.getPassages(ctx, date, token)
	if err != nil || status != http.StatusUnauthorized {
		return outcome, err
	}

	s.logger.Warn("token rejected, re-authenticating", "date", date.Format(dateLayout))
	s.tokens.Invalidate(token)

	token, err = s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	outcome, status, err = s.getPassages(ctx, date, token)
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: still unauthorized after refresh", domain.ErrAuthFailed)
	}
	return outcome, err
}

// FetchCountsForDate retrieves the vehicle-count records for a date. This is
// a pass-through endpoint, not part of the ingestion path.
func (s *Source) FetchCountsForDate(ctx context.Context, date time.Time) ([]domain.VehicleCount, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/ConteoVehiculos/%s", s.baseURL, date.Format(dateLayout))
	body, status, err := s.doAuthorized(ctx, url, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: unauthorized", domain.ErrAuthFailed)
	}
	if status == http.StatusNoContent || emptyPayload(body) {
		return []domain.VehicleCount{}, nil
	}

	var dtos []countDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		s.logger.Warn("malformed count payload", "date", date.Format(dateLayout), "error", err)
		return []domain.VehicleCount{}, nil
	}

	counts := make([]domain.VehicleCount, 0, len(dtos))
	for _, d := range dtos {
		counts = append(counts, domain.VehicleCount{
			Station:   d.Station,
			Direction: d.Direction,
			Hour:      d.HourOffset,
			Category:  d.Category,
			Quantity:  d.Quantity,
		})
	}
	return counts, nil
}

func (s *Source) servable(date time.Time) bool {
	today := dateOnly(s.now())
	return today.Sub(dateOnly(date)) >= minAgeDays*24*time.Hour
}

// getPassages performs one authenticated GET. A 401 is reported through the
// status return with a nil outcome so the caller can decide to retry.
func (s *Source) getPassages(ctx context.Context, date time.Time, token string) (*domain.FetchOutcome, int, error) {
	url := fmt.Sprintf("%s/RecaudoVehiculos/%s", s.baseURL, date.Format(dateLayout))

	body, status, err := s.doAuthorized(ctx, url, token)
	if err != nil {
		return nil, status, err
	}
	if status == http.StatusUnauthorized {
		return nil, status, nil
	}
	if status == http.StatusNoContent || emptyPayload(body) {
		s.logger.Debug("no data for date", "date", date.Format(dateLayout))
		return &domain.FetchOutcome{Empty: true}, status, nil
	}

	var dtos []passageDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		// The upstream occasionally serves malformed payloads; treat the day
		// as having no data rather than failing the run.
		s.logger.Warn("malformed payload, treating as empty",
			"date", date.Format(dateLayout),
			"error", err,
		)
		return &domain.FetchOutcome{Empty: true}, status, nil
	}
	if len(dtos) == 0 {
		return &domain.FetchOutcome{Empty: true}, status, nil
	}

	passages := make([]domain.Passage, 0, len(dtos))
	for _, d := range dtos {
		passages = append(passages, domain.Passage{
			Station:   d.Station,
			Direction: d.Direction,
			Hour:      d.HourOffset,
			Category:  d.Category,
			Amount:    d.Amount,
		})
	}

	s.logger.Debug("fetched passages", "date", date.Format(dateLayout), "count", len(passages))
	return &domain.FetchOutcome{Passages: passages}, status, nil
}

func (s *Source) doAuthorized(ctx context.Context, url, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusNoContent:
		return nil, resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, resp.StatusCode, &domain.HTTPError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &domain.NetworkError{Err: err}
	}
	return body, resp.StatusCode, nil
}

func emptyPayload(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return trimmed == "" || trimmed == "[]"
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
