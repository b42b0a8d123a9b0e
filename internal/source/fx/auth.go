package fx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/keinerst7/tollsync/internal/domain"
)

// tokenExpirySkew: a cached token is refreshed once it is within this window
// of its expiry, so requests never go out with a token about to lapse.
const tokenExpirySkew = 5 * time.Minute

// TokenManager owns the cached bearer credential for the toll API. The
// credential is replaced wholesale on refresh; the mutex is held across the
// exchange so at most one login is in flight and concurrent callers always
// observe a consistent token.
type TokenManager struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	logger   *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenManager(client *http.Client, cfg Config, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		client:   client,
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
	}
}

// Token returns the cached token, performing a credential exchange first if
// none is held or the held one is near expiry.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Now().Before(m.expiresAt.Add(-tokenExpirySkew)) {
		return m.token, nil
	}

	return m.refresh(ctx)
}

// Invalidate drops the cached credential so the next Token call performs a
// fresh login. Only the given token is dropped; a newer credential cached by
// a concurrent refresh is kept.
func (m *TokenManager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == token {
		m.token = ""
		m.expiresAt = time.Time{}
	}
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{UserName: m.username, Password: m.password})
	if err != nil {
		return "", fmt.Errorf("%w: marshal login request: %v", domain.ErrAuthFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/Login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create login request: %v", domain.ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Error("login request failed", "error", err)
		return "", fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.logger.Error("login rejected", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", domain.ErrAuthFailed, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		m.logger.Error("malformed login response", "error", err)
		return "", fmt.Errorf("%w: decode login response: %v", domain.ErrAuthFailed, err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("%w: login response without token", domain.ErrAuthFailed)
	}

	m.token = tr.Token
	m.expiresAt = tr.Expiration
	m.logger.Info("obtained api token", "expires_at", tr.Expiration)

	return m.token, nil
}
