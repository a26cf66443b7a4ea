package profilestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/pkg/circuitbreaker"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the profile store client.
type ClientConfig struct {
	// BaseURL is the store base URL, without a trailing slash.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	RateLimiterConfig RateLimiterConfig

	// Breaker guards every call. Defaults to circuitbreaker.ProfileStoreBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           10 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the profile store. Calls are single-shot: a failure is
// returned to the caller without retrying.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
}

// NewClient creates a new profile store client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	log := logger.Component(config.Logger, "profilestore")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	breaker := config.Breaker
	if breaker == nil {
		breaker = circuitbreaker.ProfileStoreBreaker(
			func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
			circuitbreaker.WithIsFailure(func(err error) bool {
				return !errors.Is(err, errNotFound)
			}),
		)
	}

	return &Client{
		config:      config,
		httpClient:  httpClient,
		logger:      log,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		breaker:     breaker,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Register sends POST /register and expects 201 Created.
func (c *Client) Register(ctx context.Context, p profile.Profile) (string, error) {
	var resp SaveResponse
	if err := c.call(ctx, "/register", ToDTO(p), &resp, http.StatusCreated); err != nil {
		return "", shared.WrapError("profilestore", "Register", kindOf(err), "register failed", err)
	}
	return string(resp.PlatformUserID), nil
}

// Update sends POST /update_user and expects 200 OK.
func (c *Client) Update(ctx context.Context, p profile.Profile) (string, error) {
	var resp SaveResponse
	if err := c.call(ctx, "/update_user", ToDTO(p), &resp, http.StatusOK); err != nil {
		return "", shared.WrapError("profilestore", "Update", kindOf(err), "update failed", err)
	}
	return string(resp.PlatformUserID), nil
}

// Fetch sends POST /get_user. A 404 or a null user yields shared.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, telegramID int64) (profile.Profile, error) {
	var resp GetUserResponse
	err := c.call(ctx, "/get_user", GetUserRequest{TelegramUserID: telegramID}, &resp, http.StatusOK)
	if err != nil {
		return profile.Profile{}, shared.WrapError("profilestore", "Fetch", kindOf(err), "fetch failed", err)
	}
	if resp.User == nil {
		return profile.Profile{}, shared.NewDomainError("profilestore", "Fetch", shared.ErrNotFound, "user not found")
	}

	p := FromDTO(*resp.User)
	if p.TelegramID == 0 {
		p.TelegramID = telegramID
	}
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

var errNotFound = errors.New("not found")

func (c *Client) call(ctx context.Context, path string, body, result any, want int) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		return c.do(ctx, path, body, result, want)
	})
}

func (c *Client) do(ctx context.Context, path string, body, result any, want int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("profile store call",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound && path == "/get_user" {
		return errNotFound
	}
	if resp.StatusCode != want {
		apiErr := &APIErrorDTO{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// kindOf maps a transport error onto the domain taxonomy.
func kindOf(err error) error {
	switch {
	case errors.Is(err, errNotFound):
		return shared.ErrNotFound
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests),
		errors.Is(err, ErrRateLimited):
		return shared.ErrServiceUnavailable
	}
	var apiErr *APIErrorDTO
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return shared.ErrInvalidState
	}
	return shared.ErrServiceUnavailable
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus is reported by the readiness endpoint.
type ClientStatus struct {
	Breaker         string `json:"breaker"`
	AvailableTokens int    `json:"available_tokens"`
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		Breaker:         c.breaker.State().String(),
		AvailableTokens: int(c.rateLimiter.Available()),
	}
}

// IsHealthy reports whether the breaker lets calls through.
func (c *Client) IsHealthy(context.Context) bool {
	return c.breaker.State() != circuitbreaker.StateOpen
}
