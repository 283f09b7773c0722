package oecd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"initiative_syncer/internal/domain"
	"initiative_syncer/internal/metrics"
)

const (
	SourceID   = "oecd"
	SourceName = "OECD.AI Policy Initiatives"

	DefaultBaseURL = "https://oecd-ai.case-api.buddyweb.fr/policy-initiatives"
	DefaultPerPage = 20
)

// Config holds catalog client configuration.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	UserAgent         string
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64 // 0 disables client-side limiting
	Burst             int

	BreakerFailures uint32 // consecutive failures that open the breaker
	BreakerTimeout  time.Duration
}

// StatusError is a non-2xx answer from the catalog.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether retrying the same request can succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client reads the paginated policy-initiatives catalog.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	userAgent      string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker[*APIResponse]
	logger         *slog.Logger
}

// New creates a catalog client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "InitiativeSyncer/1.0"
	}

	logger = logger.With("component", "catalog", "source", SourceID)

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		userAgent:      cfg.UserAgent,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout == 0 {
		breakerTimeout = 30 * time.Second
	}

	c.breaker = gobreaker.NewCircuitBreaker[*APIResponse](gobreaker.Settings{
		Name:        SourceID,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A 4xx says nothing about the health of the remote.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logger.Warn("circuit breaker state changed",
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(SourceID).Set(0)

	return c
}

// ID returns the source identifier.
func (c *Client) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (c *Client) Name() string {
	return SourceName
}

// FetchPage fetches one 1-based catalog page, retrying transient failures.
func (c *Client) FetchPage(ctx context.Context, page int) (*domain.PageResult, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}

	pageURL, err := c.pageURL(page)
	if err != nil {
		return nil, err
	}

	resp, err := backoff.Retry(ctx, func() (*APIResponse, error) {
		resp, err := c.execute(ctx, pageURL)
		if err != nil {
			if !c.retryable(ctx, err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("request failed, retrying",
				"page", page,
				"backoff", wait,
				"error", err,
			)
		}),
	)
	if err != nil {
		metrics.PageFetchErrors.WithLabelValues(errorReason(err)).Inc()
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}

	metrics.PagesFetched.Inc()
	return c.toPageResult(page, resp), nil
}

func (c *Client) pageURL(page int) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("publishedOnly", "true")
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) execute(ctx context.Context, pageURL string) (*APIResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := c.breaker.Execute(func() (*APIResponse, error) {
		return c.doRequest(ctx, pageURL)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrCircuitOpen, err)
	}
	return resp, err
}

func (c *Client) doRequest(ctx context.Context, pageURL string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &decodeError{err: err}
	}

	return &apiResp, nil
}

func (c *Client) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, domain.ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.initialBackoff > 0 {
		b.InitialInterval = c.initialBackoff
	}
	if c.maxBackoff > 0 {
		b.MaxInterval = c.maxBackoff
	}
	return b
}

func (c *Client) toPageResult(page int, resp *APIResponse) *domain.PageResult {
	result := &domain.PageResult{
		CurrentPage: intOr(resp.CurrentPage.Value, page),
		LastPage:    intOr(resp.LastPage.Value, 1),
		Total:       intOr(resp.Total.Value, 0),
		PerPage:     intOr(resp.PerPage.Value, DefaultPerPage),
		Items:       make([]domain.Initiative, 0, len(resp.Data)),
	}

	for i, raw := range resp.Data {
		var item Item
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Warn("catalog entry is not an object, skipping",
				"page", page,
				"index", i,
				"error", err,
			)
			result.Malformed++
			continue
		}
		result.Items = append(result.Items, ToInitiative(item))
	}

	return result
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

func errorReason(err error) string {
	var se *StatusError
	var de *decodeError
	switch {
	case errors.Is(err, domain.ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &se):
		return "status"
	case errors.As(err, &de):
		return "decode"
	default:
		return "network"
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
