// Package httpapi is a rate-limited JSON client for the external HTTP services.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/steemstream/internal/indexing/metrics"
)

// ErrDecode wraps a response body that does not match the expected shape.
var ErrDecode = errors.New("decode")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Service, e.StatusCode, e.Body)
}

// Config tunes a client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	UserAgent         string
}

// Client issues GET requests and decodes JSON bodies.
type Client struct {
	service   string
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// New creates a client labelled service in metrics and errors.
func New(service string, cfg Config) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "steemstream/1.0"
	}
	return &Client{
		service:   service,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// GetJSON waits for the limiter, fetches baseURL+path and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(c.service, "error").Inc()
		return fmt.Errorf("%s request: %w", c.service, err)
	}
	defer resp.Body.Close()
	metrics.HTTPRequestsTotal.WithLabelValues(c.service, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > 256 {
			body = body[:256]
		}
		return &StatusError{Service: c.service, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w %s response: %w", ErrDecode, c.service, err)
	}
	return nil
}
