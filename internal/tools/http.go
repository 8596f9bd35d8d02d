package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	userAgent       = "profassist/1.0 (+educational content research)"
	maxResponseBody = 2 << 20
)

// HTTPConfig is shared by the HTTP-backed search tools
type HTTPConfig struct {
	BaseURL    string
	Client     *http.Client
	Limiter    *rate.Limiter
	MaxResults int
}

func (c HTTPConfig) withDefaults(baseURL string) HTTPConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	return c
}

// NewLimiter returns a limiter allowing perSecond requests with a burst of
// one. Zero or negative means unlimited.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// get waits for the limiter, then fetches url and returns the body
func (c HTTPConfig) get(ctx context.Context, url string) (io.ReadCloser, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxResponseBody), resp.Body}, nil
}
