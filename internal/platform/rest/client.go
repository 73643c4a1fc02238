// Package rest is the shared JSON-over-HTTP client used by the external
// service adapters. It rate limits outgoing requests and retries transient
// failures with exponential backoff.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultRetryWait  = 500 * time.Millisecond
	maxErrorBody      = 512
)

// Options tune a Client. Zero values fall back to defaults.
type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	RetryWait     time.Duration
}

// StatusError is returned for non-retryable 4xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rest: status %d: %s", e.Code, e.Body)
}

// Client is a rate-limited JSON HTTP client.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
	logger     *slog.Logger
}

// New returns a Client configured by opts.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = defaultRetryWait
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Client{
		http:       &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, opts.Burst),
		maxRetries: opts.MaxRetries,
		retryWait:  opts.RetryWait,
		logger:     logger,
	}
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
}

// PostJSON posts body as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("rest: marshal body: %w", err)
	}
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
}

func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error), out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt-1); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rest: rate limiter: %w", err)
		}

		req, err := build()
		if err != nil {
			return fmt.Errorf("rest: build request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			c.logger.Warn("rate limited by upstream",
				slog.String("url", req.URL.Redacted()),
				slog.Int("attempt", attempt+1),
			)
			lastErr = domain.ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		err = decode(resp, out)
		resp.Body.Close()
		return err
	}
	return fmt.Errorf("rest: request failed after %d retries: %w", c.maxRetries, lastErr)
}

func decode(resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("rest: decode response: %w", err)
	}
	return nil
}

// sleep waits 2^attempt * retryWait or until ctx ends.
func (c *Client) sleep(ctx context.Context, attempt int) error {
	wait := c.retryWait << attempt
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
