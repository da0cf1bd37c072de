// Package coingecko implements the upstream market-data API client.
//
// Every request is paced by a shared rate limiter and retried with
// exponential backoff on transient failures (HTTP 429 and network
// errors). Each retry is a full re-issue of the same request.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hyperflow/hyperflow/configs"
)

// Client talks to the CoinGecko HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Entry
}

// NewClient creates a CoinGecko client from configuration.
func NewClient(cfg configs.CoinGeckoConfig, logger *logrus.Logger) *Client {
	perSecond := float64(cfg.RateLimit) / 60.0
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger.WithField("driver", "coingecko"),
	}
}

// get issues one rate-limited GET with retries and decodes the JSON
// response into dest.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dest any) error {
	u := fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.retryDelay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.logger.WithFields(logrus.Fields{"endpoint": endpoint, "attempt": attempt}).
				Warn("retrying request")
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "HyperFlow/1.0.0")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-cg-pro-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network failures are transient.
			return retry.RetryableError(fmt.Errorf("request failed: %w", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read body: %w", err))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.WithField("endpoint", endpoint).Warn("rate limited by upstream")
			return retry.RetryableError(fmt.Errorf("rate limited: status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if dest == nil {
			return nil
		}
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return nil
	})
}
