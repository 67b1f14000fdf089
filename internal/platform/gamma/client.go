// Package gamma implements the REST client for the external price source.
// It is the only component that talks to the network during a revaluation
// cycle, so retry, backoff, and request pacing all live here.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/simdash/marktracker/internal/domain"
)

const (
	defaultBaseURL = "https://gamma-api.polymarket.com"

	// Successive outbound calls are spaced by at least this much. Soft
	// pacing shared by all in-flight fetches, not a global lock.
	minCallSpacing = 100 * time.Millisecond

	maxAttempts = 5
	baseBackoff = 1 * time.Second
	maxBackoff  = 10 * time.Second
)

// Client fetches current market prices with retry and rate limiting.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	// Overridable in tests; production values come from the constants above.
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewClient creates a price source client. baseURL defaults to the production
// Gamma endpoint when empty.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Every(minCallSpacing), 1),
		logger:      logger.With(slog.String("component", "gamma_client")),
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
}

// GetMarketPrices fetches and normalizes the current (yes, no) price pair for
// a single market. Transient upstream failures are retried with capped
// exponential backoff; 4xx responses abort immediately, with 404 mapped to
// domain.ErrMarketNotFound. An unrecognized payload shape is not an error:
// the pair falls back to 0.5/0.5 and a warning is logged.
func (c *Client) GetMarketPrices(ctx context.Context, marketID string) (domain.MarketPriceSnapshot, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(marketID))

	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return domain.MarketPriceSnapshot{}, fmt.Errorf("gamma: get market %s: %w", marketID, err)
	}

	var m APIMarket
	if err := json.Unmarshal(body, &m); err != nil {
		c.logger.WarnContext(ctx, "undecodable market payload, using fallback prices",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		m = APIMarket{ID: marketID}
	}

	yes, no, resolved := ResolvePricePair(m)
	if !resolved {
		c.logger.WarnContext(ctx, "no price carrier in market payload, using fallback prices",
			slog.String("market_id", marketID),
		)
	}
	yes, no = NormalizePricePair(yes, no)

	return domain.MarketPriceSnapshot{
		MarketID:  marketID,
		YesPrice:  yes,
		NoPrice:   no,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// getWithRetry performs a paced GET with up to maxAttempts tries. Network
// errors, timeouts, 429 and 5xx responses are transient; any other non-2xx
// status is permanent and returned immediately.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.DebugContext(ctx, "price fetch attempt failed",
				slog.String("path", path),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, domain.ErrMarketNotFound

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream status %d", resp.StatusCode)
			continue

		case resp.StatusCode >= 400:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, string(msg))
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("exhausted %d attempts: %w", c.maxAttempts, lastErr)
}

// backoff sleeps for an exponentially growing, jittered interval before the
// given retry attempt, respecting context cancellation. The first retry waits
// around baseBackoff, doubling each attempt up to maxBackoff.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	wait := c.baseBackoff << (attempt - 1)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	// Up to 25% random jitter so synchronized retries spread out.
	if quarter := int64(wait) / 4; quarter > 0 {
		wait += time.Duration(rand.Int63n(quarter))
	}

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backoff: %w", ctx.Err())
	}
}
