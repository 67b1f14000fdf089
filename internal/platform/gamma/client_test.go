package gamma

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/simdash/marktracker/internal/domain"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := NewClient(baseURL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	// Tight retry settings and no pacing so tests stay fast.
	c.maxAttempts = 3
	c.baseBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestGetMarketPrices(t *testing.T) {
	t.Run("success with outcome prices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/markets/abc123", r.URL.Path)
			w.Write([]byte(`{"id":"abc123","outcomePrices":"[\"0.62\", \"0.38\"]"}`))
		}))
		defer srv.Close()

		snap, err := testClient(t, srv.URL).GetMarketPrices(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, "abc123", snap.MarketID)
		assert.InDelta(t, 0.62, snap.YesPrice, 1e-9)
		assert.InDelta(t, 0.38, snap.NoPrice, 1e-9)
		assert.False(t, snap.FetchedAt.IsZero())
	})

	t.Run("fee-skewed pair is normalized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"m1","outcomePrices":[0.63, 0.39]}`))
		}))
		defer srv.Close()

		snap, err := testClient(t, srv.URL).GetMarketPrices(context.Background(), "m1")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, snap.YesPrice+snap.NoPrice, 1e-9)
	})

	t.Run("transient 500 is retried until success", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) <= 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"id":"m1","outcomePrices":[0.5, 0.5]}`))
		}))
		defer srv.Close()

		snap, err := testClient(t, srv.URL).GetMarketPrices(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, int32(3), hits.Load())
		assert.Equal(t, 0.5, snap.YesPrice)
	})

	t.Run("exhausted retries return the last error", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := testClient(t, srv.URL).GetMarketPrices(context.Background(), "m1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exhausted 3 attempts")
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("404 maps to ErrMarketNotFound without retry", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := testClient(t, srv.URL).GetMarketPrices(context.Background(), "gone")
		require.ErrorIs(t, err, domain.ErrMarketNotFound)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("other 4xx aborts immediately", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("nope"))
		}))
		defer srv.Close()

		_, err := testClient(t, srv.URL).GetMarketPrices(context.Background(), "m1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client error 403")
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("undecodable payload falls back to even odds", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>maintenance</html>`))
		}))
		defer srv.Close()

		snap, err := testClient(t, srv.URL).GetMarketPrices(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, 0.5, snap.YesPrice)
		assert.Equal(t, 0.5, snap.NoPrice)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := testClient(t, srv.URL).GetMarketPrices(ctx, "m1")
		require.Error(t, err)
	})

	t.Run("market id is path-escaped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/markets/a%2Fb", r.URL.EscapedPath())
			w.Write([]byte(`{"outcomePrices":[0.5,0.5]}`))
		}))
		defer srv.Close()

		_, err := testClient(t, srv.URL).GetMarketPrices(context.Background(), "a/b")
		require.NoError(t, err)
	})
}
