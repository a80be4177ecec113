// Package yahoo is a Yahoo Finance chart API client for daily closing prices.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

const maxRetries = 3

// Client is a Yahoo Finance API client
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// NewClientWithBaseURL creates a client against a non-default endpoint.
// Used by tests to point at a local fixture server.
func NewClientWithBaseURL(baseURL string, log zerolog.Logger) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

// GetDailyCloses fetches daily closing prices for one symbol over the
// inclusive [start, end] date range. Transient failures are retried with
// exponential backoff; exhaustion returns the last error.
func (c *Client) GetDailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		bars, err := c.fetchCloses(ctx, symbol, start, end)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < maxRetries-1 {
			waitTime := time.Duration(1<<uint(attempt)) * time.Second
			c.log.Warn().
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("wait", waitTime).
				Err(err).
				Msg("Price fetch failed, retrying")
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", symbol, maxRetries, lastErr)
}

func (c *Client) fetchCloses(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	// period2 is exclusive on the Yahoo side, push it one day out so the
	// requested end date is included
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		c.baseURL,
		url.PathEscape(symbol),
		start.Unix(),
		end.AddDate(0, 0, 1).Unix(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "curl/8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("yahoo returned %d: %s", resp.StatusCode, string(body))
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no chart data for %s", symbol)
	}

	timestamps := chart.Chart.Result[0].Timestamp
	closes := chart.Chart.Result[0].Indicators.Quote[0].Close

	bars := make([]Bar, 0, len(timestamps))
	for i := range timestamps {
		// A null close decodes as zero; skip the bar either way, a zero
		// close is never a real price
		if i >= len(closes) || closes[i] == 0 {
			continue
		}
		bars = append(bars, Bar{
			Date:  time.Unix(timestamps[i], 0).UTC().Format("2006-01-02"),
			Close: closes[i],
		})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no valid bars for %s", symbol)
	}

	return bars, nil
}
