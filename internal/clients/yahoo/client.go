// Package yahoo provides market data fetching via the public Yahoo Finance
// chart API: live quote snapshots and historical yearly distributions.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/divmon/internal/clientdata"
	"github.com/aristath/divmon/internal/domain"
	"github.com/rs/zerolog"
)

// Client for the Yahoo Finance chart API.
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Yahoo Finance client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://query1.finance.yahoo.com/v8/finance/chart",
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "yahoo").Logger(),
		cacheRepo: cacheRepo,
	}
}

// chartResponse is the subset of the chart API payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp []int64 `json:"timestamp"`
			Events    struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// CurrentSnapshot returns the live view of an instrument: trailing-12-month
// distribution sum, the most recent session's close, the derived yield and
// the session date. Falls back to a stale cached snapshot when the API is
// unreachable (stale data > no data); the caller can detect staleness by the
// unchanged last trade date.
func (c *Client) CurrentSnapshot(ctx context.Context, ticker string) (domain.Snapshot, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("yahoo_quote", ticker)
		if err == nil && data != nil {
			var snap domain.Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				c.log.Debug().Str("ticker", ticker).Msg("Snapshot cache hit")
				return snap, nil
			}
		}
	}

	url := fmt.Sprintf("%s/%s?interval=1d&range=1y&events=div", c.baseURL, ticker)
	parsed, err := c.fetchChart(ctx, url)
	if err != nil {
		if snap, ok := c.staleSnapshot(ticker); ok {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("API failed, using stale cached snapshot")
			return snap, nil
		}
		return domain.Snapshot{}, fmt.Errorf("snapshot fetch for %s: %w", ticker, err)
	}

	snap, err := snapshotFromChart(parsed)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot for %s: %w", ticker, err)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("yahoo_quote", ticker, snap, clientdata.TTLQuote); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache snapshot")
		}
	}

	c.log.Info().
		Str("ticker", ticker).
		Float64("yield", snap.LiveYield).
		Float64("price", snap.ReferencePrice).
		Str("last_trade_date", string(snap.LastTradeDate)).
		Msg("Fetched snapshot")
	return snap, nil
}

// YearlyRealizedYield returns one completed calendar year's realized yield:
// the sum of distributions paid during the year divided by the final trading
// session's close, as a percentage. Completed years are immutable, so cached
// charts are served for a long TTL; there is no stale fallback - a historical
// year either resolves or is reported failed.
func (c *Client) YearlyRealizedYield(ctx context.Context, ticker string, year int) (float64, error) {
	cacheKey := fmt.Sprintf("%s:%d", ticker, year)

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("yahoo_chart", cacheKey)
		if err == nil && data != nil {
			var cached struct {
				RealizedYield float64 `json:"realized_yield"`
			}
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("ticker", ticker).Int("year", year).Msg("Chart cache hit")
				return cached.RealizedYield, nil
			}
		}
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d&events=div",
		c.baseURL, ticker, start, end)

	parsed, err := c.fetchChart(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("yearly chart fetch for %s %d: %w", ticker, year, err)
	}

	realized, err := realizedYieldFromChart(parsed, year)
	if err != nil {
		return 0, fmt.Errorf("realized yield for %s %d: %w", ticker, year, err)
	}

	if c.cacheRepo != nil {
		cached := struct {
			RealizedYield float64 `json:"realized_yield"`
		}{RealizedYield: realized}
		if err := c.cacheRepo.Store("yahoo_chart", cacheKey, cached, clientdata.TTLChart); err != nil {
			c.log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache yearly chart")
		}
	}

	c.log.Info().
		Str("ticker", ticker).
		Int("year", year).
		Float64("realized_yield", realized).
		Msg("Fetched yearly realized yield")
	return realized, nil
}

func (c *Client) fetchChart(ctx context.Context, url string) (*chartResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; divmon/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var parsed chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("API error %s: %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result")
	}
	return &parsed, nil
}

func (c *Client) staleSnapshot(ticker string) (domain.Snapshot, bool) {
	if c.cacheRepo == nil {
		return domain.Snapshot{}, false
	}
	data, err := c.cacheRepo.Get("yahoo_quote", ticker)
	if err != nil || data == nil {
		return domain.Snapshot{}, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, false
	}
	return snap, true
}

// snapshotFromChart derives the live snapshot from a trailing-1y daily chart.
func snapshotFromChart(parsed *chartResponse) (domain.Snapshot, error) {
	result := parsed.Chart.Result[0]

	price := result.Meta.RegularMarketPrice
	if price <= 0 {
		// Fall back to the last non-nil close.
		if _, last, ok := lastClose(parsed); ok {
			price = last
		}
	}
	if price <= 0 {
		return domain.Snapshot{}, fmt.Errorf("no usable price in chart")
	}

	var distribution float64
	for _, div := range result.Events.Dividends {
		distribution += div.Amount
	}

	tradeTime := result.Meta.RegularMarketTime
	if tradeTime == 0 && len(result.Timestamp) > 0 {
		tradeTime = result.Timestamp[len(result.Timestamp)-1]
	}
	if tradeTime == 0 {
		return domain.Snapshot{}, fmt.Errorf("no trade timestamp in chart")
	}

	return domain.Snapshot{
		LiveYield:              distribution / price * 100,
		ReferencePrice:         price,
		AnnualizedDistribution: distribution,
		LastTradeDate:          domain.NewDate(time.Unix(tradeTime, 0).UTC()),
	}, nil
}

// realizedYieldFromChart computes (year's distributions) / (final session
// close) for a chart bounded to that calendar year.
func realizedYieldFromChart(parsed *chartResponse, year int) (float64, error) {
	result := parsed.Chart.Result[0]

	var distribution float64
	for _, div := range result.Events.Dividends {
		if time.Unix(div.Date, 0).UTC().Year() == year {
			distribution += div.Amount
		}
	}
	if distribution == 0 {
		return 0, fmt.Errorf("no distributions found")
	}

	_, finalClose, ok := lastClose(parsed)
	if !ok {
		return 0, fmt.Errorf("no closing prices found")
	}

	return distribution / finalClose * 100, nil
}

// lastClose returns the timestamp and value of the latest non-nil close.
// Chart timestamps arrive in ascending session order.
func lastClose(parsed *chartResponse) (int64, float64, bool) {
	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return 0, 0, false
	}

	closes := result.Indicators.Quote[0].Close
	n := len(closes)
	if len(result.Timestamp) < n {
		n = len(result.Timestamp)
	}

	for i := n - 1; i >= 0; i-- {
		if closes[i] != nil && *closes[i] > 0 {
			return result.Timestamp[i], *closes[i], true
		}
	}
	return 0, 0, false
}
