// Package frankfurter provides currency rates from frankfurter.app, the
// secondary FX provider used when the primary one is down.
package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/divmon/internal/clientdata"
	"github.com/rs/zerolog"
)

// Client for frankfurter.app.
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new frankfurter.app client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://api.frankfurter.app/latest",
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "frankfurter").Logger(),
		cacheRepo: cacheRepo,
	}
}

type cachedRate struct {
	Rate float64 `json:"rate"`
}

// GetRate fetches the base→quote exchange rate with caching. No stale
// fallback here: this client is itself the fallback tier, and the conversion
// service behind it carries a fixed last-resort rate.
func (c *Client) GetRate(ctx context.Context, base, quote string) (float64, error) {
	if base == quote {
		return 1.0, nil
	}
	cacheKey := base + ":" + quote

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("frankfurter", cacheKey)
		if err == nil && data != nil {
			var cached cachedRate
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("pair", cacheKey).Float64("rate", cached.Rate).Msg("Cache hit")
				return cached.Rate, nil
			}
		}
	}

	url := fmt.Sprintf("%s?base=%s&symbols=%s", c.baseURL, base, quote)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	rate, exists := result.Rates[quote]
	if !exists {
		return 0, fmt.Errorf("rate not found for %s->%s", base, quote)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("frankfurter", cacheKey, cachedRate{Rate: rate}, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Str("pair", cacheKey).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().Str("pair", cacheKey).Float64("rate", rate).Msg("Fetched rate")
	return rate, nil
}
