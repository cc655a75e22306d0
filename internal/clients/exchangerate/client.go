// Package exchangerate provides currency rates from exchangerate-api.com,
// the primary FX provider.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/divmon/internal/clientdata"
	"github.com/rs/zerolog"
)

// Client for exchangerate-api.com.
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://api.exchangerate-api.com/v4/latest",
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

// cachedRate is the structure stored in the cache.
type cachedRate struct {
	Rate float64 `json:"rate"`
}

// GetRate fetches the base→quote exchange rate with caching. When the API is
// unreachable or unusable, an expired cached rate is returned instead if one
// exists (stale data > no data).
func (c *Client) GetRate(ctx context.Context, base, quote string) (float64, error) {
	if base == quote {
		return 1.0, nil
	}
	cacheKey := base + ":" + quote

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("exchangerate", cacheKey)
		if err == nil && data != nil {
			var cached cachedRate
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Str("pair", cacheKey).Float64("rate", cached.Rate).Msg("Cache hit")
				return cached.Rate, nil
			}
		}
	}

	rate, err := c.fetchRate(ctx, base, quote)
	if err != nil {
		if stale, ok := c.staleRate(cacheKey); ok {
			c.log.Warn().Err(err).Str("pair", cacheKey).Float64("rate", stale).
				Msg("API failed, using stale cached rate")
			return stale, nil
		}
		return 0, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("exchangerate", cacheKey, cachedRate{Rate: rate}, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Str("pair", cacheKey).Msg("Failed to cache exchange rate")
		}
	}

	c.log.Info().Str("pair", cacheKey).Float64("rate", rate).Msg("Fetched rate")
	return rate, nil
}

func (c *Client) fetchRate(ctx context.Context, base, quote string) (float64, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, base)

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
	return rate, nil
}

// staleRate retrieves a cached rate even if expired.
func (c *Client) staleRate(cacheKey string) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}
	data, err := c.cacheRepo.Get("exchangerate", cacheKey)
	if err != nil || data == nil {
		return 0, false
	}
	var cached cachedRate
	if err := json.Unmarshal(data, &cached); err != nil {
		return 0, false
	}
	return cached.Rate, true
}
