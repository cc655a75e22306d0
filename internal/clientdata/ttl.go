package clientdata

import "time"

// TTL constants for the cached payload kinds. Added to time.Now() when
// storing to calculate expires_at.
const (
	// TTLQuote keeps live quote snapshots briefly; they drive same-day
	// decisions and must not lag the session by much.
	TTLQuote = 30 * time.Minute

	// TTLChart covers historical year charts; a completed calendar year's
	// distributions and final close never change.
	TTLChart = 30 * 24 * time.Hour

	// TTLExchangeRate covers FX rates; hourly freshness is plenty for
	// display-only conversion.
	TTLExchangeRate = time.Hour
)
