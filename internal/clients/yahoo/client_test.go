package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/divmon/internal/clientdata"
	"github.com/aristath/divmon/internal/domain"
	testingpkg "github.com/aristath/divmon/internal/testing"
)

func newTestRepo(t *testing.T) *clientdata.Repository {
	t.Helper()

	repo := clientdata.NewRepository(testingpkg.NewTestDB(t).Conn())
	require.NoError(t, repo.EnsureSchema())
	return repo
}

// chartJSON builds a minimal chart payload: one result with a market price,
// a trade timestamp, dividends and daily closes.
func chartJSON(price float64, tradeTime int64, dividends map[int64]float64, timestamps []int64, closes []float64) string {
	divs := "{"
	first := true
	for date, amount := range dividends {
		if !first {
			divs += ","
		}
		divs += fmt.Sprintf("%q:{\"amount\":%v,\"date\":%d}", fmt.Sprint(date), amount, date)
		first = false
	}
	divs += "}"

	ts := "["
	cl := "["
	for i := range timestamps {
		if i > 0 {
			ts += ","
			cl += ","
		}
		ts += fmt.Sprint(timestamps[i])
		cl += fmt.Sprint(closes[i])
	}
	ts += "]"
	cl += "]"

	return fmt.Sprintf(`{"chart":{"result":[{
		"meta":{"regularMarketPrice":%v,"regularMarketTime":%d},
		"timestamp":%s,
		"events":{"dividends":%s},
		"indicators":{"quote":[{"close":%s}]}
	}],"error":null}}`, price, tradeTime, ts, divs, cl)
}

func TestCurrentSnapshot(t *testing.T) {
	tradeTime := time.Date(2026, time.January, 7, 21, 0, 0, 0, time.UTC).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/VYM", r.URL.Path)
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		fmt.Fprint(w, chartJSON(110.50, tradeTime,
			map[int64]float64{1735000000: 0.85, 1742000000: 0.87, 1750000000: 0.90, 1758000000: 0.92},
			[]int64{tradeTime - 86400, tradeTime},
			[]float64{109.80, 110.50}))
	}))
	defer srv.Close()

	c := NewClient(nil, zerolog.Nop())
	c.baseURL = srv.URL

	snap, err := c.CurrentSnapshot(context.Background(), "VYM")
	require.NoError(t, err)

	assert.Equal(t, 110.50, snap.ReferencePrice)
	assert.InDelta(t, 3.54, snap.AnnualizedDistribution, 1e-9)
	assert.InDelta(t, 3.54/110.50*100, snap.LiveYield, 1e-9)
	assert.Equal(t, domain.Date("2026-01-07"), snap.LastTradeDate)
}

func TestCurrentSnapshotStaleFallback(t *testing.T) {
	repo := newTestRepo(t)
	tradeTime := time.Date(2026, time.January, 6, 21, 0, 0, 0, time.UTC).Unix()

	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chartJSON(100, tradeTime,
			map[int64]float64{1750000000: 4.0},
			[]int64{tradeTime}, []float64{100}))
	}))
	defer srv.Close()

	c := NewClient(repo, zerolog.Nop())
	c.baseURL = srv.URL

	first, err := c.CurrentSnapshot(context.Background(), "VYM")
	require.NoError(t, err)

	// Evict the fresh entry so the next call hits the (now failing) API and
	// falls back to the stale copy.
	require.NoError(t, repo.Store("yahoo_quote", "VYM", first, -time.Minute))
	failing.Store(true)

	stale, err := c.CurrentSnapshot(context.Background(), "VYM")
	require.NoError(t, err)
	assert.Equal(t, first, stale)
}

func TestCurrentSnapshotErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(nil, zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.CurrentSnapshot(context.Background(), "VYM")
	assert.Error(t, err)
}

func TestYearlyRealizedYield(t *testing.T) {
	dec30 := time.Date(2025, time.December, 30, 21, 0, 0, 0, time.UTC).Unix()
	inYear := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC).Unix()
	outOfYear := time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC).Unix()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("period1"))
		// A boundary dividend from the prior year must be filtered out.
		fmt.Fprint(w, chartJSON(0, 0,
			map[int64]float64{inYear: 2.0, outOfYear: 9.0},
			[]int64{dec30 - 86400, dec30},
			[]float64{99.0, 100.0}))
	}))
	defer srv.Close()

	c := NewClient(nil, zerolog.Nop())
	c.baseURL = srv.URL

	realized, err := c.YearlyRealizedYield(context.Background(), "VYM", 2025)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, realized, 1e-9)
}

func TestYearlyRealizedYieldCached(t *testing.T) {
	repo := newTestRepo(t)
	dec30 := time.Date(2025, time.December, 30, 21, 0, 0, 0, time.UTC).Unix()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, chartJSON(0, 0,
			map[int64]float64{dec30 - 1000: 3.0},
			[]int64{dec30}, []float64{100}))
	}))
	defer srv.Close()

	c := NewClient(repo, zerolog.Nop())
	c.baseURL = srv.URL

	for i := 0; i < 3; i++ {
		realized, err := c.YearlyRealizedYield(context.Background(), "VYM", 2025)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, realized, 1e-9)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestYearlyRealizedYieldNoStaleFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(nil, zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.YearlyRealizedYield(context.Background(), "VYM", 2024)
	assert.Error(t, err)
}
