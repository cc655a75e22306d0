package frankfurter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD", r.URL.Query().Get("base"))
		assert.Equal(t, "JPY", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"base":"USD","rates":{"JPY":146.80}}`)
	}))
	defer srv.Close()

	c := NewClient(nil, zerolog.Nop())
	c.baseURL = srv.URL

	rate, err := c.GetRate(context.Background(), "USD", "JPY")
	require.NoError(t, err)
	assert.Equal(t, 146.80, rate)
}

func TestGetRateNoStaleFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(nil, zerolog.Nop())
	c.baseURL = srv.URL

	_, err := c.GetRate(context.Background(), "USD", "JPY")
	assert.Error(t, err)
}
