package clientdata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testingpkg "github.com/aristath/divmon/internal/testing"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo := NewRepository(testingpkg.NewTestDB(t).Conn())
	require.NoError(t, repo.EnsureSchema())
	return repo
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo := newTestRepo(t)

	payload := map[string]float64{"rate": 147.25}
	require.NoError(t, repo.Store("exchangerate", "USD:JPY", payload, time.Hour))

	data, err := repo.GetIfFresh("exchangerate", "USD:JPY")
	require.NoError(t, err)
	require.NotNil(t, data)

	var got map[string]float64
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 147.25, got["rate"])
}

func TestGetIfFreshMissReturnsNil(t *testing.T) {
	repo := newTestRepo(t)

	data, err := repo.GetIfFresh("yahoo_quote", "VYM")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestExpiredEntryStillAvailableViaGet(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Store("yahoo_quote", "VYM", map[string]float64{"yield": 3.2}, -time.Minute))

	fresh, err := repo.GetIfFresh("yahoo_quote", "VYM")
	require.NoError(t, err)
	assert.Nil(t, fresh)

	stale, err := repo.Get("yahoo_quote", "VYM")
	require.NoError(t, err)
	assert.NotNil(t, stale)
}

func TestStoreUpserts(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Store("frankfurter", "USD:JPY", map[string]float64{"rate": 1}, time.Hour))
	require.NoError(t, repo.Store("frankfurter", "USD:JPY", map[string]float64{"rate": 2}, time.Hour))

	data, err := repo.GetIfFresh("frankfurter", "USD:JPY")
	require.NoError(t, err)

	var got map[string]float64
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 2.0, got["rate"])
}

func TestDeleteAllExpired(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Store("yahoo_chart", "VYM:2024", map[string]float64{"y": 3.9}, -time.Minute))
	require.NoError(t, repo.Store("yahoo_chart", "VYM:2025", map[string]float64{"y": 4.1}, time.Hour))

	deleted, err := repo.DeleteAllExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted["yahoo_chart"])

	kept, err := repo.Get("yahoo_chart", "VYM:2025")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	gone, err := repo.Get("yahoo_chart", "VYM:2024")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestInvalidTableRejected(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Store("portfolio; DROP TABLE yahoo_quote", "k", "v", time.Hour)
	assert.Error(t, err)

	_, err = repo.GetIfFresh("unknown", "k")
	assert.Error(t, err)
}
