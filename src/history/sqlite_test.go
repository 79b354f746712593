package history

import (
	"path/filepath"
	"testing"
	"time"

	"mtclient/src/logger"
	"mtclient/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func newTestSQLiteStorage(t *testing.T) *SQLiteStorage {
	path := filepath.Join(t.TempDir(), "history.db")
	store := NewSQLiteStorage(path, logger.NewLogger(logger.LevelError, "test"))
	require.NoError(t, store.Initialize())
	t.Cleanup(func() { store.Close() })
	return store
}

// -----------------------------------------------------------------------------

func TestSaveHistoryOrdersAndLastHistoryOrderTime(t *testing.T) {
	store := newTestSQLiteStorage(t)

	noRecord, err := store.LastHistoryOrderTime("0:ps-mpa-1")
	require.NoError(t, err)
	assert.False(t, noRecord.Valid, "no rows yet must report an invalid OptionalTime, not a zero time")

	earlier := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	orders := []*models.HistoryOrder{
		{Order: models.Order{ID: "1", Symbol: "EURUSD", Time: earlier}, DoneTime: earlier},
		{Order: models.Order{ID: "2", Symbol: "EURUSD", Time: later}, DoneTime: later},
	}
	require.NoError(t, store.SaveHistoryOrders("0:ps-mpa-1", orders))

	got, err := store.LastHistoryOrderTime("0:ps-mpa-1")
	require.NoError(t, err)
	require.True(t, got.Valid)
	assert.Equal(t, later.Unix(), got.Time.Unix())
}

// -----------------------------------------------------------------------------

func TestSaveHistoryOrdersUpsertsOnRepeatedID(t *testing.T) {
	store := newTestSQLiteStorage(t)

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveHistoryOrders("0:ps-mpa-1", []*models.HistoryOrder{
		{Order: models.Order{ID: "1", Symbol: "EURUSD", State: "started", Time: t1}, DoneTime: t1},
	}))
	require.NoError(t, store.SaveHistoryOrders("0:ps-mpa-1", []*models.HistoryOrder{
		{Order: models.Order{ID: "1", Symbol: "EURUSD", State: "filled", Time: t1}, DoneTime: t2},
	}))

	var count int
	require.NoError(t, store.DB.QueryRow("SELECT COUNT(*) FROM history_orders WHERE instance_index = ? AND id = ?", "0:ps-mpa-1", "1").Scan(&count))
	assert.Equal(t, 1, count, "the same instance/id pair must upsert, not duplicate")

	got, err := store.LastHistoryOrderTime("0:ps-mpa-1")
	require.NoError(t, err)
	assert.Equal(t, t2.Unix(), got.Time.Unix())
}

// -----------------------------------------------------------------------------

func TestSaveDealsAndLastDealTime(t *testing.T) {
	store := newTestSQLiteStorage(t)

	at := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveDeals("0:ps-mpa-1", []*models.Deal{
		{ID: "d1", Symbol: "EURUSD", Volume: 1, Price: 1.1, Time: at},
	}))

	got, err := store.LastDealTime("0:ps-mpa-1")
	require.NoError(t, err)
	require.True(t, got.Valid)
	assert.Equal(t, at.Unix(), got.Time.Unix())
}

// -----------------------------------------------------------------------------

func TestSaveHistoryOrdersEmptySliceIsNoOp(t *testing.T) {
	store := newTestSQLiteStorage(t)
	require.NoError(t, store.SaveHistoryOrders("0:ps-mpa-1", nil))

	got, err := store.LastHistoryOrderTime("0:ps-mpa-1")
	require.NoError(t, err)
	assert.False(t, got.Valid)
}

// -----------------------------------------------------------------------------

func TestTimesAreScopedPerInstance(t *testing.T) {
	store := newTestSQLiteStorage(t)

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveDeals("0:ps-mpa-1", []*models.Deal{{ID: "d1", Time: at}}))

	got, err := store.LastDealTime("0:ps-mpa-2")
	require.NoError(t, err)
	assert.False(t, got.Valid, "a different instance index must not see another instance's deals")
}
