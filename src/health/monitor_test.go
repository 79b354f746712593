package health

import (
	"testing"
	"time"

	"mtclient/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func testConfig() *models.MHealthConfig {
	return &models.MHealthConfig{
		SampleIntervalSeconds: 1,
		QuoteStalenessSeconds: 30,
		UptimeWindowsMinutes:  []int{60, 1440},
	}
}

// -----------------------------------------------------------------------------

func TestHealthyRequiresEveryInstanceFullyUp(t *testing.T) {
	m := NewMonitor(testConfig())

	assert.False(t, m.Healthy(), "no instances tracked yet must read unhealthy")

	require.NoError(t, m.OnConnected("0:ps-mpa-1", 1))
	assert.False(t, m.Healthy(), "connected alone is not enough")

	require.NoError(t, m.OnBrokerConnectionStatusChanged("0:ps-mpa-1", true))
	assert.False(t, m.Healthy(), "still missing synchronization and a fresh price")

	require.NoError(t, m.OnPendingOrdersSynchronized("0:ps-mpa-1", "sync-1"))
	assert.False(t, m.Healthy(), "still missing a fresh price")

	require.NoError(t, m.OnSymbolPricesUpdated("0:ps-mpa-1", []*models.SymbolPrice{{Symbol: "EURUSD"}}, nil, nil, nil, nil))
	assert.True(t, m.Healthy())
}

// -----------------------------------------------------------------------------

func TestDisconnectedInstanceTurnsAggregateUnhealthy(t *testing.T) {
	m := NewMonitor(testConfig())
	require.NoError(t, m.OnConnected("0:ps-mpa-1", 1))
	require.NoError(t, m.OnBrokerConnectionStatusChanged("0:ps-mpa-1", true))
	require.NoError(t, m.OnPendingOrdersSynchronized("0:ps-mpa-1", "sync-1"))
	require.NoError(t, m.OnSymbolPricesUpdated("0:ps-mpa-1", []*models.SymbolPrice{{Symbol: "EURUSD"}}, nil, nil, nil, nil))
	require.True(t, m.Healthy())

	require.NoError(t, m.OnDisconnected("0:ps-mpa-1"))
	assert.False(t, m.Healthy())
}

// -----------------------------------------------------------------------------

func TestStalePriceMakesInstanceUnhealthy(t *testing.T) {
	cfg := testConfig()
	cfg.QuoteStalenessSeconds = 0
	m := NewMonitor(cfg)

	require.NoError(t, m.OnConnected("0:ps-mpa-1", 1))
	require.NoError(t, m.OnBrokerConnectionStatusChanged("0:ps-mpa-1", true))
	require.NoError(t, m.OnPendingOrdersSynchronized("0:ps-mpa-1", "sync-1"))
	require.NoError(t, m.OnSymbolPricesUpdated("0:ps-mpa-1", []*models.SymbolPrice{{Symbol: "EURUSD"}}, nil, nil, nil, nil))

	time.Sleep(5 * time.Millisecond)
	assert.False(t, m.Healthy(), "a zero staleness budget means any elapsed time is too stale")
}

// -----------------------------------------------------------------------------

func TestStreamClosedForgetsInstance(t *testing.T) {
	m := NewMonitor(testConfig())
	require.NoError(t, m.OnConnected("0:ps-mpa-1", 1))
	require.NoError(t, m.OnBrokerConnectionStatusChanged("0:ps-mpa-1", true))
	require.NoError(t, m.OnPendingOrdersSynchronized("0:ps-mpa-1", "sync-1"))
	require.NoError(t, m.OnSymbolPricesUpdated("0:ps-mpa-1", []*models.SymbolPrice{{Symbol: "EURUSD"}}, nil, nil, nil, nil))
	require.True(t, m.Healthy())

	require.NoError(t, m.OnStreamClosed("0:ps-mpa-1"))
	assert.False(t, m.Healthy(), "forgetting the only instance leaves nothing tracked, which reads unhealthy")
}

// -----------------------------------------------------------------------------

func TestUptimePercentageUnknownWindowReturnsSentinel(t *testing.T) {
	m := NewMonitor(testConfig())
	assert.Equal(t, float64(-1), m.UptimePercentage(5))
}

func TestUptimePercentageEmptyWindowReadsFullyUp(t *testing.T) {
	m := NewMonitor(testConfig())
	assert.Equal(t, float64(100), m.UptimePercentage(60))
}

// -----------------------------------------------------------------------------

func TestSampleAccumulatesIntoRollingWindow(t *testing.T) {
	m := NewMonitor(testConfig())
	require.NoError(t, m.OnConnected("0:ps-mpa-1", 1))
	require.NoError(t, m.OnBrokerConnectionStatusChanged("0:ps-mpa-1", true))
	require.NoError(t, m.OnPendingOrdersSynchronized("0:ps-mpa-1", "sync-1"))
	require.NoError(t, m.OnSymbolPricesUpdated("0:ps-mpa-1", []*models.SymbolPrice{{Symbol: "EURUSD"}}, nil, nil, nil, nil))

	m.sample()
	assert.Equal(t, float64(100), m.UptimePercentage(60))

	require.NoError(t, m.OnDisconnected("0:ps-mpa-1"))
	m.sample()
	assert.Equal(t, float64(50), m.UptimePercentage(60))
}

// -----------------------------------------------------------------------------

func TestStartStopSamplesOnTicker(t *testing.T) {
	m := NewMonitor(testConfig())
	require.NoError(t, m.OnConnected("0:ps-mpa-1", 1))
	require.NoError(t, m.OnBrokerConnectionStatusChanged("0:ps-mpa-1", true))
	require.NoError(t, m.OnPendingOrdersSynchronized("0:ps-mpa-1", "sync-1"))
	require.NoError(t, m.OnSymbolPricesUpdated("0:ps-mpa-1", []*models.SymbolPrice{{Symbol: "EURUSD"}}, nil, nil, nil, nil))

	m.Start(10 * time.Millisecond)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.UptimePercentage(60) == 100
	}, time.Second, 5*time.Millisecond)
}
