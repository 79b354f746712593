package termstate

import (
	"testing"
	"time"

	"mtclient/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// S1: tombstone replay.

func TestTombstoneReplay(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.OnPositionRemoved("0", "42"))
	require.NoError(t, m.OnPositionUpdated("0", &models.Position{ID: "42", Symbol: "EURUSD"}))

	inst := m.Instance("0")
	assert.Empty(t, inst.Positions)
	_, tombstoned := inst.RemovedPositions["42"]
	assert.True(t, tombstoned)
}

// -----------------------------------------------------------------------------
// Invariant 2/3: tombstones expire 5 minutes after insertion.

func TestTombstoneExpiry(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.OnPositionRemoved("0", "42"))

	inst := m.Instance("0")
	inst.RemovedPositions["42"] = time.Now().Add(-6 * time.Minute)

	require.NoError(t, m.OnPositionRemoved("0", "99"))
	_, stillThere := inst.RemovedPositions["42"]
	assert.False(t, stillThere, "tombstone older than 5 minutes must be evicted")
}

// -----------------------------------------------------------------------------
// S2: mt5 equity recomputation.

func TestEquityRecomputationMT5(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.OnAccountInformationUpdated("0", &models.AccountInformation{Platform: models.PlatformMT5, Balance: 10000}))

	// Open prices are chosen so the tick below (bid 1.1, tickSize 0.00001,
	// volume 1) recomputes unrealizedProfit to exactly 25.123 and -10.
	require.NoError(t, m.OnPositionUpdated("0", &models.Position{ID: "1", Symbol: "EURUSD", Type: models.PositionTypeBuy, Volume: 1, OpenPrice: 1.09974877, Swap: -1, UnrealizedProfit: 25.123}))
	require.NoError(t, m.OnPositionUpdated("0", &models.Position{ID: "2", Symbol: "EURUSD", Type: models.PositionTypeBuy, Volume: 1, OpenPrice: 1.1001, Swap: -2, UnrealizedProfit: -10}))
	require.NoError(t, m.OnPositionsSynchronized("0", "sync-1"))
	require.NoError(t, m.OnPendingOrdersSynchronized("0", "sync-1"))

	require.NoError(t, m.OnSymbolSpecificationsUpdated("0", []*models.SymbolSpecification{{Symbol: "EURUSD", Digits: 5, TickSize: 0.00001}}, nil))

	require.NoError(t, m.OnSymbolPricesUpdated("0", []*models.SymbolPrice{
		{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1001, ProfitTickValue: 1, LossTickValue: 1},
	}, nil, nil, nil, nil))

	inst := m.Instance("0")
	assert.InDelta(t, 10012.12, inst.AccountInformation.Equity, 0.001)
}

// -----------------------------------------------------------------------------
// Invariant 1: profit == unrealizedProfit + realizedProfit after any
// price update, to the symbol's digit resolution.

func TestProfitEqualsUnrealizedPlusRealized(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.OnSymbolSpecificationsUpdated("0", []*models.SymbolSpecification{{Symbol: "EURUSD", Digits: 2, TickSize: 0.0001}}, nil))
	require.NoError(t, m.OnPositionUpdated("0", &models.Position{
		ID: "1", Symbol: "EURUSD", Type: models.PositionTypeBuy, Volume: 1, OpenPrice: 1.1, RealizedProfit: 5,
	}))

	require.NoError(t, m.OnSymbolPricesUpdated("0", []*models.SymbolPrice{
		{Symbol: "EURUSD", Bid: 1.105, Ask: 1.1052, ProfitTickValue: 1, LossTickValue: 1},
	}, nil, nil, nil, nil))

	pos := m.Instance("0").Positions["1"]
	assert.InDelta(t, pos.UnrealizedProfit+pos.RealizedProfit, pos.Profit, 0.01)
}

// -----------------------------------------------------------------------------
// Promotion: only onPendingOrdersSynchronized copies into CombinedState.

func TestPromotionOnlyOnPendingOrdersSynchronized(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.OnPositionUpdated("0", &models.Position{ID: "1", Symbol: "EURUSD"}))
	assert.Empty(t, m.Combined().Positions, "a bare position update must not promote")

	require.NoError(t, m.OnPendingOrdersSynchronized("0", "sync-1"))
	assert.Contains(t, m.Combined().Positions, "1")
}

// -----------------------------------------------------------------------------
// S6: replica promotion overwrites wholesale, no mixed state observed.

func TestReplicaPromotionSwitchesCleanly(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.OnPositionUpdated("0", &models.Position{ID: "a"}))
	require.NoError(t, m.OnPendingOrdersSynchronized("0", "sync-0"))
	assert.Contains(t, m.Combined().Positions, "a")

	require.NoError(t, m.OnPositionUpdated("1", &models.Position{ID: "b"}))
	require.NoError(t, m.OnPendingOrdersSynchronized("1", "sync-1"))

	combined := m.Combined()
	assert.Contains(t, combined.Positions, "b")
	assert.NotContains(t, combined.Positions, "a")
}
