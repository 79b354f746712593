package termstate

import (
	"testing"

	"mtclient/src/models"

	"pgregory.net/rapid"
)

// -----------------------------------------------------------------------------
// Invariant 3, property form: any sequence of onPositionUpdated calls for an
// id that was removed earlier in the sequence (within the tombstone window)
// must never leave that id present in positions.

func TestPropertyStaleUpdateAfterRemovalIsNoOp(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := NewManager()
		id := rapid.StringMatching(`[a-z]{1,4}`).Draw(rt, "id")

		if err := m.OnPositionRemoved("0", id); err != nil {
			rt.Fatal(err)
		}

		replayCount := rapid.IntRange(1, 5).Draw(rt, "replays")
		for i := 0; i < replayCount; i++ {
			if err := m.OnPositionUpdated("0", &models.Position{ID: id, Symbol: "EURUSD"}); err != nil {
				rt.Fatal(err)
			}
		}

		if _, present := m.Instance("0").Positions[id]; present {
			rt.Fatalf("id %q must not be reinserted after removal", id)
		}
	})
}

// -----------------------------------------------------------------------------
// Invariant 1, property form: over a sequence of price ticks, profit stays
// within rounding tolerance of unrealizedProfit + realizedProfit.

func TestPropertyProfitInvariantHoldsAcrossTicks(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := NewManager()
		digits := rapid.IntRange(0, 5).Draw(rt, "digits")
		if err := m.OnSymbolSpecificationsUpdated("0", []*models.SymbolSpecification{{Symbol: "EURUSD", Digits: digits, TickSize: 0.0001}}, nil); err != nil {
			rt.Fatal(err)
		}

		openPrice := rapid.Float64Range(0.5, 2).Draw(rt, "openPrice")
		realized := rapid.Float64Range(-1000, 1000).Draw(rt, "realized")
		if err := m.OnPositionUpdated("0", &models.Position{
			ID: "p", Symbol: "EURUSD", Type: models.PositionTypeBuy, Volume: 1,
			OpenPrice: openPrice, RealizedProfit: realized,
		}); err != nil {
			rt.Fatal(err)
		}

		ticks := rapid.IntRange(1, 8).Draw(rt, "ticks")
		for i := 0; i < ticks; i++ {
			bid := rapid.Float64Range(0.5, 2).Draw(rt, "bid")
			if err := m.OnSymbolPricesUpdated("0", []*models.SymbolPrice{
				{Symbol: "EURUSD", Bid: bid, Ask: bid + 0.0001, ProfitTickValue: 1, LossTickValue: 1},
			}, nil, nil, nil, nil); err != nil {
				rt.Fatal(err)
			}
		}

		pos := m.Instance("0").Positions["p"]
		tolerance := 1.0
		for i := 0; i < digits; i++ {
			tolerance /= 10
		}
		diff := pos.Profit - (pos.UnrealizedProfit + pos.RealizedProfit)
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance+1e-9 {
			rt.Fatalf("profit invariant violated: profit=%v unrealized=%v realized=%v diff=%v tolerance=%v",
				pos.Profit, pos.UnrealizedProfit, pos.RealizedProfit, diff, tolerance)
		}
	})
}
