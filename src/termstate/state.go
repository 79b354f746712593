// Package termstate implements the in-memory terminal mirror of §3/§4.4:
// one InstanceState per replica, deterministically derived from the
// SynchronizationListener event stream, and a single CombinedState
// promoted from whichever instance last completed a full sync. Grounded
// on the teacher's in-memory aggregation maps (src/models/aggregation.go,
// src/models/intermediate_stats.go — per-symbol rolling state keyed by
// string, mutated in place under a single owner goroutine), generalized
// from price aggregation to position/order/account mirroring.
package termstate

import (
	"sync"
	"time"

	"mtclient/src/interfaces"
	"mtclient/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// tombstoneTTL is the lifetime of a removedPositions/completedOrders entry
// (§3 inv. 2/3, §4.4).
const tombstoneTTL = 5 * time.Minute

// -----------------------------------------------------------------------------

// InstanceState mirrors one server-side replica (§3's "TerminalState (per
// instance)"). All mutation happens through SynchronizationListener
// callbacks on the account's single logical execution context (§5); no
// internal locking is needed, but Manager below serializes access across
// instances sharing a CombinedState.
type InstanceState struct {
	Connected         bool
	ConnectedToBroker bool

	AccountInformation *models.AccountInformation

	Positions map[string]*models.Position
	Orders    map[string]*models.Order

	SpecificationsBySymbol map[string]*models.SymbolSpecification
	PricesBySymbol         map[string]*models.SymbolPrice

	CompletedOrders  map[string]time.Time
	RemovedPositions map[string]time.Time

	PositionsInitialized bool
	OrdersInitialized    bool
	PricesInitialized    bool

	LastUpdateTime time.Time

	priceWaiters map[string][]chan struct{}
}

// -----------------------------------------------------------------------------

func newInstanceState() *InstanceState {
	return &InstanceState{
		Positions:              make(map[string]*models.Position),
		Orders:                 make(map[string]*models.Order),
		SpecificationsBySymbol: make(map[string]*models.SymbolSpecification),
		PricesBySymbol:         make(map[string]*models.SymbolPrice),
		CompletedOrders:        make(map[string]time.Time),
		RemovedPositions:       make(map[string]time.Time),
		priceWaiters:           make(map[string][]chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// CombinedState is the caller-visible projection (§3), written only at
// promotion points (onPendingOrdersSynchronized) and otherwise read-only.
type CombinedState struct {
	AccountInformation *models.AccountInformation
	Positions          map[string]*models.Position
	Orders             map[string]*models.Order
	SpecificationsBySymbol map[string]*models.SymbolSpecification
}

// -----------------------------------------------------------------------------

// Manager owns every InstanceState for one account plus its CombinedState,
// and implements SynchronizationListener so it can be registered directly
// with StreamingConnection.
type Manager struct {
	mu        sync.Mutex
	instances map[string]*InstanceState
	combined  *CombinedState
}

// -----------------------------------------------------------------------------

var _ interfaces.SynchronizationListener = (*Manager)(nil)

// -----------------------------------------------------------------------------

// NewManager returns a Manager with an empty combined view.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[string]*InstanceState),
		combined: &CombinedState{
			Positions:              make(map[string]*models.Position),
			Orders:                 make(map[string]*models.Order),
			SpecificationsBySymbol: make(map[string]*models.SymbolSpecification),
		},
	}
}

// -----------------------------------------------------------------------------

// instance returns (creating if absent) the InstanceState for index.
func (m *Manager) instance(index string) *InstanceState {
	st, ok := m.instances[index]
	if !ok {
		st = newInstanceState()
		m.instances[index] = st
	}
	return st
}

// -----------------------------------------------------------------------------

// Instance returns a snapshot pointer to the live state for index, or nil.
// Callers must not mutate the returned positions/orders maps.
func (m *Manager) Instance(index string) *InstanceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances[index]
}

// Combined returns the current promoted view.
func (m *Manager) Combined() *CombinedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.combined
}

// -----------------------------------------------------------------------------

func (m *Manager) OnConnected(instanceIndex string, replicas int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instance(instanceIndex).Connected = true
	return nil
}

func (m *Manager) OnDisconnected(instanceIndex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, instanceIndex)
	return nil
}

func (m *Manager) OnBrokerConnectionStatusChanged(instanceIndex string, connected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instance(instanceIndex).ConnectedToBroker = connected
	return nil
}

// -----------------------------------------------------------------------------

// OnSynchronizationStarted clears the state sections the server is about
// to resend (§4.4).
func (m *Manager) OnSynchronizationStarted(instanceIndex string, specificationsUpdated, positionsUpdated, ordersUpdated bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)

	st.AccountInformation = nil
	st.PricesBySymbol = make(map[string]*models.SymbolPrice)

	if positionsUpdated {
		st.Positions = make(map[string]*models.Position)
		st.RemovedPositions = make(map[string]time.Time)
		st.PositionsInitialized = false
	}
	if ordersUpdated {
		st.Orders = make(map[string]*models.Order)
		st.CompletedOrders = make(map[string]time.Time)
		st.OrdersInitialized = false
	}
	if specificationsUpdated {
		st.SpecificationsBySymbol = make(map[string]*models.SymbolSpecification)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) OnAccountInformationUpdated(instanceIndex string, info *models.AccountInformation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instance(instanceIndex).AccountInformation = info
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) OnPositionsReplaced(instanceIndex string, positions []*models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)
	st.Positions = make(map[string]*models.Position, len(positions))
	for _, p := range positions {
		if _, tombstoned := st.RemovedPositions[p.ID]; tombstoned {
			continue
		}
		st.Positions[p.ID] = p
	}
	return nil
}

// -----------------------------------------------------------------------------

// OnPositionUpdated upserts by id unless the id is tombstoned (§4.4,
// invariant 2/3, scenario S1): a stale replay after removal is a no-op.
func (m *Manager) OnPositionUpdated(instanceIndex string, position *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)
	if _, tombstoned := st.RemovedPositions[position.ID]; tombstoned {
		return nil
	}
	st.Positions[position.ID] = position
	return nil
}

// -----------------------------------------------------------------------------

// OnPositionRemoved deletes the position if present, otherwise records a
// tombstone, and evicts tombstones older than tombstoneTTL on every write.
func (m *Manager) OnPositionRemoved(instanceIndex string, positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)

	if _, ok := st.Positions[positionID]; ok {
		delete(st.Positions, positionID)
	} else {
		st.RemovedPositions[positionID] = time.Now()
	}

	evictExpired(st.RemovedPositions)
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) OnPositionsSynchronized(instanceIndex string, synchronizationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)
	st.RemovedPositions = make(map[string]time.Time)
	st.PositionsInitialized = true
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) OnPendingOrdersReplaced(instanceIndex string, orders []*models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)
	st.Orders = make(map[string]*models.Order, len(orders))
	for _, o := range orders {
		if _, tombstoned := st.CompletedOrders[o.ID]; tombstoned {
			continue
		}
		st.Orders[o.ID] = o
	}
	return nil
}

func (m *Manager) OnPendingOrderUpdated(instanceIndex string, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)
	if _, tombstoned := st.CompletedOrders[order.ID]; tombstoned {
		return nil
	}
	st.Orders[order.ID] = order
	return nil
}

func (m *Manager) OnPendingOrderCompleted(instanceIndex string, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)
	if _, ok := st.Orders[orderID]; ok {
		delete(st.Orders, orderID)
	} else {
		st.CompletedOrders[orderID] = time.Now()
	}
	evictExpired(st.CompletedOrders)
	return nil
}

// -----------------------------------------------------------------------------

// OnPendingOrdersSynchronized is the only promotion path (§4.4, §GLOSSARY):
// it finalizes this instance's view, then copies it into CombinedState.
//
// positionsInitialized is set unconditionally here, mirroring the server's
// own (likely accidental, see DESIGN.md §9) behavior rather than gating it
// on whether positions were actually part of this sync.
func (m *Manager) OnPendingOrdersSynchronized(instanceIndex string, synchronizationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)

	st.CompletedOrders = make(map[string]time.Time)
	st.PositionsInitialized = true
	st.OrdersInitialized = true

	m.promote(st)
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) promote(st *InstanceState) {
	positions := make(map[string]*models.Position, len(st.Positions))
	for id, p := range st.Positions {
		positions[id] = p
	}
	orders := make(map[string]*models.Order, len(st.Orders))
	for id, o := range st.Orders {
		orders[id] = o
	}
	specs := make(map[string]*models.SymbolSpecification, len(st.SpecificationsBySymbol))
	for sym, s := range st.SpecificationsBySymbol {
		specs[sym] = s
	}

	m.combined = &CombinedState{
		AccountInformation:     st.AccountInformation,
		Positions:              positions,
		Orders:                 orders,
		SpecificationsBySymbol: specs,
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) OnHistoryOrdersSynchronized(instanceIndex string, synchronizationID string) error {
	return nil
}
func (m *Manager) OnDealsSynchronized(instanceIndex string, synchronizationID string) error {
	return nil
}

// -----------------------------------------------------------------------------

func (m *Manager) OnSymbolSpecificationsUpdated(instanceIndex string, updates []*models.SymbolSpecification, removed []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instance(instanceIndex)
	for _, spec := range updates {
		inst.SpecificationsBySymbol[spec.Symbol] = spec
	}
	for _, symbol := range removed {
		delete(inst.SpecificationsBySymbol, symbol)
	}
	return nil
}

// -----------------------------------------------------------------------------

// OnSymbolPricesUpdated is the recomputation hot path of §4.4 step by step.
func (m *Manager) OnSymbolPricesUpdated(instanceIndex string, prices []*models.SymbolPrice, equity, margin, freeMargin, marginLevel *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.instance(instanceIndex)

	updatedSymbols := make(map[string]bool, len(prices))
	for _, price := range prices {
		st.PricesBySymbol[price.Symbol] = price
		updatedSymbols[price.Symbol] = true
		if price.Time.After(st.LastUpdateTime) {
			st.LastUpdateTime = price.Time
		}
	}

	allPriced := true
	for _, pos := range st.Positions {
		price, hasPrice := st.PricesBySymbol[pos.Symbol]
		if !hasPrice {
			allPriced = false
			continue
		}
		if !updatedSymbols[pos.Symbol] {
			continue
		}
		spec, hasSpec := st.SpecificationsBySymbol[pos.Symbol]
		if !hasSpec {
			// step 6: specification absent, only the price table advances.
			continue
		}
		recomputePosition(pos, price, spec)
	}
	st.PricesInitialized = allPriced

	for _, ord := range st.Orders {
		price, ok := st.PricesBySymbol[ord.Symbol]
		if !ok || !updatedSymbols[ord.Symbol] {
			continue
		}
		if ord.Type.IsBuyVariant() {
			ord.CurrentPrice = price.Ask
		} else {
			ord.CurrentPrice = price.Bid
		}
	}

	if st.AccountInformation != nil {
		if st.PositionsInitialized && st.PricesInitialized {
			st.AccountInformation.Equity = recomputeEquity(st.AccountInformation.Platform, st.AccountInformation.Balance, st.Positions)
		} else if equity != nil {
			st.AccountInformation.Equity = *equity
		}
		if margin != nil {
			st.AccountInformation.Margin = *margin
		}
		if freeMargin != nil {
			st.AccountInformation.FreeMargin = *freeMargin
			// marginLevel is gated on freeMargin's presence rather than its
			// own, mirroring the server's own condition (see DESIGN.md §9).
			if marginLevel != nil {
				st.AccountInformation.MarginLevel = *marginLevel
			}
		}
	}

	for sym := range updatedSymbols {
		for _, ch := range st.priceWaiters[sym] {
			close(ch)
		}
		delete(st.priceWaiters, sym)
	}

	return nil
}

// -----------------------------------------------------------------------------

// WaitForPrice blocks until symbol next receives a price update on
// instanceIndex, or timeout elapses, per §5 ("waitForPrice defaults to 30s;
// on timeout it returns undefined rather than failing").
func (m *Manager) WaitForPrice(instanceIndex, symbol string, timeout time.Duration) *models.SymbolPrice {
	m.mu.Lock()
	st := m.instance(instanceIndex)
	if price, ok := st.PricesBySymbol[symbol]; ok {
		m.mu.Unlock()
		return price
	}
	ch := make(chan struct{})
	st.priceWaiters[symbol] = append(st.priceWaiters[symbol], ch)
	m.mu.Unlock()

	select {
	case <-ch:
		m.mu.Lock()
		defer m.mu.Unlock()
		return st.PricesBySymbol[symbol]
	case <-time.After(timeout):
		return nil
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) OnHealthStatus(instanceIndex string, status map[string]interface{}) error { return nil }

func (m *Manager) OnSubscriptionDowngraded(instanceIndex string, symbol string, updates, unsubscriptions []string) error {
	return nil
}

func (m *Manager) OnStreamClosed(instanceIndex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, instanceIndex)
	return nil
}

// -----------------------------------------------------------------------------

func evictExpired(tombstones map[string]time.Time) {
	cutoff := time.Now().Add(-tombstoneTTL)
	for id, at := range tombstones {
		if at.Before(cutoff) {
			delete(tombstones, id)
		}
	}
}

// -----------------------------------------------------------------------------

// recomputePosition applies §4.4 step 2's P&L formula using decimal
// arithmetic so that profit == unrealizedProfit + realizedProfit holds to
// the rounding resolution implied by the symbol's digits (§3 inv. 5),
// which float64 subtraction cannot guarantee near the rounding boundary.
func recomputePosition(pos *models.Position, price *models.SymbolPrice, spec *models.SymbolSpecification) {
	var newPrice, direction decimal.Decimal
	if pos.Type == models.PositionTypeBuy {
		newPrice = decimal.NewFromFloat(price.Bid)
		direction = decimal.NewFromInt(1)
	} else {
		newPrice = decimal.NewFromFloat(price.Ask)
		direction = decimal.NewFromInt(-1)
	}

	delta := direction.Mul(newPrice.Sub(decimal.NewFromFloat(pos.OpenPrice)))

	tickValue := decimal.NewFromFloat(price.ProfitTickValue)
	if delta.IsNegative() {
		tickValue = decimal.NewFromFloat(price.LossTickValue)
	}

	tickSize := decimal.NewFromFloat(spec.TickSize)
	if tickSize.IsZero() {
		tickSize = decimal.NewFromFloat(1)
	}

	unrealized := delta.Mul(tickValue).Mul(decimal.NewFromFloat(pos.Volume)).Div(tickSize)
	unrealized = unrealized.Round(int32(spec.Digits))
	profit := unrealized.Add(decimal.NewFromFloat(pos.RealizedProfit)).Round(int32(spec.Digits))

	pos.UnrealizedProfit, _ = unrealized.Float64()
	pos.Profit, _ = profit.Float64()
	pos.CurrentPrice, _ = newPrice.Float64()
	pos.CurrentTickValue, _ = tickValue.Float64()
}

// -----------------------------------------------------------------------------

// recomputeEquity applies the per-platform formula of §4.4 step 5.
func recomputeEquity(platform models.Platform, balance float64, positions map[string]*models.Position) float64 {
	total := decimal.NewFromFloat(balance)
	for _, pos := range positions {
		swap := decimal.NewFromFloat(pos.Swap).Round(2)
		unrealized := decimal.NewFromFloat(pos.UnrealizedProfit).Round(2)
		total = total.Add(swap).Add(unrealized)
		if platform == models.PlatformMT4 {
			total = total.Add(decimal.NewFromFloat(pos.Commission).Round(2))
		}
	}
	result, _ := total.Float64()
	return result
}
