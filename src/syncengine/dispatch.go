package syncengine

import (
	"time"

	"mtclient/src/interfaces"
	"mtclient/src/models"
)

// -----------------------------------------------------------------------------

// installHandlers wires one transport.EventHandler per server event type
// (§6) that decodes the packet into typed arguments and fans it out to
// every registered SynchronizationListener in order, awaiting each
// (§5: "awaited before the next packet is dispatched for the same
// account").
func (c *Connection) installHandlers() {
	c.transport.On("disconnected", c.onDisconnected)
	c.transport.On("synchronizationStarted", c.onSynchronizationStarted)
	c.transport.On("accountInformation", c.onAccountInformation)
	c.transport.On("positions", c.onPositions)
	c.transport.On("orders", c.onOrders)
	c.transport.On("specifications", c.onSpecifications)
	c.transport.On("update", c.onUpdate)
	c.transport.On("prices", c.onPrices)
	c.transport.On("dealSynchronizationFinished", c.onDealSynchronizationFinished)
	c.transport.On("orderSynchronizationFinished", c.onOrderSynchronizationFinished)
	c.transport.On("healthStatus", c.onHealthStatus)
	c.transport.On("downgradeSubscription", c.onDowngradeSubscription)
}

// -----------------------------------------------------------------------------

func (c *Connection) forEachListener(fn func(l interfaces.SynchronizationListener) error) {
	c.mu.Lock()
	listeners := append([]interfaces.SynchronizationListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		if err := fn(l); err != nil {
			c.log.Error("listener callback failed: %v", err)
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Connection) onDisconnected(instanceIndex string, packet map[string]interface{}) error {
	c.mu.Lock()
	c.tracking(instanceIndex).state = StateDisconnected
	c.mu.Unlock()
	c.forEachListener(func(l interfaces.SynchronizationListener) error { return l.OnDisconnected(instanceIndex) })
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onSynchronizationStarted(instanceIndex string, packet map[string]interface{}) error {
	specs, _ := packet["specificationsUpdated"].(bool)
	pos, _ := packet["positionsUpdated"].(bool)
	ord, _ := packet["ordersUpdated"].(bool)
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnSynchronizationStarted(instanceIndex, specs, pos, ord)
	})
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onAccountInformation(instanceIndex string, packet map[string]interface{}) error {
	info, ok := decodeAccountInformation(packet["accountInformation"])
	if !ok {
		return nil
	}
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnAccountInformationUpdated(instanceIndex, info)
	})
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onPositions(instanceIndex string, packet map[string]interface{}) error {
	positions := decodePositions(packet["positions"])
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnPositionsReplaced(instanceIndex, positions)
	})
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnPositionsSynchronized(instanceIndex, stringField(packet, "synchronizationId"))
	})
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onOrders(instanceIndex string, packet map[string]interface{}) error {
	orders := decodeOrders(packet["orders"])
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnPendingOrdersReplaced(instanceIndex, orders)
	})

	syncID := stringField(packet, "synchronizationId")
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnPendingOrdersSynchronized(instanceIndex, syncID)
	})

	c.mu.Lock()
	c.tracking(instanceIndex).state = StateSynchronized
	c.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onSpecifications(instanceIndex string, packet map[string]interface{}) error {
	updates := decodeSpecifications(packet["specifications"])
	removed := stringSlice(packet["removedSymbols"])
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnSymbolSpecificationsUpdated(instanceIndex, updates, removed)
	})
	return nil
}

// -----------------------------------------------------------------------------

// onUpdate carries incremental position/order/symbol-spec changes (§6): it
// may include updated positions/orders, removed position/order ids, and
// updated/removed specifications, all optional.
func (c *Connection) onUpdate(instanceIndex string, packet map[string]interface{}) error {
	for _, p := range decodePositions(packet["updatedPositions"]) {
		pp := p
		c.forEachListener(func(l interfaces.SynchronizationListener) error {
			return l.OnPositionUpdated(instanceIndex, pp)
		})
	}
	for _, id := range stringSlice(packet["removedPositionIds"]) {
		removedID := id
		c.forEachListener(func(l interfaces.SynchronizationListener) error {
			return l.OnPositionRemoved(instanceIndex, removedID)
		})
	}
	for _, o := range decodeOrders(packet["updatedOrders"]) {
		oo := o
		c.forEachListener(func(l interfaces.SynchronizationListener) error {
			return l.OnPendingOrderUpdated(instanceIndex, oo)
		})
	}
	for _, id := range stringSlice(packet["completedOrderIds"]) {
		completedID := id
		c.forEachListener(func(l interfaces.SynchronizationListener) error {
			return l.OnPendingOrderCompleted(instanceIndex, completedID)
		})
	}
	updatedSpecs := decodeSpecifications(packet["updatedSpecifications"])
	removedSpecs := stringSlice(packet["removedSpecifications"])
	if len(updatedSpecs) > 0 || len(removedSpecs) > 0 {
		c.forEachListener(func(l interfaces.SynchronizationListener) error {
			return l.OnSymbolSpecificationsUpdated(instanceIndex, updatedSpecs, removedSpecs)
		})
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onPrices(instanceIndex string, packet map[string]interface{}) error {
	prices := decodePrices(packet["prices"])
	equity := floatPtr(packet["equity"])
	margin := floatPtr(packet["margin"])
	freeMargin := floatPtr(packet["freeMargin"])
	marginLevel := floatPtr(packet["marginLevel"])

	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnSymbolPricesUpdated(instanceIndex, prices, equity, margin, freeMargin, marginLevel)
	})
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onDealSynchronizationFinished(instanceIndex string, packet map[string]interface{}) error {
	syncID := stringField(packet, "synchronizationId")
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnDealsSynchronized(instanceIndex, syncID)
	})
	return nil
}

func (c *Connection) onOrderSynchronizationFinished(instanceIndex string, packet map[string]interface{}) error {
	syncID := stringField(packet, "synchronizationId")
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnHistoryOrdersSynchronized(instanceIndex, syncID)
	})
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onHealthStatus(instanceIndex string, packet map[string]interface{}) error {
	status, _ := packet["healthStatus"].(map[string]interface{})
	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnHealthStatus(instanceIndex, status)
	})
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) onDowngradeSubscription(instanceIndex string, packet map[string]interface{}) error {
	symbol := stringField(packet, "symbol")
	updates := stringSlice(packet["updates"])
	unsubscriptions := stringSlice(packet["unsubscriptions"])

	c.mu.Lock()
	t := c.tracking(instanceIndex)
	if len(unsubscriptions) > 0 {
		delete(t.subscriptions, symbol)
	} else if len(updates) > 0 {
		t.subscriptions[symbol] = updates
	}
	c.mu.Unlock()

	c.forEachListener(func(l interfaces.SynchronizationListener) error {
		return l.OnSubscriptionDowngraded(instanceIndex, symbol, updates, unsubscriptions)
	})
	return nil
}

// -----------------------------------------------------------------------------
// decode helpers: the transport layer already rehydrated ISO-8601 strings
// into time.Time wherever the key matched /time|Time/, so these only
// reshape generic maps into typed models.
// -----------------------------------------------------------------------------

func stringField(packet map[string]interface{}, key string) string {
	s, _ := packet[key].(string)
	return s
}

func stringSlice(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatField(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func floatPtr(v interface{}) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func timeField(m map[string]interface{}, key string) time.Time {
	t, _ := m[key].(time.Time)
	return t
}

func timePtrField(m map[string]interface{}, key string) *time.Time {
	t, ok := m[key].(time.Time)
	if !ok {
		return nil
	}
	return &t
}

// -----------------------------------------------------------------------------

func decodeAccountInformation(v interface{}) (*models.AccountInformation, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	platform, _ := m["platform"].(string)
	return &models.AccountInformation{
		Platform:    models.Platform(platform),
		Broker:      stringField(m, "broker"),
		Currency:    stringField(m, "currency"),
		Server:      stringField(m, "server"),
		Balance:     floatField(m, "balance"),
		Equity:      floatField(m, "equity"),
		Margin:      floatField(m, "margin"),
		FreeMargin:  floatField(m, "freeMargin"),
		Leverage:    floatField(m, "leverage"),
		MarginLevel: floatField(m, "marginLevel"),
	}, true
}

// -----------------------------------------------------------------------------

func decodePositions(v interface{}) []*models.Position {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*models.Position, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		p := &models.Position{
			ID:               stringField(m, "id"),
			Type:             models.PositionType(stringField(m, "type")),
			Symbol:           stringField(m, "symbol"),
			Volume:           floatField(m, "volume"),
			OpenPrice:        floatField(m, "openPrice"),
			CurrentPrice:     floatField(m, "currentPrice"),
			CurrentTickValue: floatField(m, "currentTickValue"),
			Swap:             floatField(m, "swap"),
			Commission:       floatField(m, "commission"),
			Profit:           floatField(m, "profit"),
			UnrealizedProfit: floatField(m, "unrealizedProfit"),
			RealizedProfit:   floatField(m, "realizedProfit"),
			Magic:            int64(floatField(m, "magic")),
			Time:             timeField(m, "time"),
			UpdateTime:       timeField(m, "updateTime"),
			Comment:          stringField(m, "comment"),
			BrokerComment:    stringField(m, "brokerComment"),
			ClientID:         stringField(m, "clientId"),
		}
		if sl, ok := m["stopLoss"].(float64); ok {
			p.StopLoss = &sl
		}
		if tp, ok := m["takeProfit"].(float64); ok {
			p.TakeProfit = &tp
		}
		out = append(out, p)
	}
	return out
}

// -----------------------------------------------------------------------------

func decodeOrders(v interface{}) []*models.Order {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*models.Order, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, &models.Order{
			ID:            stringField(m, "id"),
			Type:          models.OrderType(stringField(m, "type")),
			State:         stringField(m, "state"),
			Symbol:        stringField(m, "symbol"),
			OpenPrice:     floatField(m, "openPrice"),
			CurrentPrice:  floatField(m, "currentPrice"),
			Volume:        floatField(m, "volume"),
			CurrentVolume: floatField(m, "currentVolume"),
			PositionID:    stringField(m, "positionId"),
			Time:          timeField(m, "time"),
			DoneTime:      timePtrField(m, "doneTime"),
			Platform:      models.Platform(stringField(m, "platform")),
			Comment:       stringField(m, "comment"),
			BrokerComment: stringField(m, "brokerComment"),
			ClientID:      stringField(m, "clientId"),
		})
	}
	return out
}

// -----------------------------------------------------------------------------

func decodeSpecifications(v interface{}) []*models.SymbolSpecification {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*models.SymbolSpecification, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, &models.SymbolSpecification{
			Symbol:        stringField(m, "symbol"),
			Digits:        int(floatField(m, "digits")),
			TickSize:      floatField(m, "tickSize"),
			ExecutionMode: stringField(m, "executionMode"),
			FillingModes:  stringSlice(m["fillingModes"]),
			Description:   stringField(m, "description"),
		})
	}
	return out
}

// -----------------------------------------------------------------------------

func decodePrices(v interface{}) []*models.SymbolPrice {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]*models.SymbolPrice, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, &models.SymbolPrice{
			Symbol:          stringField(m, "symbol"),
			Bid:             floatField(m, "bid"),
			Ask:             floatField(m, "ask"),
			ProfitTickValue: floatField(m, "profitTickValue"),
			LossTickValue:   floatField(m, "lossTickValue"),
			Time:            timeField(m, "time"),
		})
	}
	return out
}
