package interfaces

import "mtclient/src/models"

// -----------------------------------------------------------------------------
// SynchronizationListener receives every state-mutating event the dispatcher
// delivers for one instance index (§4.3). Dispatch is single-threaded and
// sequential: the engine awaits each method's return before advancing, so a
// listener that blocks stalls its own instance's event stream.
//
// A failing callback (non-nil error) is logged by the dispatcher and does
// not stop delivery of subsequent events - it is the listener's own state
// that may be left inconsistent, not the engine's.
// -----------------------------------------------------------------------------

type SynchronizationListener interface {
	OnConnected(instanceIndex string, replicas int) error
	OnDisconnected(instanceIndex string) error
	OnBrokerConnectionStatusChanged(instanceIndex string, connected bool) error

	OnSynchronizationStarted(instanceIndex string, specificationsUpdated, positionsUpdated, ordersUpdated bool) error

	OnAccountInformationUpdated(instanceIndex string, info *models.AccountInformation) error

	OnPositionsReplaced(instanceIndex string, positions []*models.Position) error
	OnPositionUpdated(instanceIndex string, position *models.Position) error
	OnPositionRemoved(instanceIndex string, positionID string) error
	OnPositionsSynchronized(instanceIndex string, synchronizationID string) error

	OnPendingOrdersReplaced(instanceIndex string, orders []*models.Order) error
	OnPendingOrderUpdated(instanceIndex string, order *models.Order) error
	OnPendingOrderCompleted(instanceIndex string, orderID string) error
	OnPendingOrdersSynchronized(instanceIndex string, synchronizationID string) error

	OnHistoryOrdersSynchronized(instanceIndex string, synchronizationID string) error
	OnDealsSynchronized(instanceIndex string, synchronizationID string) error

	OnSymbolSpecificationsUpdated(instanceIndex string, updates []*models.SymbolSpecification, removed []string) error
	OnSymbolPricesUpdated(instanceIndex string, prices []*models.SymbolPrice, equity, margin, freeMargin, marginLevel *float64) error

	OnHealthStatus(instanceIndex string, status map[string]interface{}) error
	OnSubscriptionDowngraded(instanceIndex string, symbol string, updates, unsubscriptions []string) error
	OnStreamClosed(instanceIndex string) error
}

// -----------------------------------------------------------------------------
// BaseListener implements SynchronizationListener with no-op methods. Real
// listeners embed it and override only the callbacks they care about - the
// same "default-then-override" shape the teacher used for its hub
// broadcast handlers, generalized from one fixed set of events to the
// full §4.3 surface.
// -----------------------------------------------------------------------------

type BaseListener struct{}

func (BaseListener) OnConnected(string, int) error                                  { return nil }
func (BaseListener) OnDisconnected(string) error                                    { return nil }
func (BaseListener) OnBrokerConnectionStatusChanged(string, bool) error             { return nil }
func (BaseListener) OnSynchronizationStarted(string, bool, bool, bool) error        { return nil }
func (BaseListener) OnAccountInformationUpdated(string, *models.AccountInformation) error {
	return nil
}
func (BaseListener) OnPositionsReplaced(string, []*models.Position) error { return nil }
func (BaseListener) OnPositionUpdated(string, *models.Position) error    { return nil }
func (BaseListener) OnPositionRemoved(string, string) error              { return nil }
func (BaseListener) OnPositionsSynchronized(string, string) error        { return nil }
func (BaseListener) OnPendingOrdersReplaced(string, []*models.Order) error { return nil }
func (BaseListener) OnPendingOrderUpdated(string, *models.Order) error    { return nil }
func (BaseListener) OnPendingOrderCompleted(string, string) error        { return nil }
func (BaseListener) OnPendingOrdersSynchronized(string, string) error    { return nil }
func (BaseListener) OnHistoryOrdersSynchronized(string, string) error { return nil }
func (BaseListener) OnDealsSynchronized(string, string) error         { return nil }
func (BaseListener) OnSymbolSpecificationsUpdated(string, []*models.SymbolSpecification, []string) error {
	return nil
}
func (BaseListener) OnSymbolPricesUpdated(string, []*models.SymbolPrice, *float64, *float64, *float64, *float64) error {
	return nil
}
func (BaseListener) OnHealthStatus(string, map[string]interface{}) error      { return nil }
func (BaseListener) OnSubscriptionDowngraded(string, string, []string, []string) error {
	return nil
}
func (BaseListener) OnStreamClosed(string) error { return nil }
