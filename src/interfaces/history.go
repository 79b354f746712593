package interfaces

import (
	"context"

	"mtclient/src/models"
)

// -----------------------------------------------------------------------------
// HistoryStorage is the append-only deal/order history sink of §2. The core
// package only depends on this interface; src/history provides the SQLite
// and Postgres implementations.
// -----------------------------------------------------------------------------

type HistoryStorage interface {
	Initialize() error

	SaveHistoryOrders(instanceIndex string, orders []*models.HistoryOrder) error
	SaveDeals(instanceIndex string, deals []*models.Deal) error

	LastHistoryOrderTime(instanceIndex string) (models.OptionalTime, error)
	LastDealTime(instanceIndex string) (models.OptionalTime, error)

	Close() error
}

// -----------------------------------------------------------------------------
// HistoryFetcher is the subset of RpcConnection a HistoryStorage sink needs
// to pull the orders/deals that just finished synchronizing, once it has
// decided a lower bound from LastHistoryOrderTime/LastDealTime.
// -----------------------------------------------------------------------------

type HistoryFetcher interface {
	GetHistoryOrdersByTimeRange(ctx context.Context, instanceIndex, startTime, endTime string, offset, limit int) ([]*models.HistoryOrder, error)
	GetDealsByTimeRange(ctx context.Context, instanceIndex, startTime, endTime string, offset, limit int) ([]*models.Deal, error)
}
