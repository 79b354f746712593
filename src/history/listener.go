package history

import (
	"context"
	"time"

	"mtclient/src/interfaces"
	"mtclient/src/logger"
	"mtclient/src/models"
)

// -----------------------------------------------------------------------------

// historyFetchTimeout bounds the round trip Sink makes to pull newly-synced
// orders/deals once the server reports a synchronization finished; the
// listener callback carries no context of its own, so this mirrors
// syncengine.Connection.retrySynchronize's own
// context.WithTimeout(context.Background(), ...) for work it runs off the
// request path.
const historyFetchTimeout = 30 * time.Second

// historyPageSize bounds one GetHistoryOrdersByTimeRange/GetDealsByTimeRange
// round trip; Sink keeps paging until a short page signals the range is
// exhausted.
const historyPageSize = 1000

// -----------------------------------------------------------------------------

// Sink adapts a HistoryStorage into a SynchronizationListener (§2:
// "HistoryStorage — interface only in core"), so the append-only history
// store can sit directly in a Connection's listener chain alongside
// TerminalState and ConnectionHealthMonitor. §4.3 has no per-item history
// event, only a "synchronized" signal per range; Sink reacts to that signal
// by pulling everything since its own last stored timestamp through the
// RpcConnection facade and persisting it.
type Sink struct {
	interfaces.BaseListener
	store interfaces.HistoryStorage
	rpc   interfaces.HistoryFetcher
	log   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSink(store interfaces.HistoryStorage, rpc interfaces.HistoryFetcher, log *logger.Logger) *Sink {
	return &Sink{store: store, rpc: rpc, log: log}
}

// -----------------------------------------------------------------------------

var _ interfaces.SynchronizationListener = (*Sink)(nil)

// -----------------------------------------------------------------------------

func (s *Sink) OnHistoryOrdersSynchronized(instanceIndex, synchronizationID string) error {
	since, err := s.store.LastHistoryOrderTime(instanceIndex)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyFetchTimeout)
	defer cancel()

	startTime := formatHistoryTime(since)
	endTime := time.Now().UTC().Format(time.RFC3339)

	offset := 0
	for {
		orders, err := s.rpc.GetHistoryOrdersByTimeRange(ctx, instanceIndex, startTime, endTime, offset, historyPageSize)
		if err != nil {
			s.log.Error("failed to fetch history orders for %s after sync %s: %v", instanceIndex, synchronizationID, err)
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		if err := s.store.SaveHistoryOrders(instanceIndex, orders); err != nil {
			return err
		}
		if len(orders) < historyPageSize {
			return nil
		}
		offset += historyPageSize
	}
}

func (s *Sink) OnDealsSynchronized(instanceIndex, synchronizationID string) error {
	since, err := s.store.LastDealTime(instanceIndex)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyFetchTimeout)
	defer cancel()

	startTime := formatHistoryTime(since)
	endTime := time.Now().UTC().Format(time.RFC3339)

	offset := 0
	for {
		deals, err := s.rpc.GetDealsByTimeRange(ctx, instanceIndex, startTime, endTime, offset, historyPageSize)
		if err != nil {
			s.log.Error("failed to fetch deals for %s after sync %s: %v", instanceIndex, synchronizationID, err)
			return err
		}
		if len(deals) == 0 {
			return nil
		}
		if err := s.store.SaveDeals(instanceIndex, deals); err != nil {
			return err
		}
		if len(deals) < historyPageSize {
			return nil
		}
		offset += historyPageSize
	}
}

// -----------------------------------------------------------------------------

func formatHistoryTime(t models.OptionalTime) string {
	if !t.Valid {
		return time.Time{}.UTC().Format(time.RFC3339)
	}
	return t.Time.UTC().Format(time.RFC3339)
}
