// Package syncengine implements the orchestration layer of §4.5/§4.6:
// StreamingConnection drives subscribe/synchronize/resubscribe lifecycle
// and replica arbitration across an account's instances; RpcConnection is
// a thin request-only facade on the same transport. Grounded on the
// teacher's websocket hub (src/server/hub.go, now removed — its
// broadcast-to-registered-clients loop becomes "dispatch one decoded
// packet to every registered SynchronizationListener").
package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mtclient/src/errs"
	"mtclient/src/interfaces"
	"mtclient/src/logger"
	"mtclient/src/models"
	"mtclient/src/transport"
)

// -----------------------------------------------------------------------------

// State is one instance's position in the lifecycle of §4.5.
type State int

const (
	StateCreated State = iota
	StateSubscribed
	StateSynchronizing
	StateSynchronized
	StateDisconnected
	StateClosed
)

// -----------------------------------------------------------------------------

const (
	initialRetryInterval = time.Second
	maxRetryInterval     = 300 * time.Second
)

// -----------------------------------------------------------------------------

type instanceTracking struct {
	state             State
	shouldSynchronize int64
	subscriptions     map[string][]string // symbol -> subscription spec names
}

// -----------------------------------------------------------------------------

// Connection orchestrates one account's replicas over a shared
// transport.Client. It is itself installed as the transport's event
// handler and fans every decoded packet out to the registered listeners.
type Connection struct {
	transport *transport.Client
	listeners []interfaces.SynchronizationListener
	log       *logger.Logger

	mu          sync.Mutex
	connected   bool
	instances   map[string]*instanceTracking
	syncCounter int64
}

// -----------------------------------------------------------------------------

// NewConnection wires eventType handlers onto transportClient and returns a
// Connection ready for Connect. listeners are fanned out in order for
// every decoded event (SynchronizationListener, §4.3).
func NewConnection(transportClient *transport.Client, log *logger.Logger, listeners ...interfaces.SynchronizationListener) *Connection {
	c := &Connection{
		transport: transportClient,
		listeners: listeners,
		log:       log,
		instances: make(map[string]*instanceTracking),
	}
	c.installHandlers()
	return c
}

// -----------------------------------------------------------------------------

// AddListener registers an additional SynchronizationListener. Safe to call
// before or after Connect.
func (c *Connection) AddListener(l interfaces.SynchronizationListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// -----------------------------------------------------------------------------

// Connect is idempotent: the first call dials the transport; subsequent
// calls while already connected are no-ops (§4.5).
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connection) tracking(instanceIndex string) *instanceTracking {
	t, ok := c.instances[instanceIndex]
	if !ok {
		t = &instanceTracking{state: StateCreated, subscriptions: make(map[string][]string)}
		c.instances[instanceIndex] = t
	}
	return t
}

// -----------------------------------------------------------------------------

// State returns instanceIndex's current lifecycle state.
func (c *Connection) State(instanceIndex string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking(instanceIndex).state
}

// -----------------------------------------------------------------------------

// Subscribe emits a "subscribe" event so routing adds this client to the
// account's replica set (§4.5).
func (c *Connection) Subscribe(ctx context.Context, instanceIndex string) error {
	_, err := c.transport.Request(ctx, map[string]interface{}{
		"type":          "subscribe",
		"instanceIndex": instanceIndex,
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.tracking(instanceIndex).state = StateSubscribed
	c.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------

// Hashes carries the three content digests a synchronize request attaches
// (§4.4, §6); it mirrors termstate.Hashes without importing that package,
// keeping syncengine decoupled from the mirror's internals.
type Hashes struct {
	Specifications string
	Positions      string
	Orders         string
}

// -----------------------------------------------------------------------------

// Synchronize sends a synchronization request carrying hashes for
// instanceIndex. A successful ack resets the instance's retry back-off to
// 1s (§4.5); full completion is signalled later by
// onPendingOrdersSynchronized via the listener chain, not by this call.
// On failure it schedules a retrying background attempt with exponential
// back-off capped at 300s, cancelled if a newer shouldSynchronize key
// supersedes this one (replica arbitration, §4.5).
func (c *Connection) Synchronize(ctx context.Context, instanceIndex, accountType string, hashes Hashes) error {
	c.mu.Lock()
	c.syncCounter++
	key := c.syncCounter
	t := c.tracking(instanceIndex)
	t.shouldSynchronize = key
	t.state = StateSynchronizing
	c.mu.Unlock()

	err := c.attemptSynchronize(ctx, instanceIndex, accountType, hashes)
	if err == nil {
		return nil
	}

	go c.retrySynchronize(instanceIndex, accountType, hashes, key, initialRetryInterval)
	return err
}

// -----------------------------------------------------------------------------

func (c *Connection) attemptSynchronize(ctx context.Context, instanceIndex, accountType string, hashes Hashes) error {
	_, err := c.transport.Request(ctx, map[string]interface{}{
		"type":              "synchronize",
		"instanceIndex":     instanceIndex,
		"specificationsMd5": hashes.Specifications,
		"positionsMd5":      hashes.Positions,
		"ordersMd5":         hashes.Orders,
	})
	return err
}

// -----------------------------------------------------------------------------

func (c *Connection) retrySynchronize(instanceIndex, accountType string, hashes Hashes, key int64, interval time.Duration) {
	time.Sleep(interval)

	c.mu.Lock()
	stillOwned := c.tracking(instanceIndex).shouldSynchronize == key
	c.mu.Unlock()
	if !stillOwned {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := c.attemptSynchronize(ctx, instanceIndex, accountType, hashes)
	cancel()
	if err == nil {
		return
	}

	next := interval * 2
	if next > maxRetryInterval {
		next = maxRetryInterval
	}
	go c.retrySynchronize(instanceIndex, accountType, hashes, key, next)
}

// -----------------------------------------------------------------------------

// IsSynchronized reports whether instanceIndex has reached StateSynchronized.
func (c *Connection) IsSynchronized(instanceIndex string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking(instanceIndex).state == StateSynchronized
}

// -----------------------------------------------------------------------------

// WaitSynchronizedOptions configures WaitSynchronized (§4.5's
// waitSynchronized). InstanceIndex empty means "any instance".
type WaitSynchronizedOptions struct {
	InstanceIndex         string
	TimeoutInSeconds      int
	IntervalInMilliseconds int
}

// -----------------------------------------------------------------------------

// WaitSynchronized polls IsSynchronized until it succeeds or the timeout
// elapses, defaulting to 300s/1000ms per §4.5/§5.
func (c *Connection) WaitSynchronized(ctx context.Context, opts WaitSynchronizedOptions) error {
	timeout := time.Duration(opts.TimeoutInSeconds) * time.Second
	if opts.TimeoutInSeconds == 0 {
		timeout = 300 * time.Second
	}
	interval := time.Duration(opts.IntervalInMilliseconds) * time.Millisecond
	if opts.IntervalInMilliseconds == 0 {
		interval = time.Second
	}

	synced := func() bool {
		if opts.InstanceIndex != "" {
			return c.IsSynchronized(opts.InstanceIndex)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, t := range c.instances {
			if t.state == StateSynchronized {
				return true
			}
		}
		return false
	}

	deadline := time.Now().Add(timeout)
	for {
		if synced() {
			return nil
		}
		if time.Now().After(deadline) {
			return &errs.TimeoutError{Message: fmt.Sprintf("timed out waiting for instance %q to synchronize", opts.InstanceIndex)}
		}
		select {
		case <-ctx.Done():
			return &errs.TimeoutError{Message: "wait cancelled"}
		case <-time.After(interval):
		}
	}
}

// -----------------------------------------------------------------------------

// SubscribeToMarketData records the subscription locally, issues the
// request, then awaits the first matching price with bounded timeout
// (§4.5). priceWaiter is supplied by the caller (termstate.Manager) to
// avoid a direct package dependency in the other direction.
func (c *Connection) SubscribeToMarketData(ctx context.Context, symbol string, subscriptions []string, instanceIndex string, timeoutInSeconds int, priceWaiter func(instanceIndex, symbol string, timeout time.Duration) *models.SymbolPrice) (*models.SymbolPrice, error) {
	c.mu.Lock()
	t := c.tracking(instanceIndex)
	t.subscriptions[symbol] = subscriptions
	c.mu.Unlock()

	if _, err := c.transport.Request(ctx, map[string]interface{}{
		"type":           "subscribeToMarketData",
		"instanceIndex":  instanceIndex,
		"symbol":         symbol,
		"subscriptions":  subscriptions,
	}); err != nil {
		return nil, err
	}

	timeout := time.Duration(timeoutInSeconds) * time.Second
	if timeoutInSeconds == 0 {
		timeout = 30 * time.Second
	}
	if priceWaiter == nil {
		return nil, nil
	}
	return priceWaiter(instanceIndex, symbol, timeout), nil
}

// -----------------------------------------------------------------------------

// UnsubscribeFromMarketData drops the local record and notifies the server.
func (c *Connection) UnsubscribeFromMarketData(ctx context.Context, symbol, instanceIndex string) error {
	c.mu.Lock()
	delete(c.tracking(instanceIndex).subscriptions, symbol)
	c.mu.Unlock()

	_, err := c.transport.Request(ctx, map[string]interface{}{
		"type":          "unsubscribeFromMarketData",
		"instanceIndex": instanceIndex,
		"symbol":        symbol,
	})
	return err
}

// -----------------------------------------------------------------------------

// RemoveHistory and RemoveApplication are server commands with no local
// state side effects (§4.5).
func (c *Connection) RemoveHistory(ctx context.Context, instanceIndex string) error {
	_, err := c.transport.Request(ctx, map[string]interface{}{"type": "removeHistory", "instanceIndex": instanceIndex})
	return err
}

func (c *Connection) RemoveApplication(ctx context.Context, instanceIndex string) error {
	_, err := c.transport.Request(ctx, map[string]interface{}{"type": "removeApplication", "instanceIndex": instanceIndex})
	return err
}

// -----------------------------------------------------------------------------

// Close cancels the connection: rejects all outstanding requests and stops
// the reconnect loop (§5).
func (c *Connection) Close() error {
	c.mu.Lock()
	c.connected = false
	for _, t := range c.instances {
		t.state = StateClosed
	}
	c.mu.Unlock()
	return c.transport.Close()
}
