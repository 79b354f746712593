// Package health implements ConnectionHealthMonitor (§4.7): a listener
// that aggregates connection/broker/sync/quote-streaming signals into one
// healthy boolean and samples it into rolling uptime percentages, exporting
// both as Prometheus gauges. Grounded on the teacher's rolling-window
// accumulation in src/models/intermediate_stats.go (fixed-size sample
// windows per symbol), generalized from price statistics to a single
// boolean health signal, and on Khanh-21522203-PerpLedger's
// internal/observability/metrics.go for the promauto gauge/vec wiring.
package health

import (
	"strconv"
	"sync"
	"time"

	"mtclient/src/interfaces"
	"mtclient/src/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// -----------------------------------------------------------------------------

type window struct {
	duration time.Duration
	samples  []sample
}

type sample struct {
	at      time.Time
	healthy bool
}

// -----------------------------------------------------------------------------

// metrics holds the Prometheus instruments a Monitor publishes. Each
// Monitor owns its own registry rather than registering against the
// global default, so that more than one Monitor (one per account, or one
// per test) can coexist without an "AlreadyRegisteredError" collision.
type metrics struct {
	registry *prometheus.Registry
	healthy  prometheus.Gauge
	uptime   *prometheus.GaugeVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		healthy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mtclient_connection_healthy",
			Help: "1 if every tracked instance is connected, connected to its broker, synchronized, and streaming fresh quotes; 0 otherwise.",
		}),
		uptime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mtclient_connection_uptime_percentage",
			Help: "Rolling percentage of healthy samples within the configured window.",
		}, []string{"window_minutes"}),
	}
}

// -----------------------------------------------------------------------------

// Monitor implements SynchronizationListener by tracking health flags per
// instance and sampling their aggregate, at the interval given to Start,
// into rolling uptime windows, published as Prometheus gauges via Registry.
type Monitor struct {
	mu sync.Mutex

	quoteStaleness time.Duration

	connected         map[string]bool
	connectedToBroker map[string]bool
	synchronized      map[string]bool
	lastPriceAt       map[string]time.Time

	windows []window

	stopCh chan struct{}

	metrics *metrics
}

// -----------------------------------------------------------------------------

var _ interfaces.SynchronizationListener = (*Monitor)(nil)

// -----------------------------------------------------------------------------

// NewMonitor builds a Monitor that retains rolling uptime percentages for
// each configured window duration; sampling begins once Start is called.
func NewMonitor(cfg *models.MHealthConfig) *Monitor {
	m := &Monitor{
		quoteStaleness:    time.Duration(cfg.QuoteStalenessSeconds) * time.Second,
		connected:         make(map[string]bool),
		connectedToBroker: make(map[string]bool),
		synchronized:      make(map[string]bool),
		lastPriceAt:       make(map[string]time.Time),
		metrics:           newMetrics(),
	}
	for _, minutes := range cfg.UptimeWindowsMinutes {
		m.windows = append(m.windows, window{duration: time.Duration(minutes) * time.Minute})
		m.metrics.uptime.WithLabelValues(strconv.Itoa(minutes)).Set(100)
	}
	return m
}

// -----------------------------------------------------------------------------

// Registry exposes the Monitor's private Prometheus registry so a caller
// can serve it (e.g. promhttp.HandlerFor) alongside any process-wide
// registry.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.metrics.registry
}

// -----------------------------------------------------------------------------

// Start launches the background sampling loop; Stop ends it. Both are
// no-ops if already in the requested state.
func (m *Monitor) Start(sampleInterval time.Duration) {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	stop := m.stopCh
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-stop:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
}

// -----------------------------------------------------------------------------

func (m *Monitor) sample() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	h := m.healthyLocked()
	if h {
		m.metrics.healthy.Set(1)
	} else {
		m.metrics.healthy.Set(0)
	}
	for i := range m.windows {
		w := &m.windows[i]
		w.samples = append(w.samples, sample{at: now, healthy: h})
		cutoff := now.Add(-w.duration)
		kept := w.samples[:0]
		for _, s := range w.samples {
			if s.at.After(cutoff) {
				kept = append(kept, s)
			}
		}
		w.samples = kept
		m.metrics.uptime.WithLabelValues(strconv.Itoa(int(w.duration.Minutes()))).Set(m.uptimePercentageLocked(w))
	}
}

// -----------------------------------------------------------------------------

func (m *Monitor) uptimePercentageLocked(w *window) float64 {
	if len(w.samples) == 0 {
		return 100
	}
	healthy := 0
	for _, s := range w.samples {
		if s.healthy {
			healthy++
		}
	}
	return 100 * float64(healthy) / float64(len(w.samples))
}

// -----------------------------------------------------------------------------

// Healthy reports AND(connected, connectedToBroker, synchronized,
// quoteStreamingHealthy) across every instance currently tracked.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthyLocked()
}

func (m *Monitor) healthyLocked() bool {
	if len(m.connected) == 0 {
		return false
	}
	now := time.Now()
	for instance := range m.connected {
		if !m.connected[instance] || !m.connectedToBroker[instance] || !m.synchronized[instance] {
			return false
		}
		last, ok := m.lastPriceAt[instance]
		if !ok || now.Sub(last) > m.quoteStaleness {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// UptimePercentage returns the percentage (0-100) of samples within
// windowMinutes that were healthy, or -1 if that window is not configured.
func (m *Monitor) UptimePercentage(windowMinutes int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := time.Duration(windowMinutes) * time.Minute
	for i := range m.windows {
		if m.windows[i].duration != target {
			continue
		}
		return m.uptimePercentageLocked(&m.windows[i])
	}
	return -1
}

// -----------------------------------------------------------------------------

func (m *Monitor) OnConnected(instanceIndex string, replicas int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected[instanceIndex] = true
	return nil
}

func (m *Monitor) OnDisconnected(instanceIndex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected[instanceIndex] = false
	m.synchronized[instanceIndex] = false
	return nil
}

func (m *Monitor) OnBrokerConnectionStatusChanged(instanceIndex string, connected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectedToBroker[instanceIndex] = connected
	return nil
}

func (m *Monitor) OnSynchronizationStarted(instanceIndex string, specificationsUpdated, positionsUpdated, ordersUpdated bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synchronized[instanceIndex] = false
	return nil
}

func (m *Monitor) OnPendingOrdersSynchronized(instanceIndex string, synchronizationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synchronized[instanceIndex] = true
	return nil
}

func (m *Monitor) OnSymbolPricesUpdated(instanceIndex string, prices []*models.SymbolPrice, equity, margin, freeMargin, marginLevel *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(prices) > 0 {
		m.lastPriceAt[instanceIndex] = time.Now()
	}
	return nil
}

func (m *Monitor) OnStreamClosed(instanceIndex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connected, instanceIndex)
	delete(m.connectedToBroker, instanceIndex)
	delete(m.synchronized, instanceIndex)
	delete(m.lastPriceAt, instanceIndex)
	return nil
}

// -----------------------------------------------------------------------------
// Remaining SynchronizationListener methods are no-ops for health purposes.

func (m *Monitor) OnAccountInformationUpdated(string, *models.AccountInformation) error { return nil }
func (m *Monitor) OnPositionsReplaced(string, []*models.Position) error                 { return nil }
func (m *Monitor) OnPositionUpdated(string, *models.Position) error                     { return nil }
func (m *Monitor) OnPositionRemoved(string, string) error                               { return nil }
func (m *Monitor) OnPositionsSynchronized(string, string) error                         { return nil }
func (m *Monitor) OnPendingOrdersReplaced(string, []*models.Order) error                { return nil }
func (m *Monitor) OnPendingOrderUpdated(string, *models.Order) error                    { return nil }
func (m *Monitor) OnPendingOrderCompleted(string, string) error                         { return nil }
func (m *Monitor) OnHistoryOrdersSynchronized(string, string) error { return nil }
func (m *Monitor) OnDealsSynchronized(string, string) error         { return nil }
func (m *Monitor) OnSymbolSpecificationsUpdated(string, []*models.SymbolSpecification, []string) error {
	return nil
}
func (m *Monitor) OnHealthStatus(string, map[string]interface{}) error { return nil }
func (m *Monitor) OnSubscriptionDowngraded(string, string, []string, []string) error {
	return nil
}
