package inproc

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMetricsNamespace prefixes every metric name.
const DefaultMetricsNamespace = "inproc"

// metrics holds the Prometheus collectors for one Router. A nil *metrics is
// valid and records nothing.
type metrics struct {
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	connections      prometheus.Gauge
	deliveries       prometheus.Counter
	dropped          prometheus.Counter
}

// WithMetrics registers the router's collectors with reg under namespace
// (DefaultMetricsNamespace when empty):
//
//   - <ns>_dispatch_total{method,status}
//   - <ns>_dispatch_duration_seconds{method}
//   - <ns>_connections_active
//   - <ns>_broadcast_deliveries_total
//   - <ns>_broadcast_dropped_total
func WithMetrics(reg prometheus.Registerer, namespace string) RouterOption {
	return func(r *Router) {
		r.metrics = newMetrics(reg, namespace)
	}
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	factory := promauto.With(reg)

	return &metrics{
		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of dispatched requests",
		}, []string{"method", "status"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time from dispatch to handler return in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open streaming connections",
		}),

		deliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Total frames delivered by broadcasts",
		}),

		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Total broadcast frames dropped for slow connections",
		}),
	}
}

func (m *metrics) dispatched(method string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.dispatchDuration.WithLabelValues(method).Observe(took.Seconds())
}

func (m *metrics) connectionsActive(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *metrics) broadcast(delivered, dropped int) {
	if m == nil {
		return
	}
	m.deliveries.Add(float64(delivered))
	m.dropped.Add(float64(dropped))
}
