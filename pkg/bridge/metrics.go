package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the bridge's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	BatchesDispatched  prometheus.Counter
	MessagesDispatched prometheus.Counter
	DeliveryFailures   prometheus.Counter
	FlushFailures      prometheus.Counter
	OutstandingHandles prometheus.Gauge
	FlushDuration      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubsubbridge",
			Name:      "batches_dispatched_total",
			Help:      "Batches handed to the Pub/Sub transport.",
		}),
		MessagesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubsubbridge",
			Name:      "messages_dispatched_total",
			Help:      "Messages handed to the Pub/Sub transport.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubsubbridge",
			Name:      "delivery_failures_total",
			Help:      "Batches whose publish resolved with an error.",
		}),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubsubbridge",
			Name:      "flush_failures_total",
			Help:      "Flush calls that returned a delivery error.",
		}),
		OutstandingHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pubsubbridge",
			Name:      "outstanding_handles",
			Help:      "Dispatched batches not yet covered by a flush.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pubsubbridge",
			Name:      "flush_duration_seconds",
			Help:      "Time spent waiting for a flush window to resolve.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.BatchesDispatched,
			m.MessagesDispatched,
			m.DeliveryFailures,
			m.FlushFailures,
			m.OutstandingHandles,
			m.FlushDuration,
		)
	}
	return m
}

func (m *Metrics) batchDispatched(size int) {
	if m == nil {
		return
	}
	m.BatchesDispatched.Inc()
	m.MessagesDispatched.Add(float64(size))
}

func (m *Metrics) deliveryFailed() {
	if m == nil {
		return
	}
	m.DeliveryFailures.Inc()
}

func (m *Metrics) addOutstanding(delta int) {
	if m == nil {
		return
	}
	m.OutstandingHandles.Add(float64(delta))
}

func (m *Metrics) observeFlush(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.FlushDuration.Observe(d.Seconds())
	if failed {
		m.FlushFailures.Inc()
	}
}
