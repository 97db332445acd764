// Package metrics exposes engine counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersPlaced    prometheus.Counter
	OrdersCanceled  prometheus.Counter
	OrdersRejected  prometheus.Counter
	FillsExecuted   prometheus.Counter
	ItayoseRuns     prometheus.Counter
	WALAppends      prometheus.Counter
	OutboxPending   prometheus.Gauge
	BookDepth       *prometheus.GaugeVec
	MatchingSeconds prometheus.Histogram
}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders accepted by the matching engine",
		}),
		OrdersCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_canceled_total",
			Help:      "Orders removed by their maker",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Orders rejected by validation or lifecycle gating",
		}),
		FillsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_executed_total",
			Help:      "Individual maker fills produced by matching",
		}),
		ItayoseRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "itayose_runs_total",
			Help:      "Opening auctions executed",
		}),
		WALAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wal_appends_total",
			Help:      "Records appended to the write-ahead log",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending",
			Help:      "Fill events waiting for broker acknowledgement",
		}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orderbook_depth",
			Help:      "Resting order count per book and side",
		}, []string{"book", "side"}),
		MatchingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matching_duration_seconds",
			Help:      "Wall time spent inside a single matching call",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}

	registry.MustRegister(
		m.OrdersPlaced,
		m.OrdersCanceled,
		m.OrdersRejected,
		m.FillsExecuted,
		m.ItayoseRuns,
		m.WALAppends,
		m.OutboxPending,
		m.BookDepth,
		m.MatchingSeconds,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
