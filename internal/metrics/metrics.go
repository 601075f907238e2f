// Package metrics provides Prometheus metrics for the keepsake store and its transports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpungsan/keepsake/internal/errors"
	"github.com/hpungsan/keepsake/internal/store"
)

// ResultOK is the result label of a successful operation.
const ResultOK = "ok"

// Metrics holds the Prometheus collectors for one store.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec   // keepsake_operations_total{op,result}
	OperationDuration *prometheus.HistogramVec // keepsake_operation_duration_seconds{op}
}

// New registers the operation collectors and the store gauges on registry.
// Gauges are evaluated at scrape time under shared locks.
// Register each registry once; a second New on the same registry panics.
func New(registry prometheus.Registerer, st *store.Store) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	m := &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keepsake_operations_total",
			Help: "Total operations by name and result code",
		}, []string{"op", "result"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keepsake_operation_duration_seconds",
			Help:    "Operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	collections := []struct {
		name  string
		scope store.Scope
		count func(*store.ReadTx) int
	}{
		{"contributors", store.ScopeContributors, func(tx *store.ReadTx) int { return tx.Contributors().Len() }},
		{"capsules", store.ScopeCapsules, func(tx *store.ReadTx) int { return tx.Capsules().Len() }},
		{"items", store.ScopeItems, func(tx *store.ReadTx) int { return tx.Items().Len() }},
		{"merges", store.ScopeMerges, func(tx *store.ReadTx) int { return tx.MergeLen() }},
	}
	for _, c := range collections {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "keepsake_entities",
			Help:        "Live records per collection",
			ConstLabels: prometheus.Labels{"collection": c.name},
		}, count(st, c.scope, c.count))
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "keepsake_ledger_entries",
		Help: "Fingerprints remembered by the idempotency ledger",
	}, count(st, store.ScopeLedger, func(tx *store.ReadTx) int { return tx.LedgerLen() }))

	return m
}

func count(st *store.Store, scope store.Scope, fn func(*store.ReadTx) int) func() float64 {
	return func() float64 {
		var n int
		_ = st.View(scope, func(tx *store.ReadTx) error {
			n = fn(tx)
			return nil
		})
		return float64(n)
	}
}

// Observe records one operation outcome. The result label is the error code,
// or "ok" when err is nil. A nil receiver is a no-op.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = string(errors.CodeOf(err))
	}
	m.OperationsTotal.WithLabelValues(op, result).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
