// Package metrics exposes the engine's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors recorded by the cart and order lifecycle.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CartMutations           *prometheus.CounterVec
	StockClamps             *prometheus.CounterVec
	OrdersPlaced            *prometheus.CounterVec
	ReconciliationConflicts prometheus.Counter
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart mutations by operation.",
		}, []string{"op"}),
		StockClamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "stock_clamps_total",
			Help:      "Quantity requests reduced to the stock ceiling, by outcome.",
		}, []string{"outcome"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Order placement attempts by result.",
		}, []string{"result"}),
		ReconciliationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "orders",
			Name:      "reconciliation_conflicts_total",
			Help:      "Pushed status events rejected because the local order is terminal.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.CartMutations, m.StockClamps, m.OrdersPlaced, m.ReconciliationConflicts)
	}
	return m
}

func (m *Metrics) CartMutation(op string) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) StockClamp(outcome string) {
	if m == nil {
		return
	}
	m.StockClamps.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OrderPlaced(result string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(result).Inc()
}

func (m *Metrics) ReconciliationConflict() {
	if m == nil {
		return
	}
	m.ReconciliationConflicts.Inc()
}
