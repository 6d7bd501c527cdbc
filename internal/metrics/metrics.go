// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RequestDuration   *prometheus.HistogramVec
	OrdersCreated     prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	NumberConflicts   prometheus.Counter
	ItemsReceived     prometheus.Counter
}

// New 注册全部指标；reg 为 nil 时使用默认注册表
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amg",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amg",
			Name:      "supplier_orders_created_total",
			Help:      "Supplier orders created.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amg",
			Name:      "supplier_order_transitions_total",
			Help:      "Supplier order status transitions.",
		}, []string{"from", "to"}),
		NumberConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amg",
			Name:      "supplier_order_number_conflicts_total",
			Help:      "Order number unique-key conflicts that triggered a re-allocation.",
		}),
		ItemsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amg",
			Name:      "supplier_order_item_receptions_total",
			Help:      "Order item reception updates.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.OrdersCreated, m.StatusTransitions, m.NumberConflicts, m.ItemsReceived)
	return m
}

// 以下方法允许 nil 接收者，未启用指标时直接跳过

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.OrdersCreated.Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) NumberConflict() {
	if m == nil {
		return
	}
	m.NumberConflicts.Inc()
}

func (m *Metrics) Received(lines int) {
	if m == nil {
		return
	}
	m.ItemsReceived.Add(float64(lines))
}
