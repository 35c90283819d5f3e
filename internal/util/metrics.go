package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of successful cart mutations",
	}, []string{"op"})

	CartMutationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_failed_total",
		Help: "Total number of failed cart mutations",
	}, []string{"op", "reason"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrderPlacementFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_placement_failed_total",
		Help: "Total number of rejected order placements",
	}, []string{"reason"})

	PaymentsSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_settled_total",
		Help: "Total number of settled payments",
	}, []string{"method"})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of failed or rejected payments",
	}, []string{"reason"})

	OversoldClampTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_oversold_clamp_total",
		Help: "Stock decrements floored at zero during settlement",
	})

	SettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_settlement_latency_seconds",
		Help:    "Latency of the payment settlement transaction",
		Buckets: prometheus.DefBuckets,
	})

	ReceiptsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "receipts_dispatched_total",
		Help: "Purchase receipts dispatched by the worker",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
