// Package metrics registers the Prometheus collectors for the RPC bridge and
// the service-order workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_calls_total",
			Help: "Total RPC bridge calls by target exchange and outcome",
		},
		[]string{"exchange", "outcome"},
	)

	RPCCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "rpc_call_duration_seconds",
			Help: "Duration of RPC bridge calls from publish to settlement",
		},
		[]string{"exchange"},
	)

	RPCDroppedReplies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rpc_dropped_replies_total",
			Help: "Reply messages with no matching pending correlation id",
		},
	)

	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "service_orders_created_total",
			Help: "Service orders created",
		},
	)

	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_order_transitions_total",
			Help: "Service order status transitions by target status and outcome",
		},
		[]string{"target", "outcome"},
	)
)
