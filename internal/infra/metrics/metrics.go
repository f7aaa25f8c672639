// Package metrics registers the service's Prometheus collectors and serves
// them next to a health check.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casinobot_settlements_total",
		Help: "Settled wagers by game and result.",
	}, []string{"game", "result"})

	SettlementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casinobot_settlement_duration_seconds",
		Help:    "Time from debit to recorded outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"game"})

	StakeRefunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casinobot_stake_refunds_total",
		Help: "Compensating stake credits after a failed draw, by outcome of the refund.",
	}, []string{"status"})

	BroadcastFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casinobot_broadcast_failures_total",
		Help: "Failed publishes by event kind.",
	}, []string{"kind"})

	ReconcileCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casinobot_reconcile_cycles_total",
		Help: "Reconciler cycles by status.",
	}, []string{"status"})

	InvoiceCredits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casinobot_invoice_credits_total",
		Help: "Invoices credited, by the path that observed payment.",
	}, []string{"source"})

	GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casinobot_gateway_errors_total",
		Help: "Gateway call failures by operation.",
	}, []string{"op"})

	Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casinobot_withdrawals_total",
		Help: "Withdrawal attempts by result.",
	}, []string{"result"})

	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casinobot_session_transitions_total",
		Help: "Bet session state transitions.",
	}, []string{"from", "to"})
)
