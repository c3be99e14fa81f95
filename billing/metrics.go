/*
metrics.go - Prometheus instrumentation for ledger operations

PURPOSE:
  Counters for every state-changing operation the service performs.
  Exposed through promhttp on /metrics (see api/server.go).
*/
package billing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the operation counters. Pass a nil Registerer to get
// working but unregistered counters (tests).
type Metrics struct {
	PaymentsApproved prometheus.Counter
	PaymentsRejected prometheus.Counter
	PaymentsReversed prometheus.Counter
	DuesSettled      prometheus.Counter
	AdvancesCreated  prometheus.Counter
	Reconciliations  prometheus.Counter
	DebtsGenerated   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PaymentsApproved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing", Name: "payments_approved_total",
			Help: "Payments transitioned to approved.",
		}),
		PaymentsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing", Name: "payments_rejected_total",
			Help: "Payments transitioned to rejected.",
		}),
		PaymentsReversed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing", Name: "payments_reversed_total",
			Help: "Approved payments reversed and deleted.",
		}),
		DuesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing", Name: "dues_settled_total",
			Help: "Debts settled in full by liquidation.",
		}),
		AdvancesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing", Name: "advances_created_total",
			Help: "Synthetic prepaid debts created for future periods.",
		}),
		Reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing", Name: "reconciliations_total",
			Help: "Per-owner reconciliation runs that consumed credit.",
		}),
		DebtsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing", Name: "debts_generated_total",
			Help: "Debt records created by the generators.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PaymentsApproved, m.PaymentsRejected, m.PaymentsReversed,
			m.DuesSettled, m.AdvancesCreated, m.Reconciliations, m.DebtsGenerated,
		)
	}
	return m
}
