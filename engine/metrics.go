// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine activity. All counters are registered against the
// registerer passed to NewMetrics.
type Metrics struct {
	OperationsCreated *prometheus.CounterVec
	StepsConfirmed    *prometheus.CounterVec
	StepsFailed       *prometheus.CounterVec
	BurnRetries       prometheus.Counter
	MintRetries       prometheus.Counter
	ReconcilerTicks   prometheus.Counter
	ReconcilerErrors  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "operations_created_total",
			Help:      "Operations created by the planner, by type.",
		}, []string{"type"}),
		StepsConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "steps_confirmed_total",
			Help:      "Steps reaching CONFIRMED, by step type.",
		}, []string{"type"}),
		StepsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "steps_failed_total",
			Help:      "Steps reaching FAILED, by step type.",
		}, []string{"type"}),
		BurnRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "burn_intent_retries_total",
			Help:      "Burn-intent submissions left pending for retry.",
		}),
		MintRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "mint_retries_total",
			Help:      "Mint attempts left pending for retry.",
		}),
		ReconcilerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "reconciler_ticks_total",
			Help:      "Completed reconciler ticks.",
		}),
		ReconcilerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "reconciler_errors_total",
			Help:      "Reconciler ticks that hit a store or decode error.",
		}),
	}
	reg.MustRegister(
		m.OperationsCreated,
		m.StepsConfirmed,
		m.StepsFailed,
		m.BurnRetries,
		m.MintRetries,
		m.ReconcilerTicks,
		m.ReconcilerErrors,
	)
	return m
}
