package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lifecycle metrics
	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evcharge_reservations_total",
		Help: "Reservation lifecycle events by outcome",
	}, []string{"event", "outcome"})

	ActiveChargingSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evcharge_active_charging_sessions",
		Help: "Sessions currently in the charging state",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evcharge_sessions_total",
		Help: "Charging session lifecycle events",
	}, []string{"event"})

	EnergyDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evcharge_energy_delivered_kwh_total",
		Help: "Total energy delivered by completed sessions in kWh",
	})

	// Reconciliation metrics
	ReconciliationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evcharge_reconciliation_runs_total",
		Help: "Reconciliation job ticks",
	}, []string{"job"})

	ReconciliationItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evcharge_reconciliation_items_total",
		Help: "Items handled by reconciliation jobs by result",
	}, []string{"job", "result"})

	ReconciliationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evcharge_reconciliation_duration_seconds",
		Help:    "Wall time of one reconciliation tick",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	// Collaborator metrics
	CollaboratorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evcharge_collaborator_calls_total",
		Help: "Outbound collaborator calls by result",
	}, []string{"collaborator", "op", "result"})

	SoftFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evcharge_soft_failures_total",
		Help: "Swallowed failures of best-effort collaborator calls",
	}, []string{"collaborator", "op"})

	CollaboratorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evcharge_collaborator_latency_seconds",
		Help:    "Latency of outbound collaborator HTTP calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"collaborator"})
)
