package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgate_events_processed_total",
		Help: "Bus events consumed, by subject.",
	}, []string{"subject"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgate_events_published_total",
		Help: "Derived events published, by kind.",
	}, []string{"kind"})

	faultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgate_faults_total",
		Help: "Faults raised during event processing, by kind.",
	}, []string{"kind"})

	gateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgate_gate_decisions_total",
		Help: "Stage gate evaluations, by outcome.",
	}, []string{"outcome"})

	wipViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowgate_wip_violations_total",
		Help: "WIP ceiling violations detected.",
	})
)
