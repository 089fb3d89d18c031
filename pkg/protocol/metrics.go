// Copyright 2025 Certen Protocol
//
// Metrics — Prometheus counters exposed by an engine instance. Each engine
// owns a private registry rather than registering against the global
// default, so that multiple engines (as in tests, or multiple concurrent
// protocol runs in one process) never collide on metric names.

package protocol

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsSet is the Prometheus surface of one engine instance.
type metricsSet struct {
	registry *prometheus.Registry

	actionsRecorded prometheus.Counter
	cheatsDetected  *prometheus.CounterVec
	proofsVerified  *prometheus.CounterVec
	blocksMined     prometheus.Counter
	syncAttempts    *prometheus.CounterVec
}

func newMetrics(participantID string) *metricsSet {
	registry := prometheus.NewRegistry()

	m := &metricsSet{
		registry: registry,
		actionsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ztprotocol",
			Name:        "actions_recorded_total",
			Help:        "Number of actions this participant has recorded to the ledger.",
			ConstLabels: prometheus.Labels{"participant_id": participantID},
		}),
		cheatsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "ztprotocol",
			Name:        "cheats_detected_total",
			Help:        "Number of cheat accusations recorded, by cheat type.",
			ConstLabels: prometheus.Labels{"participant_id": participantID},
		}, []string{"cheat_type"}),
		proofsVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "ztprotocol",
			Name:        "proofs_verified_total",
			Help:        "Number of Merkle inclusion proofs verified, by outcome.",
			ConstLabels: prometheus.Labels{"participant_id": participantID},
		}, []string{"result"}),
		blocksMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ztprotocol",
			Name:        "blocks_mined_total",
			Help:        "Number of ledger blocks mined.",
			ConstLabels: prometheus.Labels{"participant_id": participantID},
		}),
		syncAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "ztprotocol",
			Name:        "sync_attempts_total",
			Help:        "Number of blockchain sync reconciliations, by outcome.",
			ConstLabels: prometheus.Labels{"participant_id": participantID},
		}, []string{"outcome"}),
	}

	registry.MustRegister(m.actionsRecorded, m.cheatsDetected, m.proofsVerified, m.blocksMined, m.syncAttempts)
	return m
}

// Registry exposes the engine's private Prometheus registry so the caller
// can mount it behind its own /metrics handler.
func (e *Engine) Registry() *prometheus.Registry {
	return e.metrics.registry
}
