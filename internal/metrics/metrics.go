// Package metrics provides Prometheus metrics for the repair journal.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "repair_journal"

var (
	// HTTPRequestsTotal counts API requests by method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server",
		},
		[]string{"method", "status"},
	)

	// DocumentWritesTotal counts committed document writes.
	DocumentWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_writes_total",
			Help:      "Total number of committed document writes",
		},
		[]string{"collection", "op"},
	)

	// CacheRequestsTotal counts offline worker fetch outcomes.
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Offline cache worker request outcomes",
		},
		[]string{"result"},
	)

	// BootstrapAttemptsTotal counts bootstrap attempts by outcome.
	BootstrapAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_attempts_total",
			Help:      "Client bootstrap attempts",
		},
		[]string{"outcome"},
	)
)
