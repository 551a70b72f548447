// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrchestratorOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_orchestrator_operations_total",
			Help: "Total orchestrator operations by type and outcome",
		},
		[]string{"operation", "outcome"},
	)

	OrchestratorOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "contract_orchestrator_operation_duration_seconds",
			Help: "Duration of orchestrator operations in seconds",
		},
		[]string{"operation"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_provider_calls_total",
			Help: "Total e-signature provider calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	EnvelopesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_envelopes_created_total",
			Help: "Envelopes created at the provider, by pack",
		},
		[]string{"pack"},
	)

	EnvelopesSuperseded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_envelopes_superseded_total",
			Help: "Terminal envelopes superseded by a fresh one, by pack and prior status",
		},
		[]string{"pack", "prior_status"},
	)

	AssemblyGaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contract_assembly_gaps_total",
			Help: "Pack documents missing from assembled manifests",
		},
	)

	StatusCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_status_cache_requests_total",
			Help: "Advisory status cache lookups by result",
		},
		[]string{"result"},
	)

	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_webhooks_received_total",
			Help: "Provider webhooks by handling result",
		},
		[]string{"result"},
	)
)
