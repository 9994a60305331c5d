package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search pipeline metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by kind and executed strategy",
		},
		[]string{"kind", "strategy"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind", "strategy"},
	)

	RemoteAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_attempts_total",
			Help:      "Remote search attempts by outcome (success, retryable, terminal, quota)",
		},
		[]string{"kind", "outcome"},
	)

	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_total",
			Help:      "Requests served by the local path, by reason",
		},
		[]string{"kind", "reason"},
	)

	ConversationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_cache_total",
			Help:      "Conversation context lookups by result (hit, miss, created)",
		},
		[]string{"result"},
	)

	BackgroundTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_tasks_total",
			Help:      "Best-effort background writes by task and outcome",
		},
		[]string{"task", "outcome"},
	)
)

var registerSearch sync.Once

// RegisterSearchMetrics registers the search pipeline collectors. Repeated calls are no-ops.
func RegisterSearchMetrics() {
	registerSearch.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchDuration,
			RemoteAttemptsTotal,
			FallbackTotal,
			ConversationCacheTotal,
			BackgroundTasksTotal,
		)
	})
}
