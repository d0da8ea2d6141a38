// Package metrics declares the Prometheus collectors of arbor and the
// lifecycle hooks that feed them.
package metrics

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NodesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_nodes_executed_total",
		Help: "Total number of nodes dispatched by interpreters, labelled by node kind.",
	}, []string{"kind"})

	CurrentChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_current_changes_total",
		Help: "Total number of times an interpreter moved to another resting node.",
	})

	ChoicesPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_choices_picked_total",
		Help: "Total number of choices picked by players.",
	})

	MinigamesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_minigames_completed_total",
		Help: "Total number of finished minigames, labelled by result.",
	}, []string{"result"})

	DelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbor_delay_seconds",
		Help:    "Authored duration of executed delay nodes.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbor_sessions_active",
		Help: "Current number of live sessions.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_http_requests_total",
		Help: "Total number of HTTP requests, labelled by route and status code.",
	}, []string{"route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbor_http_request_duration_seconds",
		Help:    "HTTP request latency, labelled by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	GraphReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_graph_reloads_total",
		Help: "Total number of graph reloads triggered by a watcher, labelled by outcome.",
	}, []string{"status"})
)

// Hooks returns lifecycle hooks that record interpreter activity.
func Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeExecute: func(_ context.Context, e *domain.NodeEvent) {
			NodesExecuted.WithLabelValues(string(e.NodeKind)).Inc()
		},
		OnCurrentChange: func(_ context.Context, _ *domain.CurrentEvent) {
			CurrentChanges.Inc()
		},
		OnChoicePicked: func(_ context.Context, _ *domain.ChoiceEvent) {
			ChoicesPicked.Inc()
		},
		OnMinigameComplete: func(_ context.Context, e *domain.MinigameEvent) {
			result := "fail"
			if e.Success {
				result = "success"
			}
			MinigamesCompleted.WithLabelValues(result).Inc()
		},
		OnDelay: func(_ context.Context, e *domain.DelayEvent) {
			DelaySeconds.Observe(e.Duration.Seconds())
		},
	}
}
