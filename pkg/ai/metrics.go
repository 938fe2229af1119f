package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "c3_completion_latency_seconds",
		Help:    "Time spent on upstream chat-completion calls",
		Buckets: prometheus.DefBuckets,
	})
	completionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "c3_completion_failures_total",
		Help: "Completion failures by classified kind",
	}, []string{"kind"})
	promptTokenHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "c3_prompt_tokens",
		Help:    "Token count per outbound prompt",
		Buckets: []float64{1, 10, 25, 50, 100, 250, 500, 1_000},
	})
)
