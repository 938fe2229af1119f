package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jokesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "c3_jokes_served_total",
		Help: "Jokes served, by source (ai or fallback)",
	}, []string{"source"})
)
