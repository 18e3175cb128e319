package urconf

import "github.com/prometheus/client_golang/prometheus"

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "urconf",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Uptime Robot API calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "urconf",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Uptime Robot API call latency by method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "urconf",
			Subsystem: "sync",
			Name:      "actions_total",
			Help:      "Mutating actions applied during sync, by resource kind and action.",
		},
		[]string{"kind", "action"},
	)

	syncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "urconf",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Completed sync runs by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(apiRequestsTotal, apiRequestDuration, actionsTotal, syncsTotal)
}

func prometheusTimer(method string) *prometheus.Timer {
	return prometheus.NewTimer(apiRequestDuration.WithLabelValues(method))
}
