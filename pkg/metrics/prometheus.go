// Package metrics holds the prometheus counters exposed in daemon mode.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

var TotalRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Number of HTTP requests served.",
	},
	[]string{"path"},
)

var ResolverRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ip_resolver_requests_total",
		Help: "Number of public IP lookups, by resolver.",
	},
	[]string{"resolver"},
)

var ReconcileRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reconcile_runs_total",
		Help: "Number of reconciliation runs, by target and result.",
	},
	[]string{"target", "result"},
)

var ReconcileWrites = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reconcile_writes_total",
		Help: "Number of API writes issued, by target and operation.",
	},
	[]string{"target", "op"},
)

func InitMetrics() {
	prometheus.Register(TotalRequests)
	prometheus.Register(ResolverRequests)
	prometheus.Register(ReconcileRuns)
	prometheus.Register(ReconcileWrites)
}

func IncrementResolver(resolver string) {
	ResolverRequests.WithLabelValues(resolver).Inc()
}

func IncrementReqs(r *http.Request) {
	TotalRequests.WithLabelValues(r.URL.Path).Inc()
}
