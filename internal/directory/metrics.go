// internal/directory/metrics.go
package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokenRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "appmonitor_directory_token_requests_total",
		Help: "Client-credentials token requests issued to the identity provider.",
	})
	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "appmonitor_directory_fetch_failures_total",
		Help: "Directory reads that degraded to an empty result.",
	}, []string{"endpoint"})
)
