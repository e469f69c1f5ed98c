// internal/entrasync/metrics.go
package entrasync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "appmonitor_entra_sync_runs_total",
	Help: "Completed sync cycles by outcome.",
}, []string{"outcome"})
