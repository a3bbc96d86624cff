// Package metrics holds the process-wide Prometheus collectors, exposed by the relay on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videowall_tool_invocations_total",
		Help: "External tool invocations by tool and outcome",
	}, []string{"tool", "outcome"})

	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "videowall_tool_duration_seconds",
		Help:    "Wall-clock duration of external tool invocations",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 14), // 50ms to ~7min
	}, []string{"tool"})

	RefreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videowall_refresh_cycles_total",
		Help: "Completed refresh cycles by source class",
	}, []string{"class"})

	RefreshResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videowall_refresh_results_total",
		Help: "Per-feed refresh results by source class and outcome",
	}, []string{"class", "outcome"})

	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "videowall_refresh_duration_seconds",
		Help:    "Duration of a whole refresh cycle",
		Buckets: prometheus.ExponentialBuckets(0.1, 2.0, 14),
	}, []string{"class"})

	AssetPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videowall_asset_published_total",
		Help: "Cached assets successfully published",
	})

	AssetBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "videowall_asset_bytes",
		Help: "Size of the currently published asset",
	})

	RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videowall_relay_requests_total",
		Help: "Relay requests by route and status code class",
	}, []string{"route", "code"})

	PlayersRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "videowall_players_running",
		Help: "Native player processes currently running",
	})
)

// Outcome labels shared by the counters above.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// OutcomeOf maps an error to an outcome label, using isTimeout to recognise timeouts.
func OutcomeOf(err error, isTimeout func(error) bool) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case isTimeout != nil && isTimeout(err):
		return OutcomeTimeout
	default:
		return OutcomeFailure
	}
}
