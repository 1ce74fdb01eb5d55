// Package metrics exposes the process's prometheus collectors. One
// package-level registry is shared by every component so the optional
// status surface can serve it from a single /metrics handler.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Registry is the collector registry served by the status surface.
	Registry = prometheus.NewRegistry()

	ThrottleRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trading_order_throttle_rejections_total",
		Help: "Orders rejected by the rolling per-minute submission throttle.",
	})

	RiskBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trading_risk_breaker_trips_total",
		Help: "Circuit breaker activations by reason.",
	}, []string{"reason"})

	RunnerPollSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trading_runner_poll_success_total",
		Help: "Successful runner loop polls.",
	})

	RunnerPollError = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trading_runner_poll_error_total",
		Help: "Failed runner loop polls (broker errors, reconnect failures).",
	})

	RunnerReconciliationDiscrepancies = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trading_runner_reconciliation_discrepancies",
		Help: "Symbol count with a quantity mismatch at the last position reconciliation.",
	})

	BacktestRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trading_backtest_run_duration_seconds",
		Help:    "Wall-clock duration of a single backtest run.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	Registry.MustRegister(
		ThrottleRejections,
		RiskBreakerTrips,
		RunnerPollSuccess,
		RunnerPollError,
		RunnerReconciliationDiscrepancies,
		BacktestRunDuration,
	)
}
