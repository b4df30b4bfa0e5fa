// Package healthapi implements C12's external surfaces (§6.6, §6.3): a
// `/health` endpoint, a Prometheus `/metrics` endpoint, and a WebSocket hub
// pushing classification/exit-transition/OCO-change/plan-trigger/loss-cut
// notifications. Metric naming/registration grounded on the other-examples
// Coinbase bot's metrics.go (NewCounterVec/NewGaugeVec + MustRegister in a
// package-level var block); the teacher's own go.mod lists
// prometheus/client_golang but never registers a single metric with it.
package healthapi

import "github.com/prometheus/client_golang/prometheus"

var (
	metricQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradeengine_queue_depth",
			Help: "Current depth of a bounded internal queue.",
		},
		[]string{"queue"},
	)

	metricStageLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeengine_stage_latency_ms",
			Help:    "Per-stage processing latency in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 150, 300, 600},
		},
		[]string{"stage"},
	)

	metricSymbolFreshnessMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradeengine_symbol_timeframe_freshness_ms",
			Help: "Age in milliseconds of the last refresh for a (symbol,timeframe) pair.",
		},
		[]string{"symbol", "timeframe"},
	)

	metricDegradedMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradeengine_degraded_mode",
			Help: "1 if a symbol is in exits-only degraded mode, else 0.",
		},
		[]string{"symbol"},
	)

	metricEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradeengine_context_events_dropped_total",
			Help: "Count of context-priority events dropped by the event bus under backpressure.",
		},
	)

	metricExitTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeengine_exit_rule_transitions_total",
			Help: "Exit rule state transitions, labeled by the resulting state.",
		},
		[]string{"state"},
	)

	metricLossCutterActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeengine_losscutter_actions_total",
			Help: "Loss-cutter decisions, labeled by action (monitor|tighten|exit).",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		metricQueueDepth,
		metricStageLatencyMs,
		metricSymbolFreshnessMs,
		metricDegradedMode,
		metricEventsDropped,
		metricExitTransitions,
		metricLossCutterActions,
	)
}

// SetQueueDepth reports the current depth of a named bounded queue.
func SetQueueDepth(queue string, depth int) {
	metricQueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// ObserveStageLatency records a stage's processing time.
func ObserveStageLatency(stage string, ms float64) {
	metricStageLatencyMs.WithLabelValues(stage).Observe(ms)
}

// SetSymbolFreshness reports how stale a (symbol,timeframe)'s last refresh is.
func SetSymbolFreshness(symbol, timeframe string, ageMs int64) {
	metricSymbolFreshnessMs.WithLabelValues(symbol, timeframe).Set(float64(ageMs))
}

// SetDegraded flips a symbol's exits-only degraded-mode flag.
func SetDegraded(symbol string, degraded bool) {
	v := 0.0
	if degraded {
		v = 1.0
	}
	metricDegradedMode.WithLabelValues(symbol).Set(v)
}

// IncContextEventsDropped counts one more dropped context event.
func IncContextEventsDropped() {
	metricEventsDropped.Inc()
}

// IncExitTransition counts an exit-rule state transition.
func IncExitTransition(state string) {
	metricExitTransitions.WithLabelValues(state).Inc()
}

// IncLossCutterAction counts a loss-cutter decision.
func IncLossCutterAction(action string) {
	metricLossCutterActions.WithLabelValues(action).Inc()
}
