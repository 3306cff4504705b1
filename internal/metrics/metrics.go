// Package metrics exposes the pipeline's Prometheus counters.
//
// Everything here is drop/error accounting: the pipeline sheds load
// instead of blocking, so the counters are the only visibility into how
// much was shed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FramesDropped counts WebSocket frames dropped because the
	// client → runner channel was full.
	FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbscan",
		Name:      "ws_frames_dropped_total",
		Help:      "WebSocket frames dropped on a full client channel.",
	}, []string{"venue"})

	// ParseErrors counts adapter parse failures per venue.
	ParseErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbscan",
		Name:      "parse_errors_total",
		Help:      "Exchange messages that failed to parse.",
	}, []string{"venue"})

	// TicksDropped counts feed messages dropped because the
	// runner → handler channel was full (backpressure).
	TicksDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbscan",
		Name:      "ticks_dropped_total",
		Help:      "Feed messages dropped under backpressure.",
	}, []string{"venue"})

	// TicksProcessed counts ticks the handler applied to shared state.
	TicksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbscan",
		Name:      "ticks_processed_total",
		Help:      "Ticks applied to shared state.",
	}, []string{"venue"})

	// ConversionsDropped counts ticks dropped because a required cross
	// rate was missing or out of bounds.
	ConversionsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arbscan",
		Name:      "conversions_dropped_total",
		Help:      "Ticks dropped for missing or invalid cross rates.",
	}, []string{"venue"})

	// OpportunitiesEmitted counts opportunities published by the detector.
	OpportunitiesEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbscan",
		Name:      "opportunities_emitted_total",
		Help:      "Arbitrage opportunities published.",
	})

	// NotificationsDropped counts status notifications dropped on a full
	// notifier channel.
	NotificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "arbscan",
		Name:      "notifications_dropped_total",
		Help:      "Status notifications dropped on a full channel.",
	})
)

func init() {
	prometheus.MustRegister(
		FramesDropped,
		ParseErrors,
		TicksDropped,
		TicksProcessed,
		ConversionsDropped,
		OpportunitiesEmitted,
		NotificationsDropped,
	)
}
