// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_turns_total",
			Help: "Total number of conversation turns processed, by resolved intent",
		},
		[]string{"intent"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_turns_failed_total",
			Help: "Total number of turns that ended in an error reply",
		},
		[]string{"error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dialogue_turn_duration_seconds",
			Help: "Duration of turn processing in seconds",
		},
		[]string{"intent"},
	)

	SearchFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_search_fallbacks_total",
			Help: "Search fallback relaxations, by outcome (recovered or exhausted)",
		},
		[]string{"outcome"},
	)

	ClassifierFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intent_classifier_rule_fallbacks_total",
			Help: "Turns scored by the keyword rule scorer because the model backend was unavailable",
		},
	)
)
