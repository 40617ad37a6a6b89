// internal/nlu/intent-classifier/rules.go
package intentclassifier

import (
	"context"
	"strings"

	"shop-assistant/internal/models"
)

// keywordHints drives the deterministic fallback scorer used when the
// model backend is unavailable. Longer phrases weigh more than single
// words so "cancel my order" beats a lone "order".
var keywordHints = map[models.Intent][]string{
	models.IntentGreeting:      {"hello", "hi ", "hey", "good morning", "good evening", "good afternoon"},
	models.IntentProductSearch: {"search", "find", "show", "looking for", "browse", "laptops", "laptop", "accessories", "cheapest"},
	models.IntentOrderCreate:   {"buy", "purchase", "place an order", "order a", "i want to order", "i'd like to order"},
	models.IntentOrderTrack:    {"track", "where is my order", "order status", "delivery", "shipping", "status of"},
	models.IntentOrderCancel:   {"cancel"},
	models.IntentProfileUpdate: {"update my", "change my", "my email", "my address", "my phone"},
	models.IntentHelp:          {"help", "support", "assist", "how do i", "how to"},
}

// RuleScorer is the deterministic keyword fallback. It never fails and
// never needs a model artifact.
type RuleScorer struct{}

func NewRuleScorer() *RuleScorer {
	return &RuleScorer{}
}

// Classify scores by keyword-phrase hits. Each hit contributes the phrase
// length, then the per-intent mass is normalized. No hits at all yields
// full mass on UNKNOWN.
func (r *RuleScorer) Classify(_ context.Context, text string) (models.IntentPrediction, error) {
	lower := strings.ToLower(text)

	mass := make(map[models.Intent]float64)
	for intent, phrases := range keywordHints {
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				mass[intent] += float64(len(p))
			}
		}
	}

	return Distribution(mass), nil
}
