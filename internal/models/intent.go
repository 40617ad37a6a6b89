// internal/models/intent.go
package models

import "time"

// Intent is the closed set of things a user can ask for.
type Intent string

const (
	IntentProductSearch Intent = "PRODUCT_SEARCH"
	IntentOrderCreate   Intent = "ORDER_CREATE"
	IntentOrderTrack    Intent = "ORDER_TRACK"
	IntentOrderCancel   Intent = "ORDER_CANCEL"
	IntentProfileUpdate Intent = "PROFILE_UPDATE"
	IntentGreeting      Intent = "GREETING"
	IntentHelp          Intent = "HELP"
	IntentUnknown       Intent = "UNKNOWN"
)

// AllIntents lists every label in a fixed order. Predictions carry a score
// for each of these so confidences form a categorical distribution.
var AllIntents = []Intent{
	IntentProductSearch,
	IntentOrderCreate,
	IntentOrderTrack,
	IntentOrderCancel,
	IntentProfileUpdate,
	IntentGreeting,
	IntentHelp,
	IntentUnknown,
}

// Utterance is one raw user message. Immutable once received.
type Utterance struct {
	ConversationID string    `json:"conversationId"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// IntentScore is one (label, confidence) pair.
type IntentScore struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// IntentPrediction is a ranked confidence distribution over the closed
// intent set, sorted descending. Invariant: non-empty, scores sum to 1.
type IntentPrediction struct {
	Scores []IntentScore `json:"scores"`
}

// Top returns the highest-confidence entry. The classifier guarantees a
// non-empty prediction, so Top on an empty one reports UNKNOWN.
func (p IntentPrediction) Top() IntentScore {
	if len(p.Scores) == 0 {
		return IntentScore{Intent: IntentUnknown, Confidence: 0}
	}
	return p.Scores[0]
}

// Confidence returns the score assigned to a specific label.
func (p IntentPrediction) Confidence(intent Intent) float64 {
	for _, s := range p.Scores {
		if s.Intent == intent {
			return s.Confidence
		}
	}
	return 0
}

// EntityType is the closed enumeration of extractable entity kinds.
type EntityType string

const (
	EntityBrand       EntityType = "BRAND"
	EntityPrice       EntityType = "PRICE"
	EntityPriceRange  EntityType = "PRICE_RANGE"
	EntityCategory    EntityType = "CATEGORY"
	EntityOrderID     EntityType = "ORDER_ID"
	EntityQuantity    EntityType = "QUANTITY"
	EntityStockStatus EntityType = "STOCK_STATUS"
)

// ExtractedEntity is one normalized candidate pulled from an utterance.
// Value holds the normalized textual form; Bounds carry parsed numeric
// values for PRICE and PRICE_RANGE entities. Span is the [start,end) byte
// range of the source token in the utterance.
type ExtractedEntity struct {
	Type  EntityType `json:"type"`
	Value string     `json:"value"`
	Lower *float64   `json:"lower,omitempty"`
	Upper *float64   `json:"upper,omitempty"`
	Span  [2]int     `json:"span"`
}
