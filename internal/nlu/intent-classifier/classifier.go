// internal/nlu/intent-classifier/classifier.go
package intentclassifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/models"
)

// Typed sentinels so callers can branch with errors.Is while metrics and
// the transport read the code and retryability off the wrapped error.
var (
	ErrClassificationUnavailable = apperrors.NewClassificationUnavailableError(errors.New("model backend unreachable"))
	ErrClassificationTimeout     = apperrors.NewClassificationTimeoutError()
)

// labelPhrases maps each intent to the candidate phrases scored by the
// zero-shot model. Phrase-level scores are summed per intent and the
// result renormalized into a categorical distribution.
var labelPhrases = map[models.Intent][]string{
	models.IntentGreeting: {
		"greeting", "hello", "hi", "welcome", "good morning", "good evening",
	},
	models.IntentProductSearch: {
		"search for products", "find items", "looking for products",
		"show products", "browse catalog",
	},
	models.IntentOrderCreate: {
		"place an order", "buy a product", "purchase", "order this item",
	},
	models.IntentOrderTrack: {
		"check order status", "track order", "where is my order",
		"delivery status", "shipping status",
	},
	models.IntentOrderCancel: {
		"cancel my order", "stop my order", "cancel a purchase",
	},
	models.IntentProfileUpdate: {
		"update my profile", "change my email", "change my address",
		"update account details",
	},
	models.IntentHelp: {
		"need help", "support needed", "assistance required", "how to",
	},
}

// Classifier scores utterances against the closed intent set by calling a
// model server. The server process loads its model once; this client is the
// process-wide handle to it, created at startup and read-only thereafter.
type Classifier struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewClassifier(config *Config, log logger.Logger) *Classifier {
	return &Classifier{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: log.WithFields(map[string]interface{}{"component": "intent-classifier"}),
	}
}

// Warmup issues a throwaway classification so the backend loads its model
// before the first real turn.
func (c *Classifier) Warmup(ctx context.Context) error {
	_, err := c.Classify(ctx, "warmup")
	return err
}

// Classify returns a ranked confidence distribution over the closed intent
// set. On backend failure it returns ErrClassificationUnavailable; callers
// treat that as "intent unknown", never as a fatal turn error.
func (c *Classifier) Classify(ctx context.Context, text string) (models.IntentPrediction, error) {
	phrases, phraseToIntent := flattenPhrases()

	requestBody := map[string]interface{}{
		"text":   text,
		"labels": phrases,
	}
	body, _ := json.Marshal(requestBody)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return models.IntentPrediction{}, ErrClassificationTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/nlu/classify", bytes.NewBuffer(body))
		if err != nil {
			return models.IntentPrediction{}, fmt.Errorf("%w: %v", ErrClassificationUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			if resp != nil {
				resp.Body.Close()
			}
			return models.IntentPrediction{}, ErrClassificationTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		return models.IntentPrediction{}, fmt.Errorf("%w: %v", ErrClassificationUnavailable, lastErr)
	}
	if resp == nil {
		return models.IntentPrediction{}, fmt.Errorf("%w: no successful response after retries", ErrClassificationUnavailable)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return models.IntentPrediction{}, fmt.Errorf("%w: decode error: %v", ErrClassificationUnavailable, err)
	}
	if len(apiResponse.Labels) == 0 || len(apiResponse.Labels) != len(apiResponse.Scores) {
		return models.IntentPrediction{}, fmt.Errorf("%w: malformed score vector", ErrClassificationUnavailable)
	}

	mass := make(map[models.Intent]float64, len(models.AllIntents))
	for i, label := range apiResponse.Labels {
		intent, ok := phraseToIntent[label]
		if !ok {
			continue
		}
		if s := apiResponse.Scores[i]; s > 0 {
			mass[intent] += s
		}
	}

	prediction := Distribution(mass)

	c.logger.Debug("utterance classified", map[string]interface{}{
		"topIntent":  prediction.Top().Intent,
		"confidence": prediction.Top().Confidence,
	})

	return prediction, nil
}

func flattenPhrases() ([]string, map[string]models.Intent) {
	var phrases []string
	phraseToIntent := make(map[string]models.Intent)
	for _, intent := range models.AllIntents {
		for _, p := range labelPhrases[intent] {
			phrases = append(phrases, p)
			phraseToIntent[p] = intent
		}
	}
	return phrases, phraseToIntent
}

// Distribution normalizes per-intent mass into a full, descending-sorted
// categorical distribution over the closed label set. Zero total mass puts
// everything on UNKNOWN.
func Distribution(mass map[models.Intent]float64) models.IntentPrediction {
	total := 0.0
	for _, v := range mass {
		total += v
	}

	scores := make([]models.IntentScore, 0, len(models.AllIntents))
	if total <= 0 || math.IsNaN(total) {
		for _, intent := range models.AllIntents {
			s := 0.0
			if intent == models.IntentUnknown {
				s = 1.0
			}
			scores = append(scores, models.IntentScore{Intent: intent, Confidence: s})
		}
	} else {
		for _, intent := range models.AllIntents {
			scores = append(scores, models.IntentScore{
				Intent:     intent,
				Confidence: mass[intent] / total,
			})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})

	return models.IntentPrediction{Scores: scores}
}
