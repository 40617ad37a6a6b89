// internal/dialogue/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"sync"
	"time"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/common/metrics"
	"shop-assistant/internal/common/observability"
	contextstore "shop-assistant/internal/dialogue/context-store"
	intentrouter "shop-assistant/internal/dialogue/intent-router"
	"shop-assistant/internal/models"
)

// IntentClassifier scores an utterance against the closed intent set.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (models.IntentPrediction, error)
}

// EntityExtractor pulls structured entities out of an utterance.
type EntityExtractor interface {
	Extract(text string) []models.ExtractedEntity
}

// Router makes the per-turn dialogue decision.
type Router interface {
	Route(ctx context.Context, convo *models.ConversationContext, turn intentrouter.Turn) (*intentrouter.Reply, error)
}

// Orchestrator owns the turn pipeline: load context, run understanding,
// route, commit. Turns for the same conversation are serialized; turns
// for different conversations run freely in parallel.
type Orchestrator struct {
	store      contextstore.Store
	classifier IntentClassifier
	fallback   IntentClassifier
	extractor  EntityExtractor
	router     Router
	obs        *observability.Observability
	logger     logger.Logger

	mu    sync.Mutex
	locks map[string]*convoLock
}

// convoLock serializes turns for one conversation. The refcount lets the
// map entry be dropped as soon as no turn holds or waits on it, so
// one-off conversation ids do not accumulate.
type convoLock struct {
	sync.Mutex
	refs int
}

func New(store contextstore.Store, classifier, fallback IntentClassifier, extractor EntityExtractor, router Router, obs *observability.Observability, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		classifier: classifier,
		fallback:   fallback,
		extractor:  extractor,
		router:     router,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		locks:      map[string]*convoLock{},
	}
}

// HandleTurn processes one user message end to end and returns the reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID string, userID int64, text string) (*intentrouter.Reply, error) {
	start := time.Now()

	lock := o.acquireConversation(conversationID)
	defer o.releaseConversation(conversationID, lock)

	convo, err := o.store.Get(ctx, conversationID)
	if err != nil {
		metrics.TurnsFailed.WithLabelValues(string(apperrors.ErrCodeContextStoreUnavailable)).Inc()
		return nil, apperrors.NewContextStoreUnavailableError(err)
	}

	// The turn works on a copy. Nothing is visible to the next turn until
	// the single Save at the end, so a failed turn leaves the conversation
	// exactly where it was.
	work := convo.Clone()

	prediction, entities := o.understand(ctx, text)

	turn := intentrouter.Turn{
		UserID:     userID,
		Text:       text,
		Prediction: prediction,
		Entities:   entities,
	}

	reply, err := o.router.Route(ctx, work, turn)
	if err != nil {
		metrics.TurnsFailed.WithLabelValues(string(apperrors.CodeOf(err))).Inc()
		return nil, err
	}

	work.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, work); err != nil {
		// The reply already happened as far as the user is concerned, so
		// return it; the next turn just sees slightly stale context.
		o.logger.WithError(err).Error("Context commit failed", map[string]interface{}{
			"conversationId": conversationID,
		})
	}

	elapsed := time.Since(start)
	metrics.TurnsProcessed.WithLabelValues(string(reply.Intent)).Inc()
	metrics.TurnDuration.WithLabelValues(string(reply.Intent)).Observe(elapsed.Seconds())
	if o.obs != nil {
		o.obs.RecordTurnProcessed(ctx, string(reply.Intent))
		o.obs.RecordTurnDuration(ctx, elapsed, string(reply.Intent))
	}

	o.logger.Info("Turn processed", map[string]interface{}{
		"conversationId": conversationID,
		"intent":         reply.Intent,
		"durationMs":     elapsed.Milliseconds(),
	})
	return reply, nil
}

// understand runs classification and extraction concurrently. Extraction
// is total; classification degrades to the rule scorer when the model
// backend is down, so understanding as a whole never fails a turn.
func (o *Orchestrator) understand(ctx context.Context, text string) (models.IntentPrediction, []models.ExtractedEntity) {
	var (
		wg          sync.WaitGroup
		prediction  models.IntentPrediction
		classifyErr error
		entities    []models.ExtractedEntity
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		prediction, classifyErr = o.classifier.Classify(ctx, text)
	}()
	go func() {
		defer wg.Done()
		entities = o.extractor.Extract(text)
	}()
	wg.Wait()

	if classifyErr != nil {
		metrics.ClassifierFallbacks.Inc()
		if o.fallback != nil {
			o.logger.WithError(classifyErr).Warn("Model classification failed, using rule scorer", nil)
			prediction, _ = o.fallback.Classify(ctx, text)
		} else {
			// No fallback configured: the turn proceeds as UNKNOWN and the
			// user gets asked to rephrase.
			o.logger.WithError(classifyErr).Warn("Model classification failed", nil)
			prediction = models.IntentPrediction{}
		}
	}
	return prediction, entities
}

// EndConversation drops the stored context, ending the session early.
func (o *Orchestrator) EndConversation(ctx context.Context, conversationID string) error {
	lock := o.acquireConversation(conversationID)
	defer o.releaseConversation(conversationID, lock)
	return o.store.Expire(ctx, conversationID)
}

func (o *Orchestrator) acquireConversation(conversationID string) *convoLock {
	o.mu.Lock()
	lock, ok := o.locks[conversationID]
	if !ok {
		lock = &convoLock{}
		o.locks[conversationID] = lock
	}
	lock.refs++
	o.mu.Unlock()

	lock.Lock()
	return lock
}

func (o *Orchestrator) releaseConversation(conversationID string, lock *convoLock) {
	lock.Unlock()

	o.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(o.locks, conversationID)
	}
	o.mu.Unlock()
}
