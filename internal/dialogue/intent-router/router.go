// internal/dialogue/intent-router/router.go
package intentrouter

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/models"
	productsearch "shop-assistant/internal/search/product-search"
)

// SearchEngine answers filtered product queries.
type SearchEngine interface {
	Search(ctx context.Context, filters models.SearchFilters) (productsearch.Result, error)
}

// OrderWorkflow drives order actions through their confirmation lifecycle.
type OrderWorkflow interface {
	Begin(ctx context.Context, action models.OrderAction) (*models.PendingAction, error)
	Confirm(ctx context.Context, userID int64, pending *models.PendingAction) (*models.Order, error)
	Abort(pending *models.PendingAction)
	Track(ctx context.Context, orderID int64) (*models.Order, error)
}

// ProfileUpdater changes a single user profile field.
type ProfileUpdater interface {
	UpdateField(ctx context.Context, userID int64, field, value string) error
}

// Turn is the interpreted input for one routing decision.
type Turn struct {
	UserID     int64
	Text       string
	Prediction models.IntentPrediction
	Entities   []models.ExtractedEntity
}

// Reply is what the assistant says back, plus structured payloads the
// transport layer can surface alongside the text.
type Reply struct {
	Text     string           `json:"text"`
	Intent   models.Intent    `json:"intent"`
	Products []models.Product `json:"products,omitempty"`
	Order    *models.Order    `json:"order,omitempty"`
}

// Config carries the dialogue policy knobs.
type Config struct {
	// ConfidenceFloor is the minimum top score before a prediction is
	// trusted at all; below it the turn is handled as UNKNOWN.
	ConfidenceFloor float64
	// SwitchThreshold is the minimum score a different intent needs to
	// pull the conversation out of its active task.
	SwitchThreshold float64
	// MaxResults caps product lists in replies.
	MaxResults int
}

// Router decides, per turn, whether the utterance continues the active
// task, switches to a new one, or answers a pending confirmation, and
// then dispatches to the matching collaborator. It mutates the passed
// ConversationContext in place; the caller owns persistence.
type Router struct {
	config   Config
	search   SearchEngine
	workflow OrderWorkflow
	profiles ProfileUpdater
	logger   logger.Logger
}

func NewRouter(config Config, search SearchEngine, workflow OrderWorkflow, profiles ProfileUpdater, log logger.Logger) *Router {
	if config.ConfidenceFloor <= 0 {
		config.ConfidenceFloor = 0.30
	}
	if config.SwitchThreshold <= 0 {
		config.SwitchThreshold = 0.60
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 20
	}
	return &Router{
		config:   config,
		search:   search,
		workflow: workflow,
		profiles: profiles,
		logger:   log.WithFields(map[string]interface{}{"component": "intent-router"}),
	}
}

var (
	yesRe      = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|sure|ok|okay|confirm|go ahead|do it|please do)\b`)
	noRe       = regexp.MustCompile(`(?i)^\s*(no|nope|nah|cancel|stop|don'?t|never\s?mind)\b`)
	showMoreRe = regexp.MustCompile(`(?i)\b(show|see|any)\s+more\b|\bmore\s+(results|options|products)\b`)
	profileRe  = regexp.MustCompile(`(?i)(?:update|change|set)\s+(?:my\s+)?(name|email|phone|address)\s+(?:to\s+|as\s+)?(.+)`)
)

// Route handles one turn against the given conversation context.
func (r *Router) Route(ctx context.Context, convo *models.ConversationContext, turn Turn) (*Reply, error) {
	// An unanswered confirmation outranks everything else. The user is
	// mid-question and the turn is read as an answer to it.
	if convo.PendingConfirmation != nil && convo.PendingConfirmation.State == models.WorkflowConfirming {
		return r.resolveConfirmation(ctx, convo, turn), nil
	}

	intent := r.effectiveIntent(convo, turn)

	switch intent {
	case models.IntentGreeting:
		// A greeting never disturbs whatever task is in flight.
		return &Reply{Text: replyGreeting, Intent: intent}, nil
	case models.IntentHelp:
		return &Reply{Text: replyHelp, Intent: intent}, nil
	case models.IntentUnknown:
		return &Reply{Text: replyUnknown, Intent: intent}, nil
	}

	task := models.TaskForIntent(intent)
	if current := convo.CurrentTask(); current != models.TaskNone && current != task {
		// Topic switch: the old task's slots must not leak into the new one.
		convo.Reset()
	}
	convo.ActiveTask = task
	convo.ClarifyingFor = models.TaskNone

	if reply := r.mergeSlots(convo, turn); reply != nil {
		return reply, nil
	}

	switch task {
	case models.TaskProductSearch:
		return r.routeSearch(ctx, convo, turn)
	case models.TaskOrderCreate:
		return r.routeOrderCreate(ctx, convo, turn)
	case models.TaskOrderTrack:
		return r.routeOrderTrack(ctx, convo)
	case models.TaskOrderCancel:
		return r.routeOrderCancel(ctx, convo)
	case models.TaskProfileUpdate:
		return r.routeProfileUpdate(ctx, convo, turn)
	default:
		return nil, apperrors.NewInternalError(fmt.Errorf("no handler for task %s", task))
	}
}

// effectiveIntent applies the confidence floor and the continuation rule.
// Inside an active task, a low-scoring different intent is treated as a
// continuation of that task rather than a switch.
func (r *Router) effectiveIntent(convo *models.ConversationContext, turn Turn) models.Intent {
	top := turn.Prediction.Top()

	if convo.CurrentTask() != models.TaskNone {
		active := models.IntentForTask(convo.CurrentTask())
		if top.Intent == active {
			return active
		}
		if top.Confidence < r.config.SwitchThreshold {
			// Refinements like "under $1000" score low on every label but
			// clearly belong to the task in progress.
			return active
		}
		if top.Intent == models.IntentGreeting || top.Intent == models.IntentHelp {
			return top.Intent
		}
		return top.Intent
	}

	if top.Confidence < r.config.ConfidenceFloor {
		return models.IntentUnknown
	}
	return top.Intent
}

// resolveConfirmation interprets the turn as a yes/no answer. Anything
// that is neither gets the parked question asked again; the action stays
// parked until the user answers it, so an irreversible step is never
// dropped on a guess.
func (r *Router) resolveConfirmation(ctx context.Context, convo *models.ConversationContext, turn Turn) *Reply {
	pending := convo.PendingConfirmation

	if yesRe.MatchString(turn.Text) {
		intent := models.IntentForTask(convo.CurrentTask())
		order, err := r.workflow.Confirm(ctx, turn.UserID, pending)
		convo.Reset()
		if err != nil {
			r.logger.WithError(err).Warn("Confirmed action failed", map[string]interface{}{
				"conversationId": convo.ConversationID,
			})
			return &Reply{Text: replyForError(err), Intent: intent}
		}
		text := formatOrderCreated(order)
		if pending.Action.Type == models.OrderActionCancel {
			text = formatOrderCancelled(order)
		}
		return &Reply{Text: text, Intent: intent, Order: order}
	}

	if noRe.MatchString(turn.Text) {
		r.workflow.Abort(pending)
		convo.Reset()
		return &Reply{Text: replyAborted}
	}

	return &Reply{Text: pending.Prompt + " " + replyConfirmHint}
}

// mergeSlots folds the turn's entities into the conversation slots with
// last-mention-wins semantics. It returns a clarification reply when the
// turn is ambiguous (several distinct order ids), nil otherwise.
func (r *Router) mergeSlots(convo *models.ConversationContext, turn Turn) *Reply {
	var orderIDs []string
	seen := map[string]bool{}

	for _, e := range turn.Entities {
		switch e.Type {
		case models.EntityBrand:
			convo.Slots["brand"] = e.Value
		case models.EntityCategory:
			convo.Slots["category"] = e.Value
		case models.EntityPrice:
			// A bare price is read as a budget ceiling.
			convo.Slots["max_price"] = e.Value
			delete(convo.Slots, "min_price")
		case models.EntityPriceRange:
			if e.Lower != nil {
				convo.Slots["min_price"] = strconv.FormatFloat(*e.Lower, 'f', -1, 64)
			} else {
				delete(convo.Slots, "min_price")
			}
			if e.Upper != nil {
				convo.Slots["max_price"] = strconv.FormatFloat(*e.Upper, 'f', -1, 64)
			} else {
				delete(convo.Slots, "max_price")
			}
		case models.EntityOrderID:
			if !seen[e.Value] {
				seen[e.Value] = true
				orderIDs = append(orderIDs, e.Value)
			}
		case models.EntityQuantity:
			convo.Slots["quantity"] = e.Value
		case models.EntityStockStatus:
			convo.Slots["stock_status"] = e.Value
		}
	}

	switch len(orderIDs) {
	case 0:
	case 1:
		convo.Slots["order_id"] = orderIDs[0]
	default:
		// Several distinct ids only matter when the task needs one; in a
		// search turn the numbers are just noise.
		if convo.ActiveTask == models.TaskOrderTrack || convo.ActiveTask == models.TaskOrderCancel {
			intent := models.IntentForTask(convo.ActiveTask)
			clarify(convo)
			sort.Strings(orderIDs)
			return &Reply{
				Text:   formatAmbiguousOrderIDs(orderIDs),
				Intent: intent,
			}
		}
	}
	return nil
}

// clarify parks the task behind the CLARIFYING hub while the router waits
// for a missing or ambiguous slot.
func clarify(convo *models.ConversationContext) {
	convo.ClarifyingFor = convo.ActiveTask
	convo.ActiveTask = models.TaskClarifying
}

func (r *Router) routeSearch(ctx context.Context, convo *models.ConversationContext, turn Turn) (*Reply, error) {
	var filters models.SearchFilters

	if showMoreRe.MatchString(turn.Text) && convo.LastSearchFilters != nil && len(turn.Entities) == 0 {
		filters = *convo.LastSearchFilters
	} else {
		filters = r.filtersFromSlots(convo, turn)
	}
	filters.Limit = r.config.MaxResults

	result, err := r.search.Search(ctx, filters)
	if err != nil {
		return &Reply{Text: replyForError(err), Intent: models.IntentProductSearch}, nil
	}

	saved := result.Filters
	convo.LastSearchFilters = &saved

	if len(result.Products) == 0 {
		return &Reply{Text: replyNoResults(filters), Intent: models.IntentProductSearch}, nil
	}
	return &Reply{
		Text:     formatProducts(result.Products, result.Relaxed),
		Intent:   models.IntentProductSearch,
		Products: result.Products,
	}, nil
}

func (r *Router) filtersFromSlots(convo *models.ConversationContext, turn Turn) models.SearchFilters {
	f := models.SearchFilters{
		Brand:    convo.Slots["brand"],
		Category: convo.Slots["category"],
		Query:    freeTextQuery(turn.Text, turn.Entities),
	}
	if v, err := strconv.ParseFloat(convo.Slots["min_price"], 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(convo.Slots["max_price"], 64); err == nil {
		f.MaxPrice = &v
	}
	switch convo.Slots["stock_status"] {
	case "in_stock":
		t := true
		f.InStock = &t
	case "out_of_stock":
		t := false
		f.InStock = &t
	}
	return f
}

func (r *Router) routeOrderCreate(ctx context.Context, convo *models.ConversationContext, turn Turn) (*Reply, error) {
	if product := freeTextQuery(turn.Text, turn.Entities); product != "" {
		convo.Slots["product"] = product
	} else if convo.Slots["product"] == "" && convo.Slots["category"] != "" {
		convo.Slots["product"] = convo.Slots["category"]
	}
	if brand := convo.Slots["brand"]; brand != "" && !strings.Contains(strings.ToLower(convo.Slots["product"]), strings.ToLower(brand)) {
		convo.Slots["product"] = strings.TrimSpace(brand + " " + convo.Slots["product"])
	}

	if convo.Slots["product"] == "" {
		clarify(convo)
		return &Reply{Text: replyAskProduct, Intent: models.IntentOrderCreate}, nil
	}

	quantity := convo.Slots["quantity"]
	if quantity == "" {
		quantity = "1"
	}

	pending, err := r.workflow.Begin(ctx, models.OrderAction{
		Type: models.OrderActionCreate,
		Payload: map[string]string{
			"product":  convo.Slots["product"],
			"quantity": quantity,
		},
	})
	if err != nil {
		convo.Reset()
		return &Reply{Text: replyForError(err), Intent: models.IntentOrderCreate}, nil
	}

	convo.PendingConfirmation = pending
	return &Reply{Text: pending.Prompt, Intent: models.IntentOrderCreate}, nil
}

func (r *Router) routeOrderTrack(ctx context.Context, convo *models.ConversationContext) (*Reply, error) {
	orderID, ok := orderIDSlot(convo)
	if !ok {
		clarify(convo)
		return &Reply{Text: replyAskOrderID, Intent: models.IntentOrderTrack}, nil
	}

	order, err := r.workflow.Track(ctx, orderID)
	if err != nil {
		if !apperrors.IsRetryable(err) {
			convo.Reset()
		}
		return &Reply{Text: replyForError(err), Intent: models.IntentOrderTrack}, nil
	}

	convo.Reset()
	return &Reply{Text: formatOrderStatus(order), Intent: models.IntentOrderTrack, Order: order}, nil
}

func (r *Router) routeOrderCancel(ctx context.Context, convo *models.ConversationContext) (*Reply, error) {
	orderID, ok := orderIDSlot(convo)
	if !ok {
		clarify(convo)
		return &Reply{Text: replyAskOrderID, Intent: models.IntentOrderCancel}, nil
	}

	pending, err := r.workflow.Begin(ctx, models.OrderAction{
		Type:    models.OrderActionCancel,
		OrderID: orderID,
	})
	if err != nil {
		if !apperrors.IsRetryable(err) {
			convo.Reset()
		}
		return &Reply{Text: replyForError(err), Intent: models.IntentOrderCancel}, nil
	}

	convo.PendingConfirmation = pending
	return &Reply{Text: pending.Prompt, Intent: models.IntentOrderCancel}, nil
}

func (r *Router) routeProfileUpdate(ctx context.Context, convo *models.ConversationContext, turn Turn) (*Reply, error) {
	m := profileRe.FindStringSubmatch(turn.Text)
	if m == nil {
		clarify(convo)
		return &Reply{Text: replyAskProfile, Intent: models.IntentProfileUpdate}, nil
	}
	field := strings.ToLower(m[1])
	value := strings.TrimSpace(m[2])

	if err := r.profiles.UpdateField(ctx, turn.UserID, field, value); err != nil {
		if !apperrors.IsRetryable(err) {
			convo.Reset()
		}
		return &Reply{Text: replyForError(err), Intent: models.IntentProfileUpdate}, nil
	}

	convo.Reset()
	return &Reply{
		Text:   fmt.Sprintf("Your %s is updated.", field),
		Intent: models.IntentProfileUpdate,
	}, nil
}

func orderIDSlot(convo *models.ConversationContext) (int64, bool) {
	id, err := strconv.ParseInt(convo.Slots["order_id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// stopwords are trigger and filler words that carry no product signal.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "me": true, "my": true,
	"show": true, "find": true, "search": true, "for": true, "looking": true,
	"want": true, "need": true, "buy": true, "order": true, "please": true,
	"to": true, "some": true, "any": true, "get": true, "with": true,
	"would": true, "like": true, "can": true, "you": true, "do": true,
	"have": true, "is": true, "are": true, "there": true, "in": true,
	"products": true, "product": true, "new": true, "under": true,
	"over": true, "between": true, "above": true, "below": true,
	"than": true, "and": true, "actually": true, "make": true, "it": true,
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9'-]*`)

// freeTextQuery strips recognized entity spans and trigger words from the
// utterance; what survives is the free-text product term.
func freeTextQuery(text string, entities []models.ExtractedEntity) string {
	masked := []byte(text)
	for _, e := range entities {
		start, end := e.Span[0], e.Span[1]
		if start < 0 || end > len(masked) || start >= end {
			continue
		}
		for i := start; i < end; i++ {
			masked[i] = ' '
		}
	}

	var kept []string
	for _, tok := range tokenRe.FindAllString(string(masked), -1) {
		if stopwords[strings.ToLower(tok)] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}
