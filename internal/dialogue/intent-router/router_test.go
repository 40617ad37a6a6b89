// internal/dialogue/intent-router/router_test.go
package intentrouter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/models"
	productsearch "shop-assistant/internal/search/product-search"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSearch struct {
	calls  []models.SearchFilters
	result productsearch.Result
	err    error
}

func (f *fakeSearch) Search(_ context.Context, filters models.SearchFilters) (productsearch.Result, error) {
	f.calls = append(f.calls, filters)
	if f.err != nil {
		return productsearch.Result{}, f.err
	}
	r := f.result
	r.Filters = filters
	return r, nil
}

type fakeWorkflow struct {
	begun      []models.OrderAction
	beginErr   error
	confirmed  int
	confirmErr error
	aborted    int
	tracked    []int64
	trackOrder *models.Order
	trackErr   error
}

func (f *fakeWorkflow) Begin(_ context.Context, action models.OrderAction) (*models.PendingAction, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.begun = append(f.begun, action)
	return &models.PendingAction{
		Action: action,
		State:  models.WorkflowConfirming,
		Prompt: "Shall I proceed?",
	}, nil
}

func (f *fakeWorkflow) Confirm(_ context.Context, _ int64, pending *models.PendingAction) (*models.Order, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	f.confirmed++
	pending.State = models.WorkflowConfirmed
	return &models.Order{ID: 500, Status: models.OrderPending, TotalAmount: 99}, nil
}

func (f *fakeWorkflow) Abort(pending *models.PendingAction) {
	f.aborted++
	if pending != nil {
		pending.State = models.WorkflowCancelledByUser
	}
}

func (f *fakeWorkflow) Track(_ context.Context, orderID int64) (*models.Order, error) {
	f.tracked = append(f.tracked, orderID)
	if f.trackErr != nil {
		return nil, f.trackErr
	}
	if f.trackOrder != nil {
		return f.trackOrder, nil
	}
	return &models.Order{ID: orderID, Status: models.OrderShipped}, nil
}

type fakeProfiles struct {
	updates [][3]string
	err     error
}

func (f *fakeProfiles) UpdateField(_ context.Context, userID int64, field, value string) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, [3]string{field, value})
	return nil
}

func newTestRouter() (*Router, *fakeSearch, *fakeWorkflow, *fakeProfiles) {
	search := &fakeSearch{result: productsearch.Result{Products: []models.Product{
		{ID: 1, Name: "XPS 13", Brand: "Dell", Price: 1299, Stock: 2},
	}}}
	workflow := &fakeWorkflow{}
	profiles := &fakeProfiles{}
	r := NewRouter(Config{ConfidenceFloor: 0.30, SwitchThreshold: 0.60, MaxResults: 20},
		search, workflow, profiles, logger.NewNoOpLogger())
	return r, search, workflow, profiles
}

// pred builds a distribution with one dominant label; the leftover mass
// sits on UNKNOWN so scores still sum to one.
func pred(intent models.Intent, confidence float64) models.IntentPrediction {
	return models.IntentPrediction{Scores: []models.IntentScore{
		{Intent: intent, Confidence: confidence},
		{Intent: models.IntentUnknown, Confidence: 1 - confidence},
	}}
}

func turn(text string, p models.IntentPrediction, entities ...models.ExtractedEntity) Turn {
	return Turn{UserID: 1, Text: text, Prediction: p, Entities: entities}
}

// ==========================
// Basic Intent Tests
// ==========================

func TestRouter_GreetingAndHelp(t *testing.T) {
	r, _, _, _ := newTestRouter()
	convo := models.NewConversationContext("c1")

	reply, err := r.Route(context.Background(), convo, turn("hello", pred(models.IntentGreeting, 0.9)))
	require.NoError(t, err)
	assert.Equal(t, models.IntentGreeting, reply.Intent)
	assert.Equal(t, models.TaskNone, convo.ActiveTask)

	reply, err = r.Route(context.Background(), convo, turn("what can you do", pred(models.IntentHelp, 0.8)))
	require.NoError(t, err)
	assert.Equal(t, models.IntentHelp, reply.Intent)
}

func TestRouter_LowConfidenceGoesUnknown(t *testing.T) {
	r, search, _, _ := newTestRouter()
	convo := models.NewConversationContext("c2")

	reply, err := r.Route(context.Background(), convo, turn("blargh", pred(models.IntentProductSearch, 0.2)))
	require.NoError(t, err)
	assert.Equal(t, models.IntentUnknown, reply.Intent)
	assert.Empty(t, search.calls)
	assert.Equal(t, models.TaskNone, convo.ActiveTask)
}

// ==========================
// Product Search Tests
// ==========================

func TestRouter_SearchBuildsFiltersFromEntities(t *testing.T) {
	r, search, _, _ := newTestRouter()
	convo := models.NewConversationContext("c3")

	max := 1500.0
	reply, err := r.Route(context.Background(), convo, turn(
		"show me dell laptops under $1500",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityBrand, Value: "Dell", Span: [2]int{8, 12}},
		models.ExtractedEntity{Type: models.EntityCategory, Value: "laptop", Span: [2]int{13, 20}},
		models.ExtractedEntity{Type: models.EntityPriceRange, Value: "1500", Upper: &max, Span: [2]int{27, 32}},
	))
	require.NoError(t, err)

	require.Len(t, search.calls, 1)
	f := search.calls[0]
	assert.Equal(t, "Dell", f.Brand)
	assert.Equal(t, "laptop", f.Category)
	require.NotNil(t, f.MaxPrice)
	assert.Equal(t, 1500.0, *f.MaxPrice)
	assert.Nil(t, f.MinPrice)

	assert.Equal(t, models.IntentProductSearch, reply.Intent)
	assert.Len(t, reply.Products, 1)
	assert.Contains(t, reply.Text, "XPS 13")
	require.NotNil(t, convo.LastSearchFilters)
	assert.Equal(t, models.TaskProductSearch, convo.ActiveTask)
}

func TestRouter_RefinementContinuesActiveSearch(t *testing.T) {
	r, search, _, _ := newTestRouter()
	convo := models.NewConversationContext("c4")

	_, err := r.Route(context.Background(), convo, turn(
		"show me laptops",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityCategory, Value: "laptop", Span: [2]int{8, 15}},
	))
	require.NoError(t, err)

	// A refinement scores low on every label but stays inside the task.
	max := 1000.0
	_, err = r.Route(context.Background(), convo, turn(
		"under $1000",
		pred(models.IntentUnknown, 0.4),
		models.ExtractedEntity{Type: models.EntityPriceRange, Value: "1000", Upper: &max, Span: [2]int{6, 11}},
	))
	require.NoError(t, err)

	require.Len(t, search.calls, 2)
	f := search.calls[1]
	assert.Equal(t, "laptop", f.Category, "earlier slot survives the refinement")
	require.NotNil(t, f.MaxPrice)
	assert.Equal(t, 1000.0, *f.MaxPrice)
}

func TestRouter_LastMentionWins(t *testing.T) {
	r, search, _, _ := newTestRouter()
	convo := models.NewConversationContext("c5")

	_, err := r.Route(context.Background(), convo, turn(
		"dell laptops",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityBrand, Value: "Dell", Span: [2]int{0, 4}},
	))
	require.NoError(t, err)

	_, err = r.Route(context.Background(), convo, turn(
		"actually make it lenovo",
		pred(models.IntentProductSearch, 0.7),
		models.ExtractedEntity{Type: models.EntityBrand, Value: "Lenovo", Span: [2]int{17, 23}},
	))
	require.NoError(t, err)

	require.Len(t, search.calls, 2)
	assert.Equal(t, "Lenovo", search.calls[1].Brand)
}

func TestRouter_ShowMoreReusesLastFilters(t *testing.T) {
	r, search, _, _ := newTestRouter()
	convo := models.NewConversationContext("c6")

	_, err := r.Route(context.Background(), convo, turn(
		"dell laptops",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityBrand, Value: "Dell", Span: [2]int{0, 4}},
		models.ExtractedEntity{Type: models.EntityCategory, Value: "laptop", Span: [2]int{5, 12}},
	))
	require.NoError(t, err)

	_, err = r.Route(context.Background(), convo, turn("show more", pred(models.IntentProductSearch, 0.5)))
	require.NoError(t, err)

	require.Len(t, search.calls, 2)
	assert.Equal(t, search.calls[0].Brand, search.calls[1].Brand)
	assert.Equal(t, search.calls[0].Category, search.calls[1].Category)
}

func TestRouter_SearchFailureKeepsContext(t *testing.T) {
	r, search, _, _ := newTestRouter()
	search.err = apperrors.NewCatalogQueryFailedError(assert.AnError)
	convo := models.NewConversationContext("c7")

	reply, err := r.Route(context.Background(), convo, turn(
		"dell laptops",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityBrand, Value: "Dell", Span: [2]int{0, 4}},
	))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "try again")
	// Retryable failure: slots survive so the user can simply retry.
	assert.Equal(t, "Dell", convo.Slots["brand"])
	assert.Equal(t, models.TaskProductSearch, convo.ActiveTask)
}

// ==========================
// Topic Switch Tests
// ==========================

func TestRouter_ConfidentSwitchResetsSlots(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c8")

	_, err := r.Route(context.Background(), convo, turn(
		"dell laptops",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityBrand, Value: "Dell", Span: [2]int{0, 4}},
	))
	require.NoError(t, err)
	assert.Equal(t, "Dell", convo.Slots["brand"])

	reply, err := r.Route(context.Background(), convo, turn(
		"track order #42",
		pred(models.IntentOrderTrack, 0.85),
		models.ExtractedEntity{Type: models.EntityOrderID, Value: "42", Span: [2]int{6, 15}},
	))
	require.NoError(t, err)

	assert.Equal(t, []int64{42}, workflow.tracked)
	assert.Contains(t, reply.Text, "#42")
	// The search task's slots are gone.
	assert.Empty(t, convo.Slots["brand"])
}

func TestRouter_SwitchThresholdIsConfigurable(t *testing.T) {
	tests := []struct {
		name       string
		threshold  float64
		confidence float64
		switched   bool
	}{
		{"below threshold stays", 0.60, 0.55, false},
		{"above threshold switches", 0.60, 0.70, true},
		{"strict threshold blocks moderate score", 0.90, 0.70, false},
		{"lenient threshold lets it through", 0.40, 0.45, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &fakeSearch{}
			workflow := &fakeWorkflow{}
			r := NewRouter(Config{ConfidenceFloor: 0.30, SwitchThreshold: tt.threshold, MaxResults: 20},
				search, workflow, &fakeProfiles{}, logger.NewNoOpLogger())

			convo := models.NewConversationContext("c9")
			convo.ActiveTask = models.TaskProductSearch
			convo.Slots["brand"] = "Dell"

			_, err := r.Route(context.Background(), convo, turn(
				"track order #42",
				pred(models.IntentOrderTrack, tt.confidence),
				models.ExtractedEntity{Type: models.EntityOrderID, Value: "42", Span: [2]int{6, 15}},
			))
			require.NoError(t, err)

			if tt.switched {
				assert.Equal(t, []int64{42}, workflow.tracked)
				assert.Equal(t, models.TaskNone, convo.ActiveTask, "track completes and resets")
			} else {
				assert.Empty(t, workflow.tracked)
				assert.Equal(t, models.TaskProductSearch, convo.ActiveTask)
			}
		})
	}
}

// ==========================
// Order Task Tests
// ==========================

func TestRouter_CancelAsksForMissingOrderID(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c10")

	reply, err := r.Route(context.Background(), convo, turn(
		"cancel my order", pred(models.IntentOrderCancel, 0.9)))
	require.NoError(t, err)

	assert.Equal(t, replyAskOrderID, reply.Text)
	assert.Empty(t, workflow.begun)
	assert.Equal(t, models.TaskClarifying, convo.ActiveTask)
	assert.Equal(t, models.TaskOrderCancel, convo.ClarifyingFor)

	// The followup supplies only the id; the active task carries it home.
	reply, err = r.Route(context.Background(), convo, turn(
		"#42",
		pred(models.IntentUnknown, 0.3),
		models.ExtractedEntity{Type: models.EntityOrderID, Value: "42", Span: [2]int{0, 3}},
	))
	require.NoError(t, err)

	require.Len(t, workflow.begun, 1)
	assert.Equal(t, models.OrderActionCancel, workflow.begun[0].Type)
	assert.Equal(t, int64(42), workflow.begun[0].OrderID)
	require.NotNil(t, convo.PendingConfirmation)
	assert.Equal(t, models.WorkflowConfirming, convo.PendingConfirmation.State)
	assert.Equal(t, reply.Text, convo.PendingConfirmation.Prompt)
}

func TestRouter_ConfidentSwitchLeavesClarifying(t *testing.T) {
	r, search, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c10a")

	_, err := r.Route(context.Background(), convo, turn(
		"cancel my order", pred(models.IntentOrderCancel, 0.9)))
	require.NoError(t, err)
	require.Equal(t, models.TaskClarifying, convo.ActiveTask)

	// The user never answers the question and asks for something else.
	reply, err := r.Route(context.Background(), convo, turn(
		"show me laptops",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityCategory, Value: "laptop", Span: [2]int{8, 15}},
	))
	require.NoError(t, err)

	assert.Equal(t, models.IntentProductSearch, reply.Intent)
	require.Len(t, search.calls, 1)
	assert.Empty(t, workflow.begun)
	assert.Equal(t, models.TaskProductSearch, convo.ActiveTask)
	assert.Equal(t, models.TaskNone, convo.ClarifyingFor)
}

func TestRouter_AmbiguousOrderIDAsksClarification(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c11")

	reply, err := r.Route(context.Background(), convo, turn(
		"cancel order #12 or #13",
		pred(models.IntentOrderCancel, 0.9),
		models.ExtractedEntity{Type: models.EntityOrderID, Value: "12", Span: [2]int{7, 16}},
		models.ExtractedEntity{Type: models.EntityOrderID, Value: "13", Span: [2]int{20, 23}},
	))
	require.NoError(t, err)

	assert.Contains(t, reply.Text, "#12")
	assert.Contains(t, reply.Text, "#13")
	assert.Empty(t, workflow.begun)
	assert.Empty(t, convo.Slots["order_id"])
	assert.Equal(t, models.TaskClarifying, convo.ActiveTask)
	assert.Equal(t, models.TaskOrderCancel, convo.ClarifyingFor)
}

func TestRouter_SearchIgnoresStrayNumbers(t *testing.T) {
	r, search, _, _ := newTestRouter()
	convo := models.NewConversationContext("c11a")

	// Two bare numbers that look like ids must not hijack a search turn.
	reply, err := r.Route(context.Background(), convo, turn(
		"show me laptops 4100 or 5200 series",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityCategory, Value: "laptop", Span: [2]int{8, 15}},
		models.ExtractedEntity{Type: models.EntityOrderID, Value: "4100", Span: [2]int{16, 20}},
		models.ExtractedEntity{Type: models.EntityOrderID, Value: "5200", Span: [2]int{24, 28}},
	))
	require.NoError(t, err)

	require.Len(t, search.calls, 1)
	assert.Equal(t, "laptop", search.calls[0].Category)
	assert.Equal(t, models.IntentProductSearch, reply.Intent)
	assert.NotContains(t, reply.Text, "order numbers")
	assert.Empty(t, convo.Slots["order_id"])
}

func TestRouter_OrderCreateFlow(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c12")

	// No product named yet: ask.
	reply, err := r.Route(context.Background(), convo, turn(
		"i want to buy", pred(models.IntentOrderCreate, 0.9)))
	require.NoError(t, err)
	assert.Equal(t, replyAskProduct, reply.Text)
	assert.Empty(t, workflow.begun)

	// Product named: parked for confirmation.
	reply, err = r.Route(context.Background(), convo, turn(
		"the XPS 13", pred(models.IntentOrderCreate, 0.5)))
	require.NoError(t, err)

	require.Len(t, workflow.begun, 1)
	assert.Equal(t, models.OrderActionCreate, workflow.begun[0].Type)
	assert.Contains(t, workflow.begun[0].Payload["product"], "XPS")
	assert.Equal(t, "1", workflow.begun[0].Payload["quantity"])
	require.NotNil(t, convo.PendingConfirmation)
}

func TestRouter_TrackNotFoundResets(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	workflow.trackErr = apperrors.NewOrderNotFoundError(42)
	convo := models.NewConversationContext("c13")

	reply, err := r.Route(context.Background(), convo, turn(
		"track order #42",
		pred(models.IntentOrderTrack, 0.9),
		models.ExtractedEntity{Type: models.EntityOrderID, Value: "42", Span: [2]int{6, 15}},
	))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "couldn't find that order")
	assert.Equal(t, models.TaskNone, convo.ActiveTask)
}

// ==========================
// Confirmation Tests
// ==========================

func pendingCancel(convo *models.ConversationContext) {
	convo.ActiveTask = models.TaskOrderCancel
	convo.PendingConfirmation = &models.PendingAction{
		Action: models.OrderAction{Type: models.OrderActionCancel, OrderID: 42},
		State:  models.WorkflowConfirming,
		Prompt: "Cancel order #42?",
	}
}

func TestRouter_ConfirmationYes(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c14")
	pendingCancel(convo)

	reply, err := r.Route(context.Background(), convo, turn("yes please", pred(models.IntentUnknown, 0.2)))
	require.NoError(t, err)

	assert.Equal(t, 1, workflow.confirmed)
	assert.NotNil(t, reply.Order)
	assert.Nil(t, convo.PendingConfirmation)
	assert.Equal(t, models.TaskNone, convo.ActiveTask)
}

func TestRouter_ConfirmationNo(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c15")
	pendingCancel(convo)

	reply, err := r.Route(context.Background(), convo, turn("no, never mind", pred(models.IntentUnknown, 0.2)))
	require.NoError(t, err)

	assert.Equal(t, 0, workflow.confirmed)
	assert.Equal(t, 1, workflow.aborted)
	assert.Equal(t, replyAborted, reply.Text)
	assert.Nil(t, convo.PendingConfirmation)
}

func TestRouter_ConfirmationMumbleReprompts(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c16")
	pendingCancel(convo)

	reply, err := r.Route(context.Background(), convo, turn("hmm not sure", pred(models.IntentUnknown, 0.2)))
	require.NoError(t, err)

	assert.Equal(t, 0, workflow.confirmed)
	assert.Equal(t, 0, workflow.aborted)
	assert.Contains(t, reply.Text, "Cancel order #42?")
	require.NotNil(t, convo.PendingConfirmation)
	assert.Equal(t, models.WorkflowConfirming, convo.PendingConfirmation.State)
}

func TestRouter_ConfirmationHoldsAgainstConfidentRequest(t *testing.T) {
	r, search, workflow, _ := newTestRouter()
	convo := models.NewConversationContext("c17")
	pendingCancel(convo)

	// Even a confident unrelated request is answered with the parked
	// question; nothing irreversible happens and nothing is dropped.
	reply, err := r.Route(context.Background(), convo, turn(
		"show me hp laptops",
		pred(models.IntentProductSearch, 0.9),
		models.ExtractedEntity{Type: models.EntityBrand, Value: "HP", Span: [2]int{8, 10}},
	))
	require.NoError(t, err)

	assert.Equal(t, 0, workflow.aborted)
	assert.Equal(t, 0, workflow.confirmed)
	assert.Empty(t, search.calls)
	assert.Contains(t, reply.Text, "Cancel order #42?")
	require.NotNil(t, convo.PendingConfirmation)
	assert.Equal(t, models.WorkflowConfirming, convo.PendingConfirmation.State)
}

func TestRouter_ConfirmFailureReportsAndResets(t *testing.T) {
	r, _, workflow, _ := newTestRouter()
	workflow.confirmErr = apperrors.NewOrderAlreadyCancelledError(42)
	convo := models.NewConversationContext("c18")
	pendingCancel(convo)

	reply, err := r.Route(context.Background(), convo, turn("yes", pred(models.IntentUnknown, 0.2)))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "already cancelled")
	assert.Nil(t, convo.PendingConfirmation)
}

// ==========================
// Profile Update Tests
// ==========================

func TestRouter_ProfileUpdate(t *testing.T) {
	r, _, _, profiles := newTestRouter()
	convo := models.NewConversationContext("c19")

	reply, err := r.Route(context.Background(), convo, turn(
		"change my email to me@example.com", pred(models.IntentProfileUpdate, 0.9)))
	require.NoError(t, err)

	require.Len(t, profiles.updates, 1)
	assert.Equal(t, "email", profiles.updates[0][0])
	assert.Equal(t, "me@example.com", profiles.updates[0][1])
	assert.Contains(t, reply.Text, "email")
	assert.Equal(t, models.TaskNone, convo.ActiveTask)
}

func TestRouter_ProfileUpdateUnparseableAsks(t *testing.T) {
	r, _, _, profiles := newTestRouter()
	convo := models.NewConversationContext("c20")

	reply, err := r.Route(context.Background(), convo, turn(
		"update my stuff", pred(models.IntentProfileUpdate, 0.9)))
	require.NoError(t, err)

	assert.Equal(t, replyAskProfile, reply.Text)
	assert.Empty(t, profiles.updates)
	assert.Equal(t, models.TaskClarifying, convo.ActiveTask)
	assert.Equal(t, models.TaskProfileUpdate, convo.ClarifyingFor)
}

func TestRouter_ProfileInvalidField(t *testing.T) {
	r, _, _, profiles := newTestRouter()
	profiles.err = apperrors.NewInvalidProfileFieldError("password")
	convo := models.NewConversationContext("c21")

	reply, err := r.Route(context.Background(), convo, turn(
		"change my name to Bob", pred(models.IntentProfileUpdate, 0.9)))
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "can update")
	assert.Equal(t, models.TaskNone, convo.ActiveTask)
}
