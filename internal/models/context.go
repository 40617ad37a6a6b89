// internal/models/context.go
package models

import "time"

// TaskState is the dialogue task a conversation is currently inside.
type TaskState string

const (
	TaskNone          TaskState = "NONE"
	TaskProductSearch TaskState = "PRODUCT_SEARCH"
	TaskOrderCreate   TaskState = "ORDER_CREATE"
	TaskOrderCancel   TaskState = "ORDER_CANCEL"
	TaskOrderTrack    TaskState = "ORDER_TRACK"
	TaskProfileUpdate TaskState = "PROFILE_UPDATE"
	TaskClarifying    TaskState = "CLARIFYING"
)

// TaskForIntent maps an accepted intent to the task state it opens.
func TaskForIntent(intent Intent) TaskState {
	switch intent {
	case IntentProductSearch:
		return TaskProductSearch
	case IntentOrderCreate:
		return TaskOrderCreate
	case IntentOrderCancel:
		return TaskOrderCancel
	case IntentOrderTrack:
		return TaskOrderTrack
	case IntentProfileUpdate:
		return TaskProfileUpdate
	default:
		return TaskNone
	}
}

// IntentForTask is the inverse mapping, used for continuation checks.
func IntentForTask(task TaskState) Intent {
	switch task {
	case TaskProductSearch:
		return IntentProductSearch
	case TaskOrderCreate:
		return IntentOrderCreate
	case TaskOrderCancel:
		return IntentOrderCancel
	case TaskOrderTrack:
		return IntentOrderTrack
	case TaskProfileUpdate:
		return IntentProfileUpdate
	default:
		return IntentUnknown
	}
}

// OrderActionType distinguishes the order operations the router can request.
type OrderActionType string

const (
	OrderActionCreate OrderActionType = "CREATE"
	OrderActionTrack  OrderActionType = "TRACK"
	OrderActionCancel OrderActionType = "CANCEL"
)

// OrderAction is produced by the router and consumed by the order workflow.
type OrderAction struct {
	Type    OrderActionType   `json:"type"`
	OrderID int64             `json:"orderId,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

// WorkflowState tracks an order action through its confirmation flow.
type WorkflowState string

const (
	WorkflowRequested       WorkflowState = "REQUESTED"
	WorkflowConfirming      WorkflowState = "CONFIRMING"
	WorkflowConfirmed       WorkflowState = "CONFIRMED"
	WorkflowCancelledByUser WorkflowState = "CANCELLED_BY_USER"
)

// PendingAction is a destructive action parked until the user answers
// yes or no.
type PendingAction struct {
	Action      OrderAction   `json:"action"`
	State       WorkflowState `json:"state"`
	Prompt      string        `json:"prompt"`
	RequestedAt time.Time     `json:"requestedAt"`
}

// SearchFilters is a disposable per-attempt filter set. Nil bounds mean
// the dimension is unconstrained.
type SearchFilters struct {
	Query    string   `json:"query,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Category string   `json:"category,omitempty"`
	MinPrice *float64 `json:"minPrice,omitempty"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
	InStock  *bool    `json:"inStock,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// WithoutQuery returns a copy with the free-text term dropped. Structured
// filters encode explicit user intent and are never relaxed.
func (f SearchFilters) WithoutQuery() SearchFilters {
	f.Query = ""
	return f
}

// IsEmpty reports whether no dimension is constrained.
func (f SearchFilters) IsEmpty() bool {
	return f.Query == "" && f.Brand == "" && f.Category == "" &&
		f.MinPrice == nil && f.MaxPrice == nil && f.InStock == nil
}

// ConversationContext is the per-conversation mutable state. It is owned
// by exactly one conversation and mutated only between turn boundaries.
type ConversationContext struct {
	ConversationID string    `json:"conversationId"`
	ActiveTask     TaskState `json:"activeTask"`
	// ClarifyingFor remembers which task asked the open question while
	// ActiveTask is CLARIFYING, so the answer resumes it.
	ClarifyingFor       TaskState         `json:"clarifyingFor,omitempty"`
	Slots               map[string]string `json:"slots"`
	PendingConfirmation *PendingAction    `json:"pendingConfirmation,omitempty"`
	LastSearchFilters   *SearchFilters    `json:"lastSearchFilters,omitempty"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// NewConversationContext returns a fresh NONE-state context.
func NewConversationContext(conversationID string) *ConversationContext {
	return &ConversationContext{
		ConversationID: conversationID,
		ActiveTask:     TaskNone,
		Slots:          map[string]string{},
		UpdatedAt:      time.Now().UTC(),
	}
}

// Reset clears task state after completion, cancellation or timeout.
func (c *ConversationContext) Reset() {
	c.ActiveTask = TaskNone
	c.ClarifyingFor = TaskNone
	c.Slots = map[string]string{}
	c.PendingConfirmation = nil
}

// CurrentTask resolves the task in progress, looking through a CLARIFYING
// hub state to the task that asked the question.
func (c *ConversationContext) CurrentTask() TaskState {
	if c.ActiveTask == TaskClarifying && c.ClarifyingFor != TaskNone && c.ClarifyingFor != "" {
		return c.ClarifyingFor
	}
	return c.ActiveTask
}

// Clone returns a deep copy so a turn can mutate freely and commit the
// result atomically at turn end.
func (c *ConversationContext) Clone() *ConversationContext {
	out := *c
	out.Slots = make(map[string]string, len(c.Slots))
	for k, v := range c.Slots {
		out.Slots[k] = v
	}
	if c.PendingConfirmation != nil {
		pc := *c.PendingConfirmation
		if c.PendingConfirmation.Action.Payload != nil {
			pc.Action.Payload = make(map[string]string, len(c.PendingConfirmation.Action.Payload))
			for k, v := range c.PendingConfirmation.Action.Payload {
				pc.Action.Payload[k] = v
			}
		}
		out.PendingConfirmation = &pc
	}
	if c.LastSearchFilters != nil {
		f := *c.LastSearchFilters
		out.LastSearchFilters = &f
	}
	return &out
}
