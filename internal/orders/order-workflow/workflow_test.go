// internal/orders/order-workflow/workflow_test.go
package orderworkflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeOrders struct {
	orders      map[int64]*models.Order
	created     []int64
	cancelled   []int64
	nextOrderID int64
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[int64]*models.Order{}, nextOrderID: 100}
}

func (f *fakeOrders) Get(_ context.Context, orderID int64) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperrors.NewOrderNotFoundError(orderID)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) Create(_ context.Context, userID, productID int64, quantity int) (*models.Order, error) {
	f.nextOrderID++
	o := &models.Order{
		ID:        f.nextOrderID,
		UserID:    userID,
		Status:    models.OrderPending,
		CreatedAt: time.Now(),
	}
	f.orders[o.ID] = o
	f.created = append(f.created, productID)
	return o, nil
}

func (f *fakeOrders) Cancel(_ context.Context, orderID int64) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperrors.NewOrderNotFoundError(orderID)
	}
	if o.Status == models.OrderCancelled {
		return nil, apperrors.NewOrderAlreadyCancelledError(orderID)
	}
	o.Status = models.OrderCancelled
	f.cancelled = append(f.cancelled, orderID)
	cp := *o
	return &cp, nil
}

type fakeFinder struct {
	products map[string]*models.Product
}

func (f *fakeFinder) FindByName(_ context.Context, name string) (*models.Product, error) {
	return f.products[name], nil
}

func newTestMachine() (*Machine, *fakeOrders, *fakeFinder) {
	orders := newFakeOrders()
	finder := &fakeFinder{products: map[string]*models.Product{
		"XPS 13": {ID: 7, Name: "XPS 13", Brand: "Dell", Price: 1299, Stock: 3},
	}}
	return NewMachine(orders, finder, logger.NewNoOpLogger()), orders, finder
}

// ==========================
// Confirmation Lifecycle Tests
// ==========================

func TestMachine_CreateConfirmFlow(t *testing.T) {
	m, orders, _ := newTestMachine()
	ctx := context.Background()

	pending, err := m.Begin(ctx, models.OrderAction{
		Type:    models.OrderActionCreate,
		Payload: map[string]string{"product": "XPS 13", "quantity": "2"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowConfirming, pending.State)
	assert.Contains(t, pending.Prompt, "XPS 13")
	assert.Contains(t, pending.Prompt, "2 x")
	// Nothing persisted before the user answers.
	assert.Empty(t, orders.created)

	order, err := m.Confirm(ctx, 1, pending)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowConfirmed, pending.State)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, []int64{7}, orders.created)
}

func TestMachine_CancelConfirmFlow(t *testing.T) {
	m, orders, _ := newTestMachine()
	ctx := context.Background()
	orders.orders[55] = &models.Order{ID: 55, Status: models.OrderConfirmed, TotalAmount: 999}

	pending, err := m.Begin(ctx, models.OrderAction{Type: models.OrderActionCancel, OrderID: 55})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowConfirming, pending.State)
	assert.Contains(t, pending.Prompt, "#55")
	assert.Empty(t, orders.cancelled)

	order, err := m.Confirm(ctx, 1, pending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, order.Status)
	assert.Equal(t, []int64{55}, orders.cancelled)
}

func TestMachine_Abort(t *testing.T) {
	m, orders, _ := newTestMachine()
	orders.orders[56] = &models.Order{ID: 56, Status: models.OrderPending}

	pending, err := m.Begin(context.Background(), models.OrderAction{Type: models.OrderActionCancel, OrderID: 56})
	require.NoError(t, err)

	m.Abort(pending)
	assert.Equal(t, models.WorkflowCancelledByUser, pending.State)
	assert.Empty(t, orders.cancelled)
	assert.Equal(t, models.OrderPending, orders.orders[56].Status)
}

// ==========================
// Validation Tests
// ==========================

func TestMachine_BeginRejections(t *testing.T) {
	m, orders, _ := newTestMachine()
	ctx := context.Background()
	orders.orders[60] = &models.Order{ID: 60, Status: models.OrderCancelled}
	orders.orders[61] = &models.Order{ID: 61, Status: models.OrderDelivered}

	tests := []struct {
		name     string
		action   models.OrderAction
		expected apperrors.ErrorCode
	}{
		{
			name:     "unknown product",
			action:   models.OrderAction{Type: models.OrderActionCreate, Payload: map[string]string{"product": "Nonexistent"}},
			expected: apperrors.ErrCodeOrderCreateFailed,
		},
		{
			name:     "insufficient stock",
			action:   models.OrderAction{Type: models.OrderActionCreate, Payload: map[string]string{"product": "XPS 13", "quantity": "10"}},
			expected: apperrors.ErrCodeInsufficientStock,
		},
		{
			name:     "cancel missing order",
			action:   models.OrderAction{Type: models.OrderActionCancel, OrderID: 999},
			expected: apperrors.ErrCodeOrderNotFound,
		},
		{
			name:     "cancel twice",
			action:   models.OrderAction{Type: models.OrderActionCancel, OrderID: 60},
			expected: apperrors.ErrCodeOrderAlreadyCancelled,
		},
		{
			name:     "cancel delivered order",
			action:   models.OrderAction{Type: models.OrderActionCancel, OrderID: 61},
			expected: apperrors.ErrCodeOrderInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Begin(ctx, tt.action)
			require.Error(t, err)
			assert.Equal(t, tt.expected, apperrors.CodeOf(err))
		})
	}
}

func TestMachine_ConfirmWithoutPending(t *testing.T) {
	m, _, _ := newTestMachine()

	_, err := m.Confirm(context.Background(), 1, nil)
	require.Error(t, err)

	done := &models.PendingAction{State: models.WorkflowConfirmed}
	_, err = m.Confirm(context.Background(), 1, done)
	assert.Error(t, err)
}

func TestMachine_Track(t *testing.T) {
	m, orders, _ := newTestMachine()
	orders.orders[70] = &models.Order{ID: 70, Status: models.OrderShipped}

	order, err := m.Track(context.Background(), 70)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, order.Status)

	_, err = m.Track(context.Background(), 71)
	assert.Equal(t, apperrors.ErrCodeOrderNotFound, apperrors.CodeOf(err))
}
