// internal/orders/order-workflow/workflow.go
package orderworkflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/models"
)

// OrdersRepository is the persistence surface the workflow drives.
type OrdersRepository interface {
	Get(ctx context.Context, orderID int64) (*models.Order, error)
	Create(ctx context.Context, userID, productID int64, quantity int) (*models.Order, error)
	Cancel(ctx context.Context, orderID int64) (*models.Order, error)
}

// ProductFinder resolves the product a user named in conversation.
type ProductFinder interface {
	FindByName(ctx context.Context, name string) (*models.Product, error)
}

// Machine runs order actions through their confirmation lifecycle.
// Destructive actions (create, cancel) are parked as a PendingAction in
// the CONFIRMING state and only executed once the user says yes; tracking
// is read-only and executes immediately.
type Machine struct {
	orders  OrdersRepository
	catalog ProductFinder
	logger  logger.Logger
}

func NewMachine(orders OrdersRepository, catalog ProductFinder, log logger.Logger) *Machine {
	return &Machine{
		orders:  orders,
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"component": "order-workflow"}),
	}
}

// Begin validates an order action and parks it pending confirmation. The
// returned PendingAction is in the CONFIRMING state; its Prompt is the
// question the assistant asks the user.
func (m *Machine) Begin(ctx context.Context, action models.OrderAction) (*models.PendingAction, error) {
	var prompt string

	switch action.Type {
	case models.OrderActionCreate:
		name := action.Payload["product"]
		product, err := m.catalog.FindByName(ctx, name)
		if err != nil {
			return nil, apperrors.NewCatalogQueryFailedError(err)
		}
		if product == nil {
			return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("no product matches %q", name))
		}
		quantity := 1
		if q, err := strconv.Atoi(action.Payload["quantity"]); err == nil && q > 0 {
			quantity = q
		}
		if product.Stock < quantity {
			return nil, apperrors.NewInsufficientStockError(product.Name, product.Stock)
		}
		action.Payload["productId"] = strconv.FormatInt(product.ID, 10)
		action.Payload["quantity"] = strconv.Itoa(quantity)
		prompt = fmt.Sprintf("You want to order %d x %s at $%.2f each ($%.2f total). Shall I place the order?",
			quantity, product.Name, product.Price, product.Price*float64(quantity))

	case models.OrderActionCancel:
		order, err := m.orders.Get(ctx, action.OrderID)
		if err != nil {
			return nil, err
		}
		if order.Status == models.OrderCancelled {
			return nil, apperrors.NewOrderAlreadyCancelledError(action.OrderID)
		}
		if !order.Status.CanTransition(models.OrderCancelled) {
			return nil, apperrors.NewOrderInvalidStateError(action.OrderID,
				fmt.Sprintf("order is already %s", order.Status))
		}
		prompt = fmt.Sprintf("Order #%d ($%.2f, %s) will be cancelled. Are you sure?",
			order.ID, order.TotalAmount, order.Status)

	default:
		return nil, apperrors.NewInternalError(fmt.Errorf("action %s does not need confirmation", action.Type))
	}

	return &models.PendingAction{
		Action:      action,
		State:       models.WorkflowConfirming,
		Prompt:      prompt,
		RequestedAt: time.Now().UTC(),
	}, nil
}

// Confirm executes a parked action after the user said yes. The action is
// re-validated at execution time: stock and order status may have changed
// between the prompt and the answer.
func (m *Machine) Confirm(ctx context.Context, userID int64, pending *models.PendingAction) (*models.Order, error) {
	if pending == nil || pending.State != models.WorkflowConfirming {
		return nil, apperrors.NewInternalError(fmt.Errorf("no action awaiting confirmation"))
	}

	var order *models.Order
	var err error

	switch pending.Action.Type {
	case models.OrderActionCreate:
		productID, perr := strconv.ParseInt(pending.Action.Payload["productId"], 10, 64)
		if perr != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("pending create without product id"))
		}
		quantity, _ := strconv.Atoi(pending.Action.Payload["quantity"])
		if quantity <= 0 {
			quantity = 1
		}
		order, err = m.orders.Create(ctx, userID, productID, quantity)

	case models.OrderActionCancel:
		order, err = m.orders.Cancel(ctx, pending.Action.OrderID)

	default:
		return nil, apperrors.NewInternalError(fmt.Errorf("unexpected pending action %s", pending.Action.Type))
	}

	if err != nil {
		return nil, err
	}
	pending.State = models.WorkflowConfirmed
	m.logger.Info("Pending action confirmed", map[string]interface{}{
		"actionType": pending.Action.Type,
		"orderId":    order.ID,
	})
	return order, nil
}

// Abort abandons a parked action after the user said no. Nothing is
// persisted and nothing about the store changes.
func (m *Machine) Abort(pending *models.PendingAction) {
	if pending == nil {
		return
	}
	pending.State = models.WorkflowCancelledByUser
	m.logger.Info("Pending action abandoned", map[string]interface{}{
		"actionType": pending.Action.Type,
	})
}

// Track reads an order's current status. No confirmation is involved.
func (m *Machine) Track(ctx context.Context, orderID int64) (*models.Order, error) {
	return m.orders.Get(ctx, orderID)
}
