// internal/repository/orders/repository.go
package orders

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
	"shop-assistant/internal/models"
)

// Repository persists orders and enforces the status transition table at
// the storage boundary.
type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "orders-repository"}),
	}
}

// Get loads a single order by id.
func (r *Repository) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	var o models.Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, total_amount, created_at, updated_at
		FROM orders WHERE id = $1`, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewOrderNotFoundError(orderID)
	}
	if err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("load order %d: %w", orderID, err))
	}
	return &o, nil
}

// Create inserts an order for one product in a single transaction. Stock
// is checked and decremented inside the same transaction so two
// concurrent orders cannot both take the last unit.
func (r *Repository) Create(ctx context.Context, userID, productID int64, quantity int) (*models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	var name string
	var price float64
	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT name, price, stock FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&name, &price, &stock)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("product %d not found", productID))
	}
	if err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("lock product %d: %w", productID, err))
	}
	if stock < quantity {
		return nil, apperrors.NewInsufficientStockError(name, stock)
	}

	item := models.OrderItem{
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  price,
		TotalPrice: price * float64(quantity),
	}

	var o models.Order
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, user_id, status, total_amount, created_at, updated_at`,
		userID, models.OrderPending, item.TotalPrice).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("insert order: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice); err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("insert order item: %w", err))
	}
	o.Items = []models.OrderItem{item}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = stock - $1 WHERE id = $2`,
		quantity, productID); err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("decrement stock: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("commit order: %w", err))
	}

	r.logger.Info("Order created", map[string]interface{}{
		"orderId":  o.ID,
		"userId":   userID,
		"quantity": quantity,
	})
	return &o, nil
}

// UpdateStatus moves an order to a new status, rejecting moves the
// transition table forbids.
func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, to models.OrderStatus) (*models.Order, error) {
	o, err := r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(to) {
		return nil, apperrors.NewOrderInvalidStateError(orderID,
			fmt.Sprintf("cannot move from %s to %s", o.Status, to))
	}

	err = r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, user_id, status, total_amount, created_at, updated_at`,
		to, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("update order %d: %w", orderID, err))
	}
	return o, nil
}

// Cancel cancels an order and restores the reserved stock in a single
// transaction. Terminal orders are rejected; a second cancel of the same
// order reports ORDER_ALREADY_CANCELLED.
func (r *Repository) Cancel(ctx context.Context, orderID int64) (*models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	var o models.Order
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, status, total_amount, created_at, updated_at
		FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewOrderNotFoundError(orderID)
	}
	if err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("lock order %d: %w", orderID, err))
	}

	if o.Status == models.OrderCancelled {
		return nil, apperrors.NewOrderAlreadyCancelledError(orderID)
	}
	if !o.Status.CanTransition(models.OrderCancelled) {
		return nil, apperrors.NewOrderInvalidStateError(orderID,
			fmt.Sprintf("cannot cancel an order in status %s", o.Status))
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products p SET stock = p.stock + oi.quantity
		FROM order_items oi
		WHERE oi.order_id = $1 AND oi.product_id = p.id`, orderID); err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("restore stock: %w", err))
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, user_id, status, total_amount, created_at, updated_at`,
		models.OrderCancelled, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("cancel order %d: %w", orderID, err))
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewOrderCreateFailedError(fmt.Errorf("commit cancel: %w", err))
	}

	r.logger.Info("Order cancelled", map[string]interface{}{"orderId": orderID})
	return &o, nil
}
