// internal/models/catalog.go
package models

import "time"

// Product is the catalog collaborator's read model.
type Product struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Brand       string  `json:"brand" db:"brand"`
	Price       float64 `json:"price" db:"price"`
	Category    string  `json:"category" db:"category"`
	Stock       int     `json:"stock" db:"stock"`
	Description string  `json:"description" db:"description"`
}

// InStock reports whether the product can currently be ordered.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// OrderStatus is the order lifecycle status kept by the persistence layer.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// validOrderTransitions encodes which status changes are legal. DELIVERED
// and CANCELLED are terminal.
var validOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

// CanTransition reports whether moving from one status to another is legal.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range validOrderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is the order collaborator's record. Items is filled on creation;
// status reads leave it empty.
type Order struct {
	ID          int64       `json:"id" db:"id"`
	UserID      int64       `json:"userId" db:"user_id"`
	Status      OrderStatus `json:"status" db:"status"`
	TotalAmount float64     `json:"totalAmount" db:"total_amount"`
	Items       []OrderItem `json:"items,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID  int64   `json:"productId" db:"product_id"`
	Quantity   int     `json:"quantity" db:"quantity"`
	UnitPrice  float64 `json:"unitPrice" db:"unit_price"`
	TotalPrice float64 `json:"totalPrice" db:"total_price"`
}
