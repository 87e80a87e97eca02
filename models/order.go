package models

import "time"

// OrderStatus represents the current progress of an order.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusConfirmed        OrderStatus = "confirmed"
	OrderStatusPreparing        OrderStatus = "preparing"
	OrderStatusReadyForDelivery OrderStatus = "ready_for_delivery"
	OrderStatusOutForDelivery   OrderStatus = "out_for_delivery"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

// Order is a grocery order placed by a customer and optionally carried by a delivery agent.
type Order struct {
	ID            int64         `db:"id" json:"id"`
	CustomerID    int64         `db:"customer_id" json:"customer_id"`
	AgentID       *int64        `db:"agent_id" json:"agent_id,omitempty"`
	Status        OrderStatus   `db:"status" json:"status"`
	TotalAmount   float64       `db:"total_amount" json:"total_amount"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	PaymentID     string        `db:"payment_id" json:"payment_id,omitempty"`
	Address       string        `db:"delivery_address" json:"delivery_address"`
	// Delivery coordinates are nullable until the address is geocoded.
	DeliveryLat *float64    `db:"delivery_lat" json:"delivery_lat,omitempty"`
	DeliveryLng *float64    `db:"delivery_lng" json:"delivery_lng,omitempty"`
	Items       []OrderItem `json:"items,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderItem is a single product line of an order, priced at placement time.
type OrderItem struct {
	ID          int64   `db:"id" json:"id"`
	OrderID     int64   `db:"order_id" json:"order_id"`
	ProductID   int64   `db:"product_id" json:"product_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	Quantity    int     `db:"quantity" json:"quantity"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
}

// OrderRejection records a delivery agent declining an assigned order.
type OrderRejection struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	AgentID   int64     `db:"agent_id" json:"agent_id"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
