package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

const orderColumns = `id, customer_id, agent_id, status, total_amount, payment_method, payment_id, delivery_address, delivery_lat, delivery_lng, created_at, updated_at`

// OrderRepository is the core repository for Order entities.
// It handles basic CRUD operations and query building.
type OrderRepository struct {
	db *db.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(d *db.DB) *OrderRepository {
	return &OrderRepository{db: d}
}

func scanOrder(s rowScanner) (*models.Order, error) {
	var o models.Order
	var agentID sql.NullInt64
	var status, payment string
	var lat, lng sql.NullFloat64
	var created, updated any
	if err := s.Scan(&o.ID, &o.CustomerID, &agentID, &status, &o.TotalAmount, &payment, &o.PaymentID, &o.Address, &lat, &lng, &created, &updated); err != nil {
		return nil, err
	}
	o.AgentID = int64Ptr(agentID)
	o.Status = models.OrderStatus(status)
	o.PaymentMethod = models.PaymentMethod(payment)
	o.DeliveryLat, o.DeliveryLng = floatPtr(lat), floatPtr(lng)
	o.CreatedAt = db.ParseTime(created)
	o.UpdatedAt = db.ParseTime(updated)
	return &o, nil
}

// Create inserts the order and its items in one transaction and decrements product
// stock for every line. ErrInsufficientStock aborts the whole order.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) (*models.Order, error) {
	if o == nil {
		return nil, errors.New("order is nil")
	}
	if len(o.Items) == 0 {
		return nil, errors.New("order has no items")
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	if o.PaymentMethod == "" {
		o.PaymentMethod = models.PaymentMethodCOD
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, r.db.Q(`INSERT INTO orders (customer_id, status, total_amount, payment_method, payment_id, delivery_address, delivery_lat, delivery_lng) VALUES (?,?,?,?,?,?,?,?) RETURNING id`),
		o.CustomerID, string(o.Status), o.TotalAmount, string(o.PaymentMethod), o.PaymentID, o.Address, nullFloat(o.DeliveryLat), nullFloat(o.DeliveryLng)).Scan(&id)
	if err != nil {
		return nil, err
	}
	insItem := r.db.Q(`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price) VALUES (?,?,?,?,?)`)
	decStock := r.db.Q(`UPDATE products SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND stock >= ?`)
	for _, it := range o.Items {
		if _, err := tx.ExecContext(ctx, insItem, id, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice); err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx, decStock, it.Quantity, it.ProductID, it.Quantity)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil, fmt.Errorf("product %d: %w", it.ProductID, ErrInsufficientStock)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("created order not found: id=%d", id)
	}
	return created, nil
}

// GetByID fetches an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRowContext(ctx, r.db.Q(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	orders := []models.Order{*o}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// UpdateStatus moves the order from one status to another only if it is still in
// the expected status. It reports false when another writer got there first.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`),
		string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AssignAgent sets the delivering agent on an order that is still in the given status.
func (r *OrderRepository) AssignAgent(ctx context.Context, id, agentID int64, status models.OrderStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE orders SET agent_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`),
		agentID, id, string(status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ClearAgent removes agentID from an order that has not left the store yet. It
// reports false when the order moved on or belongs to another agent.
func (r *OrderRepository) ClearAgent(ctx context.Context, id, agentID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE orders SET agent_id = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND agent_id = ? AND status IN (?, ?)`),
		id, agentID, string(models.OrderStatusPreparing), string(models.OrderStatusReadyForDelivery))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdateDeliveryLocation stores geocoded coordinates for the delivery address.
func (r *OrderRepository) UpdateDeliveryLocation(ctx context.Context, id int64, lat, lng float64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE orders SET delivery_lat = ?, delivery_lng = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`), lat, lng, id)
	return err
}

// loadItems fills Items for every order in place with a single query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(orders))
	args := make([]any, len(orders))
	for i, o := range orders {
		idx[o.ID] = i
		args[i] = o.ID
	}
	rows, err := r.db.QueryContext(ctx, r.db.Q(`SELECT id, order_id, product_id, product_name, quantity, unit_price FROM order_items WHERE order_id IN (`+placeholders(len(args))+`) ORDER BY id`), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return err
		}
		if i, ok := idx[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}
