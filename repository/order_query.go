package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"groceryDelivery/models"
)

// ListByCustomer returns all orders for a customer, newest first, with items.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, r.db.Q(`SELECT `+orderColumns+` FROM orders WHERE customer_id = ? ORDER BY id DESC`), customerID)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows, true)
}

// ListByAgent returns the orders assigned to an agent that are not finished yet.
func (r *OrderRepository) ListByAgent(ctx context.Context, agentID int64) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, r.db.Q(`SELECT `+orderColumns+` FROM orders WHERE agent_id = ? AND status NOT IN (?, ?) ORDER BY id`),
		agentID, string(models.OrderStatusDelivered), string(models.OrderStatusCancelled))
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows, true)
}

// ListOrdersAdminParams represents filters and pagination for ListAdmin (admin).
type ListOrdersAdminParams struct {
	Statuses   []models.OrderStatus
	CustomerID *int64
	AgentID    *int64
	PageSize   int
	AfterID    int64 // keyset cursor: return orders with id < AfterID
}

// ListAdmin returns orders matching filters ordered by id desc with keyset pagination.
func (r *OrderRepository) ListAdmin(ctx context.Context, p ListOrdersAdminParams) ([]models.Order, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var where []string
	var args []any

	if len(p.Statuses) > 0 {
		for _, s := range p.Statuses {
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+placeholders(len(p.Statuses))+")")
	}
	if p.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, *p.CustomerID)
	}
	if p.AgentID != nil {
		where = append(where, "agent_id = ?")
		args = append(args, *p.AgentID)
	}
	if p.AfterID > 0 {
		where = append(where, "id < ?")
		args = append(args, p.AfterID)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, p.PageSize)

	rows, err := r.db.QueryContext(ctx, r.db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows, true)
}

// ListActiveDeliveries returns orders with an agent that are ready for or out for delivery.
func (r *OrderRepository) ListActiveDeliveries(ctx context.Context) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, r.db.Q(`SELECT `+orderColumns+` FROM orders WHERE agent_id IS NOT NULL AND status IN (?, ?) ORDER BY id`),
		string(models.OrderStatusReadyForDelivery), string(models.OrderStatusOutForDelivery))
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows, false)
}

// CountByStatus returns the number of orders per status. Missing statuses are absent.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[models.OrderStatus]int{}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[models.OrderStatus(s)] = n
	}
	return out, rows.Err()
}

// Revenue sums total_amount over delivered orders.
func (r *OrderRepository) Revenue(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, r.db.Q(`SELECT SUM(total_amount) FROM orders WHERE status = ?`), string(models.OrderStatusDelivered)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

// collect is a helper to scan rows into Order objects, optionally loading items.
func (r *OrderRepository) collect(ctx context.Context, rows *sql.Rows, withItems bool) ([]models.Order, error) {
	defer rows.Close()
	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if withItems {
		if err := r.loadItems(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
