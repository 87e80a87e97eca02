package repository

import (
	"context"
	"time"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

type RejectionRepository struct {
	db *db.DB
}

func NewRejectionRepository(d *db.DB) *RejectionRepository {
	return &RejectionRepository{db: d}
}

func (r *RejectionRepository) Create(ctx context.Context, orderID, agentID int64, reason string) (*models.OrderRejection, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Q(`INSERT INTO order_rejections (order_id, agent_id, reason) VALUES (?,?,?) RETURNING id`),
		orderID, agentID, reason).Scan(&id)
	if err != nil {
		return nil, err
	}
	return &models.OrderRejection{ID: id, OrderID: orderID, AgentID: agentID, Reason: reason, CreatedAt: time.Now()}, nil
}

func (r *RejectionRepository) ListByOrder(ctx context.Context, orderID int64) ([]models.OrderRejection, error) {
	return r.list(ctx, `SELECT id, order_id, agent_id, reason, created_at FROM order_rejections WHERE order_id = ? ORDER BY id`, orderID)
}

// ListRecent returns the newest rejections first.
func (r *RejectionRepository) ListRecent(ctx context.Context, limit int) ([]models.OrderRejection, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return r.list(ctx, `SELECT id, order_id, agent_id, reason, created_at FROM order_rejections ORDER BY id DESC LIMIT ?`, limit)
}

// HasRejected reports whether the agent already declined the order.
func (r *RejectionRepository) HasRejected(ctx context.Context, orderID, agentID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := r.db.QueryRowContext(ctx, r.db.Q(`SELECT COUNT(*) FROM order_rejections WHERE order_id = ? AND agent_id = ?`), orderID, agentID).Scan(&n)
	return n > 0, err
}

func (r *RejectionRepository) list(ctx context.Context, query string, args ...any) ([]models.OrderRejection, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, r.db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.OrderRejection
	for rows.Next() {
		var rej models.OrderRejection
		var created any
		if err := rows.Scan(&rej.ID, &rej.OrderID, &rej.AgentID, &rej.Reason, &created); err != nil {
			return nil, err
		}
		rej.CreatedAt = db.ParseTime(created)
		out = append(out, rej)
	}
	return out, rows.Err()
}
