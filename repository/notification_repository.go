package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

type NotificationRepository struct {
	db *db.DB
}

func NewNotificationRepository(d *db.DB) *NotificationRepository {
	return &NotificationRepository{db: d}
}

// Create stores n, assigning a UUID when n.ID is empty.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n == nil {
		return nil, errors.New("notification is nil")
	}
	out := *n
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, r.db.Q(`INSERT INTO notifications (id, order_id, phone, message, link, created_at) VALUES (?,?,?,?,?,?)`),
		out.ID, out.OrderID, out.Phone, out.Message, out.Link, out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the newest notifications first.
func (r *NotificationRepository) List(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, r.db.Q(`SELECT id, order_id, phone, message, link, sent_at, created_at FROM notifications ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var sent, created any
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Phone, &n.Message, &n.Link, &sent, &created); err != nil {
			return nil, err
		}
		n.SentAt = db.ParseTimePtr(sent)
		n.CreatedAt = db.ParseTime(created)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkSent records when the link was opened or handed to a gateway.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := r.db.ExecContext(ctx, r.db.Q(`UPDATE notifications SET sent_at = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
