package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"groceryDelivery/internal/db"
	"groceryDelivery/models"
)

const trackingColumns = `id, order_id, agent_id, lat, lng, accuracy, timestamp_ms, created_at`

// TrackingRepository appends agent fixes to delivery_tracking.
type TrackingRepository struct {
	db *db.DB
}

func NewTrackingRepository(d *db.DB) *TrackingRepository {
	return &TrackingRepository{db: d}
}

func scanTracking(s rowScanner) (*models.TrackingRecord, error) {
	var t models.TrackingRecord
	var acc sql.NullFloat64
	var created any
	if err := s.Scan(&t.ID, &t.OrderID, &t.AgentID, &t.Lat, &t.Lng, &acc, &t.TimestampMs, &created); err != nil {
		return nil, err
	}
	t.Accuracy = floatPtr(acc)
	t.CreatedAt = db.ParseTime(created)
	return &t, nil
}

func (r *TrackingRepository) Append(ctx context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error) {
	if rec == nil {
		return nil, errors.New("tracking record is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Q(`INSERT INTO delivery_tracking (order_id, agent_id, lat, lng, accuracy, timestamp_ms) VALUES (?,?,?,?,?,?) RETURNING id`),
		rec.OrderID, rec.AgentID, rec.Lat, rec.Lng, nullFloat(rec.Accuracy), rec.TimestampMs).Scan(&id)
	if err != nil {
		return nil, err
	}
	out := *rec
	out.ID = id
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	return &out, nil
}

// Latest returns the most recent fix for an order, or nil if there is none.
func (r *TrackingRepository) Latest(ctx context.Context, orderID int64) (*models.TrackingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	t, err := scanTracking(r.db.QueryRowContext(ctx, r.db.Q(`SELECT `+trackingColumns+` FROM delivery_tracking WHERE order_id = ? ORDER BY id DESC LIMIT 1`), orderID))
	if isNoRows(err) {
		return nil, nil
	}
	return t, err
}

// History returns up to limit most recent fixes for an order in chronological order.
func (r *TrackingRepository) History(ctx context.Context, orderID int64, limit int) ([]models.TrackingRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, r.db.Q(`SELECT `+trackingColumns+` FROM delivery_tracking WHERE order_id = ? ORDER BY id DESC LIMIT ?`), orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.TrackingRecord
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
