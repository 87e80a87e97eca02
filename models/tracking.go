package models

import "time"

// LocationFix is a single GPS reading from a device.
type LocationFix struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Accuracy    *float64 `json:"accuracy"`
	TimestampMs int64    `json:"timestampMs"`
}

// TrackingRecord is a persisted agent fix for an order (`delivery_tracking` table).
type TrackingRecord struct {
	ID          int64     `db:"id" json:"id"`
	OrderID     int64     `db:"order_id" json:"order_id"`
	AgentID     int64     `db:"agent_id" json:"agent_id"`
	Lat         float64   `db:"lat" json:"lat"`
	Lng         float64   `db:"lng" json:"lng"`
	Accuracy    *float64  `db:"accuracy" json:"accuracy,omitempty"`
	TimestampMs int64     `db:"timestamp_ms" json:"timestamp_ms"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Fix converts the record back to a LocationFix.
func (r *TrackingRecord) Fix() LocationFix {
	return LocationFix{Lat: r.Lat, Lng: r.Lng, Accuracy: r.Accuracy, TimestampMs: r.TimestampMs}
}

// Notification is an outbound customer message (WhatsApp click-to-chat link).
type Notification struct {
	ID        string     `db:"id" json:"id"`
	OrderID   int64      `db:"order_id" json:"order_id"`
	Phone     string     `db:"phone" json:"phone"`
	Message   string     `db:"message" json:"message"`
	Link      string     `db:"link" json:"link"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
