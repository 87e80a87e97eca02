package models

import "time"

// AgentStatus represents the availability of a delivery agent.
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "available"
	AgentStatusBusy      AgentStatus = "busy"
	AgentStatusOffline   AgentStatus = "offline"
)

// DeliveryAgent carries orders from the store to customers.
// Lat/Lng hold the last reported fix and are nil until the first report.
type DeliveryAgent struct {
	ID           int64       `db:"id" json:"id"`
	Name         string      `db:"name" json:"name"`
	Phone        string      `db:"phone" json:"phone"`
	Vehicle      string      `db:"vehicle" json:"vehicle"`
	Status       AgentStatus `db:"status" json:"status"`
	PasswordHash string      `db:"password_hash" json:"-"`
	Lat          *float64    `db:"current_lat" json:"current_lat,omitempty"`
	Lng          *float64    `db:"current_lng" json:"current_lng,omitempty"`
	LastSeenAt   *time.Time  `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}
