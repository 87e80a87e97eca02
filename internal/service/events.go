package service

import (
	"time"

	"groceryDelivery/internal/orderstatus"
	"groceryDelivery/models"
)

// OrderChange is the payload of the orders event.
type OrderChange struct {
	Action string        `json:"action"` // created, assigned, rejected, status
	Order  *models.Order `json:"order"`
}

// StatusChange is the payload of the orderStatus event.
type StatusChange struct {
	OrderID    int64              `json:"orderId"`
	CustomerID int64              `json:"customerId"`
	AgentID    *int64             `json:"agentId,omitempty"`
	From       models.OrderStatus `json:"from"`
	To         models.OrderStatus `json:"to"`
	Label      string             `json:"label"`
	Step       int                `json:"step"`
	Steps      int                `json:"steps"`
	At         time.Time          `json:"at"`
}

// AgentChange is the payload of the deliveryAgents event.
type AgentChange struct {
	AgentID int64              `json:"agentId"`
	Status  models.AgentStatus `json:"status"`
	OrderID int64              `json:"orderId,omitempty"`
}

func newStatusChange(o *models.Order, from models.OrderStatus, at time.Time) StatusChange {
	step, steps := orderstatus.Progress(o.Status)
	return StatusChange{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		AgentID:    o.AgentID,
		From:       from,
		To:         o.Status,
		Label:      orderstatus.GetStatusInfo(o.Status).Label,
		Step:       step,
		Steps:      steps,
		At:         at,
	}
}
