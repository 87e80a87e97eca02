// Package orderstatus holds the fixed order lifecycle table: display metadata
// for each status and the legal transitions between them.
package orderstatus

import "groceryDelivery/models"

// Info describes how a status is displayed and where it may move next.
type Info struct {
	Status          models.OrderStatus   `json:"status"`
	Label           string               `json:"label"`
	Color           string               `json:"color"`
	BgColor         string               `json:"bgColor"`
	Icon            string               `json:"icon"`
	IsTerminal      bool                 `json:"isTerminal"`
	CanTransitionTo []models.OrderStatus `json:"canTransitionTo"`
	// EstimatedTime is a duration hint in minutes; nil for terminal statuses.
	EstimatedTime *int `json:"estimatedTime,omitempty"`
}

func minutes(n int) *int { return &n }

// table is in display order. Terminal entries carry empty transition sets.
var table = []Info{
	{
		Status: models.OrderStatusPending, Label: "Order Pending",
		Color: "text-yellow-600", BgColor: "bg-yellow-100", Icon: "clock",
		CanTransitionTo: []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusCancelled},
		EstimatedTime:   minutes(5),
	},
	{
		Status: models.OrderStatusConfirmed, Label: "Order Confirmed",
		Color: "text-blue-600", BgColor: "bg-blue-100", Icon: "check-circle",
		CanTransitionTo: []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusCancelled},
		EstimatedTime:   minutes(10),
	},
	{
		Status: models.OrderStatusPreparing, Label: "Preparing Order",
		Color: "text-orange-600", BgColor: "bg-orange-100", Icon: "package",
		CanTransitionTo: []models.OrderStatus{models.OrderStatusReadyForDelivery, models.OrderStatusCancelled},
		EstimatedTime:   minutes(15),
	},
	{
		Status: models.OrderStatusReadyForDelivery, Label: "Ready for Delivery",
		Color: "text-purple-600", BgColor: "bg-purple-100", Icon: "shopping-bag",
		CanTransitionTo: []models.OrderStatus{models.OrderStatusOutForDelivery, models.OrderStatusCancelled},
		EstimatedTime:   minutes(5),
	},
	{
		Status: models.OrderStatusOutForDelivery, Label: "Out for Delivery",
		Color: "text-indigo-600", BgColor: "bg-indigo-100", Icon: "truck",
		CanTransitionTo: []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled},
		EstimatedTime:   minutes(30),
	},
	{
		Status: models.OrderStatusDelivered, Label: "Delivered",
		Color: "text-green-600", BgColor: "bg-green-100", Icon: "check-circle-2",
		IsTerminal: true, CanTransitionTo: []models.OrderStatus{},
	},
	{
		Status: models.OrderStatusCancelled, Label: "Cancelled",
		Color: "text-red-600", BgColor: "bg-red-100", Icon: "x-circle",
		IsTerminal: true, CanTransitionTo: []models.OrderStatus{},
	},
}

var flow = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
	models.OrderStatusPreparing,
	models.OrderStatusReadyForDelivery,
	models.OrderStatusOutForDelivery,
}

var index = func() map[models.OrderStatus]int {
	m := make(map[models.OrderStatus]int, len(table))
	for i, in := range table {
		m[in.Status] = i
	}
	return m
}()

func unknown(s models.OrderStatus) Info {
	return Info{
		Status:          s,
		Label:           "Unknown",
		Color:           "text-gray-600",
		BgColor:         "bg-gray-100",
		Icon:            "help-circle",
		CanTransitionTo: []models.OrderStatus{},
	}
}

// clone copies the slice fields so callers cannot mutate the table.
func clone(in Info) Info {
	out := in
	out.CanTransitionTo = append([]models.OrderStatus{}, in.CanTransitionTo...)
	if in.EstimatedTime != nil {
		out.EstimatedTime = minutes(*in.EstimatedTime)
	}
	return out
}

// GetStatusInfo returns the descriptor for s, or an "Unknown" descriptor for unrecognized tags.
func GetStatusInfo(s models.OrderStatus) Info {
	i, ok := index[s]
	if !ok {
		return unknown(s)
	}
	return clone(table[i])
}

// GetStatusFlow returns the canonical non-terminal sequence used for progress rendering.
func GetStatusFlow() []models.OrderStatus {
	return append([]models.OrderStatus{}, flow...)
}

// GetAllStatuses returns every known status with its metadata in display order.
func GetAllStatuses() []Info {
	out := make([]Info, 0, len(table))
	for _, in := range table {
		out = append(out, clone(in))
	}
	return out
}

// IsKnown reports whether s is one of the fixed tags.
func IsKnown(s models.OrderStatus) bool {
	_, ok := index[s]
	return ok
}

// IsTerminal reports whether s has no further legal transitions.
func IsTerminal(s models.OrderStatus) bool {
	i, ok := index[s]
	return ok && table[i].IsTerminal
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to models.OrderStatus) bool {
	i, ok := index[from]
	if !ok {
		return false
	}
	for _, next := range table[i].CanTransitionTo {
		if next == to {
			return true
		}
	}
	return false
}

// Progress returns the 1-based step of s within the flow and the flow length.
// Delivered reports a completed bar; cancelled and unknown tags report step 0.
func Progress(s models.OrderStatus) (step, total int) {
	total = len(flow)
	if s == models.OrderStatusDelivered {
		return total, total
	}
	for i, f := range flow {
		if f == s {
			return i + 1, total
		}
	}
	return 0, total
}
