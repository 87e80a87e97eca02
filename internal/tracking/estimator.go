// Package tracking turns agent and customer fixes into a distance, an ETA, and a
// coarse proximity status, and periodically refreshes those for active deliveries.
package tracking

import (
	"math"
	"time"

	"groceryDelivery/internal/geo"
	"groceryDelivery/models"
)

// Status is the customer-facing proximity of a delivery.
type Status string

const (
	StatusAssigned  Status = "assigned"
	StatusPickedUp  Status = "picked_up"
	StatusOnTheWay  Status = "on_the_way"
	StatusNearby    Status = "nearby"
	StatusDelivered Status = "delivered"
)

const (
	// NearbyKm and OnTheWayKm are the proximity thresholds used by Classify.
	NearbyKm   = 0.1
	OnTheWayKm = 0.5

	// MetersPerMinute is the simulated agent speed (about 18 km/h).
	MetersPerMinute = 300.0
	// BaseSpeedKmh is the route-analysis base speed before the hour-of-day multiplier.
	BaseSpeedKmh = 18.0
)

// Mode selects the ETA heuristic.
type Mode string

const (
	ModeSimple        Mode = "simple"
	ModeRouteAnalysis Mode = "route"
)

// Update is the derived tracking state for one order at one instant.
type Update struct {
	OrderID          int64              `json:"orderId"`
	AgentID          int64              `json:"agentId,omitempty"`
	CustomerID       int64              `json:"customerId,omitempty"`
	AgentLocation    models.LocationFix `json:"agentLocation"`
	CustomerLocation models.LocationFix `json:"customerLocation"`
	DistanceKm       float64            `json:"distanceKm"`
	EtaMinutes       int                `json:"etaMinutes"`
	Status           Status             `json:"status"`
	OrderStatus      models.OrderStatus `json:"orderStatus"`
	ComputedAt       time.Time          `json:"computedAt"`
}

// Classify maps a distance to a proximity status using the fixed thresholds.
func Classify(distanceKm float64) Status {
	switch {
	case distanceKm < NearbyKm:
		return StatusNearby
	case distanceKm < OnTheWayKm:
		return StatusOnTheWay
	default:
		return StatusPickedUp
	}
}

// TrafficMultiplier returns the delay factor for the given hour of day (0-23).
func TrafficMultiplier(hour int) float64 {
	switch {
	case (hour >= 8 && hour < 10) || (hour >= 17 && hour < 20):
		return 1.5
	case hour >= 22 || hour < 6:
		return 0.8
	default:
		return 1.0
	}
}

// Estimator computes distance and ETA between two fixes.
type Estimator struct {
	Mode Mode
	Now  func() time.Time
}

func NewEstimator(mode Mode) *Estimator {
	if mode != ModeRouteAnalysis {
		mode = ModeSimple
	}
	return &Estimator{Mode: mode, Now: time.Now}
}

// ETAMinutes converts a distance to whole minutes, rounding up.
func (e *Estimator) ETAMinutes(distanceKm float64) int {
	if distanceKm <= 0 {
		return 0
	}
	var minutes float64
	switch e.Mode {
	case ModeRouteAnalysis:
		minutes = distanceKm / BaseSpeedKmh * 60 * TrafficMultiplier(e.Now().Hour())
	default:
		minutes = geo.KmToMeters(distanceKm) / MetersPerMinute
	}
	return int(math.Ceil(minutes))
}

// Estimate builds an Update for the order. It returns ok=false when either fix is missing.
// Orders not yet out for delivery report assigned; delivered orders report delivered.
func (e *Estimator) Estimate(orderID int64, orderStatus models.OrderStatus, agent, customer *models.LocationFix) (Update, bool) {
	if agent == nil || customer == nil {
		return Update{}, false
	}
	d := geo.HaversineKm(geo.Point{Lat: agent.Lat, Lng: agent.Lng}, geo.Point{Lat: customer.Lat, Lng: customer.Lng})
	u := Update{
		OrderID:          orderID,
		AgentLocation:    *agent,
		CustomerLocation: *customer,
		DistanceKm:       d,
		EtaMinutes:       e.ETAMinutes(d),
		OrderStatus:      orderStatus,
		ComputedAt:       e.Now(),
	}
	switch orderStatus {
	case models.OrderStatusDelivered:
		u.Status = StatusDelivered
		u.EtaMinutes = 0
	case models.OrderStatusOutForDelivery:
		u.Status = Classify(d)
	default:
		u.Status = StatusAssigned
	}
	return u, true
}
