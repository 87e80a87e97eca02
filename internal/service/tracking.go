package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/cache"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/geo"
	"groceryDelivery/internal/geocode"
	"groceryDelivery/internal/tracking"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

const (
	// estimateConcurrency bounds the fan-out in ActiveUpdates.
	estimateConcurrency = 8
	// geocodeRetryEvery spaces lookups for orders placed without coordinates.
	geocodeRetryEvery = time.Minute
)

// TrackingService records agent fixes and derives live tracking updates.
// Geocoder is optional; when set, orders whose address could not be geocoded at
// checkout are retried and the result is stored on the order.
type TrackingService struct {
	Orders    repository.OrderRepositoryI
	Agents    repository.AgentRepositoryI
	Customers repository.CustomerRepositoryI
	History   repository.TrackingRepositoryI
	Locations *cache.LocationCache
	Estimator *tracking.Estimator
	Geocoder  geocode.Geocoder
	Bus       *events.Bus
	Logger    *zap.Logger

	mu          sync.Mutex
	lastGeocode map[int64]time.Time
}

var _ tracking.ActiveSource = (*TrackingService)(nil)

func (s *TrackingService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// ReportLocation stores an agent fix, attaches it to every order the agent is
// carrying and publishes a tracking update for each.
func (s *TrackingService) ReportLocation(ctx context.Context, p *auth.Principal, fix models.LocationFix) ([]tracking.Update, error) {
	if !(geo.Point{Lat: fix.Lat, Lng: fix.Lng}).Valid() || (fix.Lat == 0 && fix.Lng == 0) {
		return nil, &apperrors.Validation{Message: "invalid coordinates", Fields: map[string]string{"lat": "-90..90", "lng": "-180..180"}}
	}
	if fix.Accuracy != nil && (*fix.Accuracy < 0 || math.IsNaN(*fix.Accuracy)) {
		fix.Accuracy = nil
	}
	if fix.TimestampMs <= 0 {
		fix.TimestampMs = time.Now().UnixMilli()
	}

	if err := s.Locations.SetAgentFix(ctx, p.ID, fix); err != nil {
		s.logger().Warn("cache agent fix", zap.Int64("agent_id", p.ID), zap.Error(err))
	}
	if err := s.Agents.UpdateLocation(ctx, p.ID, fix.Lat, fix.Lng, time.UnixMilli(fix.TimestampMs)); err != nil {
		return nil, fmt.Errorf("update agent location: %w", err)
	}

	orders, err := s.Orders.ListByAgent(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list agent orders: %w", err)
	}
	updates := []tracking.Update{}
	for i := range orders {
		o := &orders[i]
		if o.Status != models.OrderStatusReadyForDelivery && o.Status != models.OrderStatusOutForDelivery {
			continue
		}
		if err := s.Locations.SetOrderFix(ctx, o.ID, fix); err != nil {
			s.logger().Warn("cache order fix", zap.Int64("order_id", o.ID), zap.Error(err))
		}
		if _, err := s.History.Append(ctx, &models.TrackingRecord{
			OrderID: o.ID, AgentID: p.ID, Lat: fix.Lat, Lng: fix.Lng, Accuracy: fix.Accuracy, TimestampMs: fix.TimestampMs,
		}); err != nil {
			return nil, fmt.Errorf("append tracking: %w", err)
		}
		dest, err := s.destination(ctx, o)
		if err != nil {
			return nil, err
		}
		u, ok := s.Estimator.Estimate(o.ID, o.Status, &fix, dest)
		if !ok {
			continue
		}
		u.AgentID, u.CustomerID = p.ID, o.CustomerID
		updates = append(updates, u)
		if s.Bus != nil {
			s.Bus.Publish(events.Tracking, u)
		}
	}
	return updates, nil
}

// Track returns the latest estimate for an order, or nil when there is no agent fix
// or no delivery coordinate yet.
func (s *TrackingService) Track(ctx context.Context, p *auth.Principal, orderID int64) (*tracking.Update, error) {
	_, u, err := s.Snapshot(ctx, p, orderID)
	return u, err
}

// Snapshot is Track that also returns the order the estimate was built from.
func (s *TrackingService) Snapshot(ctx context.Context, p *auth.Principal, orderID int64) (*models.Order, *tracking.Update, error) {
	o, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("get order: %w", err)
	}
	if o == nil {
		return nil, nil, apperrors.NewNotFound("order", orderID)
	}
	if err := canView(p, o); err != nil {
		return nil, nil, err
	}
	u, err := s.estimate(ctx, o)
	if err != nil {
		return nil, nil, err
	}
	return o, u, nil
}

// Trail returns the recorded fixes for an order in chronological order.
func (s *TrackingService) Trail(ctx context.Context, p *auth.Principal, orderID int64, limit int) ([]models.TrackingRecord, error) {
	o, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o == nil {
		return nil, apperrors.NewNotFound("order", orderID)
	}
	if err := canView(p, o); err != nil {
		return nil, err
	}
	recs, err := s.History.History(ctx, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("tracking history: %w", err)
	}
	if recs == nil {
		recs = []models.TrackingRecord{}
	}
	return recs, nil
}

// ActiveUpdates estimates every active delivery. Orders without enough data, or
// whose lookups fail, are skipped.
func (s *TrackingService) ActiveUpdates(ctx context.Context) ([]tracking.Update, error) {
	orders, err := s.Orders.ListActiveDeliveries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active deliveries: %w", err)
	}
	results := make([]*tracking.Update, len(orders))

	var g errgroup.Group
	g.SetLimit(estimateConcurrency)
	for i := range orders {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			u, err := s.estimate(ctx, &orders[i])
			if err != nil {
				s.logger().Warn("estimate delivery", zap.Int64("order_id", orders[i].ID), zap.Error(err))
				return nil
			}
			results[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]tracking.Update, 0, len(results))
	for _, u := range results {
		if u != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *TrackingService) estimate(ctx context.Context, o *models.Order) (*tracking.Update, error) {
	agentFix, err := s.agentFix(ctx, o)
	if err != nil {
		return nil, err
	}
	dest, err := s.destination(ctx, o)
	if err != nil {
		return nil, err
	}
	u, ok := s.Estimator.Estimate(o.ID, o.Status, agentFix, dest)
	if !ok {
		return nil, nil
	}
	u.CustomerID = o.CustomerID
	if o.AgentID != nil {
		u.AgentID = *o.AgentID
	}
	return &u, nil
}

// agentFix prefers the cached fix for the order, then the last persisted one.
func (s *TrackingService) agentFix(ctx context.Context, o *models.Order) (*models.LocationFix, error) {
	if fix, err := s.Locations.OrderFix(ctx, o.ID); err != nil {
		s.logger().Warn("read cached order fix", zap.Int64("order_id", o.ID), zap.Error(err))
	} else if fix != nil {
		return fix, nil
	}
	rec, err := s.History.Latest(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("latest tracking: %w", err)
	}
	if rec != nil {
		fix := rec.Fix()
		return &fix, nil
	}
	if o.AgentID == nil {
		return nil, nil
	}
	fix, err := s.Locations.AgentFix(ctx, *o.AgentID)
	if err != nil {
		s.logger().Warn("read cached agent fix", zap.Int64("agent_id", *o.AgentID), zap.Error(err))
		return nil, nil
	}
	return fix, nil
}

// destination is the order's delivery point, then a fresh geocode of its address,
// then the customer's saved point.
func (s *TrackingService) destination(ctx context.Context, o *models.Order) (*models.LocationFix, error) {
	if o.DeliveryLat != nil && o.DeliveryLng != nil {
		return &models.LocationFix{Lat: *o.DeliveryLat, Lng: *o.DeliveryLng}, nil
	}
	if pt, ok := s.regeocode(ctx, o); ok {
		return &models.LocationFix{Lat: pt.Lat, Lng: pt.Lng}, nil
	}
	c, err := s.Customers.GetByID(ctx, o.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if c == nil || c.Lat == nil || c.Lng == nil {
		return nil, nil
	}
	return &models.LocationFix{Lat: *c.Lat, Lng: *c.Lng}, nil
}

// regeocode looks up the delivery address of an order stored without coordinates
// and saves the point on the order. Attempts per order are at least
// geocodeRetryEvery apart.
func (s *TrackingService) regeocode(ctx context.Context, o *models.Order) (geo.Point, bool) {
	if s.Geocoder == nil || strings.TrimSpace(o.Address) == "" {
		return geo.Point{}, false
	}
	now := time.Now()
	s.mu.Lock()
	if last, ok := s.lastGeocode[o.ID]; ok && now.Sub(last) < geocodeRetryEvery {
		s.mu.Unlock()
		return geo.Point{}, false
	}
	if s.lastGeocode == nil {
		s.lastGeocode = make(map[int64]time.Time)
	}
	s.lastGeocode[o.ID] = now
	s.mu.Unlock()

	pt, err := s.Geocoder.Geocode(ctx, o.Address)
	if err != nil {
		s.logger().Debug("retry geocode", zap.Int64("order_id", o.ID), zap.Error(err))
		return geo.Point{}, false
	}
	if err := s.Orders.UpdateDeliveryLocation(ctx, o.ID, pt.Lat, pt.Lng); err != nil {
		s.logger().Warn("store delivery location", zap.Int64("order_id", o.ID), zap.Error(err))
		return pt, true
	}
	s.mu.Lock()
	delete(s.lastGeocode, o.ID)
	s.mu.Unlock()
	return pt, true
}
