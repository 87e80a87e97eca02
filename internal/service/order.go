package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/cache"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/geocode"
	"groceryDelivery/internal/metrics"
	"groceryDelivery/internal/notify"
	"groceryDelivery/internal/orderstatus"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// OrderService implements the order lifecycle for customers, agents and admins.
// Geocoder, Locations, Notifier, Metrics and Bus are optional.
type OrderService struct {
	Orders     repository.OrderRepositoryI
	Products   repository.ProductRepositoryI
	Customers  repository.CustomerRepositoryI
	Agents     repository.AgentRepositoryI
	Rejections repository.RejectionRepositoryI
	Carts      *CartService

	Geocoder  geocode.Geocoder
	Locations *cache.LocationCache
	Notifier  *notify.Notifier
	Metrics   *metrics.Metrics
	Bus       *events.Bus
	Logger    *zap.Logger

	// Now is swapped in tests.
	Now func() time.Time
}

// PlaceOrderInput carries checkout details. Address and coordinates default to the customer's saved ones.
type PlaceOrderInput struct {
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PaymentID     string               `json:"payment_id"`
	Address       string               `json:"delivery_address"`
	Lat           *float64             `json:"delivery_lat"`
	Lng           *float64             `json:"delivery_lng"`
}

// Stats is the admin dashboard snapshot.
type Stats struct {
	Counts           map[models.OrderStatus]int `json:"counts"`
	TotalOrders      int                        `json:"total_orders"`
	Revenue          float64                    `json:"revenue"`
	ActiveAgents     int                        `json:"active_agents"`
	ActiveDeliveries int                        `json:"active_deliveries"`
}

func (s *OrderService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PlaceOrder turns the customer's cart into an order. Prices come from the catalog,
// not from the cart, and stock is decremented in the same transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, p *auth.Principal, in PlaceOrderInput) (*models.Order, error) {
	customer, err := s.Customers.GetByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		return nil, apperrors.NewNotFound("customer", p.ID)
	}

	switch in.PaymentMethod {
	case "":
		in.PaymentMethod = models.PaymentMethodCOD
	case models.PaymentMethodCOD, models.PaymentMethodOnline:
	default:
		return nil, &apperrors.Validation{Message: "unknown payment method", Fields: map[string]string{"payment_method": "cod or online"}}
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		address = customer.Address
	}
	if address == "" {
		return nil, &apperrors.Validation{Message: "delivery address is required", Fields: map[string]string{"delivery_address": "required"}}
	}

	cart, err := s.Carts.Get(ctx, customer.Phone)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, &apperrors.Validation{Message: "cart is empty"}
	}

	order := &models.Order{
		CustomerID:    customer.ID,
		Status:        models.OrderStatusPending,
		PaymentMethod: in.PaymentMethod,
		PaymentID:     strings.TrimSpace(in.PaymentID),
		Address:       address,
	}
	if order.PaymentMethod == models.PaymentMethodOnline && order.PaymentID != "" {
		order.Status = models.OrderStatusConfirmed
	}

	var total float64
	for _, line := range cart {
		if line.Quantity <= 0 {
			continue
		}
		prod, err := s.Products.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if prod == nil {
			return nil, &apperrors.Validation{Message: fmt.Sprintf("%s is no longer available", line.Name)}
		}
		if prod.Stock < line.Quantity {
			return nil, &apperrors.Validation{Message: fmt.Sprintf("only %d of %s in stock", prod.Stock, prod.Name)}
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   prod.ID,
			ProductName: prod.Name,
			Quantity:    line.Quantity,
			UnitPrice:   prod.Price,
		})
		total += prod.Price * float64(line.Quantity)
	}
	if len(order.Items) == 0 {
		return nil, &apperrors.Validation{Message: "cart is empty"}
	}
	order.TotalAmount = roundMoney(total)

	// Coordinates: explicit, then saved on the customer for the same address, then geocoded.
	switch {
	case in.Lat != nil && in.Lng != nil:
		order.DeliveryLat, order.DeliveryLng = in.Lat, in.Lng
	case address == customer.Address && customer.Lat != nil && customer.Lng != nil:
		order.DeliveryLat, order.DeliveryLng = customer.Lat, customer.Lng
	case s.Geocoder != nil:
		pt, err := s.Geocoder.Geocode(ctx, address)
		if err != nil {
			s.logger().Warn("geocode delivery address", zap.Int64("customer_id", customer.ID), zap.Error(err))
		} else {
			lat, lng := pt.Lat, pt.Lng
			order.DeliveryLat, order.DeliveryLng = &lat, &lng
		}
	}

	created, err := s.Orders.Create(ctx, order)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, &apperrors.Conflict{Message: "stock changed while placing the order"}
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.Carts.Clear(ctx, customer.Phone); err != nil {
		s.logger().Warn("clear cart after order", zap.Int64("order_id", created.ID), zap.Error(err))
	}
	if customer.Address == "" {
		if err := s.Customers.UpdateAddress(ctx, customer.ID, customer.Name, address, created.DeliveryLat, created.DeliveryLng); err != nil {
			s.logger().Warn("save customer address", zap.Int64("customer_id", customer.ID), zap.Error(err))
		}
	}

	s.logger().Info("order placed",
		zap.Int64("order_id", created.ID),
		zap.Int64("customer_id", customer.ID),
		zap.String("status", string(created.Status)),
		zap.Float64("total", created.TotalAmount))

	s.publish(events.Orders, OrderChange{Action: "created", Order: created})
	s.publish(events.OrderStatus, newStatusChange(created, "", s.now()))
	for _, it := range created.Items {
		s.publish(events.Products, ProductChange{Action: "stock", ID: it.ProductID})
	}
	s.notify(ctx, created, customer.Phone)
	return created, nil
}

// Get returns an order the principal may see: customers their own, agents the ones
// assigned to them, admins any.
func (s *OrderService) Get(ctx context.Context, p *auth.Principal, id int64) (*models.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canView(p, o); err != nil {
		return nil, err
	}
	return o, nil
}

func canView(p *auth.Principal, o *models.Order) error {
	switch p.Kind {
	case auth.KindAdmin:
		return nil
	case auth.KindCustomer:
		if o.CustomerID == p.ID {
			return nil
		}
	case auth.KindAgent:
		if o.AgentID != nil && *o.AgentID == p.ID {
			return nil
		}
	}
	// Hide other people's orders entirely.
	return apperrors.NewNotFound("order", o.ID)
}

func (s *OrderService) ListForCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	out, err := s.Orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return nonNilOrders(out), nil
}

// ListForAgent returns the unfinished orders assigned to the agent.
func (s *OrderService) ListForAgent(ctx context.Context, agentID int64) ([]models.Order, error) {
	out, err := s.Orders.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("list agent orders: %w", err)
	}
	return nonNilOrders(out), nil
}

func (s *OrderService) ListAdmin(ctx context.Context, params repository.ListOrdersAdminParams) ([]models.Order, error) {
	for _, st := range params.Statuses {
		if !orderstatus.IsKnown(st) {
			return nil, &apperrors.Validation{Message: fmt.Sprintf("unknown status %q", st)}
		}
	}
	out, err := s.Orders.ListAdmin(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return nonNilOrders(out), nil
}

func nonNilOrders(in []models.Order) []models.Order {
	if in == nil {
		return []models.Order{}
	}
	return in
}

// UpdateStatus moves an order along the transition graph on behalf of an admin.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, to models.OrderStatus) (*models.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, to)
}

// Cancel lets a customer cancel their own order before preparation starts.
func (s *OrderService) Cancel(ctx context.Context, p *auth.Principal, id int64) (*models.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != p.ID {
		return nil, apperrors.NewNotFound("order", id)
	}
	if o.Status != models.OrderStatusPending && o.Status != models.OrderStatusConfirmed {
		return nil, &apperrors.InvalidStateTransition{From: string(o.Status), To: string(models.OrderStatusCancelled)}
	}
	return s.transition(ctx, o, models.OrderStatusCancelled)
}

// AssignAgent hands a preparing or ready order to an available agent and marks the agent busy.
func (s *OrderService) AssignAgent(ctx context.Context, id, agentID int64) (*models.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusPreparing && o.Status != models.OrderStatusReadyForDelivery {
		return nil, &apperrors.Validation{Message: fmt.Sprintf("cannot assign an agent to an order that is %s", o.Status)}
	}
	if o.AgentID != nil {
		return nil, &apperrors.Conflict{Message: "order already has an agent"}
	}

	agent, err := s.Agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if agent == nil {
		return nil, apperrors.NewNotFound("delivery agent", agentID)
	}
	rejected, err := s.Rejections.HasRejected(ctx, id, agentID)
	if err != nil {
		return nil, fmt.Errorf("check rejections: %w", err)
	}
	if rejected {
		return nil, &apperrors.Conflict{Message: "agent already rejected this order"}
	}

	claimed, err := s.Agents.ClaimAvailable(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("claim agent: %w", err)
	}
	if !claimed {
		return nil, &apperrors.Conflict{Message: "agent is not available"}
	}
	ok, err := s.Orders.AssignAgent(ctx, id, agentID, o.Status)
	if err != nil || !ok {
		// Give the agent back before reporting the failure.
		if rerr := s.Agents.UpdateAvailability(ctx, agentID, models.AgentStatusAvailable); rerr != nil {
			s.logger().Error("release agent after failed assignment", zap.Int64("agent_id", agentID), zap.Error(rerr))
		}
		if err != nil {
			return nil, fmt.Errorf("assign agent: %w", err)
		}
		return nil, &apperrors.Conflict{Message: "order changed while assigning"}
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger().Info("agent assigned", zap.Int64("order_id", id), zap.Int64("agent_id", agentID))
	s.publish(events.Orders, OrderChange{Action: "assigned", Order: updated})
	s.publish(events.DeliveryAgents, AgentChange{AgentID: agentID, Status: models.AgentStatusBusy, OrderID: id})
	return updated, nil
}

// Accept is the assigned agent picking the order up.
func (s *OrderService) Accept(ctx context.Context, p *auth.Principal, id int64) (*models.Order, error) {
	o, err := s.assignedTo(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, models.OrderStatusOutForDelivery)
}

func (s *OrderService) Deliver(ctx context.Context, p *auth.Principal, id int64) (*models.Order, error) {
	o, err := s.assignedTo(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, models.OrderStatusDelivered)
}

// Reject records that the agent declined the order, detaches them and makes them available again.
// An order already out for delivery cannot be rejected.
func (s *OrderService) Reject(ctx context.Context, p *auth.Principal, id int64, reason string) (*models.OrderRejection, error) {
	o, err := s.assignedTo(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderStatusPreparing && o.Status != models.OrderStatusReadyForDelivery {
		return nil, &apperrors.Validation{Message: fmt.Sprintf("cannot reject an order that is %s", o.Status)}
	}
	cleared, err := s.Orders.ClearAgent(ctx, id, p.ID)
	if err != nil {
		return nil, fmt.Errorf("clear agent: %w", err)
	}
	if !cleared {
		return nil, &apperrors.Conflict{Message: "order changed while rejecting it"}
	}
	rej, err := s.Rejections.Create(ctx, id, p.ID, strings.TrimSpace(reason))
	if err != nil {
		return nil, fmt.Errorf("record rejection: %w", err)
	}
	if err := s.Agents.UpdateAvailability(ctx, p.ID, models.AgentStatusAvailable); err != nil {
		return nil, fmt.Errorf("free agent: %w", err)
	}
	s.logger().Info("order rejected", zap.Int64("order_id", id), zap.Int64("agent_id", p.ID), zap.String("reason", rej.Reason))

	if updated, err := s.load(ctx, id); err == nil {
		s.publish(events.Orders, OrderChange{Action: "rejected", Order: updated})
	}
	s.publish(events.DeliveryAgents, AgentChange{AgentID: p.ID, Status: models.AgentStatusAvailable})
	return rej, nil
}

// Stats summarizes orders, revenue and agents for the dashboard.
func (s *OrderService) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.Orders.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	revenue, err := s.Orders.Revenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("revenue: %w", err)
	}
	agents, err := s.Agents.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count agents: %w", err)
	}
	st := &Stats{Counts: counts, Revenue: roundMoney(revenue), ActiveAgents: agents}
	for status, n := range counts {
		st.TotalOrders += n
		if status == models.OrderStatusReadyForDelivery || status == models.OrderStatusOutForDelivery {
			st.ActiveDeliveries += n
		}
	}
	return st, nil
}

// StatsSnapshot adapts Stats to tracking.StatsFunc.
func (s *OrderService) StatsSnapshot(ctx context.Context) (any, error) {
	return s.Stats(ctx)
}

func (s *OrderService) load(ctx context.Context, id int64) (*models.Order, error) {
	o, err := s.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o == nil {
		return nil, apperrors.NewNotFound("order", id)
	}
	return o, nil
}

func (s *OrderService) assignedTo(ctx context.Context, p *auth.Principal, id int64) (*models.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.AgentID == nil || *o.AgentID != p.ID {
		return nil, &apperrors.Forbidden{Message: "order is not assigned to you"}
	}
	return o, nil
}

// transition validates and applies one status change with compare-and-set, then
// frees the agent on terminal states and fans the change out.
func (s *OrderService) transition(ctx context.Context, o *models.Order, to models.OrderStatus) (out *models.Order, err error) {
	defer func() {
		if s.Metrics != nil {
			s.Metrics.ObserveTransition(string(to), err)
		}
	}()

	if !orderstatus.IsKnown(to) || !orderstatus.CanTransition(o.Status, to) {
		return nil, &apperrors.InvalidStateTransition{From: string(o.Status), To: string(to)}
	}
	if to == models.OrderStatusOutForDelivery && o.AgentID == nil {
		return nil, &apperrors.Validation{Message: "assign a delivery agent before dispatching"}
	}

	from := o.Status
	ok, err := s.Orders.UpdateStatus(ctx, o.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if !ok {
		return nil, &apperrors.Conflict{Message: "order status changed concurrently"}
	}

	if orderstatus.IsTerminal(to) && o.AgentID != nil {
		if err := s.Agents.UpdateAvailability(ctx, *o.AgentID, models.AgentStatusAvailable); err != nil {
			s.logger().Error("free agent", zap.Int64("agent_id", *o.AgentID), zap.Error(err))
		} else {
			s.publish(events.DeliveryAgents, AgentChange{AgentID: *o.AgentID, Status: models.AgentStatusAvailable})
		}
		if s.Locations != nil {
			if err := s.Locations.ClearOrder(ctx, o.ID); err != nil {
				s.logger().Warn("clear cached order fix", zap.Int64("order_id", o.ID), zap.Error(err))
			}
		}
	}

	updated, err := s.load(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.logger().Info("order status changed",
		zap.Int64("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	s.publish(events.OrderStatus, newStatusChange(updated, from, s.now()))
	s.publish(events.Orders, OrderChange{Action: "status", Order: updated})

	if c, err := s.Customers.GetByID(ctx, updated.CustomerID); err == nil && c != nil {
		s.notify(ctx, updated, c.Phone)
	}
	return updated, nil
}

func (s *OrderService) notify(ctx context.Context, o *models.Order, phone string) {
	if s.Notifier == nil {
		return
	}
	// Errors are already logged by the notifier.
	_, _ = s.Notifier.OrderStatusChanged(ctx, o, phone)
}

func (s *OrderService) publish(name string, payload any) {
	if s.Bus != nil {
		s.Bus.Publish(name, payload)
	}
}
