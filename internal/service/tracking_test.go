package service

import (
	"context"
	"errors"
	"testing"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/geo"
	"groceryDelivery/internal/tracking"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// flakyCustomers fails lookups for a single customer.
type flakyCustomers struct {
	*repository.CustomerRepository
	failID int64
}

func (f flakyCustomers) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	if id == f.failID {
		return nil, errors.New("connection reset")
	}
	return f.CustomerRepository.GetByID(ctx, id)
}

func TestReportLocation_PublishesAndPersists(t *testing.T) {
	e := newEnv(t, "svc_track_report")
	ctx := context.Background()
	lat, lng := 12.9716, 77.5946
	c := e.customer(t, "9876543220", &lat, &lng)
	agent := e.agentPrincipal(t, "9000000010", models.AgentStatusAvailable)
	o := e.placeOrder(t, c, e.product(t, "Curd", 35, 10), 1)
	e.advance(t, o.ID, models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReadyForDelivery)
	if _, err := e.order.AssignAgent(ctx, o.ID, agent.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	var published []tracking.Update
	e.bus.Subscribe(events.Tracking, func(ev events.Event) {
		published = append(published, ev.Payload.(tracking.Update))
	})

	// About 1.1 km north of the customer.
	updates, err := e.tracking.ReportLocation(ctx, agent, models.LocationFix{Lat: 12.9816, Lng: 77.5946, TimestampMs: 1_700_000_000_000})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(updates) != 1 || len(published) != 1 {
		t.Fatalf("updates = %d, published = %d", len(updates), len(published))
	}
	u := updates[0]
	if u.OrderID != o.ID || u.AgentID != agent.ID {
		t.Fatalf("update ids = %+v", u)
	}
	if u.Status != tracking.StatusAssigned {
		t.Fatalf("ready order should report assigned, got %s", u.Status)
	}
	if u.DistanceKm < 1.0 || u.DistanceKm > 1.2 {
		t.Fatalf("distance = %v", u.DistanceKm)
	}
	if u.EtaMinutes != 4 {
		t.Fatalf("eta = %d, want 4", u.EtaMinutes)
	}

	if _, err := e.order.Accept(ctx, agent, o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// About 55 m away.
	if _, err := e.tracking.ReportLocation(ctx, agent, models.LocationFix{Lat: 12.9721, Lng: 77.5946}); err != nil {
		t.Fatalf("report near: %v", err)
	}
	got, err := e.tracking.Track(ctx, c, o.ID)
	if err != nil || got == nil {
		t.Fatalf("track: %v, %v", got, err)
	}
	if got.Status != tracking.StatusNearby {
		t.Fatalf("status = %s, want nearby", got.Status)
	}

	trail, err := e.tracking.Trail(ctx, c, o.ID, 0)
	if err != nil || len(trail) != 2 {
		t.Fatalf("trail = %v, %v", trail, err)
	}
	if trail[0].Lat != 12.9816 {
		t.Fatalf("trail not chronological: %+v", trail)
	}

	a, _ := e.agents.GetByID(ctx, agent.ID)
	if a.Lat == nil || *a.Lat != 12.9721 {
		t.Fatalf("agent location not stored: %v", a.Lat)
	}
}

func TestReportLocation_RejectsBadCoordinates(t *testing.T) {
	e := newEnv(t, "svc_track_bad")
	agent := e.agentPrincipal(t, "9000000011", models.AgentStatusAvailable)
	var v *apperrors.Validation
	for _, fix := range []models.LocationFix{{Lat: 91, Lng: 0}, {Lat: 0, Lng: 181}, {Lat: 0, Lng: 0}} {
		if _, err := e.tracking.ReportLocation(context.Background(), agent, fix); !errors.As(err, &v) {
			t.Errorf("fix %+v: got %v", fix, err)
		}
	}
}

func TestTrack_NoDataIsNil(t *testing.T) {
	e := newEnv(t, "svc_track_nodata")
	c := e.customer(t, "9876543221", nil, nil)
	o := e.placeOrder(t, c, e.product(t, "Oil", 150, 5), 1)
	got, err := e.tracking.Track(context.Background(), c, o.ID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no update without an agent fix, got %+v", got)
	}
}

func TestActiveUpdates_SkipsOrdersWithoutFix(t *testing.T) {
	e := newEnv(t, "svc_track_active")
	ctx := context.Background()
	lat, lng := 12.9716, 77.5946
	c := e.customer(t, "9876543222", &lat, &lng)
	flour := e.product(t, "Flour", 45, 20)

	var withFix *models.Order
	for i, phone := range []string{"9000000012", "9000000013"} {
		agent := e.agentPrincipal(t, phone, models.AgentStatusAvailable)
		o := e.placeOrder(t, c, flour, 1)
		e.advance(t, o.ID, models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReadyForDelivery)
		if _, err := e.order.AssignAgent(ctx, o.ID, agent.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		if i == 0 {
			if _, err := e.tracking.ReportLocation(ctx, agent, models.LocationFix{Lat: 12.98, Lng: 77.59}); err != nil {
				t.Fatalf("report: %v", err)
			}
			withFix = o
		}
	}

	updates, err := e.tracking.ActiveUpdates(ctx)
	if err != nil {
		t.Fatalf("active updates: %v", err)
	}
	if len(updates) != 1 || updates[0].OrderID != withFix.ID {
		t.Fatalf("updates = %+v", updates)
	}
}

func TestActiveUpdates_LookupFailureSkipsOnlyThatOrder(t *testing.T) {
	e := newEnv(t, "svc_track_flaky")
	ctx := context.Background()
	lat, lng := 12.9716, 77.5946
	located := e.customer(t, "9876543223", &lat, &lng)
	unlocated := e.customer(t, "9876543224", nil, nil)
	rice := e.product(t, "Rice", 80, 20)

	// Geocoding fails at checkout, so the second order depends on a customer lookup.
	e.geocoder.err = errors.New("upstream down")
	var healthy *models.Order
	phones := []string{"9000000014", "9000000015"}
	for i, owner := range []*auth.Principal{located, unlocated} {
		agent := e.agentPrincipal(t, phones[i], models.AgentStatusAvailable)
		o := e.placeOrder(t, owner, rice, 1)
		e.advance(t, o.ID, models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReadyForDelivery)
		if _, err := e.order.AssignAgent(ctx, o.ID, agent.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		if _, err := e.tracking.ReportLocation(ctx, agent, models.LocationFix{Lat: 12.98, Lng: 77.59}); err != nil {
			t.Fatalf("report: %v", err)
		}
		if i == 0 {
			healthy = o
		}
	}

	e.tracking.Customers = flakyCustomers{CustomerRepository: e.customers, failID: unlocated.ID}
	updates, err := e.tracking.ActiveUpdates(ctx)
	if err != nil {
		t.Fatalf("active updates: %v", err)
	}
	if len(updates) != 1 || updates[0].OrderID != healthy.ID {
		t.Fatalf("updates = %+v", updates)
	}
}

func TestTrack_RetriesGeocodeForOrdersWithoutCoordinates(t *testing.T) {
	e := newEnv(t, "svc_track_regeocode")
	ctx := context.Background()
	c := e.customer(t, "9876543225", nil, nil)
	agent := e.agentPrincipal(t, "9000000016", models.AgentStatusAvailable)

	e.geocoder.err = errors.New("upstream down")
	o := e.placeOrder(t, c, e.product(t, "Dal", 110, 10), 1)
	if o.DeliveryLat != nil {
		t.Fatalf("order should have no coordinates after a failed geocode")
	}
	e.advance(t, o.ID, models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReadyForDelivery)
	if _, err := e.order.AssignAgent(ctx, o.ID, agent.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	retry := &fakeGeocoder{err: errors.New("still down")}
	e.tracking.Geocoder = retry
	if _, err := e.tracking.ReportLocation(ctx, agent, models.LocationFix{Lat: 12.98, Lng: 77.59}); err != nil {
		t.Fatalf("report: %v", err)
	}
	if got, err := e.tracking.Track(ctx, c, o.ID); err != nil || got != nil {
		t.Fatalf("track while geocoder is down: %+v, %v", got, err)
	}
	if retry.calls != 1 {
		t.Fatalf("geocode calls = %d, want 1 within the retry window", retry.calls)
	}

	// A new service has no retry history, so it asks again and stores the point.
	fresh := &TrackingService{
		Orders:    e.tracking.Orders,
		Agents:    e.tracking.Agents,
		Customers: e.tracking.Customers,
		History:   e.tracking.History,
		Locations: e.tracking.Locations,
		Estimator: e.tracking.Estimator,
		Geocoder:  &fakeGeocoder{pt: geo.Point{Lat: 12.9716, Lng: 77.5946}},
	}
	got, err := fresh.Track(ctx, c, o.ID)
	if err != nil || got == nil {
		t.Fatalf("track after geocode: %+v, %v", got, err)
	}
	if got.DistanceKm <= 0 {
		t.Fatalf("distance = %v", got.DistanceKm)
	}
	stored, _ := e.orders.GetByID(ctx, o.ID)
	if stored.DeliveryLat == nil || *stored.DeliveryLat != 12.9716 {
		t.Fatalf("delivery location not stored: %+v", stored.DeliveryLat)
	}
}
