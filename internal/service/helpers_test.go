package service

import (
	"context"
	"testing"
	"time"

	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/cache"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/geo"
	"groceryDelivery/internal/metrics"
	"groceryDelivery/internal/notify"
	"groceryDelivery/internal/testutil"
	"groceryDelivery/internal/tracking"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

type fakeGeocoder struct {
	pt    geo.Point
	err   error
	calls int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (geo.Point, error) {
	f.calls++
	return f.pt, f.err
}

type env struct {
	bus       *events.Bus
	metrics   *metrics.Metrics
	geocoder  *fakeGeocoder
	customers *repository.CustomerRepository
	agents    *repository.AgentRepository
	products  *repository.ProductRepository
	orders    *repository.OrderRepository
	notes     *repository.NotificationRepository

	cart     *CartService
	catalog  *CatalogService
	order    *OrderService
	tracking *TrackingService
	auth     *AuthService
	agent    *AgentService
}

func newEnv(t *testing.T, name string) *env {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, name)
	bus := events.NewBus()
	m := metrics.New()
	store := cache.NewMemoryStore()
	locations := cache.NewLocationCache(store, time.Hour)

	e := &env{
		bus:       bus,
		metrics:   m,
		geocoder:  &fakeGeocoder{pt: geo.Point{Lat: 12.97, Lng: 77.59}},
		customers: repository.NewCustomerRepository(d),
		agents:    repository.NewAgentRepository(d),
		products:  repository.NewProductRepository(d),
		orders:    repository.NewOrderRepository(d),
		notes:     repository.NewNotificationRepository(d),
	}
	e.cart = &CartService{Carts: repository.NewCartRepository(d), Products: e.products}
	e.catalog = &CatalogService{Products: e.products, Bus: bus}
	e.order = &OrderService{
		Orders:     e.orders,
		Products:   e.products,
		Customers:  e.customers,
		Agents:     e.agents,
		Rejections: repository.NewRejectionRepository(d),
		Carts:      e.cart,
		Geocoder:   e.geocoder,
		Locations:  locations,
		Notifier:   notify.New(e.notes, bus, nil),
		Metrics:    m,
		Bus:        bus,
	}
	e.tracking = &TrackingService{
		Orders:    e.orders,
		Agents:    e.agents,
		Customers: e.customers,
		History:   repository.NewTrackingRepository(d),
		Locations: locations,
		Estimator: tracking.NewEstimator(tracking.ModeSimple),
		Bus:       bus,
	}
	e.auth = &AuthService{
		Admins:    repository.NewAdminRepository(d),
		Agents:    e.agents,
		Customers: e.customers,
		OTP:       auth.NewOTPStore(store),
		Secret:    "test-secret",
		TokenTTL:  time.Hour,
	}
	e.agent = &AgentService{Agents: e.agents, Bus: bus}
	return e
}

func (e *env) customer(t *testing.T, phone string, lat, lng *float64) *auth.Principal {
	t.Helper()
	c, err := e.customers.Create(context.Background(), &models.Customer{Name: "Asha", Phone: phone, Address: "12 MG Road", Lat: lat, Lng: lng})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return &auth.Principal{ID: c.ID, Name: c.Phone, Kind: auth.KindCustomer}
}

func (e *env) product(t *testing.T, name string, price float64, stock int) *models.Product {
	t.Helper()
	p, err := e.products.Create(context.Background(), &models.Product{Name: name, Category: "produce", Price: price, Unit: "kg", Stock: stock})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func (e *env) agentPrincipal(t *testing.T, phone string, status models.AgentStatus) *auth.Principal {
	t.Helper()
	a, err := e.agents.Create(context.Background(), &models.DeliveryAgent{Name: "Ravi", Phone: phone, Status: status})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return &auth.Principal{ID: a.ID, Name: a.Phone, Kind: auth.KindAgent}
}

// placeOrder fills the cart with one product and checks out with cash on delivery.
func (e *env) placeOrder(t *testing.T, c *auth.Principal, p *models.Product, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()
	if _, err := e.cart.AddItem(ctx, c.Name, p.ID, qty); err != nil {
		t.Fatalf("add item: %v", err)
	}
	o, err := e.order.PlaceOrder(ctx, c, PlaceOrderInput{})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return o
}

// advance walks an order through admin status changes.
func (e *env) advance(t *testing.T, id int64, steps ...models.OrderStatus) *models.Order {
	t.Helper()
	var o *models.Order
	var err error
	for _, s := range steps {
		o, err = e.order.UpdateStatus(context.Background(), id, s)
		if err != nil {
			t.Fatalf("advance to %s: %v", s, err)
		}
	}
	return o
}
