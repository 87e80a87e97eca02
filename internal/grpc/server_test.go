package grpcserver

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/cache"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/service"
	"groceryDelivery/internal/testutil"
	"groceryDelivery/internal/tracking"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

const secret = "grpc-test-secret"

type fixture struct {
	conn     *grpc.ClientConn
	orders   *service.OrderService
	tracking *service.TrackingService

	order    *models.Order
	customer *auth.Principal
	agent    *auth.Principal
	stranger *auth.Principal
}

// newFixture starts the server on a bufconn listener with one order that is ready
// for delivery and assigned to an agent.
func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	ctx := context.Background()
	d := testutil.OpenInMemoryDB(t, name)
	bus := events.NewBus()
	locations := cache.NewLocationCache(cache.NewMemoryStore(), time.Hour)

	customers := repository.NewCustomerRepository(d)
	agents := repository.NewAgentRepository(d)
	products := repository.NewProductRepository(d)
	orders := repository.NewOrderRepository(d)
	cart := &service.CartService{Carts: repository.NewCartRepository(d), Products: products}
	orderSvc := &service.OrderService{
		Orders:     orders,
		Products:   products,
		Customers:  customers,
		Agents:     agents,
		Rejections: repository.NewRejectionRepository(d),
		Carts:      cart,
		Locations:  locations,
		Bus:        bus,
	}
	trackingSvc := &service.TrackingService{
		Orders:    orders,
		Agents:    agents,
		Customers: customers,
		History:   repository.NewTrackingRepository(d),
		Locations: locations,
		Estimator: tracking.NewEstimator(tracking.ModeSimple),
		Bus:       bus,
	}

	lat, lng := 12.9716, 77.5946
	c, err := customers.Create(ctx, &models.Customer{Name: "Asha", Phone: "9876500001", Address: "12 MG Road", Lat: &lat, Lng: &lng})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	other, err := customers.Create(ctx, &models.Customer{Name: "Vik", Phone: "9876500002", Address: "1 Church St"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	a, err := agents.Create(ctx, &models.DeliveryAgent{Name: "Ravi", Phone: "9000000001", Status: models.AgentStatusAvailable})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	p, err := products.Create(ctx, &models.Product{Name: "Rice", Category: "staples", Price: 80, Unit: "kg", Stock: 10})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	f := &fixture{
		orders:   orderSvc,
		tracking: trackingSvc,
		customer: &auth.Principal{ID: c.ID, Name: c.Phone, Kind: auth.KindCustomer},
		agent:    &auth.Principal{ID: a.ID, Name: a.Phone, Kind: auth.KindAgent},
		stranger: &auth.Principal{ID: other.ID, Name: other.Phone, Kind: auth.KindCustomer},
	}
	if _, err := cart.AddItem(ctx, c.Phone, p.ID, 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	o, err := orderSvc.PlaceOrder(ctx, f.customer, service.PlaceOrderInput{})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	for _, st := range []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReadyForDelivery} {
		if _, err := orderSvc.UpdateStatus(ctx, o.ID, st); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}
	if f.order, err = orderSvc.AssignAgent(ctx, o.ID, a.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv, _ := NewServer(secret, &TrackingServer{Tracking: trackingSvc, Bus: bus}, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	f.conn = conn
	return f
}

func withToken(t *testing.T, p *auth.Principal) context.Context {
	t.Helper()
	tok := testutil.GenerateJWTHS256(t, secret, p.ID, p.Name, p.Kind)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
}

func orderReq(t *testing.T, id int64) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{"order_id": id})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}

func (f *fixture) getTracking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := f.conn.Invoke(ctx, getTrackingMethod, req, out)
	return out, err
}

func (f *fixture) report(t *testing.T, lat, lng float64) {
	t.Helper()
	if _, err := f.tracking.ReportLocation(context.Background(), f.agent, models.LocationFix{Lat: lat, Lng: lng, TimestampMs: time.Now().UnixMilli()}); err != nil {
		t.Fatalf("report location: %v", err)
	}
}

func TestGetTracking_RequiresToken(t *testing.T) {
	f := newFixture(t, "grpc_get_auth")
	_, err := f.getTracking(context.Background(), orderReq(t, f.order.ID))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestGetTracking(t *testing.T) {
	f := newFixture(t, "grpc_get")

	out, err := f.getTracking(withToken(t, f.customer), orderReq(t, f.order.ID))
	if err != nil {
		t.Fatalf("get before fix: %v", err)
	}
	if len(out.GetFields()) != 0 {
		t.Fatalf("expected empty estimate before any fix, got %v", out)
	}

	f.report(t, 12.9816, 77.5946)
	out, err = f.getTracking(withToken(t, f.customer), orderReq(t, f.order.ID))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := int64(out.GetFields()["orderId"].GetNumberValue()); got != f.order.ID {
		t.Fatalf("orderId = %d, want %d", got, f.order.ID)
	}
	if out.GetFields()["distanceKm"].GetNumberValue() <= 0 {
		t.Fatalf("distanceKm missing: %v", out)
	}

	_, err = f.getTracking(withToken(t, f.stranger), orderReq(t, f.order.ID))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("stranger code = %v, want NotFound", status.Code(err))
	}

	bad, _ := structpb.NewStruct(map[string]any{"order_id": "seven"})
	_, err = f.getTracking(withToken(t, f.customer), bad)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad id code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestWatchTracking_StreamsUntilDelivered(t *testing.T) {
	f := newFixture(t, "grpc_watch")
	f.report(t, 12.9916, 77.5946)

	ctx := withToken(t, f.customer)
	stream, err := f.conn.NewStream(ctx, &TrackingServiceDesc.Streams[0], watchTrackingMethod)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if err := stream.SendMsg(orderReq(t, f.order.ID)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("close send: %v", err)
	}

	first := new(structpb.Struct)
	if err := stream.RecvMsg(first); err != nil {
		t.Fatalf("recv snapshot: %v", err)
	}
	firstKm := first.GetFields()["distanceKm"].GetNumberValue()

	f.report(t, 12.9766, 77.5946)
	next := new(structpb.Struct)
	if err := stream.RecvMsg(next); err != nil {
		t.Fatalf("recv update: %v", err)
	}
	if km := next.GetFields()["distanceKm"].GetNumberValue(); km >= firstKm {
		t.Fatalf("distance did not shrink: %v then %v", firstKm, km)
	}

	bg := context.Background()
	if _, err := f.orders.UpdateStatus(bg, f.order.ID, models.OrderStatusOutForDelivery); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := f.orders.UpdateStatus(bg, f.order.ID, models.OrderStatusDelivered); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	for {
		err := stream.RecvMsg(new(structpb.Struct))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("stream ended with %v, want EOF", err)
		}
	}
}

func TestWatchTracking_FinishedOrderEndsAfterSnapshot(t *testing.T) {
	f := newFixture(t, "grpc_watch_done")
	f.report(t, 12.9766, 77.5946)
	bg := context.Background()
	for _, st := range []models.OrderStatus{models.OrderStatusOutForDelivery, models.OrderStatusDelivered} {
		if _, err := f.orders.UpdateStatus(bg, f.order.ID, st); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}

	ctx, cancel := context.WithTimeout(withToken(t, f.customer), 2*time.Second)
	defer cancel()
	stream, err := f.conn.NewStream(ctx, &TrackingServiceDesc.Streams[0], watchTrackingMethod)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if err := stream.SendMsg(orderReq(t, f.order.ID)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("close send: %v", err)
	}
	received := 0
	for {
		err := stream.RecvMsg(new(structpb.Struct))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("stream on delivered order ended with %v after %d messages, want EOF", err, received)
		}
		received++
	}
	if received > 1 {
		t.Fatalf("received %d messages, want at most the snapshot", received)
	}
}

func TestHealth_NoTokenNeeded(t *testing.T) {
	f := newFixture(t, "grpc_health")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(f.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: trackingServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{apperrors.NewNotFound("order", 3), codes.NotFound},
		{&apperrors.Validation{Message: "bad"}, codes.InvalidArgument},
		{&apperrors.InvalidStateTransition{From: "delivered", To: "pending"}, codes.FailedPrecondition},
		{&apperrors.Conflict{Message: "taken"}, codes.Aborted},
		{&apperrors.Unauthorized{}, codes.Unauthenticated},
		{&apperrors.Forbidden{}, codes.PermissionDenied},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		if got := status.Code(toStatus(tc.err)); got != tc.want {
			t.Errorf("toStatus(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
