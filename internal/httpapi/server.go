// Package httpapi is the JSON/REST surface of the grocery backend, plus the
// server-sent event stream and the agent location websocket.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/metrics"
	"groceryDelivery/internal/service"
	"groceryDelivery/repository"
)

// Deps holds everything the handlers need. Metrics and Ready are optional.
type Deps struct {
	Auth     *service.AuthService
	Cart     *service.CartService
	Catalog  *service.CatalogService
	Orders   *service.OrderService
	Tracking *service.TrackingService
	Agents   *service.AgentService

	Customers     repository.CustomerRepositoryI
	Notifications repository.NotificationRepositoryI
	Rejections    repository.RejectionRepositoryI

	Bus       *events.Bus
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	JWTSecret string
	// ExposeOTP returns the issued code in the response body (development only).
	ExposeOTP bool
	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	logger *zap.Logger
	hub    *EventHub
}

// NewRouter builds the chi router and returns it along with a stop function for the SSE hub.
func NewRouter(d Deps) (http.Handler, func()) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	s := &Server{Deps: d, logger: d.Logger, hub: NewEventHub(d.Logger, d.Metrics)}
	if d.Bus != nil {
		s.hub.Attach(d.Bus)
	}
	s.hub.Start()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/auth/admin/login", s.handleAdminLogin)
		r.Post("/auth/agent/login", s.handleAgentLogin)
		r.Post("/auth/otp/request", s.handleRequestOTP)
		r.Post("/auth/otp/verify", s.handleVerifyOTP)

		r.Get("/products", s.handleListProducts)
		r.Get("/products/{id}", s.handleGetProduct)
		r.Get("/categories", s.handleCategories)

		r.Get("/order-statuses", s.handleOrderStatuses)
		r.Get("/order-statuses/flow", s.handleStatusFlow)
		r.Get("/order-statuses/{tag}", s.handleOrderStatus)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.JWTSecret))

			r.Get("/events", s.hub.HandleSSE)
			r.Get("/orders/{id}", s.handleGetOrder)
			r.Get("/orders/{id}/tracking", s.handleTrack)
			r.Get("/orders/{id}/tracking/history", s.handleTrackingHistory)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireKinds(auth.KindCustomer))
				r.Get("/cart", s.handleGetCart)
				r.Delete("/cart", s.handleClearCart)
				r.Post("/cart/items", s.handleAddCartItem)
				r.Put("/cart/items", s.handleUpdateCartItem)
				r.Delete("/cart/items/{productID}", s.handleRemoveCartItem)

				r.Post("/orders", s.handlePlaceOrder)
				r.Get("/orders", s.handleListMyOrders)
				r.Post("/orders/{id}/cancel", s.handleCancelOrder)
			})

			r.Route("/agent", func(r chi.Router) {
				r.Use(auth.RequireKinds(auth.KindAgent))
				r.Get("/orders", s.handleAgentOrders)
				r.Post("/orders/{id}/accept", s.handleAgentAccept)
				r.Post("/orders/{id}/reject", s.handleAgentReject)
				r.Post("/orders/{id}/deliver", s.handleAgentDeliver)
				r.Post("/location", s.handleAgentLocation)
				r.Post("/status", s.handleAgentStatus)
				r.Get("/ws", s.handleAgentWS)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireKinds(auth.KindAdmin))
				r.Post("/products", s.handleCreateProduct)
				r.Put("/products/{id}", s.handleUpdateProduct)
				r.Delete("/products/{id}", s.handleDeleteProduct)

				r.Get("/customers", s.handleListCustomers)
				r.Get("/delivery-agents", s.handleListAgents)
				r.Post("/delivery-agents", s.handleCreateAgent)

				r.Patch("/orders/{id}/status", s.handleUpdateOrderStatus)
				r.Post("/orders/{id}/assign", s.handleAssignAgent)

				r.Get("/admin/orders", s.handleAdminOrders)
				r.Get("/admin/stats", s.handleStats)
				r.Get("/admin/notifications", s.handleNotifications)
				r.Get("/admin/rejections", s.handleRejections)
			})
		})
	})

	return r, s.hub.Stop
}

// requestLogger logs each request and records it in the HTTP metrics using the
// matched route pattern, so ids do not explode label cardinality.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		if s.Metrics != nil {
			s.Metrics.ObserveHTTP(r.Method, route, status, elapsed)
		}
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Ready(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sse_clients": s.hub.Clients()})
}
