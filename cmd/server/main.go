package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/cache"
	"groceryDelivery/internal/config"
	"groceryDelivery/internal/db"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/geocode"
	grpcserver "groceryDelivery/internal/grpc"
	"groceryDelivery/internal/httpapi"
	"groceryDelivery/internal/logging"
	"groceryDelivery/internal/metrics"
	"groceryDelivery/internal/notify"
	"groceryDelivery/internal/service"
	"groceryDelivery/internal/tracking"
	"groceryDelivery/repository"
)

// Last-known fixes outlive a long delivery shift.
const locationTTL = 12 * time.Hour

func main() {
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.IsProduction() {
		// Production must not run on the development secret.
		if cfg, err = config.Load(); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.Stringer("config", cfg))

	d, err := db.OpenDriver(cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("close db", zap.Error(err))
		}
	}()

	var (
		store       cache.Store = cache.NewMemoryStore()
		redisClient *redis.Client
	)
	if cfg.Redis.Address != "" {
		redisClient, err = cache.DialRedis(context.Background(), cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("connect redis", zap.String("address", cfg.Redis.Address), zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		store = cache.NewRedisStore(redisClient)
		logger.Info("using redis cache", zap.String("address", cfg.Redis.Address))
	}
	locations := cache.NewLocationCache(store, locationTTL)

	m := metrics.New()
	bus := events.NewBus()
	bus.SubscribeAll(func(e events.Event) { m.ObserveEvent(e.Name) })

	if len(cfg.Kafka.Brokers) > 0 {
		fwd := events.NewForwarder(bus, events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger,
			events.Orders, events.OrderStatus, events.Tracking, events.Products, events.DeliveryAgents, events.Notifications)
		fwd.Start()
		defer func() {
			if err := fwd.Stop(); err != nil {
				logger.Warn("stop kafka forwarder", zap.Error(err))
			}
		}()
		logger.Info("forwarding events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	customers := repository.NewCustomerRepository(d)
	admins := repository.NewAdminRepository(d)
	agents := repository.NewAgentRepository(d)
	products := repository.NewProductRepository(d)
	orders := repository.NewOrderRepository(d)
	history := repository.NewTrackingRepository(d)
	rejections := repository.NewRejectionRepository(d)
	notifications := repository.NewNotificationRepository(d)

	cartSvc := &service.CartService{Carts: repository.NewCartRepository(d), Products: products}
	catalogSvc := &service.CatalogService{Products: products, Bus: bus}
	agentSvc := &service.AgentService{Agents: agents, Bus: bus}
	geocoder := geocode.New(geocode.Config{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Geocoder.UserAgent,
	}, logger.Named("geocode"))
	orderSvc := &service.OrderService{
		Orders:     orders,
		Products:   products,
		Customers:  customers,
		Agents:     agents,
		Rejections: rejections,
		Carts:      cartSvc,
		Geocoder:   geocoder,
		Locations:  locations,
		Notifier:   notify.New(notifications, bus, logger.Named("notify")),
		Metrics:    m,
		Bus:        bus,
		Logger:     logger.Named("orders"),
	}
	trackingSvc := &service.TrackingService{
		Orders:    orders,
		Agents:    agents,
		Customers: customers,
		History:   history,
		Locations: locations,
		Estimator: tracking.NewEstimator(tracking.Mode(cfg.Tracking.Mode)),
		Geocoder:  geocoder,
		Bus:       bus,
		Logger:    logger.Named("tracking"),
	}
	authSvc := &service.AuthService{
		Admins:    admins,
		Agents:    agents,
		Customers: customers,
		OTP:       auth.NewOTPStore(store),
		Secret:    cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
		Logger:    logger.Named("auth"),
	}

	if cfg.Auth.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := authSvc.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
		cancel()
		if err != nil {
			logger.Fatal("bootstrap admin", zap.Error(err))
		}
	}

	poller := tracking.NewPoller(trackingSvc, orderSvc.StatsSnapshot, bus,
		tracking.ClampInterval(cfg.Tracking.PollInterval), logger.Named("poller"), m)
	poller.Start()
	defer poller.Stop()

	handler, stopHub := httpapi.NewRouter(httpapi.Deps{
		Auth:          authSvc,
		Cart:          cartSvc,
		Catalog:       catalogSvc,
		Orders:        orderSvc,
		Tracking:      trackingSvc,
		Agents:        agentSvc,
		Customers:     customers,
		Notifications: notifications,
		Rejections:    rejections,
		Bus:           bus,
		Metrics:       m,
		Logger:        logger.Named("http"),
		JWTSecret:     cfg.Auth.JWTSecret,
		ExposeOTP:     cfg.Auth.ExposeOTP,
		Ready: func(ctx context.Context) error {
			if err := d.PingContext(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Ping(ctx).Err()
			}
			return nil
		},
	})
	// No WriteTimeout: SSE and websocket responses stay open.
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()
	logger.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))

	shutdownGRPC, err := grpcserver.StartGRPC(cfg, &grpcserver.TrackingServer{
		Tracking: trackingSvc,
		Bus:      bus,
		Logger:   logger.Named("grpc"),
	}, logger.Named("grpc"))
	if err != nil {
		logger.Fatal("start grpc", zap.Error(err))
	}
	logger.Info("gRPC server listening", zap.String("address", cfg.GRPC.Address))

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logger.Info("shutting down", zap.String("signal", sig.String()))

	// Streams end first so Shutdown does not wait on them.
	stopHub()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := shutdownGRPC(ctx); err != nil {
		logger.Warn("grpc shutdown", zap.Error(err))
	}
}
