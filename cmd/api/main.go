package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adhamfarouk/pillcart-backend/api/routes"
	"github.com/adhamfarouk/pillcart-backend/internal/coupons"
	"github.com/adhamfarouk/pillcart-backend/internal/fulfillment"
	"github.com/adhamfarouk/pillcart-backend/internal/inventory"
	"github.com/adhamfarouk/pillcart-backend/internal/orders"
	"github.com/adhamfarouk/pillcart-backend/internal/payments"
	"github.com/adhamfarouk/pillcart-backend/internal/pricing"
	"github.com/adhamfarouk/pillcart-backend/pkg/config"
	"github.com/adhamfarouk/pillcart-backend/pkg/db"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
	"github.com/adhamfarouk/pillcart-backend/pkg/metrics"
	"github.com/adhamfarouk/pillcart-backend/pkg/migrate"
	"github.com/adhamfarouk/pillcart-backend/pkg/paygate"
	"github.com/adhamfarouk/pillcart-backend/pkg/redis"
	"github.com/adhamfarouk/pillcart-backend/pkg/shipblu"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paygateClient, err := paygate.NewClient(context.Background(), cfg.Paygate, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paygate client", err)
		os.Exit(1)
	}
	shipbluClient, err := shipblu.NewClient(context.Background(), cfg.Shipblu, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipblu client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	orderMetrics := metrics.NewOrderMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	rateTable, err := pricing.NewRateTable(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping rate table", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(
		dbClient,
		ordersRepo,
		inventory.NewLedger(),
		coupons.NewService(),
		rateTable,
		logg,
		orderMetrics,
		orders.NewLogNotifier(logg),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.Options{
		Repo:           ordersRepo,
		Machine:        ordersSvc,
		Provider:       paygateClient,
		Idempotency:    redisClient,
		Logger:         logg,
		Metrics:        orderMetrics,
		BaseURL:        cfg.App.BaseURL,
		IdempotencyTTL: cfg.Webhooks.IdempotencyTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	fulfillmentSvc, err := fulfillment.NewService(fulfillment.Options{
		Repo:           ordersRepo,
		Machine:        ordersSvc,
		Provider:       shipbluClient,
		Idempotency:    redisClient,
		Logger:         logg,
		Metrics:        orderMetrics,
		IdempotencyTTL: cfg.Webhooks.IdempotencyTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			ordersSvc,
			paymentsSvc,
			fulfillmentSvc,
			paygateClient,
			shipbluClient,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
