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

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/resource-rental/internal/cache"
	"github.com/iliyamo/resource-rental/internal/config"
	"github.com/iliyamo/resource-rental/internal/database"
	"github.com/iliyamo/resource-rental/internal/handler"
	"github.com/iliyamo/resource-rental/internal/jobs"
	"github.com/iliyamo/resource-rental/internal/payment"
	"github.com/iliyamo/resource-rental/internal/queue"
	"github.com/iliyamo/resource-rental/internal/repository"
	"github.com/iliyamo/resource-rental/internal/router"
	"github.com/iliyamo/resource-rental/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: .env not loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("db: %v", err)
		}
		log.Printf("db: schema applied")
	}

	rdb := config.NewRedisClient()
	var checkoutCache cache.CheckoutCache
	if rdb != nil {
		defer rdb.Close()
		checkoutCache = cache.NewRedisCache(rdb, "rr:", cfg.CheckoutCacheTTL)
	}

	brokerURL := queue.BrokerURL()
	publisher := queue.NewPublisher(brokerURL)
	defer publisher.Close()
	consumer := queue.NewConsumer(brokerURL, cfg.EventsLogDir)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("reservation-consumer: stopped: %v", err)
		}
	}()

	var gateway payment.Gateway
	if cfg.StripeKey != "" {
		gateway = payment.NewStripeGateway(cfg.StripeKey)
	} else {
		log.Printf("payments: STRIPE_SECRET_KEY not set; payment orders disabled")
	}

	store := repository.NewStore(db)
	opts := service.Options{
		Publisher:      publisher,
		StoreTimeout:   cfg.StoreTimeout,
		TaxBasisPoints: cfg.TaxBasisPoints,
		Currency:       cfg.Currency,
	}
	catalog := service.NewCatalogService(store, cfg.StoreTimeout)
	reservations := service.NewReservationService(store, opts)
	checkouts := service.NewCheckoutService(store, checkoutCache, opts)
	payments := service.NewPaymentService(store, payment.NewGate(cfg.PaymentSecret), gateway, cfg.GatewayTimeout, opts)

	scheduler, err := jobs.NewScheduler(cfg.OverdueCron, reservations, cfg.OverdueBatch)
	if err != nil {
		log.Fatalf("cron: %v", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("http: %s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			log.Printf("http: %s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	router.Register(e, router.Deps{
		JWTSecret:    cfg.JWTSecret,
		Redis:        rdb,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
		Health:       db,
		Resources:    handler.NewResourceHandler(catalog),
		Reservations: handler.NewReservationHandler(reservations, payments),
		Checkouts:    handler.NewCheckoutHandler(checkouts),
		Payments:     handler.NewPaymentHandler(payments),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
}
