package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/audit"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	booking_db "ms-booking/internal/booking/db"
	rediswrap "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/email"
	"ms-booking/internal/jobs"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/payment"
	payment_api "ms-booking/internal/payment/handler"
	"ms-booking/internal/payment/storage"
)

// noopPublisher stands in for Kafka when event streaming is disabled.
type noopPublisher struct{}

func (noopPublisher) Publish(topic string, key string, value []byte) error { return nil }

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}

func connectPostgres(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, logger)
	defer bunDB.Close()

	if os.Getenv("AUTO_MIGRATE") != "false" {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
		if err := runner.Run(); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		logger.Info("DATABASE", "✅ Schema migrations applied")
	}

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	defer redisClient.Close()

	var publisher kafka.MessagePublisher = noopPublisher{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		publisher = producer
		logger.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for brokers %v", cfg.Kafka.Brokers))

		requiredTopics := []string{
			cfg.Kafka.Topics.BookingCreated,
			cfg.Kafka.Topics.BookingConfirmed,
			cfg.Kafka.Topics.BookingCancelled,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		logger.Warn("KAFKA", "Event streaming disabled, booking events will not be published")
	}
	bookingEvents := kafka.NewBookingEvents(publisher, cfg.Kafka.Topics)

	dbLayer := &booking_db.DB{Bun: bunDB}
	slotLocks := rediswrap.NewRedis(redisClient)
	paymentStore := storage.NewBunStore(bunDB, logger)
	gateway := payment.NewStripeGateway(logger)
	calculator := payment.NewCalculator(dbLayer, logger)
	initiator := payment.NewInitiator(paymentStore, dbLayer, gateway, os.Getenv("PAYMENT_CURRENCY"), logger)
	auditRecorder := audit.NewRecorder(bunDB)
	mailer := email.NewMailer(cfg.Email, logger)

	bookingService := booking.NewBookingService(
		dbLayer,
		slotLocks,
		bookingEvents,
		calculator,
		initiator,
		logger,
		cfg.Availability.FailClosed,
	)

	settler := &jobs.Settler{
		Bookings: bookingService,
		Payments: paymentStore,
		Audit:    auditRecorder,
		Mailer:   mailer,
		Logger:   logger,
	}
	reconciler := &jobs.Reconciler{
		Payments:    paymentStore,
		Credentials: dbLayer,
		Gateway:     gateway,
		Settler:     settler,
		Threshold:   cfg.Jobs.ReconcileAfter,
		Logger:      logger,
	}
	sweeper := &jobs.TimeoutSweeper{
		Bookings:    dbLayer,
		Transitions: bookingService,
		Payments:    paymentStore,
		Credentials: dbLayer,
		Gateway:     gateway,
		Settler:     settler,
		Audit:       auditRecorder,
		Timeout:     cfg.Jobs.PaymentTimeout,
		Logger:      logger,
	}
	jobsHandler := &jobs.Handler{
		Reconciler: reconciler,
		Sweeper:    sweeper,
		Locks:      slotLocks,
		LockTTL:    cfg.Jobs.LockTTL,
		Logger:     logger,
	}

	webhookHandler := &payment_api.StripeWebhookHandler{
		Payments:      paymentStore,
		Settler:       settler,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        logger,
	}

	bookingHandler := booking_api.NewHandler(bookingService, auditRecorder, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	// --- Public Routes ---
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/stripe/webhook", webhookHandler.Handle)
	logger.Info("ROUTER", "Stripe webhook endpoint registered at /api/stripe/webhook")

	// Called by the external scheduler; both jobs are lock-guarded and
	// idempotent so re-delivery is safe.
	r.Post("/api/jobs/reconcile-payments", jobsHandler.ReconcilePayments)
	r.Post("/api/jobs/payment-timeouts", jobsHandler.PaymentTimeouts)
	logger.Info("ROUTER", "Job endpoints registered under /api/jobs")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))
		logger.Info("AUTH", "JWT middleware applied to venue API routes")

		r.Route("/api/venues/{venueId}", func(r chi.Router) {
			r.Use(auth.RequireVenue)
			bookingHandler.RegisterRoutes(r)
		})
		logger.Info("ROUTER", "Venue routes registered under /api/venues/{venueId}")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Booking Service shutdown complete")
	}
}
