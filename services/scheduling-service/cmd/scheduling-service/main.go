package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/serviceops-hq/dispatch/libs/config"
	"github.com/serviceops-hq/dispatch/libs/db"
	"github.com/serviceops-hq/dispatch/libs/httpx"
	"github.com/serviceops-hq/dispatch/libs/kafkax"
	otelx "github.com/serviceops-hq/dispatch/libs/otel"
	"github.com/serviceops-hq/dispatch/libs/runtime"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/booking"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/catalog"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/faq"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/handlers"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/notify"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/observability/metrics"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/outbox"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	redisAddr := config.String("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() { _ = rdb.Close() }()

	loc, err := time.LoadLocation(config.String("BUSINESS_TIMEZONE", "America/Toronto"))
	if err != nil {
		logger.Error("invalid BUSINESS_TIMEZONE, falling back to UTC", "err", err)
		loc = time.UTC
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	outboxRepo := outbox.NewRepository(pool)
	store := storage.NewAppointmentStore(pool, outboxRepo)
	customerRepo := storage.NewCustomerRepository(pool)

	mailer := notify.NewMailer(
		notify.NewSMTPSender(
			config.String("SMTP_HOST", "localhost"),
			config.String("SMTP_PORT", "1025"),
			config.String("MAIL_FROM", ""),
		),
		config.String("APP_PUBLIC_BASE_URL", "http://localhost:3000"),
		config.String("ADMIN_ALERT_EMAIL", ""),
	)

	svc := booking.NewService(store, mailer, logger, booking.Config{
		Location:     loc,
		TokenTTL:     config.Hours("CONFIRM_TOKEN_TTL_HOURS", 72*time.Hour),
		MailOverride: config.String("MAIL_OVERRIDE_TO", ""),
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	catalogClient := catalog.NewClient(rdb, logger, catalog.Config{
		BaseURL: config.String("VPIC_BASE_URL", catalog.DefaultBaseURL),
		TTL:     config.Hours("CATALOG_CACHE_TTL_HOURS", 24*time.Hour),
	})

	apptHandler := handlers.NewAppointmentHandler(svc, logger, bookingMetrics)
	customerHandler := handlers.NewCustomerHandler(customerRepo, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogClient, logger)
	chatHandler := handlers.NewChatHandler(faq.NewResponder(config.String("SUPPORT_PHONE", "")))

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/v1/appointments", apptHandler.Appointments)
	mux.HandleFunc("/api/v1/appointments/get", apptHandler.Get)
	mux.HandleFunc("/api/v1/appointments/update", apptHandler.Update)
	mux.HandleFunc("/api/v1/availability", apptHandler.Availability)

	mux.HandleFunc("/api/v1/admin/appointments/internal-confirm", apptHandler.InternalConfirm)
	mux.HandleFunc("/api/v1/admin/appointments/send-confirmation", apptHandler.SendConfirmation)
	mux.HandleFunc("/api/v1/admin/appointments/resend-confirmation", apptHandler.ResendConfirmation)
	mux.HandleFunc("/api/v1/admin/appointments/set-draft", apptHandler.SetDraft)
	mux.HandleFunc("/api/v1/admin/appointments/customer-confirm", apptHandler.CustomerConfirm)
	mux.HandleFunc("/api/v1/admin/appointments/lock-window", apptHandler.LockWindow)
	mux.HandleFunc("/api/v1/admin/appointments/state", apptHandler.ScheduleState)
	mux.HandleFunc("/api/v1/admin/appointments/dispatch", apptHandler.DispatchStatus)

	// The public confirm link is the only unauthenticated write path, so it
	// gets its own per-client rate limit. An explicit REDIS_ADDR shares the
	// window across replicas; otherwise a single-instance in-process limiter
	// stands in.
	confirmLimit := config.Int("CONFIRM_RATE_LIMIT", 10)
	var confirmGate httpx.Middleware
	if config.String("REDIS_ADDR", "") != "" {
		confirmGate = httpx.NewRedisRateLimiter(rdb, confirmLimit, time.Minute, "rl:confirm").
			Middleware(logger, config.Bool("CONFIRM_RATE_LIMIT_FAIL_OPEN", true))
	} else {
		confirmGate = httpx.NewRateLimiter(confirmLimit, time.Minute).Middleware()
	}
	mux.Handle("/api/v1/public/appointments/confirm",
		httpx.Chain(http.HandlerFunc(apptHandler.Confirm), confirmGate))

	mux.HandleFunc("/api/v1/customers", customerHandler.Customers)
	mux.HandleFunc("/api/v1/customers/get", customerHandler.Get)
	mux.HandleFunc("/api/v1/customers/vehicles", customerHandler.Vehicles)

	mux.HandleFunc("/api/v1/catalog/makes", catalogHandler.Makes)
	mux.HandleFunc("/api/v1/catalog/models", catalogHandler.Models)

	mux.HandleFunc("/api/v1/chat", chatHandler.Chat)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
