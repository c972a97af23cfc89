package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/serviceops-hq/dispatch/libs/config"
	"github.com/serviceops-hq/dispatch/libs/db"
	"github.com/serviceops-hq/dispatch/libs/httpx"
	"github.com/serviceops-hq/dispatch/libs/kafkax"
	otelx "github.com/serviceops-hq/dispatch/libs/otel"
	"github.com/serviceops-hq/dispatch/libs/runtime"
	"github.com/serviceops-hq/dispatch/services/notification-service/internal/alerts"
	"github.com/serviceops-hq/dispatch/services/notification-service/internal/consumer"
	"github.com/serviceops-hq/dispatch/services/notification-service/internal/email"
	"github.com/serviceops-hq/dispatch/services/notification-service/internal/inbox"
	"github.com/serviceops-hq/dispatch/services/notification-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8081")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "alerts@dispatch.local"),
	)
	adminEmail := config.String("ADMIN_ALERT_EMAIL", "")
	if adminEmail == "" {
		logger.Warn("ADMIN_ALERT_EMAIL not set; alerts are recorded but not emailed")
	}

	handleEvent := func(ctx context.Context, msg kafka.Message) error {
		alert, err := alerts.Build(msg.Topic, msg.Value)
		if err != nil {
			// Malformed payloads are logged and dropped, not retried.
			logger.Error("alert build failed", "topic", msg.Topic, "err", err)
			return nil
		}

		status := "recorded"
		if adminEmail != "" {
			if err := sender.Send(adminEmail, alert.Subject, alert.Body); err != nil {
				status = "failed"
				logger.Error("admin alert email failed", "appointment_id", alert.AppointmentID, "err", err)
			} else {
				status = "sent"
			}
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			AppointmentID: alert.AppointmentID,
			EventType:     msg.Topic,
			Recipient:     adminEmail,
			Payload:       msg.Value,
			Status:        status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		logger.Info("alert processed", "appointment_id", alert.AppointmentID, "topic", msg.Topic, "status", status)
		return nil
	}

	startConsumer := func(topic string) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}, handleEvent)
		go eventConsumer.Run(ctx)
	}

	startConsumer(alerts.TopicBooked)
	startConsumer(alerts.TopicStateChanged)
	startConsumer(alerts.TopicDispatchChanged)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
