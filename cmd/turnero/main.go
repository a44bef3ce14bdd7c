package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agendaya/turnero/internal/booking"
	"github.com/agendaya/turnero/internal/config"
	"github.com/agendaya/turnero/internal/consumer"
	"github.com/agendaya/turnero/internal/db"
	"github.com/agendaya/turnero/internal/handlers"
	"github.com/agendaya/turnero/internal/httpx"
	"github.com/agendaya/turnero/internal/inbox"
	"github.com/agendaya/turnero/internal/kafkax"
	"github.com/agendaya/turnero/internal/model"
	"github.com/agendaya/turnero/internal/otelx"
	"github.com/agendaya/turnero/internal/outbox"
	"github.com/agendaya/turnero/internal/reminders"
	"github.com/agendaya/turnero/internal/runtime"
	"github.com/agendaya/turnero/internal/storage"
	"github.com/agendaya/turnero/internal/whatsapp"
)

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour}
	}
	return offsets
}

func main() {
	config.Load()

	service := config.String("SERVICE_NAME", "turnero")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	reminderRepo := reminders.NewRepository()
	offsets := parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger)
	repo := storage.NewRepository(pool, outboxRepo, reminderRepo, offsets)
	engine := booking.NewEngine(repo, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	reminderWorker := reminders.NewWorker(pool, reminderRepo, outboxRepo, logger, reminders.WorkerConfig{
		BatchSize: config.Int("REMINDER_BATCH_SIZE", 50),
	})
	go reminderWorker.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(kafkaBrokers) == "" {
			return
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: kafkaBrokers,
			GroupID: config.String("KAFKA_GROUP_ID", "turnero"),
			Topic:   topic,
		}, handler)
		go eventConsumer.Run(ctx)
	}

	if webhookURL := config.String("WHATSAPP_WEBHOOK_URL", ""); webhookURL != "" {
		sender := whatsapp.NewWebhookSender(webhookURL, config.String("WHATSAPP_WEBHOOK_TOKEN", ""))
		notifier := whatsapp.NewNotifier(sender, repo, logger)
		startConsumer(outbox.EventAppointmentCreated, notifier.HandleAppointmentCreated)
		startConsumer(outbox.EventReminderDue, notifier.HandleReminderDue)
	} else {
		logger.Warn("WHATSAPP_WEBHOOK_URL not set; outbound messages disabled")
	}

	bookingHandler := handlers.NewBookingHandler(engine, repo, logger)
	adminHandler := handlers.NewAdminHandler(repo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/confirm", bookingHandler.Transition(model.StatusConfirmed))
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Transition(model.StatusCancelled))
	mux.HandleFunc("/api/v1/appointments/complete", bookingHandler.Transition(model.StatusCompleted))
	mux.HandleFunc("/api/v1/services", adminHandler.Services)
	mux.HandleFunc("/api/v1/services/update", adminHandler.UpdateService)
	mux.HandleFunc("/api/v1/services/active", adminHandler.SetServiceActive)
	mux.HandleFunc("/api/v1/staff", adminHandler.Staff)
	mux.HandleFunc("/api/v1/staff/update", adminHandler.UpdateStaff)
	mux.HandleFunc("/api/v1/staff/active", adminHandler.SetStaffActive)
	mux.HandleFunc("/api/v1/clients", adminHandler.Clients)
	mux.HandleFunc("/api/v1/clients/rename", adminHandler.RenameClient)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(15 * time.Second),
	}

	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Business-Id", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}))
	}

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		limiter := httpx.NewRateLimiter(rateLimit, time.Minute)
		middlewares = append(middlewares, limiter.Middleware())
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
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
