package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tapbook/salon-booking/internal/api/router"
	"github.com/tapbook/salon-booking/internal/availability"
	"github.com/tapbook/salon-booking/internal/booking"
	"github.com/tapbook/salon-booking/internal/card"
	"github.com/tapbook/salon-booking/internal/catalog"
	appconfig "github.com/tapbook/salon-booking/internal/config"
	"github.com/tapbook/salon-booking/internal/events"
	"github.com/tapbook/salon-booking/internal/http/handlers"
	"github.com/tapbook/salon-booking/internal/intent"
	"github.com/tapbook/salon-booking/internal/notify"
	"github.com/tapbook/salon-booking/internal/observability/metrics"
	"github.com/tapbook/salon-booking/internal/orchestrator"
	"github.com/tapbook/salon-booking/internal/session"
	"github.com/tapbook/salon-booking/internal/wa"
	"github.com/tapbook/salon-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting salon-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach postgres", "error", err)
		os.Exit(1)
	}

	// database/sql handle for the analytics recorder.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	// Session store: Redis in production, in-process fallback for local runs
	// without a Redis.
	var sessions session.Store
	var redisClient *redis.Client
	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient = redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-memory session store", "error", err)
		redisClient = nil
		memStore := session.NewMemoryStore(cfg.SessionTTL)
		memStore.StartSweeper(cfg.SessionSweepEvery)
		defer memStore.Close()
		sessions = memStore
	} else {
		sessions = session.NewRedisStore(redisClient, cfg.SessionTTL)
	}

	flowMetrics := metrics.NewFlowMetrics(nil)
	catalogRepo := catalog.NewRepository(pool)
	bookingRepo := booking.NewRepository(pool, logger)
	finder := availability.NewFinder(bookingRepo, cfg.SlotGranularity, logger)
	recorder := events.NewRecorder(sqlDB, logger)

	var notifier orchestrator.Notifier
	var emailSender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	}
	notifier = notify.NewService(emailSender, logger)

	var extractor intent.Extractor
	if cfg.GeminiAPIKey != "" {
		gemini, err := intent.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, cfg.IntentTimeout, logger)
		if err != nil {
			logger.Error("failed to create gemini extractor", "error", err)
			os.Exit(1)
		}
		extractor = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, using keyword intent extraction")
		extractor = intent.NewKeywordExtractor()
	}

	cards := &card.Builder{
		ButtonThreshold: cfg.ButtonThreshold,
		ListThreshold:   cfg.ListThreshold,
		ButtonIDMaxLen:  cfg.ButtonIDMaxLen,
		ListRowIDMaxLen: cfg.ListRowIDMaxLen,
		DefaultLanguage: cfg.DefaultLanguage,
	}

	orch := orchestrator.New(catalogRepo, bookingRepo, finder, sessions,
		extractor, cards, recorder, notifier, flowMetrics,
		orchestrator.Config{
			HorizonDays:   cfg.HorizonDays,
			MaxResults:    cfg.MaxSlotResults,
			LookupTimeout: cfg.LookupTimeout,
			CommitTimeout: cfg.CommitTimeout,
		}, logger)

	var messenger wa.Messenger
	if cfg.WhatsAppToken != "" {
		waClient, err := wa.NewClient(wa.Config{
			BaseURL:       cfg.WhatsAppBaseURL,
			AccessToken:   cfg.WhatsAppToken,
			PhoneNumberID: cfg.WhatsAppPhoneID,
			WebhookSecret: cfg.WhatsAppWebhookSecret,
			MaxRetries:    cfg.WhatsAppSendRetries,
			Backoff:       cfg.WhatsAppRetryBaseWait,
			Logger:        logger,
		})
		if err != nil {
			logger.Error("failed to create whatsapp client", "error", err)
			os.Exit(1)
		}
		messenger = waClient
	} else {
		logger.Warn("WHATSAPP_TOKEN not set, outbound messages will be logged only")
		messenger = logOnlyMessenger{logger: logger}
	}

	webhook := handlers.NewWhatsAppWebhookHandler(handlers.WhatsAppWebhookConfig{
		VerifyToken:     cfg.WhatsAppVerifyToken,
		WebhookSecret:   cfg.WhatsAppWebhookSecret,
		DefaultLanguage: cfg.DefaultLanguage,
		Flow:            orch,
		Salons:          handlers.StaticSalonResolver(cfg.DefaultSalonID),
		Messenger:       messenger,
		Logger:          logger,
	})

	pingers := map[string]handlers.Pinger{
		"postgres": pingFunc(func(ctx context.Context) error { return pool.Ping(ctx) }),
	}
	if redisClient != nil {
		pingers["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	r := router.New(&router.Config{
		Logger:         logger,
		Webhook:        webhook,
		Health:         handlers.NewHealthHandler(pingers, logger),
		AdminFunnel:    handlers.NewAdminFunnelHandler(recorder, logger),
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// logOnlyMessenger stands in for the Cloud API when no token is configured,
// so local development still exercises the whole flow.
type logOnlyMessenger struct {
	logger *logging.Logger
}

func (m logOnlyMessenger) SendText(_ context.Context, to, body string) error {
	m.logger.Info("would send text", "to", to, "body", body)
	return nil
}

func (m logOnlyMessenger) SendPresentation(_ context.Context, to string, p card.Presentation) error {
	m.logger.Info("would send card", "to", to, "kind", string(p.Kind), "text", p.Text)
	return nil
}
