package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/alerts"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/classification"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/config"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/handler"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/cache"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/delivery"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/memory"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/observability"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/ocr"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/postgres"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/resilience"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/supabase"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/port"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/scheduler"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("notify_transport", cfg.NotifyTransport),
		zap.Duration("ocr_timeout", cfg.OCRTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Int("due_soon_lead_days", cfg.DueSoonLeadDays),
		zap.String("timezone", cfg.Timezone),
	)

	ctx := context.Background()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Lookup tables ---
	tables, err := config.LoadTables(cfg.TablesFile)
	if err != nil {
		logger.Fatal("failed to load tables", zap.String("path", cfg.TablesFile), zap.Error(err))
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Store ---
	var store port.Store
	switch cfg.StoreBackend {
	case "postgres":
		db, err := postgres.OpenDB(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()

		pg := postgres.NewStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to apply schema", zap.Error(err))
		}
		store = pg
	case "supabase":
		if cfg.SupabaseURL == "" {
			logger.Fatal("STORE_BACKEND=supabase requires SUPABASE_URL")
		}
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilienceCfg,
			logger,
		)
		store = supabase.NewStore(client)
	default:
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.New()
	}

	// --- Notification transport ---
	var deliverer port.Deliverer
	switch cfg.NotifyTransport {
	case "smtp":
		deliverer = delivery.NewSMTPDeliverer(delivery.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, resilience.NewCircuitBreaker("smtp", logger), resilienceCfg, logger)
	case "nats":
		nd, err := delivery.ConnectNATS(cfg.NATSURL, cfg.NATSSubject, cfg.ServiceName, logger)
		if err != nil {
			logger.Fatal("failed to connect to NATS", zap.String("url", cfg.NATSURL), zap.Error(err))
		}
		defer nd.Close()
		deliverer = nd
	default:
		deliverer = delivery.NewLogDeliverer(logger)
	}

	// --- Domain ---
	evaluator := alerts.NewEvaluator(tables.Limits, alerts.Config{
		Recipient: cfg.NotifyEmailTo,
		LeadDays:  cfg.DueSoonLeadDays,
		Location:  cfg.Location(),
	})
	classifier := classification.New(tables.Keywords)

	ocrCache := cache.New[string](cfg.CacheTTL, cache.WithMaxEntries(cfg.CacheMaxEntries))
	defer ocrCache.Stop()

	engine := ocr.NewEngine(ocr.Config{
		Tesseract:     cfg.TesseractBin,
		Pdftoppm:      cfg.PdftoppmBin,
		TesseractLang: cfg.TesseractLang,
		DPI:           cfg.OCRDPI,
	}, logger)

	// --- Services ---
	invoiceSvc := service.NewInvoiceService(
		store,
		engine,
		classifier,
		evaluator,
		ocrCache,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg.OCRTimeout,
		metrics,
		logger,
	)
	notifySvc := service.NewNotificationService(store, deliverer, evaluator, cfg.DispatchRate, metrics, logger).
		WithClaimLease(cfg.ClaimLease)

	// --- Scheduler ---
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched, err = scheduler.New(scheduler.Config{
			DispatchSchedule: cfg.DispatchSchedule,
			DueSoonSchedule:  cfg.DueSoonSchedule,
			Location:         cfg.Location(),
			JobTimeout:       30 * time.Minute,
		}, notifySvc, logger)
		if err != nil {
			logger.Fatal("failed to configure scheduler", zap.Error(err))
		}
		sched.Start()
	} else {
		logger.Warn("scheduler disabled, sweeps only run on demand")
	}

	// --- Router ---
	router := handler.NewRouter(invoiceSvc, notifySvc, store, metrics, cfg.MaxUploadBytes, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OCRTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler did not stop in time", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
