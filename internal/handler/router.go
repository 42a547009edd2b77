package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/observability"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	invoiceSvc *service.InvoiceService,
	notifySvc *service.NotificationService,
	db Pinger,
	metrics *observability.Metrics,
	maxUploadBytes int64,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(observability.MetricsMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(db, logger))
	r.Get("/readyz", readyzHandler(db, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Faturas
		// =============================================
		r.Route("/invoices", func(r chi.Router) {
			r.With(BodyLimitMiddleware(maxUploadBytes, logger)).
				Post("/upload", uploadInvoiceHandler(invoiceSvc, logger))
			r.Get("/", listInvoicesHandler(invoiceSvc, logger))
			r.Get("/upcoming", upcomingInvoicesHandler(invoiceSvc, logger))
			r.Get("/overdue", overdueInvoicesHandler(invoiceSvc, logger))
			r.Get("/summary", invoiceSummaryHandler(invoiceSvc, logger))
			r.Get("/export", exportInvoicesHandler(invoiceSvc, logger))
			r.Get("/{id}", getInvoiceHandler(invoiceSvc, logger))
			r.Patch("/{id}", updateInvoiceHandler(invoiceSvc, logger))
			r.Patch("/{id}/mark-paid", markPaidHandler(invoiceSvc, logger))
			r.Delete("/{id}", deleteInvoiceHandler(invoiceSvc, logger))
		})

		// =============================================
		// 2. Notificações
		// =============================================
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", listNotificationsHandler(notifySvc, logger))
			r.Get("/pending", pendingNotificationsHandler(notifySvc, logger))
			r.Post("/dispatch", dispatchHandler(notifySvc, logger))
			r.Post("/due-soon/scan", dueSoonScanHandler(notifySvc, logger))
			r.Post("/{id}/send", sendNotificationHandler(notifySvc, logger))
		})

		// =============================================
		// 3. Catálogo & métricas
		// =============================================
		r.Get("/categories", categoriesHandler(invoiceSvc))
		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "faturas-api", Status: "healthy", LastChecked: now},
		}
		if db != nil {
			start := time.Now()
			err := db.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("healthz: store ping failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "store", Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logger.Warn("readyz: store not ready", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pipelineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPipelineSnapshot())
	}
}
