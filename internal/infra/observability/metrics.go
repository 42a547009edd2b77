package observability

import (
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Field names used as the "field" label of the extraction counter.
var ExtractedFieldNames = []string{"amount", "due_date", "issue_date", "issuer"}

// Metrics holds all Prometheus metrics for the invoice service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration       *prometheus.HistogramVec
	externalErrors        *prometheus.CounterVec
	cacheHits             *prometheus.CounterVec
	cacheMisses           *prometheus.CounterVec
	invoicesProcessed     *prometheus.CounterVec
	fieldsExtracted       *prometheus.CounterVec
	notificationsCreated  *prometheus.CounterVec
	notificationsDispatch *prometheus.CounterVec
	ocrDuration           prometheus.Histogram
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faturas_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		invoicesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_invoices_processed_total",
				Help: "Uploaded invoices by final processing status.",
			},
			[]string{"status"},
		),
		fieldsExtracted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_fields_extracted_total",
				Help: "Field extraction outcomes (hit or miss) per field.",
			},
			[]string{"field", "outcome"},
		),
		notificationsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_notifications_created_total",
				Help: "Notifications created by type.",
			},
			[]string{"type"},
		),
		notificationsDispatch: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_notifications_dispatched_total",
				Help: "Notification send attempts by result (sent, skipped, failed).",
			},
			[]string{"result"},
		),
		ocrDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faturas_ocr_duration_seconds",
				Help:    "Time spent turning a document into text.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordOCRDuration records one OCR run.
func (m *Metrics) RecordOCRDuration(d time.Duration) {
	m.ocrDuration.Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrInvoice counts an invoice reaching a final status.
func (m *Metrics) IncrInvoice(status domain.InvoiceStatus) {
	m.invoicesProcessed.WithLabelValues(string(status)).Inc()
}

// RecordExtraction counts hit/miss per field for one extraction run.
func (m *Metrics) RecordExtraction(f domain.ExtractedFields) {
	present := []bool{f.Amount.Present, f.DueDate.Present, f.IssueDate.Present, f.Issuer.Present}
	for i, name := range ExtractedFieldNames {
		outcome := "miss"
		if present[i] {
			outcome = "hit"
		}
		m.fieldsExtracted.WithLabelValues(name, outcome).Inc()
	}
}

// IncrNotificationCreated counts a stored notification.
func (m *Metrics) IncrNotificationCreated(t domain.NotificationType) {
	m.notificationsCreated.WithLabelValues(string(t)).Inc()
}

// IncrDispatch counts a send attempt; result is sent, skipped or failed.
func (m *Metrics) IncrDispatch(result string) {
	m.notificationsDispatch.WithLabelValues(result).Inc()
}

// GetPipelineSnapshot returns a snapshot of pipeline metrics suitable for
// the GET /v1/metrics/pipeline endpoint.
func (m *Metrics) GetPipelineSnapshot() *domain.PipelineMetrics {
	// Prometheus counters expose cumulative values.
	processed := getCounterValue(m.invoicesProcessed, string(domain.StatusProcessed))
	failed := getCounterValue(m.invoicesProcessed, string(domain.StatusError))
	cacheHits := getCounterValue(m.cacheHits, "ocr")
	cacheMisses := getCounterValue(m.cacheMisses, "ocr")

	errorRate := float64(0)
	if processed+failed > 0 {
		errorRate = failed / (processed + failed)
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	hitRate := make(map[string]float64, len(ExtractedFieldNames))
	for _, name := range ExtractedFieldNames {
		hits := getCounterValue(m.fieldsExtracted, name, "hit")
		misses := getCounterValue(m.fieldsExtracted, name, "miss")
		if hits+misses > 0 {
			hitRate[name] = hits / (hits + misses)
		} else {
			hitRate[name] = 0
		}
	}

	return &domain.PipelineMetrics{
		InvoicesProcessed:   int64(processed),
		InvoicesFailed:      int64(failed),
		ErrorRate:           errorRate,
		FieldHitRate:        hitRate,
		NotificationsSent:   int64(getCounterValue(m.notificationsDispatch, "sent")),
		NotificationsFailed: int64(getCounterValue(m.notificationsDispatch, "failed")),
		OCRCacheHitRate:     cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
