package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// PipelineMetrics is returned by GET /v1/metrics/pipeline.
type PipelineMetrics struct {
	InvoicesProcessed   int64              `json:"invoicesProcessed"`
	InvoicesFailed      int64              `json:"invoicesFailed"`
	ErrorRate           float64            `json:"errorRate"`
	FieldHitRate        map[string]float64 `json:"fieldHitRate"`
	NotificationsSent   int64              `json:"notificationsSent"`
	NotificationsFailed int64              `json:"notificationsFailed"`
	OCRCacheHitRate     float64            `json:"ocrCacheHitRate"`
	Period              string             `json:"period"`
}
