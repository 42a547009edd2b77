package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port           int
	LogLevel       string
	MaxUploadBytes int64

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Observability
	OTLPEndpoint string
	ServiceName  string

	// Persistence: memory | postgres | supabase
	StoreBackend string
	DatabaseURL  string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// OCR
	TesseractBin  string
	PdftoppmBin   string
	TesseractLang string
	OCRDPI        int
	OCRTimeout    time.Duration

	// Notifications: log | smtp | nats
	NotifyEmailTo   string
	NotifyTransport string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	SMTPFrom        string
	NATSURL         string
	NATSSubject     string

	// Sweeps
	DueSoonLeadDays  int
	DispatchSchedule string
	DueSoonSchedule  string
	SchedulerEnabled bool
	DispatchRate     float64
	ClaimLease       time.Duration
	Timezone         string

	// Optional YAML file overriding the limit and keyword tables
	TablesFile string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:           getEnvInt("PORT", 8080),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),

		CacheTTL:        getEnvDuration("CACHE_TTL", 30*time.Minute),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 256),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "faturas-api"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
		PdftoppmBin:   getEnv("PDFTOPPM_BIN", "pdftoppm"),
		TesseractLang: getEnv("TESSERACT_LANG", "por"),
		OCRDPI:        getEnvInt("OCR_DPI", 300),
		OCRTimeout:    getEnvDuration("OCR_TIMEOUT", 2*time.Minute),

		NotifyEmailTo:   getEnv("NOTIFY_EMAIL_TO", "usuario@exemplo.com"),
		NotifyTransport: strings.ToLower(getEnv("NOTIFY_TRANSPORT", "log")),
		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		SMTPUser:        getEnv("SMTP_USER", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:        getEnv("SMTP_FROM", "faturas@exemplo.com"),
		NATSURL:         getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:     getEnv("NATS_SUBJECT", "faturas.notifications"),

		DueSoonLeadDays:  getEnvInt("DUE_SOON_LEAD_DAYS", 2),
		DispatchSchedule: getEnv("DISPATCH_SCHEDULE", "@hourly"),
		DueSoonSchedule:  getEnv("DUE_SOON_SCHEDULE", "@daily"),
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		DispatchRate:     getEnvFloat("DISPATCH_RATE", 5),
		ClaimLease:       getEnvDuration("CLAIM_LEASE", 10*time.Minute),
		Timezone:         getEnv("TIMEZONE", "America/Sao_Paulo"),

		TablesFile: getEnv("TABLES_FILE", ""),
	}
}

// Location resolves Timezone, falling back to UTC when the zone database
// does not know it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
