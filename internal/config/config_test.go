package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/config"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("expected memory backend, got %s", cfg.StoreBackend)
	}
	if cfg.DueSoonLeadDays != 2 {
		t.Errorf("expected lead days 2, got %d", cfg.DueSoonLeadDays)
	}
	if cfg.DispatchSchedule != "@hourly" || cfg.DueSoonSchedule != "@daily" {
		t.Errorf("unexpected schedules %q / %q", cfg.DispatchSchedule, cfg.DueSoonSchedule)
	}
	if cfg.TesseractLang != "por" {
		t.Errorf("expected tesseract lang por, got %s", cfg.TesseractLang)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("OCR_TIMEOUT", "45s")
	t.Setenv("DISPATCH_RATE", "2.5")
	t.Setenv("CLAIM_LEASE", "90s")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("NOTIFY_EMAIL_TO", "contas@empresa.com.br")

	cfg := config.Load()
	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.StoreBackend != "postgres" {
		t.Errorf("expected postgres, got %s", cfg.StoreBackend)
	}
	if cfg.OCRTimeout != 45*time.Second {
		t.Errorf("expected 45s, got %s", cfg.OCRTimeout)
	}
	if cfg.DispatchRate != 2.5 {
		t.Errorf("expected 2.5, got %v", cfg.DispatchRate)
	}
	if cfg.ClaimLease != 90*time.Second {
		t.Errorf("expected 90s lease, got %s", cfg.ClaimLease)
	}
	if cfg.SchedulerEnabled {
		t.Error("expected scheduler disabled")
	}
	if cfg.NotifyEmailTo != "contas@empresa.com.br" {
		t.Errorf("unexpected recipient %s", cfg.NotifyEmailTo)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "abc")
	t.Setenv("OCR_TIMEOUT", "soon")

	cfg := config.Load()
	if cfg.Port != 8080 {
		t.Errorf("expected fallback port, got %d", cfg.Port)
	}
	if cfg.OCRTimeout != 2*time.Minute {
		t.Errorf("expected fallback timeout, got %s", cfg.OCRTimeout)
	}
}

func TestLocation_UnknownZoneIsUTC(t *testing.T) {
	cfg := &config.Config{Timezone: "Nowhere/Atlantis"}
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC, got %s", cfg.Location())
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "FATURAS_TEST_A=from-file\nFATURAS_TEST_B=\"quoted\"\n# comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FATURAS_TEST_A", "from-env")
	t.Setenv("FATURAS_TEST_B", "")
	os.Unsetenv("FATURAS_TEST_B")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("FATURAS_TEST_A"); got != "from-env" {
		t.Errorf("expected env to win, got %s", got)
	}
	if got := os.Getenv("FATURAS_TEST_B"); got != "quoted" {
		t.Errorf("expected quoted, got %s", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadTables_EmptyPathUsesDefaults(t *testing.T) {
	tables, err := config.LoadTables("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tables.Limits.For(domain.CategoryEnergia).Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected default energia ceiling")
	}
	if len(tables.Keywords.Rows()) != 13 {
		t.Errorf("expected 13 keyword rows, got %d", len(tables.Keywords.Rows()))
	}
}

func TestParseTables_Overrides(t *testing.T) {
	doc := []byte(`
limits:
  energia: 350.5
keywords:
  - category: agua
    keywords: [sabesp]
  - category: energia
    keywords: [enel]
`)
	tables, err := config.ParseTables(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tables.Limits.For(domain.CategoryEnergia); !got.Equal(decimal.RequireFromString("350.5")) {
		t.Errorf("expected 350.5, got %s", got)
	}
	if got := tables.Limits.For(domain.CategoryAgua); !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected default agua ceiling, got %s", got)
	}
	rows := tables.Keywords.Rows()
	if len(rows) != 2 || rows[0].Category != domain.CategoryAgua {
		t.Errorf("expected file order to be kept, got %+v", rows)
	}
}

func TestParseTables_RejectsUnknownCategory(t *testing.T) {
	_, err := config.ParseTables([]byte("limits:\n  viagem: 10\n"))
	var valErr *domain.ErrValidation
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestParseTables_InvalidYAML(t *testing.T) {
	if _, err := config.ParseTables([]byte("limits: [")); err == nil {
		t.Error("expected decode error")
	}
}
