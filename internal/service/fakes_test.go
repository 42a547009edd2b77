package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/alerts"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/classification"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/cache"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/memory"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/observability"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/resilience"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/port"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fixedNow is a Tuesday; with a two-day lead the due-soon target is 15/05/2025.
var fixedNow = time.Date(2025, 5, 13, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// --- Mocks ---

type mockExtractor struct {
	text  string
	err   error
	block bool
	calls atomic.Int32
}

func (m *mockExtractor) ExtractText(ctx context.Context, _ domain.RawDocument) (string, error) {
	m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.text, m.err
}

type mockDeliverer struct {
	mu        sync.Mutex
	delivered []string
	failFor   map[string]bool
	delay     time.Duration
}

func (m *mockDeliverer) Name() string { return "mock" }

func (m *mockDeliverer) Deliver(_ context.Context, n *domain.Notification, _ *domain.Invoice) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[n.ID] {
		return errors.New("smtp: 421 try again later")
	}
	m.delivered = append(m.delivered, n.ID)
	return nil
}

func (m *mockDeliverer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

// overlappingStore holds every ListInvoices caller until all of them have
// listed, so concurrent sweeps see the same candidates before any writes.
type overlappingStore struct {
	port.Store
	listed *sync.WaitGroup
}

func newOverlappingStore(inner port.Store, sweepers int) *overlappingStore {
	wg := &sync.WaitGroup{}
	wg.Add(sweepers)
	return &overlappingStore{Store: inner, listed: wg}
}

func (s *overlappingStore) ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	out, err := s.Store.ListInvoices(ctx, f)
	s.listed.Done()
	s.listed.Wait()
	return out, err
}

// --- Builders ---

func newEvaluator() *alerts.Evaluator {
	return alerts.NewEvaluator(nil, alerts.Config{
		Recipient: "financeiro@example.com",
		LeadDays:  2,
		Location:  time.UTC,
	})
}

func newInvoiceService(t *testing.T, store *memory.Store, ocr *mockExtractor) *service.InvoiceService {
	t.Helper()
	c := cache.New[string](time.Minute)
	t.Cleanup(c.Stop)

	return service.NewInvoiceService(
		store,
		ocr,
		classification.New(nil),
		newEvaluator(),
		c,
		resilience.NewBulkhead(2),
		50*time.Millisecond,
		observability.NewMetrics(),
		zap.NewNop(),
	).WithClock(clock)
}

func newNotificationService(store port.Store, d *mockDeliverer) *service.NotificationService {
	return service.NewNotificationService(
		store,
		d,
		newEvaluator(),
		0,
		observability.NewMetrics(),
		zap.NewNop(),
	).WithClock(clock)
}

func seedInvoice(t *testing.T, store *memory.Store, mutate func(*domain.Invoice)) *domain.Invoice {
	t.Helper()
	inv := domain.NewInvoice("fatura.pdf", fixedNow.Add(-time.Hour))
	inv.Status = domain.StatusProcessed
	inv.Amount = decimal.NewNullDecimal(decimal.NewFromInt(100))
	if mutate != nil {
		mutate(inv)
	}
	if err := store.CreateInvoice(context.Background(), inv); err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return inv
}

func seedNotification(t *testing.T, store *memory.Store, invoiceID string) *domain.Notification {
	t.Helper()
	n := domain.NewNotification(invoiceID, domain.NotificationLimitExceeded, fixedNow.Add(-time.Minute),
		"financeiro@example.com", "limite", fixedNow.Add(-time.Minute))
	if err := store.CreateNotification(context.Background(), &n); err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return &n
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := domain.Date(y, m, d)
	return &t
}
