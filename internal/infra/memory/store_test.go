package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/memory"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/port"

	"github.com/shopspring/decimal"
)

var _ port.Store = (*memory.Store)(nil)

var base = time.Date(2025, time.May, 10, 12, 0, 0, 0, time.UTC)

func seedInvoice(t *testing.T, s *memory.Store, name string, offset time.Duration) *domain.Invoice {
	t.Helper()
	inv := domain.NewInvoice(name, base.Add(offset))
	if err := s.CreateInvoice(context.Background(), inv); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

func TestInvoices_CRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	inv := seedInvoice(t, s, "luz.pdf", 0)

	got, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.Paid = true
	if stored, _ := s.GetInvoice(ctx, inv.ID); stored.Paid {
		t.Fatal("expected store to hand out copies")
	}

	if err := s.UpdateInvoice(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if stored, _ := s.GetInvoice(ctx, inv.ID); !stored.Paid {
		t.Error("expected update to persist")
	}

	if err := s.DeleteInvoice(ctx, inv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var nf *domain.ErrNotFound
	if _, err := s.GetInvoice(ctx, inv.ID); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListInvoices_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	older := seedInvoice(t, s, "agua.pdf", 0)
	older.Category = domain.CategoryAgua
	older.Amount = decimal.NewNullDecimal(decimal.NewFromInt(80))
	_ = s.UpdateInvoice(ctx, older)

	newer := seedInvoice(t, s, "luz.pdf", time.Hour)
	newer.Category = domain.CategoryEnergia
	newer.Amount = decimal.NewNullDecimal(decimal.NewFromInt(320))
	_ = s.UpdateInvoice(ctx, newer)

	all, _ := s.ListInvoices(ctx, domain.InvoiceFilter{})
	if len(all) != 2 || all[0].ID != newer.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	minAmount := decimal.NewFromInt(100)
	big, _ := s.ListInvoices(ctx, domain.InvoiceFilter{MinAmount: &minAmount})
	if len(big) != 1 || big[0].ID != newer.ID {
		t.Errorf("expected only the energy bill, got %d", len(big))
	}

	cat := domain.CategoryAgua
	water, _ := s.ListInvoices(ctx, domain.InvoiceFilter{Category: &cat})
	if len(water) != 1 || water[0].ID != older.ID {
		t.Errorf("expected only the water bill, got %d", len(water))
	}
}

func TestNotifications_RequireInvoice(t *testing.T) {
	s := memory.New()
	n := domain.NewNotification("missing", domain.NotificationDueSoon, base, "a@b.c", "msg", base)

	var nf *domain.ErrNotFound
	if err := s.CreateNotification(context.Background(), &n); !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotifications_PendingAndHas(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	inv := seedInvoice(t, s, "luz.pdf", 0)

	due := domain.NewNotification(inv.ID, domain.NotificationDueSoon, base, "a@b.c", "agora", base)
	later := domain.NewNotification(inv.ID, domain.NotificationLimitExceeded, base.Add(48*time.Hour), "a@b.c", "depois", base)
	_ = s.CreateNotification(ctx, &due)
	_ = s.CreateNotification(ctx, &later)

	pending, _ := s.ListPendingNotifications(ctx, base.Add(time.Minute))
	if len(pending) != 1 || pending[0].ID != due.ID {
		t.Fatalf("expected only the due notification, got %+v", pending)
	}

	has, _ := s.HasNotification(ctx, inv.ID, domain.NotificationDueSoon)
	if !has {
		t.Error("expected DUE_SOON to exist")
	}

	all, _ := s.ListNotifications(ctx)
	if len(all) != 2 || all[0].ID != later.ID {
		t.Errorf("expected latest schedule first, got %+v", all)
	}
}

func TestClaimNotification_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	inv := seedInvoice(t, s, "luz.pdf", 0)
	n := domain.NewNotification(inv.ID, domain.NotificationDueSoon, base, "a@b.c", "msg", base)
	_ = s.CreateNotification(ctx, &n)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimNotification(ctx, n.ID, base, base.Add(-5*time.Minute))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one claim, got %d", wins)
	}
	got, _ := s.GetNotification(ctx, n.ID)
	if got.Sent || got.ProcessedAt == nil || !got.ProcessedAt.Equal(base) {
		t.Errorf("expected an unsent claim stamped at %v, got %+v", base, got)
	}

	if err := s.ReleaseNotification(ctx, n.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ = s.GetNotification(ctx, n.ID)
	if got.Sent || got.ProcessedAt != nil {
		t.Error("expected release to clear processedAt")
	}
}

func TestClaimNotification_StaleClaimIsReclaimed(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	inv := seedInvoice(t, s, "luz.pdf", 0)
	n := domain.NewNotification(inv.ID, domain.NotificationDueSoon, base, "a@b.c", "msg", base)
	_ = s.CreateNotification(ctx, &n)

	lease := 5 * time.Minute
	if ok, _ := s.ClaimNotification(ctx, n.ID, base, base.Add(-lease)); !ok {
		t.Fatal("first claim should win")
	}

	// The first holder never finishes.
	later := base.Add(time.Minute)
	if ok, _ := s.ClaimNotification(ctx, n.ID, later, later.Add(-lease)); ok {
		t.Fatal("claim inside the lease should lose")
	}

	expired := base.Add(lease + time.Second)
	ok, err := s.ClaimNotification(ctx, n.ID, expired, expired.Add(-lease))
	if err != nil || !ok {
		t.Fatalf("claim after the lease = %v, %v; want true", ok, err)
	}

	if err := s.MarkNotificationSent(ctx, n.ID, expired); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	farLater := expired.Add(time.Hour)
	if ok, _ := s.ClaimNotification(ctx, n.ID, farLater, farLater.Add(-lease)); ok {
		t.Error("a sent notification must never be claimed again")
	}
	if err := s.ReleaseNotification(ctx, n.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := s.GetNotification(ctx, n.ID)
	if !got.Sent || got.ProcessedAt == nil || !got.ProcessedAt.Equal(expired) {
		t.Errorf("release must not touch a sent notification, got %+v", got)
	}
}

func TestCreateNotificationIfAbsent_OneWinnerPerType(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	inv := seedInvoice(t, s, "luz.pdf", 0)

	var created int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := domain.NewNotification(inv.ID, domain.NotificationDueSoon, base, "a@b.c", "msg", base)
			ok, err := s.CreateNotificationIfAbsent(ctx, &n)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if ok {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected one DUE_SOON to be created, got %d", created)
	}

	limit := domain.NewNotification(inv.ID, domain.NotificationLimitExceeded, base, "a@b.c", "msg", base)
	if ok, err := s.CreateNotificationIfAbsent(ctx, &limit); err != nil || !ok {
		t.Errorf("a different type should still be created, got %v, %v", ok, err)
	}

	orphan := domain.NewNotification("ghost", domain.NotificationDueSoon, base, "a@b.c", "msg", base)
	var nf *domain.ErrNotFound
	if _, err := s.CreateNotificationIfAbsent(ctx, &orphan); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound for a missing invoice, got %v", err)
	}
}

func TestDeleteInvoice_Cascades(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	inv := seedInvoice(t, s, "luz.pdf", 0)
	n := domain.NewNotification(inv.ID, domain.NotificationDueSoon, base, "a@b.c", "msg", base)
	_ = s.CreateNotification(ctx, &n)

	_ = s.DeleteInvoice(ctx, inv.ID)

	var nf *domain.ErrNotFound
	if _, err := s.GetNotification(ctx, n.ID); !errors.As(err, &nf) {
		t.Errorf("expected notification to be deleted, got %v", err)
	}
}
