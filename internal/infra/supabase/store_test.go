package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/resilience"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/supabase"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/port"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ port.Store = (*supabase.Store)(nil)

func newTestStore(t *testing.T, h http.HandlerFunc) *supabase.Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	cb := resilience.NewCircuitBreaker("supabase-test", logger)
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	client := supabase.NewClient(srv.Client(), srv.URL, "anon-key", "service-key", cb, cfg, logger)
	return supabase.NewStore(client)
}

func TestGetInvoice_DecodesRow(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("apikey header = %q", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("Authorization header = %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/rest/v1/invoices" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "eq.inv-1" {
			t.Errorf("id filter = %q", got)
		}
		_, _ = io.WriteString(w, `[{
			"id": "inv-1", "filename": "conta.pdf", "amount": 157.89,
			"due_date": "2025-05-15", "issue_date": null, "issuer": "ENEL",
			"category": "energia", "description": null, "extracted_text": "texto",
			"status": "PROCESSED", "paid": false,
			"created_at": "2025-05-01T10:00:00+00:00", "updated_at": "2025-05-01T10:00:00+00:00"
		}]`)
	})

	inv, err := store.GetInvoice(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inv.Amount.Valid || !inv.Amount.Decimal.Equal(decimal.RequireFromString("157.89")) {
		t.Errorf("amount = %v", inv.Amount)
	}
	if inv.DueDate == nil || !inv.DueDate.Equal(domain.Date(2025, time.May, 15)) {
		t.Errorf("due date = %v", inv.DueDate)
	}
	if inv.IssueDate != nil {
		t.Errorf("issue date should be nil, got %v", inv.IssueDate)
	}
	if inv.Issuer == nil || *inv.Issuer != "ENEL" {
		t.Errorf("issuer = %v", inv.Issuer)
	}
	if inv.Category != domain.CategoryEnergia || inv.Status != domain.StatusProcessed {
		t.Errorf("category/status = %s/%s", inv.Category, inv.Status)
	}
}

func TestGetInvoice_EmptyResultIsNotFound(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := store.GetInvoice(context.Background(), "missing")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListInvoices_TranslatesFilter(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("category"); got != "eq.energia" {
			t.Errorf("category = %q", got)
		}
		if got := q.Get("paid"); got != "eq.false" {
			t.Errorf("paid = %q", got)
		}
		due := q["due_date"]
		if len(due) != 2 || due[0] != "gte.2025-05-01" || due[1] != "lte.2025-05-31" {
			t.Errorf("due_date = %v", due)
		}
		if got := q.Get("amount"); got != "gte.100" {
			t.Errorf("amount = %q", got)
		}
		if got := q.Get("or"); !strings.Contains(got, `issuer.ilike."*enel*"`) {
			t.Errorf("or = %q", got)
		}
		if got := q.Get("order"); got != "created_at.desc" {
			t.Errorf("order = %q", got)
		}
		_, _ = io.WriteString(w, `[]`)
	})

	cat := domain.CategoryEnergia
	paid := false
	from := domain.Date(2025, time.May, 1)
	to := domain.Date(2025, time.May, 31)
	minAmount := decimal.NewFromInt(100)

	out, err := store.ListInvoices(context.Background(), domain.InvoiceFilter{
		Category:  &cat,
		Paid:      &paid,
		DueFrom:   &from,
		DueTo:     &to,
		MinAmount: &minAmount,
		Search:    "enel",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", out)
	}
}

func TestClaimNotification_OnlyFirstCallerWins(t *testing.T) {
	var calls int32
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		q := r.URL.Query()
		if got := q.Get("sent"); got != "is.false" {
			t.Errorf("sent filter = %q", got)
		}
		if got := q.Get("or"); got != "(processed_at.is.null,processed_at.lt.2025-05-13T08:55:00Z)" {
			t.Errorf("lease filter = %q", got)
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("Prefer header = %q", r.Header.Get("Prefer"))
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = io.WriteString(w, `[{"id":"n-1","sent":false}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	ctx := context.Background()
	now := time.Date(2025, 5, 13, 9, 0, 0, 0, time.UTC)
	stale := now.Add(-5 * time.Minute)

	won, err := store.ClaimNotification(ctx, "n-1", now, stale)
	if err != nil || !won {
		t.Fatalf("first claim = %v, %v", won, err)
	}
	won, err = store.ClaimNotification(ctx, "n-1", now, stale)
	if err != nil || won {
		t.Fatalf("second claim = %v, %v", won, err)
	}
}

func TestClaimNotification_LostResponseIsAnError(t *testing.T) {
	var calls int32
	var patched map[string]any
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) > 1 {
			// A repeated PATCH finds the row already claimed.
			_, _ = io.WriteString(w, `[]`)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&patched); err != nil {
			t.Errorf("decode patch: %v", err)
		}
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		_ = conn.Close()
	})

	now := time.Date(2025, 5, 13, 9, 0, 0, 0, time.UTC)
	won, err := store.ClaimNotification(context.Background(), "n-1", now, now.Add(-5*time.Minute))

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got won=%v err=%v", won, err)
	}
	if won {
		t.Error("a failed claim must not report a win")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single PATCH, got %d", got)
	}
	if _, ok := patched["sent"]; ok {
		t.Errorf("claim must not mark the row sent, patch = %v", patched)
	}
}

func TestCreateNotificationIfAbsent_IgnoresDuplicates(t *testing.T) {
	var calls int32
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.URL.Query().Get("on_conflict"); got != "invoice_id,type" {
			t.Errorf("on_conflict = %q", got)
		}
		if got := r.Header.Get("Prefer"); got != "resolution=ignore-duplicates,return=representation" {
			t.Errorf("Prefer header = %q", got)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = io.WriteString(w, `[{"id":"n-1"}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	ctx := context.Background()
	now := time.Date(2025, 5, 13, 9, 0, 0, 0, time.UTC)
	n := domain.NewNotification("inv-1", domain.NotificationDueSoon, now, "a@b.c", "vence", now)

	created, err := store.CreateNotificationIfAbsent(ctx, &n)
	if err != nil || !created {
		t.Fatalf("first insert = %v, %v", created, err)
	}
	created, err = store.CreateNotificationIfAbsent(ctx, &n)
	if err != nil || created {
		t.Fatalf("duplicate insert = %v, %v", created, err)
	}
}

func TestMarkNotificationSent_SetsSent(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Errorf("decode patch: %v", err)
		}
		if patch["sent"] != true || patch["processed_at"] != "2025-05-13T09:00:00Z" {
			t.Errorf("patch = %v", patch)
		}
		_, _ = io.WriteString(w, `[{"id":"n-1","sent":true}]`)
	})

	err := store.MarkNotificationSent(context.Background(), "n-1", time.Date(2025, 5, 13, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListPendingNotifications_Query(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sent") != "is.false" {
			t.Errorf("sent = %q", q.Get("sent"))
		}
		if q.Get("schedule_date") != "lte.2025-05-13T09:00:00Z" {
			t.Errorf("schedule_date = %q", q.Get("schedule_date"))
		}
		_, _ = io.WriteString(w, `[{
			"id": "n-1", "invoice_id": "inv-1", "type": "DUE_SOON",
			"schedule_date": "2025-05-13T00:00:00Z", "sent": false,
			"email": "financeiro@example.com", "message": "vence",
			"created_at": "2025-05-12T00:00:00Z", "processed_at": null
		}]`)
	})

	list, err := store.ListPendingNotifications(context.Background(), time.Date(2025, 5, 13, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(list))
	}
	n := list[0]
	if n.Type != domain.NotificationDueSoon || n.Recipient != "financeiro@example.com" || n.Sent {
		t.Errorf("unexpected notification: %+v", n)
	}
}

func TestServerErrorsAreRetriedAndWrapped(t *testing.T) {
	var calls int32
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := store.ListNotifications(context.Background())
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message":"violates foreign key constraint"}`)
	})

	n := domain.NewNotification("inv-x", domain.NotificationDueSoon, time.Now(), "a@b.c", "m", time.Now())
	err := store.CreateNotification(context.Background(), &n)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestReleaseNotification_MissingRow(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	err := store.ReleaseNotification(context.Background(), "ghost")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
