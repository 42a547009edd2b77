package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// Store implements port.Store over a Supabase Client.
type Store struct {
	client *Client
}

// NewStore wraps a client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// Ping checks PostgREST reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.call(ctx, "ping", func() error {
		return s.client.Ping(ctx)
	})
}

// ============================================================
// Invoices
// ============================================================

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateInvoice")
	defer span.End()

	return s.client.call(ctx, "invoices", func() error {
		_, err := s.client.doPost(ctx, "invoices", toInvoiceRow(inv))
		return err
	})
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateInvoice")
	defer span.End()

	var body []byte
	err := s.client.call(ctx, "invoices", func() error {
		var err error
		body, err = s.client.doPatch(ctx, "invoices?id=eq."+url.QueryEscape(inv.ID), toInvoiceRow(inv))
		return err
	})
	if err != nil {
		return err
	}
	return requireRows(body, "invoice", inv.ID)
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	invoices, err := s.fetchInvoices(ctx, "invoices?select=*&id=eq."+url.QueryEscape(id))
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	return &invoices[0], nil
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInvoices")
	defer span.End()

	return s.fetchInvoices(ctx, "invoices?"+invoiceQuery(filter).Encode())
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteInvoice")
	defer span.End()

	var body []byte
	err := s.client.call(ctx, "invoices", func() error {
		var err error
		body, err = s.client.doDelete(ctx, "invoices?id=eq."+url.QueryEscape(id))
		return err
	})
	if err != nil {
		return err
	}
	return requireRows(body, "invoice", id)
}

func (s *Store) fetchInvoices(ctx context.Context, path string) ([]domain.Invoice, error) {
	var body []byte
	err := s.client.call(ctx, "invoices", func() error {
		var err error
		body, err = s.client.doRequest(ctx, "GET", path)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Invoice, 0)
	if len(body) == 0 {
		return out, nil
	}
	var rows []invoiceRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode invoices: %w", err)
	}
	for _, r := range rows {
		inv, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode invoice %s: %w", r.ID, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

// invoiceQuery translates a filter into PostgREST operators.
func invoiceQuery(f domain.InvoiceFilter) url.Values {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	if f.Category != nil {
		q.Add("category", "eq."+string(*f.Category))
	}
	if f.Paid != nil {
		q.Add("paid", fmt.Sprintf("eq.%t", *f.Paid))
	}
	if f.DueFrom != nil {
		q.Add("due_date", "gte."+f.DueFrom.Format(dateLayout))
	}
	if f.DueTo != nil {
		q.Add("due_date", "lte."+f.DueTo.Format(dateLayout))
	}
	if f.MinAmount != nil {
		q.Add("amount", "gte."+f.MinAmount.String())
	}
	if f.MaxAmount != nil {
		q.Add("amount", "lte."+f.MaxAmount.String())
	}
	if f.Search != "" {
		term := quoteFilterValue("*" + f.Search + "*")
		q.Set("or", fmt.Sprintf("(issuer.ilike.%s,description.ilike.%s,filename.ilike.%s)", term, term, term))
	}
	return q
}

// quoteFilterValue double-quotes a value inside a PostgREST logic tree so
// commas and parentheses in user input stay literal.
func quoteFilterValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

// ============================================================
// Notifications
// ============================================================

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateNotification")
	defer span.End()

	return s.client.call(ctx, "notifications", func() error {
		_, err := s.client.doPost(ctx, "notifications", toNotificationRow(n))
		return err
	})
}

// CreateNotificationIfAbsent relies on the same (invoice_id, type) unique
// index the Postgres adapter creates.
func (s *Store) CreateNotificationIfAbsent(ctx context.Context, n *domain.Notification) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateNotificationIfAbsent")
	defer span.End()

	var body []byte
	err := s.client.call(ctx, "notifications", func() error {
		var err error
		body, err = s.client.doInsertIgnore(ctx, "notifications", "invoice_id,type", toNotificationRow(n))
		return err
	})
	if err != nil {
		return false, err
	}
	rows, err := rowCount(body)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetNotification")
	defer span.End()

	list, err := s.fetchNotifications(ctx, "notifications?select=*&id=eq."+url.QueryEscape(id))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	return &list[0], nil
}

func (s *Store) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListNotifications")
	defer span.End()

	return s.fetchNotifications(ctx, "notifications?select=*&order=schedule_date.desc")
}

func (s *Store) ListPendingNotifications(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPendingNotifications")
	defer span.End()

	q := url.Values{}
	q.Set("select", "*")
	q.Set("sent", "is.false")
	q.Set("schedule_date", "lte."+now.UTC().Format(time.RFC3339))
	q.Set("order", "schedule_date.asc")
	return s.fetchNotifications(ctx, "notifications?"+q.Encode())
}

func (s *Store) HasNotification(ctx context.Context, invoiceID string, typ domain.NotificationType) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.HasNotification")
	defer span.End()

	q := url.Values{}
	q.Set("select", "id")
	q.Set("invoice_id", "eq."+invoiceID)
	q.Set("type", "eq."+string(typ))
	q.Set("limit", "1")

	var body []byte
	err := s.client.call(ctx, "notifications", func() error {
		var err error
		body, err = s.client.doRequest(ctx, "GET", "notifications?"+q.Encode())
		return err
	})
	if err != nil {
		return false, err
	}
	n, err := rowCount(body)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClaimNotification patches only rows that are unsent and not under a live
// claim; an empty representation means another caller holds it. The PATCH
// is sent once: a retry after a lost response would match nothing and
// read as a lost race.
func (s *Store) ClaimNotification(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ClaimNotification")
	defer span.End()

	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("sent", "is.false")
	q.Set("or", "(processed_at.is.null,processed_at.lt."+staleBefore.UTC().Format(time.RFC3339Nano)+")")

	patch := map[string]any{"processed_at": at.UTC()}
	var body []byte
	err := s.client.callOnce(ctx, "notifications", func() error {
		var err error
		body, err = s.client.doPatch(ctx, "notifications?"+q.Encode(), patch)
		return err
	})
	if err != nil {
		return false, err
	}
	n, err := rowCount(body)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkNotificationSent")
	defer span.End()

	patch := map[string]any{"sent": true, "processed_at": at.UTC()}
	var body []byte
	err := s.client.call(ctx, "notifications", func() error {
		var err error
		body, err = s.client.doPatch(ctx, "notifications?id=eq."+url.QueryEscape(id), patch)
		return err
	})
	if err != nil {
		return err
	}
	return requireRows(body, "notification", id)
}

// ReleaseNotification leaves sent rows alone; no match on an existing row
// is not an error.
func (s *Store) ReleaseNotification(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.ReleaseNotification")
	defer span.End()

	patch := map[string]any{"processed_at": nil}
	var body []byte
	err := s.client.call(ctx, "notifications", func() error {
		var err error
		body, err = s.client.doPatch(ctx, "notifications?id=eq."+url.QueryEscape(id)+"&sent=is.false", patch)
		return err
	})
	if err != nil {
		return err
	}
	n, err := rowCount(body)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = s.GetNotification(ctx, id)
	return err
}

func (s *Store) DeleteNotificationsByInvoice(ctx context.Context, invoiceID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteNotificationsByInvoice")
	defer span.End()

	return s.client.call(ctx, "notifications", func() error {
		_, err := s.client.doDelete(ctx, "notifications?invoice_id=eq."+url.QueryEscape(invoiceID))
		return err
	})
}

func (s *Store) fetchNotifications(ctx context.Context, path string) ([]domain.Notification, error) {
	var body []byte
	err := s.client.call(ctx, "notifications", func() error {
		var err error
		body, err = s.client.doRequest(ctx, "GET", path)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Notification, 0)
	if len(body) == 0 {
		return out, nil
	}
	var rows []notificationRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func requireRows(body []byte, resource, id string) error {
	n, err := rowCount(body)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}
