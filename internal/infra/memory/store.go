// Package memory is a process-local implementation of port.Store, used for
// development and in tests. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
)

// Store keeps invoices and notifications in maps guarded by one mutex.
// Values are copied in and out so callers never share state with the store.
type Store struct {
	mu            sync.RWMutex
	invoices      map[string]domain.Invoice
	notifications map[string]domain.Notification
}

// New returns an empty store.
func New() *Store {
	return &Store{
		invoices:      make(map[string]domain.Invoice),
		notifications: make(map[string]domain.Notification),
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// ============================================================
// Invoices
// ============================================================

func (s *Store) CreateInvoice(_ context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID]; exists {
		return &domain.ErrValidation{Field: "id", Message: "invoice already exists"}
	}
	s.invoices[inv.ID] = *inv
	return nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID]; !exists {
		return &domain.ErrNotFound{Resource: "invoice", ID: inv.ID}
	}
	s.invoices[inv.ID] = *inv
	return nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	return &inv, nil
}

func (s *Store) ListInvoices(_ context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if filter.Match(&inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteInvoice removes the invoice and its notifications.
func (s *Store) DeleteInvoice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[id]; !ok {
		return &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	delete(s.invoices, id)
	for nid, n := range s.notifications {
		if n.InvoiceID == id {
			delete(s.notifications, nid)
		}
	}
	return nil
}

// ============================================================
// Notifications
// ============================================================

func (s *Store) CreateNotification(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[n.InvoiceID]; !ok {
		return &domain.ErrNotFound{Resource: "invoice", ID: n.InvoiceID}
	}
	if _, exists := s.notifications[n.ID]; exists {
		return &domain.ErrValidation{Field: "id", Message: "notification already exists"}
	}
	s.notifications[n.ID] = *n
	return nil
}

// CreateNotificationIfAbsent checks and inserts under one write lock.
func (s *Store) CreateNotificationIfAbsent(_ context.Context, n *domain.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[n.InvoiceID]; !ok {
		return false, &domain.ErrNotFound{Resource: "invoice", ID: n.InvoiceID}
	}
	for _, existing := range s.notifications {
		if existing.InvoiceID == n.InvoiceID && existing.Type == n.Type {
			return false, nil
		}
	}
	s.notifications[n.ID] = *n
	return true, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	return &n, nil
}

func (s *Store) ListNotifications(_ context.Context) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledDate.After(out[j].ScheduledDate)
	})
	return out, nil
}

func (s *Store) ListPendingNotifications(_ context.Context, now time.Time) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Notification
	for _, n := range s.notifications {
		if !n.Sent && !n.ScheduledDate.After(now) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out, nil
}

func (s *Store) HasNotification(_ context.Context, invoiceID string, typ domain.NotificationType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications {
		if n.InvoiceID == invoiceID && n.Type == typ {
			return true, nil
		}
	}
	return false, nil
}

// ClaimNotification is the in-memory compare-and-set on processed_at.
func (s *Store) ClaimNotification(_ context.Context, id string, at, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	if n.Sent {
		return false, nil
	}
	if n.ProcessedAt != nil && !n.ProcessedAt.Before(staleBefore) {
		return false, nil
	}
	n.ProcessedAt = &at
	s.notifications[id] = n
	return true, nil
}

func (s *Store) MarkNotificationSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	n.Sent = true
	n.ProcessedAt = &at
	s.notifications[id] = n
	return nil
}

func (s *Store) ReleaseNotification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	if n.Sent {
		return nil
	}
	n.ProcessedAt = nil
	s.notifications[id] = n
	return nil
}

func (s *Store) DeleteNotificationsByInvoice(_ context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.notifications {
		if n.InvoiceID == invoiceID {
			delete(s.notifications, id)
		}
	}
	return nil
}
