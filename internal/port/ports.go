// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
)

// TextExtractor turns an uploaded document into raw text (OCR or PDF text
// layer). An empty string with a nil error is a valid result.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc domain.RawDocument) (string, error)
}

// Deliverer sends one rendered notification. Implementations must be safe
// for concurrent use.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, n *domain.Notification, inv *domain.Invoice) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// InvoiceStore persists invoices. Get returns *domain.ErrNotFound for
// unknown IDs.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	UpdateInvoice(ctx context.Context, inv *domain.Invoice) error
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	// ListInvoices returns matches newest first.
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
}

// NotificationStore persists notifications.
//
// Delivery is at-least-once. A sender claims a notification by stamping
// processed_at on the unsent row, delivers, then marks it sent. The claim
// is a lease: a sender that dies after claiming leaves the row unsent, and
// once processed_at falls before the caller's staleBefore another sender
// may claim it again. A delivery that succeeded but was never marked sent
// can therefore be repeated after the lease runs out.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	// CreateNotificationIfAbsent inserts n unless the invoice already has a
	// notification of the same type, as one atomic step. It reports whether
	// n was inserted.
	CreateNotificationIfAbsent(ctx context.Context, n *domain.Notification) (bool, error)
	GetNotification(ctx context.Context, id string) (*domain.Notification, error)
	// ListNotifications returns every notification, latest schedule first.
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	// ListPendingNotifications returns unsent notifications scheduled at or
	// before now, including ones under a live claim.
	ListPendingNotifications(ctx context.Context, now time.Time) ([]domain.Notification, error)
	HasNotification(ctx context.Context, invoiceID string, typ domain.NotificationType) (bool, error)

	// ClaimNotification stamps processed_at with at, only if the
	// notification is unsent and not held by a claim taken at or after
	// staleBefore. It reports whether this caller won the claim.
	ClaimNotification(ctx context.Context, id string, at, staleBefore time.Time) (bool, error)
	// MarkNotificationSent sets sent and processed_at after a delivery.
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error
	// ReleaseNotification drops the claim on an unsent notification after
	// a failed delivery.
	ReleaseNotification(ctx context.Context, id string) error

	DeleteNotificationsByInvoice(ctx context.Context, invoiceID string) error
}

// Store is the full persistence layer, implemented by the memory, Postgres
// and Supabase adapters.
type Store interface {
	InvoiceStore
	NotificationStore
	Ping(ctx context.Context) error
}
