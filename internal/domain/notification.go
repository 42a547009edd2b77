package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType distinguishes reminders from limit alerts.
type NotificationType string

const (
	NotificationDueSoon       NotificationType = "DUE_SOON"
	NotificationLimitExceeded NotificationType = "LIMIT_EXCEEDED"
)

// Label returns the Portuguese display name, used as the e-mail subject.
func (t NotificationType) Label() string {
	switch t {
	case NotificationDueSoon:
		return "Vencimento Próximo"
	case NotificationLimitExceeded:
		return "Limite Excedido"
	default:
		return string(t)
	}
}

// ============================================================
// Notification
// ============================================================

// Notification is a message scheduled for delivery about one invoice.
// Sent flips to true once delivery succeeds, together with ProcessedAt.
// ProcessedAt on an unsent notification marks a delivery in progress.
type Notification struct {
	ID            string           `json:"id"`
	InvoiceID     string           `json:"invoiceId"`
	Type          NotificationType `json:"type"`
	ScheduledDate time.Time        `json:"scheduleDate"`
	Sent          bool             `json:"sent"`
	Recipient     string           `json:"email"`
	Message       string           `json:"message"`
	CreatedAt     time.Time        `json:"createdAt"`
	ProcessedAt   *time.Time       `json:"processedAt"`
}

// NewNotification builds a pending notification.
func NewNotification(invoiceID string, typ NotificationType, scheduled time.Time, recipient, message string, now time.Time) Notification {
	return Notification{
		ID:            uuid.New().String(),
		InvoiceID:     invoiceID,
		Type:          typ,
		ScheduledDate: scheduled,
		Recipient:     recipient,
		Message:       message,
		CreatedAt:     now,
	}
}

// SendResult is the outcome of a single send attempt.
type SendResult struct {
	NotificationID string `json:"notificationId"`
	Success        bool   `json:"success"`
	Reason         string `json:"reason,omitempty"`
}

// DispatchReport summarizes one dispatch sweep.
type DispatchReport struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// DueSoonReport summarizes one due-soon sweep.
type DueSoonReport struct {
	TargetDate time.Time `json:"targetDate"`
	Candidates int       `json:"candidates"`
	Created    int       `json:"created"`
	Existing   int       `json:"existing"`
}
