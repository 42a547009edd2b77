package supabase

import (
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// invoiceRow is the PostgREST shape of the invoices table.
type invoiceRow struct {
	ID            string              `json:"id"`
	Filename      string              `json:"filename"`
	Amount        decimal.NullDecimal `json:"amount"`
	DueDate       *string             `json:"due_date"`
	IssueDate     *string             `json:"issue_date"`
	Issuer        *string             `json:"issuer"`
	Category      string              `json:"category"`
	Description   *string             `json:"description"`
	ExtractedText string              `json:"extracted_text"`
	Status        string              `json:"status"`
	Paid          bool                `json:"paid"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toInvoiceRow(inv *domain.Invoice) invoiceRow {
	return invoiceRow{
		ID:            inv.ID,
		Filename:      inv.Filename,
		Amount:        inv.Amount,
		DueDate:       formatDate(inv.DueDate),
		IssueDate:     formatDate(inv.IssueDate),
		Issuer:        inv.Issuer,
		Category:      string(inv.Category),
		Description:   inv.Description,
		ExtractedText: inv.ExtractedText,
		Status:        string(inv.Status),
		Paid:          inv.Paid,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func (r invoiceRow) toDomain() (domain.Invoice, error) {
	due, err := parseDate(r.DueDate)
	if err != nil {
		return domain.Invoice{}, err
	}
	issue, err := parseDate(r.IssueDate)
	if err != nil {
		return domain.Invoice{}, err
	}
	return domain.Invoice{
		ID:            r.ID,
		Filename:      r.Filename,
		Amount:        r.Amount,
		DueDate:       due,
		IssueDate:     issue,
		Issuer:        r.Issuer,
		Category:      domain.Category(r.Category),
		Description:   r.Description,
		ExtractedText: r.ExtractedText,
		Status:        domain.InvoiceStatus(r.Status),
		Paid:          r.Paid,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

// notificationRow is the PostgREST shape of the notifications table.
type notificationRow struct {
	ID           string     `json:"id"`
	InvoiceID    string     `json:"invoice_id"`
	Type         string     `json:"type"`
	ScheduleDate time.Time  `json:"schedule_date"`
	Sent         bool       `json:"sent"`
	Email        string     `json:"email"`
	Message      string     `json:"message"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
}

func toNotificationRow(n *domain.Notification) notificationRow {
	return notificationRow{
		ID:           n.ID,
		InvoiceID:    n.InvoiceID,
		Type:         string(n.Type),
		ScheduleDate: n.ScheduledDate,
		Sent:         n.Sent,
		Email:        n.Recipient,
		Message:      n.Message,
		CreatedAt:    n.CreatedAt,
		ProcessedAt:  n.ProcessedAt,
	}
}

func (r notificationRow) toDomain() domain.Notification {
	return domain.Notification{
		ID:            r.ID,
		InvoiceID:     r.InvoiceID,
		Type:          domain.NotificationType(r.Type),
		ScheduledDate: r.ScheduleDate,
		Sent:          r.Sent,
		Recipient:     r.Email,
		Message:       r.Message,
		CreatedAt:     r.CreatedAt,
		ProcessedAt:   r.ProcessedAt,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
