// Package domain defines the invoice-control entities shared by the
// extraction pipeline, the services and the stores. The types here are
// independent of any storage or transport.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks where an invoice is in the processing lifecycle.
type InvoiceStatus string

const (
	StatusProcessing InvoiceStatus = "PROCESSING"
	StatusProcessed  InvoiceStatus = "PROCESSED"
	StatusError      InvoiceStatus = "ERROR"
)

// ============================================================
// Invoice
// ============================================================

// Invoice is the structured record derived from one uploaded document.
type Invoice struct {
	ID            string              `json:"id"`
	Filename      string              `json:"filename"`
	Amount        decimal.NullDecimal `json:"amount"`
	DueDate       *time.Time          `json:"dueDate"`
	IssueDate     *time.Time          `json:"issueDate"`
	Issuer        *string             `json:"issuer"`
	Category      Category            `json:"category"`
	Description   *string             `json:"description"`
	ExtractedText string              `json:"extractedText"`
	Status        InvoiceStatus       `json:"status"`
	Paid          bool                `json:"paid"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// NewInvoice returns an invoice in PROCESSING status, ready to be persisted
// before extraction starts.
func NewInvoice(filename string, now time.Time) *Invoice {
	return &Invoice{
		ID:        uuid.New().String(),
		Filename:  filename,
		Category:  CategoryOutros,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyExtraction copies the extracted fields and the category into the
// invoice and marks it PROCESSED. Absent fields stay nil.
func (inv *Invoice) ApplyExtraction(text string, fields ExtractedFields, category Category, now time.Time) {
	inv.ExtractedText = text
	inv.Amount = decimal.NullDecimal{}
	if fields.Amount.Present {
		inv.Amount = decimal.NewNullDecimal(fields.Amount.Value)
	}
	inv.DueDate = fields.DueDate.Ptr()
	inv.IssueDate = fields.IssueDate.Ptr()
	inv.Issuer = fields.Issuer.Ptr()
	if !category.Valid() {
		category = CategoryOutros
	}
	inv.Category = category
	inv.Status = StatusProcessed
	inv.UpdatedAt = now
}

// MarkFailed records a processing failure: amount zero, reason in the
// description, extracted fields left empty.
func (inv *Invoice) MarkFailed(reason string, now time.Time) {
	inv.Amount = decimal.NewNullDecimal(decimal.Zero)
	inv.Description = &reason
	inv.Status = StatusError
	inv.UpdatedAt = now
}

// IssuerOr returns the issuer name or the given placeholder.
func (inv *Invoice) IssuerOr(placeholder string) string {
	if inv.Issuer == nil || *inv.Issuer == "" {
		return placeholder
	}
	return *inv.Issuer
}

// ============================================================
// Queries & patches
// ============================================================

// InvoiceFilter narrows invoice listings. Nil pointers mean "no filter".
type InvoiceFilter struct {
	Category  *Category
	Paid      *bool
	DueFrom   *time.Time
	DueTo     *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Search    string
}

// Match reports whether inv passes every set criterion. Invoices without a
// due date never match a date range; invoices without an amount never match
// an amount bound.
func (f InvoiceFilter) Match(inv *Invoice) bool {
	if f.Category != nil && inv.Category != *f.Category {
		return false
	}
	if f.Paid != nil && inv.Paid != *f.Paid {
		return false
	}
	if f.DueFrom != nil || f.DueTo != nil {
		if inv.DueDate == nil {
			return false
		}
		if f.DueFrom != nil && inv.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueTo != nil && inv.DueDate.After(*f.DueTo) {
			return false
		}
	}
	if f.MinAmount != nil || f.MaxAmount != nil {
		if !inv.Amount.Valid {
			return false
		}
		if f.MinAmount != nil && inv.Amount.Decimal.LessThan(*f.MinAmount) {
			return false
		}
		if f.MaxAmount != nil && inv.Amount.Decimal.GreaterThan(*f.MaxAmount) {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hit := strings.Contains(strings.ToLower(inv.IssuerOr("")), q) ||
			strings.Contains(strings.ToLower(inv.Filename), q)
		if inv.Description != nil {
			hit = hit || strings.Contains(strings.ToLower(*inv.Description), q)
		}
		if !hit {
			return false
		}
	}
	return true
}

// InvoicePatch carries a manual correction. Only non-nil fields change.
type InvoicePatch struct {
	Amount      *decimal.Decimal `json:"amount"`
	DueDate     *time.Time       `json:"dueDate"`
	IssueDate   *time.Time       `json:"issueDate"`
	Issuer      *string          `json:"issuer"`
	Category    *Category        `json:"category"`
	Description *string          `json:"description"`
	Paid        *bool            `json:"paid"`
}

// Apply writes the patch into the invoice.
func (p InvoicePatch) Apply(inv *Invoice, now time.Time) {
	if p.Amount != nil {
		inv.Amount = decimal.NewNullDecimal(p.Amount.Round(2))
	}
	if p.DueDate != nil {
		d := DateOf(*p.DueDate)
		inv.DueDate = &d
	}
	if p.IssueDate != nil {
		d := DateOf(*p.IssueDate)
		inv.IssueDate = &d
	}
	if p.Issuer != nil {
		inv.Issuer = p.Issuer
	}
	if p.Category != nil {
		inv.Category = *p.Category
	}
	if p.Description != nil {
		inv.Description = p.Description
	}
	if p.Paid != nil {
		inv.Paid = *p.Paid
	}
	inv.UpdatedAt = now
}

// InvoiceSummary feeds the dashboard.
type InvoiceSummary struct {
	TotalCount    int                          `json:"totalCount"`
	PaidCount     int                          `json:"paidCount"`
	PendingCount  int                          `json:"pendingCount"`
	ErrorCount    int                          `json:"errorCount"`
	TotalAmount   decimal.Decimal              `json:"totalAmount"`
	PaidAmount    decimal.Decimal              `json:"paidAmount"`
	PendingAmount decimal.Decimal              `json:"pendingAmount"`
	UpcomingCount int                          `json:"upcomingCount"`
	OverdueCount  int                          `json:"overdueCount"`
	ByCategory    map[Category]decimal.Decimal `json:"byCategory"`
}

// RawDocument is an uploaded file held in memory while it is processed.
type RawDocument struct {
	Filename  string
	MediaType string
	Data      []byte
}

// ============================================================
// Calendar dates
// ============================================================

// Date builds a calendar date at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping its calendar date as UTC midnight.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DateIn returns the calendar date of t as observed in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(t.In(loc))
}
